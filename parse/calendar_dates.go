package parse

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/storage"
)

type CalendarDateCSV struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType int8   `csv:"exception_type"`
}

// Returns the set of all service IDs seen.
func ParseCalendarDates(writer storage.Writer, agency model.Agency, data io.Reader) (map[string]bool, error) {
	cdCsv := []*CalendarDateCSV{}
	if err := gocsv.Unmarshal(data, &cdCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling calendar_dates csv: %w", err)
	}

	services := map[string]bool{}
	for _, cd := range cdCsv {
		if cd.ServiceID == "" {
			return nil, fmt.Errorf("empty service_id")
		}
		services[cd.ServiceID] = true

		if _, err := time.ParseInLocation("20060102", cd.Date, time.UTC); err != nil {
			return nil, fmt.Errorf("parsing date: %w", err)
		}
		if cd.ExceptionType != model.CalendarAdded && cd.ExceptionType != model.CalendarRemoved {
			return nil, fmt.Errorf("invalid exception_type '%d'", cd.ExceptionType)
		}

		err := writer.WriteCalendarDate(&model.CalendarDate{
			Agency:        agency,
			ServiceID:     cd.ServiceID,
			Date:          cd.Date,
			ExceptionType: cd.ExceptionType,
		})
		if err != nil {
			return nil, fmt.Errorf("writing calendar date: %w", err)
		}
	}

	return services, nil
}
