package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/storage"
)

type RouteCSV struct {
	ID        string `csv:"route_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
}

func ParseRoutes(writer storage.Writer, agency model.Agency, data io.Reader) (map[string]bool, error) {
	routeCsv := []*RouteCSV{}
	if err := gocsv.Unmarshal(data, &routeCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling routes csv: %w", err)
	}

	routes := map[string]bool{}
	for _, r := range routeCsv {
		if r.ID == "" {
			return nil, fmt.Errorf("empty route_id")
		}
		if routes[r.ID] {
			return nil, fmt.Errorf("repeated route_id '%s'", r.ID)
		}
		routes[r.ID] = true

		// route_short_name or route_long_name must be present
		if r.ShortName == "" && r.LongName == "" {
			return nil, fmt.Errorf("route '%s' missing both short and long name", r.ID)
		}

		err := writer.WriteRoute(&model.Route{
			ID:        r.ID,
			Agency:    agency,
			ShortName: r.ShortName,
			LongName:  r.LongName,
		})
		if err != nil {
			return nil, fmt.Errorf("writing route '%s': %w", r.ID, err)
		}
	}

	return routes, nil
}
