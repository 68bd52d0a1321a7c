package nextride

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/storage"
)

// Stations are one place to a rider and several stop ids to the data.
// ExpandStopGroup returns every physical stop id that counts as "the
// same place" as the seed. The seed is always in the result and the
// expansion is idempotent.
//
// Three ways a group forms, tried in order:
//   - the seed is a station node with children: seed plus children;
//   - the seed has a parent station: the parent plus all its
//     platforms;
//   - no hierarchy at all but the name says "station" (a known gap in
//     some source datasets): seed plus all agency stops within
//     radiusM meters.
//
// Anything else is an ordinary standalone stop and expands to itself.
func ExpandStopGroup(store storage.Store, agency model.Agency, stopID string, radiusM float64) ([]string, error) {
	stop, err := store.StopByID(agency, stopID)
	if err != nil {
		return nil, fmt.Errorf("looking up stop: %w", err)
	}
	if stop == nil {
		return []string{stopID}, nil
	}

	if stop.LocationType == model.LocationTypeStation {
		children, err := store.StopsByParent(agency, stopID)
		if err != nil {
			return nil, fmt.Errorf("listing children: %w", err)
		}
		if len(children) > 0 {
			return groupIDs(stopID, children), nil
		}
	}

	if stop.ParentStation != "" {
		siblings, err := store.StopsByParent(agency, stop.ParentStation)
		if err != nil {
			return nil, fmt.Errorf("listing siblings: %w", err)
		}
		group := groupIDs(stopID, siblings)
		return append(group, stop.ParentStation), nil
	}

	if nameSuggestsStation(stop.Name) && (stop.Lat != 0 || stop.Lon != 0) {
		nearby, err := store.StopsWithin(agency, storage.BoundsAround(stop.Lat, stop.Lon, radiusM))
		if err != nil {
			return nil, fmt.Errorf("proximity search: %w", err)
		}
		group := []string{stopID}
		for _, other := range nearby {
			if other.ID == stopID {
				continue
			}
			if storage.Distance(stop.Lat, stop.Lon, other.Lat, other.Lon) <= radiusM {
				group = append(group, other.ID)
			}
		}
		sort.Strings(group[1:])
		return group, nil
	}

	return []string{stopID}, nil
}

var stationWord = regexp.MustCompile(`(?i)\b(station|stn)\b`)

func nameSuggestsStation(name string) bool {
	return stationWord.MatchString(name)
}

// Seed first, the rest sorted, no duplicates.
func groupIDs(seed string, stops []*model.Stop) []string {
	ids := []string{seed}
	for _, stop := range stops {
		if stop.ID != seed {
			ids = append(ids, stop.ID)
		}
	}
	sort.Strings(ids[1:])
	return ids
}
