package nextride

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/krishs7/nextride/downloader"
	"github.com/krishs7/nextride/internal/logging"
	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/parse"
)

// ErrSourceUnavailable marks an upstream feed failure: timeout,
// non-2xx response or undecodable payload. The engine treats it as
// "this source produced nothing for this attempt" and moves on.
var ErrSourceUnavailable = errors.New("source unavailable")

const (
	DefaultFeedTimeout = 8 * time.Second

	// Realtime feeds refresh upstream every 15-30 seconds; fetching
	// more often than that only re-downloads identical bytes.
	feedCacheTTL = 20 * time.Second

	maxFeedSize = 32 << 20
)

// Adapter fetches and decodes one agency's realtime feeds. Each
// agency gets exactly one adapter, carrying the feed endpoints and
// the stop-id matching policy that agency's upstream requires.
type Adapter struct {
	agency         model.Agency
	tripUpdatesURL string
	alertsURL      string
	policy         model.MatchPolicy
	timeout        time.Duration

	dl     downloader.Downloader
	logger *slog.Logger
}

type AdapterConfig struct {
	Agency         model.Agency
	TripUpdatesURL string
	AlertsURL      string
	Policy         model.MatchPolicy

	// Zero means DefaultFeedTimeout.
	Timeout time.Duration
}

func NewAdapter(cfg AdapterConfig, dl downloader.Downloader, logger *slog.Logger) *Adapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultFeedTimeout
	}
	if dl == nil {
		dl = downloader.NewMemory()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Adapter{
		agency:         cfg.Agency,
		tripUpdatesURL: cfg.TripUpdatesURL,
		alertsURL:      cfg.AlertsURL,
		policy:         cfg.Policy,
		timeout:        cfg.Timeout,
		dl:             dl,
		logger:         logger,
	}
}

func (a *Adapter) Agency() model.Agency {
	return a.agency
}

// ArrivalsAt returns live departures from the stop, ascending by
// time, realtime flag always true, at most opts.Limit.
func (a *Adapter) ArrivalsAt(ctx context.Context, stopID string, opts DepartureOptions) ([]*model.Arrival, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultDepartureLimit
	}
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	rt, err := a.fetchTripUpdates(ctx)
	if err != nil {
		return nil, err
	}

	arrivals := []*model.Arrival{}
	for _, u := range rt.Updates {
		if !stopIDMatches(a.policy, u.StopID, stopID) {
			continue
		}
		if u.Time.Before(asOf) {
			continue
		}
		if opts.RouteFilter != "" && !routeKeyMatches(opts.RouteFilter, u.RouteID) {
			continue
		}
		arrivals = append(arrivals, &model.Arrival{
			When:           u.Time,
			Realtime:       true,
			RouteShortName: u.RouteID,
			Headsign:       u.Headsign,
			VehicleID:      u.VehicleID,
		})
	}

	sort.Slice(arrivals, func(i, j int) bool {
		return arrivals[i].When.Before(arrivals[j].When)
	})
	if len(arrivals) > limit {
		arrivals = arrivals[:limit]
	}
	return arrivals, nil
}

// RoutesAt returns the distinct route labels appearing in the current
// trip-update feed for any of the stops. Used as a fallback sample
// when the schedule can't suggest routes.
func (a *Adapter) RoutesAt(ctx context.Context, stopIDs []string) ([]string, error) {
	rt, err := a.fetchTripUpdates(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	routes := []string{}
	for _, u := range rt.Updates {
		if u.RouteID == "" || seen[u.RouteID] {
			continue
		}
		for _, stopID := range stopIDs {
			if stopIDMatches(a.policy, u.StopID, stopID) {
				seen[u.RouteID] = true
				routes = append(routes, u.RouteID)
				break
			}
		}
	}
	sort.Slice(routes, func(i, j int) bool { return routeLess(routes[i], routes[j]) })
	return routes, nil
}

// AlertsFor returns the agency's current service alerts, optionally
// narrowed to those whose informed routes match the filter. Order is
// the upstream feed's. Agencies without an alerts endpoint report no
// alerts rather than failing.
func (a *Adapter) AlertsFor(ctx context.Context, routeFilter string) ([]*model.Alert, error) {
	if a.alertsURL == "" {
		return []*model.Alert{}, nil
	}

	body, err := a.fetch(ctx, a.alertsURL)
	if err != nil {
		return nil, err
	}
	rt, err := parse.ParseRealtime([][]byte{body})
	if err != nil {
		return nil, fmt.Errorf("%w: decoding alerts feed: %v", ErrSourceUnavailable, err)
	}

	if routeFilter == "" {
		return rt.Alerts, nil
	}

	matched := []*model.Alert{}
	for _, alert := range rt.Alerts {
		for _, route := range alert.Routes {
			if routeKeyMatches(routeFilter, route) {
				matched = append(matched, alert)
				break
			}
		}
	}
	return matched, nil
}

func (a *Adapter) fetchTripUpdates(ctx context.Context) (*parse.Realtime, error) {
	if a.tripUpdatesURL == "" {
		return nil, fmt.Errorf("%w: no trip updates feed configured", ErrSourceUnavailable)
	}
	body, err := a.fetch(ctx, a.tripUpdatesURL)
	if err != nil {
		return nil, err
	}
	rt, err := parse.ParseRealtime([][]byte{body})
	if err != nil {
		return nil, fmt.Errorf("%w: decoding feed: %v", ErrSourceUnavailable, err)
	}
	return rt, nil
}

func (a *Adapter) fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := a.dl.Get(ctx, url, nil, downloader.GetOptions{
		MaxSize:  maxFeedSize,
		Timeout:  a.timeout,
		Cache:    true,
		CacheTTL: feedCacheTTL,
	})
	if err != nil {
		a.logger.Debug("feed fetch failed",
			"agency", a.agency, "url", url, "error", err)
		return nil, fmt.Errorf("%w: fetching feed: %v", ErrSourceUnavailable, err)
	}
	return body, nil
}

// Compares a realtime feed's stop id against a static stop id under
// the agency's policy. Strict is case-insensitive equality. Loose
// strips non-alphanumerics and accepts equality or either id being a
// suffix of the other, for agencies whose realtime feed prefixes or
// rewrites stop ids.
func stopIDMatches(policy model.MatchPolicy, feedID, stopID string) bool {
	if policy == model.MatchStrict {
		return strings.EqualFold(feedID, stopID)
	}

	f := normalizeStopID(feedID)
	s := normalizeStopID(stopID)
	if f == "" || s == "" {
		return f == s
	}
	return strings.HasSuffix(f, s) || strings.HasSuffix(s, f)
}

func normalizeStopID(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
