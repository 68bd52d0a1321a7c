package nextride

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krishs7/nextride/internal/logging"
	"github.com/krishs7/nextride/model"
)

var (
	// Input errors, rejected immediately.
	ErrUnsupportedAgency = errors.New("unsupported agency")
	ErrStopRefRequired   = errors.New("stop reference required")

	// A resolution miss, not a failure: the reference matched no
	// stop at all. Distinct from a found stop with no arrivals.
	ErrStopNotFound = errors.New("stop not found")
)

// Which data source produced a response. Never mixed within one
// response.
type Source string

const (
	SourceRealtime Source = "realtime"
	SourceSchedule Source = "schedule"
	SourceNone     Source = "none"
)

const (
	defaultFanOut        = 4
	suggestRoutesWindow  = 24 * time.Hour
	defaultAlertCap      = 20
	defaultAlertWindow   = 90 * time.Minute
	DefaultStationRadius = 300.0
)

// Engine is the top-level coordinator: resolve the reference, expand
// each candidate to its stop-group, try realtime across the group,
// fall back to the schedule, merge and pick the first candidate that
// yields anything.
type Engine struct {
	handle   *ScheduleHandle
	adapters map[model.Agency]*Adapter
	radiusM  float64
	fanOut   int
	logger   *slog.Logger
}

type EngineOptions struct {
	// Proximity-grouping radius in meters. Zero means 300.
	StationRadiusM float64

	// Concurrent source queries per stop-group. Zero means 4.
	FanOut int

	Logger *slog.Logger
}

func NewEngine(handle *ScheduleHandle, adapters []*Adapter, opts EngineOptions) *Engine {
	byAgency := map[model.Agency]*Adapter{}
	for _, a := range adapters {
		byAgency[a.Agency()] = a
	}
	if opts.StationRadiusM == 0 {
		opts.StationRadiusM = DefaultStationRadius
	}
	if opts.FanOut == 0 {
		opts.FanOut = defaultFanOut
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Engine{
		handle:   handle,
		adapters: byAgency,
		radiusM:  opts.StationRadiusM,
		fanOut:   opts.FanOut,
		logger:   opts.Logger,
	}
}

// Schedule exposes the underlying schedule, hydrating it if needed.
func (e *Engine) Schedule(ctx context.Context) (*Schedule, error) {
	return e.handle.Get(ctx)
}

type ArrivalsRequest struct {
	Agency      string
	StopRef     string
	RouteFilter string
	Limit       int

	// Zero means now.
	AsOf time.Time
}

type ArrivalsResponse struct {
	Arrivals []*model.Arrival
	Source   Source

	// The candidate the arrivals came from, or the best-ranked
	// candidate when every source came up empty.
	ResolvedStopID   string
	ResolvedStopName string

	// Routes serving the resolved location soon. Only computed when
	// the request had no route filter; meant for disambiguation UI,
	// not as arrivals.
	SuggestedRoutes []string
}

// Arrivals resolves the stop reference and returns upcoming
// departures, preferring realtime and falling back to the static
// schedule. An empty arrival list with SourceNone is a valid outcome,
// not an error.
func (e *Engine) Arrivals(ctx context.Context, req ArrivalsRequest) (*ArrivalsResponse, error) {
	agency, ok := model.ParseAgency(req.Agency)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAgency, req.Agency)
	}
	if strings.TrimSpace(req.StopRef) == "" {
		return nil, ErrStopRefRequired
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultDepartureLimit
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	sched, err := e.handle.Get(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := NewResolver(sched.Store()).Resolve(agency, req.StopRef, 0)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrStopNotFound, req.StopRef)
	}

	adapter := e.adapters[agency]
	opts := DepartureOptions{Limit: limit, RouteFilter: req.RouteFilter, AsOf: asOf}

	// Candidates are tried strictly in rank order. Candidate N+1 is
	// only the intended stop if candidate N yields nothing, so this
	// loop must stay sequential.
	var firstGroup []string
	for _, cand := range candidates {
		group, err := ExpandStopGroup(sched.Store(), agency, cand.ID, e.radiusM)
		if err != nil {
			e.logger.Debug("expansion failed", "stop", cand.ID, "error", err)
			group = []string{cand.ID}
		}
		if firstGroup == nil {
			firstGroup = group
		}

		if adapter != nil {
			arrivals := e.collect(ctx, group, limit, func(ctx context.Context, stopID string) ([]*model.Arrival, error) {
				return adapter.ArrivalsAt(ctx, stopID, opts)
			})
			if len(arrivals) > 0 {
				return e.respond(ctx, sched, agency, adapter, cand, group, arrivals, SourceRealtime, req.RouteFilter, asOf)
			}
		}

		arrivals := e.collect(ctx, group, limit, func(ctx context.Context, stopID string) ([]*model.Arrival, error) {
			return sched.NextDepartures(agency, stopID, opts)
		})
		if len(arrivals) > 0 {
			return e.respond(ctx, sched, agency, adapter, cand, group, arrivals, SourceSchedule, req.RouteFilter, asOf)
		}
	}

	// Every candidate, every source, empty. A closed station at 3am
	// lands here; it is a successful response.
	return e.respond(ctx, sched, agency, adapter, candidates[0], firstGroup, []*model.Arrival{}, SourceNone, req.RouteFilter, asOf)
}

// Queries one source for every id in a stop-group, bounded fan-out,
// each call fault-isolated: one id's failure only drops that id's
// contribution. Results are merged, deduplicated and capped.
func (e *Engine) collect(
	ctx context.Context,
	group []string,
	limit int,
	query func(ctx context.Context, stopID string) ([]*model.Arrival, error),
) []*model.Arrival {
	results := make([][]*model.Arrival, len(group))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.fanOut)
	for i, stopID := range group {
		i, stopID := i, stopID
		eg.Go(func() error {
			arrivals, err := query(ctx, stopID)
			if err != nil {
				e.logger.Debug("source query failed", "stop", stopID, "error", err)
				return nil
			}
			results[i] = arrivals
			return nil
		})
	}
	eg.Wait()

	merged := []*model.Arrival{}
	for _, r := range results {
		merged = append(merged, r...)
	}
	return dedupArrivals(merged, limit)
}

type arrivalKey struct {
	route    string
	headsign string
	when     int64
}

// The same vehicle appears once per platform in an expanded group.
// Collapse by (route, headsign, when), then sort and cap.
func dedupArrivals(arrivals []*model.Arrival, limit int) []*model.Arrival {
	seen := map[arrivalKey]bool{}
	deduped := []*model.Arrival{}
	for _, a := range arrivals {
		key := arrivalKey{a.RouteShortName, a.Headsign, a.When.Unix()}
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, a)
	}

	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].When.Before(deduped[j].When)
	})
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}

func (e *Engine) respond(
	ctx context.Context,
	sched *Schedule,
	agency model.Agency,
	adapter *Adapter,
	cand *model.StopCandidate,
	group []string,
	arrivals []*model.Arrival,
	source Source,
	routeFilter string,
	asOf time.Time,
) (*ArrivalsResponse, error) {
	resp := &ArrivalsResponse{
		Arrivals:         arrivals,
		Source:           source,
		ResolvedStopID:   cand.ID,
		ResolvedStopName: cand.Name,
	}

	if routeFilter == "" {
		resp.SuggestedRoutes = e.suggestRoutes(ctx, sched, agency, adapter, group, asOf)
	}
	return resp, nil
}

// Routes serving the stop-group within the next day of scheduled
// service. When the schedule has nothing (an unloaded agency, say),
// the current realtime feed serves as a sample instead.
func (e *Engine) suggestRoutes(
	ctx context.Context,
	sched *Schedule,
	agency model.Agency,
	adapter *Adapter,
	group []string,
	asOf time.Time,
) []string {
	routes, err := sched.RoutesServing(agency, group, asOf, suggestRoutesWindow)
	if err != nil {
		e.logger.Debug("route suggestion failed", "error", err)
	}
	if len(routes) > 0 {
		return routes
	}

	if adapter == nil {
		return nil
	}
	routes, err = adapter.RoutesAt(ctx, group)
	if err != nil {
		e.logger.Debug("realtime route sample failed", "error", err)
		return nil
	}
	return routes
}

type AlertsRequest struct {
	Agency      string
	StopRef     string
	RouteFilter string

	// Half-width of the activity window around now. Zero means 90
	// minutes.
	Window time.Duration

	Limit int

	// Zero means now.
	AsOf time.Time
}

// Alerts returns the agency's current service alerts, optionally
// scoped to a stop and/or route. Order follows the upstream feed;
// alerts carry no inherent "next" ordering the way arrivals do.
func (e *Engine) Alerts(ctx context.Context, req AlertsRequest) ([]*model.Alert, error) {
	agency, ok := model.ParseAgency(req.Agency)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAgency, req.Agency)
	}
	adapter := e.adapters[agency]
	if adapter == nil {
		return []*model.Alert{}, nil
	}

	window := req.Window
	if window <= 0 {
		window = defaultAlertWindow
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultAlertCap
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	// Stop context adds two matching signals: the routes serving the
	// stop, and tokens from the stop's name appearing in alert text.
	var stopTokens []string
	var servingRoutes []string
	if strings.TrimSpace(req.StopRef) != "" {
		sched, err := e.handle.Get(ctx)
		if err != nil {
			return nil, err
		}
		candidates, err := NewResolver(sched.Store()).Resolve(agency, req.StopRef, 0)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrStopNotFound, req.StopRef)
		}
		cand := candidates[0]

		group, err := ExpandStopGroup(sched.Store(), agency, cand.ID, e.radiusM)
		if err != nil {
			group = []string{cand.ID}
		}
		stopTokens = tokenizeStopQuery(cand.Name)
		servingRoutes, err = sched.RoutesServing(agency, group, asOf, suggestRoutesWindow)
		if err != nil {
			e.logger.Debug("serving routes for alert scope failed", "error", err)
		}
	}

	alerts, err := adapter.AlertsFor(ctx, req.RouteFilter)
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			e.logger.Debug("alerts feed unavailable", "agency", agency, "error", err)
			return []*model.Alert{}, nil
		}
		return nil, err
	}

	matched := []*model.Alert{}
	for _, alert := range alerts {
		if !alertActive(alert, asOf, window) {
			continue
		}
		if stopTokens != nil && !alertMentionsStop(alert, stopTokens, servingRoutes) {
			continue
		}
		matched = append(matched, alert)
		if len(matched) == limit {
			break
		}
	}
	return matched, nil
}

// An alert with no bounds is always active; otherwise its period must
// overlap [asOf-window, asOf+window].
func alertActive(alert *model.Alert, asOf time.Time, window time.Duration) bool {
	lo := asOf.Add(-window)
	hi := asOf.Add(window)
	if alert.Start != nil && alert.Start.After(hi) {
		return false
	}
	if alert.End != nil && alert.End.Before(lo) {
		return false
	}
	return true
}

func alertMentionsStop(alert *model.Alert, stopTokens, servingRoutes []string) bool {
	text := strings.ToLower(alert.Header + " " + alert.Description)
	for _, tok := range stopTokens {
		if len(tok) >= 4 && strings.Contains(text, tok) {
			return true
		}
	}
	for _, route := range alert.Routes {
		for _, serving := range servingRoutes {
			if routeKeyMatches(serving, route) {
				return true
			}
		}
	}
	return false
}
