package nextride

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/krishs7/nextride/model"
	"github.com/krishs7/nextride/storage"
)

// Resolver maps a free-text or id-like stop reference to ranked
// candidate stop ids. It never decides which candidate is right; the
// engine tries them in order until one yields arrivals.
type Resolver struct {
	store storage.Store
}

func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

const (
	// Cap on candidates returned to the engine.
	DefaultCandidateLimit = 10

	// Working set size for the name search.
	searchWorkingSet = 200

	// Score for a reference that is itself a known stop id.
	// Operator-supplied ids beat any fuzzy match.
	exactIDScore = 100
)

var idShaped = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Resolve returns candidates best first, at most limit (0 means
// DefaultCandidateLimit). An empty result means no stop matched.
func (r *Resolver) Resolve(agency model.Agency, ref string, limit int) ([]*model.StopCandidate, error) {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	ref = strings.TrimSpace(ref)

	candidates := []*model.StopCandidate{}
	seen := map[string]bool{}

	if idShaped.MatchString(ref) {
		stop, err := r.store.StopByID(agency, ref)
		if err != nil {
			return nil, fmt.Errorf("looking up stop id: %w", err)
		}
		if stop != nil {
			candidates = append(candidates, &model.StopCandidate{
				ID:    stop.ID,
				Name:  stop.Name,
				Score: exactIDScore,
			})
			seen[stop.ID] = true
		}
	}

	// An id-shaped token might still be a display name ("Kipling"),
	// so the name search always runs.
	scored, err := r.searchByName(agency, ref)
	if err != nil {
		return nil, err
	}
	for _, c := range scored {
		if !seen[c.ID] {
			candidates = append(candidates, c)
			seen[c.ID] = true
		}
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (r *Resolver) searchByName(agency model.Agency, query string) ([]*model.StopCandidate, error) {
	tokens := tokenizeStopQuery(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	rows, err := r.store.SearchStopsByName(agency, tokens[0], searchWorkingSet)
	if err != nil {
		return nil, fmt.Errorf("searching stops: %w", err)
	}

	// Every token must appear in the name. This keeps "Warden
	// Station" from matching "Warden Ave".
	eligible := []*model.Stop{}
	for _, stop := range rows {
		name := normalizeStopText(stop.Name)
		ok := true
		for _, tok := range tokens {
			if !strings.Contains(name, tok) {
				ok = false
				break
			}
		}
		if ok {
			eligible = append(eligible, stop)
		}
	}

	wantsStation := false
	for _, tok := range tokens {
		if tok == "station" {
			wantsStation = true
			break
		}
	}

	var scored []*model.StopCandidate
	if wantsStation {
		scored = scoreStationQuery(eligible)
	}
	if scored == nil {
		scored = scorePlainQuery(eligible, strings.Join(tokens, " "))
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Name < scored[j].Name
	})
	return scored, nil
}

// Station queries prefer platform rows. In several source datasets
// the bare "X Station" row is a hierarchy placeholder with no trips;
// the "X Station - Platform 1" rows carry the timetable.
func scoreStationQuery(eligible []*model.Stop) []*model.StopCandidate {
	platforms := []*model.StopCandidate{}
	for _, stop := range eligible {
		name := normalizeStopText(stop.Name)
		if !strings.Contains(name, "platform") {
			continue
		}
		score := 5.0
		for _, dir := range []string{"eastbound", "westbound", "northbound", "southbound"} {
			if strings.Contains(name, dir) {
				score += 1
				break
			}
		}
		platforms = append(platforms, &model.StopCandidate{
			ID:    stop.ID,
			Name:  stop.Name,
			Score: score,
		})
	}
	if len(platforms) == 0 {
		// No platform rows survived; fall back to plain scoring
		// over the full filtered set.
		return nil
	}
	return platforms
}

func scorePlainQuery(eligible []*model.Stop, query string) []*model.StopCandidate {
	scored := []*model.StopCandidate{}
	for _, stop := range eligible {
		name := normalizeStopText(stop.Name)
		score := 0.0
		if strings.HasPrefix(name, query) {
			score += 2
		}
		// Near-length matches beat very long or very short names.
		diff := len(name) - len(query)
		if diff < 0 {
			diff = -diff
		}
		score += 2.0 / float64(1+diff)

		scored = append(scored, &model.StopCandidate{
			ID:    stop.ID,
			Name:  stop.Name,
			Score: score,
		})
	}
	return scored
}

var dashVariants = strings.NewReplacer("-", " ", "‐", " ", "–", " ", "—", " ", "/", " ")

// Lowercases, folds dash variants to spaces and expands the "stn"
// abbreviation. Applied to both queries and stop names so the two
// sides agree on vocabulary.
func normalizeStopText(s string) string {
	words := strings.Fields(dashVariants.Replace(strings.ToLower(s)))
	for i, w := range words {
		if w == "stn" {
			words[i] = "station"
		}
	}
	return strings.Join(words, " ")
}

func tokenizeStopQuery(query string) []string {
	return strings.Fields(normalizeStopText(query))
}
