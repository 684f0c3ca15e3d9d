package usecase

import (
	"fmt"
	"sort"

	"github.com/hrselector/backend/internal/domain"
	"github.com/hrselector/backend/pkg/textx"
)

// Page size bounds for ranking responses.
const (
	defaultRankingLimit = 20
	maxRankingLimit     = 100
)

// RankingService scores and ranks the stored candidate pool against a job
// query. The whole pipeline runs over an in-memory snapshot fetched once per
// request; it holds no state of its own.
type RankingService struct {
	Candidates domain.CandidateRepository
}

// NewRankingService constructs a RankingService with the given repo.
func NewRankingService(r domain.CandidateRepository) RankingService {
	return RankingService{Candidates: r}
}

// Rank fetches the candidate pool, scores every row, applies the hard filters
// and returns the sorted, truncated page. When filtering eliminates everyone
// the unfiltered scored set is returned instead: callers prefer a degraded
// ranking to no ranking.
func (s RankingService) Rank(ctx domain.Context, q domain.JobQuery) ([]domain.ScoredCandidate, error) {
	pool, err := s.Candidates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=ranking.list: %w", err)
	}

	cq := compileQuery(q)
	scored := make([]domain.ScoredCandidate, 0, len(pool))
	for _, c := range pool {
		scored = append(scored, scoreCompiled(c, cq))
	}

	filtered := applyHardFilters(scored, q, cq)
	ranked := filtered
	if len(ranked) == 0 {
		ranked = scored
	}

	// Stable sort so ties keep their input order; comparisons use the
	// rounded score, matching what the response displays.
	out := make([]domain.ScoredCandidate, len(ranked))
	copy(out, ranked)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	limit := clampLimit(q.Limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// applyHardFilters eliminates rows that miss any hard requirement. Unlike the
// score, which only counts matches, a candidate missing even one required
// skill is excluded here.
func applyHardFilters(scored []domain.ScoredCandidate, q domain.JobQuery, cq rankQuery) []domain.ScoredCandidate {
	gender := textx.NormalizeOne(q.Gender)
	cities := textx.Normalize(q.Cities)
	citySet := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		citySet[c] = struct{}{}
	}
	distanceFilter := q.MaxDistanceKm != nil && q.JobLat != nil && q.JobLon != nil

	out := make([]domain.ScoredCandidate, 0, len(scored))
	for _, c := range scored {
		if !hasAllSkills(c.Skills, cq.required) {
			continue
		}
		if c.ExperienceYears < q.MinExperience {
			continue
		}
		if gender != "" && c.Gender != gender {
			continue
		}
		if len(citySet) > 0 {
			if _, ok := citySet[c.City]; !ok {
				continue
			}
		}
		if distanceFilter {
			// Unknown distance cannot satisfy an active distance cap.
			if c.Reasons.DistanceKm == nil || *c.Reasons.DistanceKm > *q.MaxDistanceKm {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func hasAllSkills(skills, required []string) bool {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		set[s] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

// clampLimit bounds the page size to [1,100]; zero means the default of 20.
func clampLimit(limit int) int {
	if limit == 0 {
		return defaultRankingLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > maxRankingLimit {
		return maxRankingLimit
	}
	return limit
}
