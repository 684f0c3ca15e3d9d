package usecase

import (
	"fmt"

	"github.com/hrselector/backend/internal/domain"
)

// profileVersionCap bounds how many CV versions feed a profile view.
const profileVersionCap = 50

// ProfileService builds the per-candidate profile view: CVs grouped by
// category plus an optional best-matching version recommendation.
type ProfileService struct {
	Users domain.UserRepository
	CVs   domain.CVRepository
}

// NewProfileService constructs a ProfileService.
func NewProfileService(users domain.UserRepository, cvs domain.CVRepository) ProfileService {
	return ProfileService{Users: users, CVs: cvs}
}

// Profile is the assembled candidate view. CVs is the flattened compatibility
// list: per category, the primary CV or the most recent one when no primary
// exists.
type Profile struct {
	User        domain.User            `json:"user"`
	Categories  []domain.CategoryGroup `json:"categories"`
	CVs         []domain.CV            `json:"cvs"`
	Recommended *domain.Recommendation `json:"recommendedCv"`
}

// Get assembles the profile for one candidate. The recommendation is only
// computed when the query carries at least one matching parameter; callers
// must not assume one is always present.
func (s ProfileService) Get(ctx domain.Context, userID int64, q domain.ProfileQuery) (Profile, error) {
	if userID <= 0 {
		return Profile{}, fmt.Errorf("%w: invalid user id", domain.ErrInvalidArgument)
	}
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	cvs, err := s.CVs.ListByUser(ctx, userID, profileVersionCap)
	if err != nil {
		return Profile{}, err
	}

	groups := groupByCategory(cvs)
	compat := make([]domain.CV, 0, len(groups))
	for _, g := range groups {
		if g.PrimaryCV != nil {
			compat = append(compat, *g.PrimaryCV)
		} else if g.LatestCV != nil {
			compat = append(compat, *g.LatestCV)
		}
	}

	return Profile{
		User:        user,
		Categories:  groups,
		CVs:         compat,
		Recommended: recommend(cvs, q),
	}, nil
}

// groupByCategory buckets CVs into per-category groups. Input rows arrive
// ordered by category then recency, so the first row seen per category is its
// most recent version.
func groupByCategory(cvs []domain.CV) []domain.CategoryGroup {
	idx := make(map[domain.Category]int)
	groups := make([]domain.CategoryGroup, 0)
	for i := range cvs {
		cv := cvs[i]
		cat := cv.Category
		if cat == "" {
			cat = domain.CategoryOther
		}
		j, ok := idx[cat]
		if !ok {
			j = len(groups)
			idx[cat] = j
			groups = append(groups, domain.CategoryGroup{Name: cat})
		}
		groups[j].Versions = append(groups[j].Versions, cv)
		if cv.IsPrimary && groups[j].PrimaryCV == nil {
			c := cv
			groups[j].PrimaryCV = &c
		}
		if groups[j].LatestCV == nil {
			c := cv
			groups[j].LatestCV = &c
		}
	}
	return groups
}

// recommend picks the single highest-scoring version for the query, or nil
// when no query parameters were supplied.
func recommend(cvs []domain.CV, q domain.ProfileQuery) *domain.Recommendation {
	if q.IsZero() || len(cvs) == 0 {
		return nil
	}
	best := -1.0
	var pick *domain.Recommendation
	for i := range cvs {
		score, reasons := scoreVersion(cvs[i], q)
		if score > best {
			best = score
			pick = &domain.Recommendation{CV: cvs[i], Score: score, Reasons: reasons}
		}
	}
	return pick
}
