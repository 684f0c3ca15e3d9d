package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrselector/backend/internal/domain"
	"github.com/hrselector/backend/internal/usecase"
)

type stubCandidateRepo struct {
	pool []domain.Candidate
	err  error
}

func (r *stubCandidateRepo) List(_ domain.Context) ([]domain.Candidate, error) {
	return r.pool, r.err
}

func TestRank_RequiredSkillHardFilter(t *testing.T) {
	t.Parallel()
	repo := &stubCandidateRepo{pool: []domain.Candidate{
		{UserID: 1, Skills: []string{"go", "postgres"}, ExperienceYears: 10},
		// Highest raw score on preferred matches, but missing "postgres".
		{UserID: 2, Skills: []string{"go", "docker", "aws", "react"}, ExperienceYears: 10},
	}}
	svc := usecase.NewRankingService(repo)
	out, err := svc.Rank(context.Background(), domain.JobQuery{
		RequiredSkills:  []string{"go", "postgres"},
		PreferredSkills: []string{"docker", "aws", "react"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].UserID)
}

func TestRank_FallbackWhenFiltersEliminateEveryone(t *testing.T) {
	t.Parallel()
	repo := &stubCandidateRepo{pool: []domain.Candidate{
		{UserID: 1, Skills: []string{"go"}},
		{UserID: 2, Skills: []string{"react"}},
	}}
	svc := usecase.NewRankingService(repo)
	out, err := svc.Rank(context.Background(), domain.JobQuery{
		RequiredSkills: []string{"cobol"},
	})
	require.NoError(t, err)
	// Nobody matches the required skill; the full scored set comes back.
	assert.Len(t, out, 2)
}

func TestRank_EmptyPool(t *testing.T) {
	t.Parallel()
	svc := usecase.NewRankingService(&stubCandidateRepo{})
	out, err := svc.Rank(context.Background(), domain.JobQuery{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRank_ListError(t *testing.T) {
	t.Parallel()
	svc := usecase.NewRankingService(&stubCandidateRepo{err: errors.New("boom")})
	_, err := svc.Rank(context.Background(), domain.JobQuery{})
	require.Error(t, err)
}

func TestRank_LimitClamp(t *testing.T) {
	t.Parallel()
	pool := make([]domain.Candidate, 150)
	for i := range pool {
		pool[i] = domain.Candidate{UserID: int64(i + 1), Skills: []string{fmt.Sprintf("skill%d", i)}}
	}
	repo := &stubCandidateRepo{pool: pool}
	svc := usecase.NewRankingService(repo)

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"oversized clamps to 100", 500, 100},
		{"zero means default 20", 0, 20},
		{"negative clamps to 1", -5, 1},
		{"in range passes through", 7, 7},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := svc.Rank(context.Background(), domain.JobQuery{Limit: tt.limit})
			require.NoError(t, err)
			assert.Len(t, out, tt.want)
		})
	}
}

func TestRank_SortedDescendingStableTies(t *testing.T) {
	t.Parallel()
	repo := &stubCandidateRepo{pool: []domain.Candidate{
		{UserID: 1, Skills: []string{"go"}},
		{UserID: 2, Skills: []string{"go", "docker"}},
		{UserID: 3, Skills: []string{"go"}},
	}}
	svc := usecase.NewRankingService(repo)
	out, err := svc.Rank(context.Background(), domain.JobQuery{
		RequiredSkills:  []string{"go"},
		PreferredSkills: []string{"docker"},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, int64(2), out[0].UserID)
	// Equal scores keep input order.
	assert.Equal(t, int64(1), out[1].UserID)
	assert.Equal(t, int64(3), out[2].UserID)
}

func TestRank_GenderAndCityFilters(t *testing.T) {
	t.Parallel()
	repo := &stubCandidateRepo{pool: []domain.Candidate{
		{UserID: 1, Gender: "female", City: "madrid"},
		{UserID: 2, Gender: "male", City: "madrid"},
		{UserID: 3, Gender: "female", City: "sevilla"},
	}}
	svc := usecase.NewRankingService(repo)
	out, err := svc.Rank(context.Background(), domain.JobQuery{
		Gender: "Female",
		Cities: []string{"Madrid"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].UserID)
}

func TestRank_DistanceFilterExcludesUnknownLocation(t *testing.T) {
	t.Parallel()
	repo := &stubCandidateRepo{pool: []domain.Candidate{
		{UserID: 1, Lat: f64(0), Lon: f64(0)},
		{UserID: 2}, // no coordinates
	}}
	svc := usecase.NewRankingService(repo)
	max := 30.0
	out, err := svc.Rank(context.Background(), domain.JobQuery{
		JobLat: f64(0), JobLon: f64(0), MaxDistanceKm: &max,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].UserID)
}

func TestRank_MinExperienceFilter(t *testing.T) {
	t.Parallel()
	repo := &stubCandidateRepo{pool: []domain.Candidate{
		{UserID: 1, ExperienceYears: 5},
		{UserID: 2, ExperienceYears: 1},
	}}
	svc := usecase.NewRankingService(repo)
	out, err := svc.Rank(context.Background(), domain.JobQuery{MinExperience: 3})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].UserID)
}
