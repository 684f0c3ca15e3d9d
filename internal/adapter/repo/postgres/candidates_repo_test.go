package postgres_test

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrselector/backend/internal/adapter/repo/postgres"
)

func TestCandidateRepo_List(t *testing.T) {
	t.Parallel()
	mock := newMockPool(t)
	repo := postgres.NewCandidateRepo(mock)

	lat, lon := 40.4, -3.7
	mock.ExpectQuery("FROM cvs").
		WillReturnRows(pgxmock.NewRows([]string{
			"cv_id", "user_id", "full_name", "email", "gender", "city", "lat", "lon",
			"skills", "experience_years", "education",
		}).
			AddRow(int64(1), int64(7), "Ana", "ana@example.com", "female", "madrid", &lat, &lon,
				[]string{"go"}, 4, []string{"master"}).
			AddRow(int64(2), int64(8), "Luis", "luis@example.com", "", "", (*float64)(nil), (*float64)(nil),
				[]string{}, 0, []string{}))

	out, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(7), out[0].UserID)
	assert.Equal(t, []string{"go"}, out[0].Skills)
	require.NotNil(t, out[0].Lat)
	assert.InDelta(t, 40.4, *out[0].Lat, 1e-9)
	assert.Nil(t, out[1].Lat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCandidateRepo_List_QueryError(t *testing.T) {
	t.Parallel()
	mock := newMockPool(t)
	repo := postgres.NewCandidateRepo(mock)

	mock.ExpectQuery("FROM cvs").WillReturnError(assertAnError)

	_, err := repo.List(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
