package postgres

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hrselector/backend/internal/domain"
)

// CandidateRepo supplies the ranking input snapshot: users joined with their
// primary CV per category. One row per (user, category) primary document.
type CandidateRepo struct{ Pool PgxPool }

// NewCandidateRepo constructs a CandidateRepo with the given pool.
func NewCandidateRepo(p PgxPool) *CandidateRepo { return &CandidateRepo{Pool: p} }

// List fetches the full candidate pool in one read. The ranking pipeline
// consumes the result in memory; no pagination happens here.
func (r *CandidateRepo) List(ctx domain.Context) ([]domain.Candidate, error) {
	tracer := otel.Tracer("repo.candidates")
	ctx, span := tracer.Start(ctx, "candidates.List")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
	)
	q := `SELECT cvs.id, users.id, users.full_name, users.email,
	             COALESCE(users.gender,''), COALESCE(users.city,''), users.lat, users.lon,
	             COALESCE(cvs.skills,'{}'), COALESCE(cvs.experience_years,0), COALESCE(cvs.education,'{}')
	      FROM cvs
	      JOIN users ON users.id = cvs.user_id
	      WHERE cvs.is_primary
	      ORDER BY cvs.id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=candidates.list: %w", err)
	}
	defer rows.Close()
	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.CVID, &c.UserID, &c.FullName, &c.Email,
			&c.Gender, &c.City, &c.Lat, &c.Lon,
			&c.Skills, &c.ExperienceYears, &c.Education); err != nil {
			return nil, fmt.Errorf("op=candidates.list: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=candidates.list: %w", err)
	}
	return out, nil
}
