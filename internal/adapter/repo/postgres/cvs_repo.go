package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hrselector/backend/internal/domain"
)

// CVRepo persists CV documents. Version assignment and primary transitions
// execute in single transactions serialized per (user, category) by a
// pg_advisory_xact_lock, so concurrent uploads cannot claim the same version
// and two primaries are never observable.
type CVRepo struct{ Pool PgxPool }

// NewCVRepo constructs a CVRepo with the given pool.
func NewCVRepo(p PgxPool) *CVRepo { return &CVRepo{Pool: p} }

// advisoryLockSQL serializes writers within one (user, category) scope. The
// lock is released automatically at transaction end.
const advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1::text || '/' || $2::text, 0))`

// CreateVersioned inserts a new CV with the next version in its
// (user, category) scope and resolves the primary flag: an explicit request
// demotes all siblings first; otherwise the document becomes primary only when
// the scope has none yet.
func (r *CVRepo) CreateVersioned(ctx domain.Context, cv domain.CV, setPrimary bool) (domain.CV, error) {
	tracer := otel.Tracer("repo.cvs")
	ctx, span := tracer.Start(ctx, "cvs.CreateVersioned")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "cvs"),
	)

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return domain.CV{}, fmt.Errorf("op=cv.create_versioned: %w: %v", domain.ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, advisoryLockSQL, cv.UserID, string(cv.Category)); err != nil {
		return domain.CV{}, fmt.Errorf("op=cv.create_versioned: %w: %v", domain.ErrTransactionFailed, err)
	}

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version),0)+1 FROM cvs WHERE user_id=$1 AND category=$2`,
		cv.UserID, cv.Category).Scan(&next)
	if err != nil {
		return domain.CV{}, fmt.Errorf("op=cv.create_versioned: %w: %v", domain.ErrTransactionFailed, err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO cvs (user_id, filename, stored_filename, content_text, parsed_data,
		                  skills, experience_years, education, classification_score,
		                  category, version, is_primary, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,$12)
		 RETURNING id`,
		cv.UserID, cv.Filename, cv.StoredFilename, cv.ContentText, cv.ParsedData,
		cv.Skills, cv.ExperienceYears, cv.Education, cv.ClassificationScore,
		cv.Category, next, cv.CreatedAt).Scan(&cv.ID)
	if err != nil {
		return domain.CV{}, fmt.Errorf("op=cv.create_versioned: %w: %v", domain.ErrTransactionFailed, err)
	}
	cv.Version = next

	promote := setPrimary
	if setPrimary {
		if _, err := tx.Exec(ctx,
			`UPDATE cvs SET is_primary=false WHERE user_id=$1 AND category=$2`,
			cv.UserID, cv.Category); err != nil {
			return domain.CV{}, fmt.Errorf("op=cv.create_versioned: %w: %v", domain.ErrTransactionFailed, err)
		}
	} else {
		// First upload in a category becomes primary by default.
		var hasPrimary bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM cvs WHERE user_id=$1 AND category=$2 AND is_primary)`,
			cv.UserID, cv.Category).Scan(&hasPrimary)
		if err != nil {
			return domain.CV{}, fmt.Errorf("op=cv.create_versioned: %w: %v", domain.ErrTransactionFailed, err)
		}
		promote = !hasPrimary
	}
	if promote {
		if _, err := tx.Exec(ctx, `UPDATE cvs SET is_primary=true WHERE id=$1`, cv.ID); err != nil {
			return domain.CV{}, fmt.Errorf("op=cv.create_versioned: %w: %v", domain.ErrTransactionFailed, err)
		}
		cv.IsPrimary = true
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CV{}, fmt.Errorf("op=cv.create_versioned: %w: %v", domain.ErrTransactionFailed, err)
	}
	return cv, nil
}

// SetPrimary promotes the CV within its (user, category) scope, demoting all
// siblings in the same transaction. Returns domain.ErrNotFound for unknown ids.
func (r *CVRepo) SetPrimary(ctx domain.Context, id int64) error {
	tracer := otel.Tracer("repo.cvs")
	ctx, span := tracer.Start(ctx, "cvs.SetPrimary")
	defer span.End()

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("op=cv.set_primary: %w: %v", domain.ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID int64
	var category string
	err = tx.QueryRow(ctx, `SELECT user_id, category FROM cvs WHERE id=$1`, id).Scan(&userID, &category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("op=cv.set_primary: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("op=cv.set_primary: %w: %v", domain.ErrTransactionFailed, err)
	}

	if _, err := tx.Exec(ctx, advisoryLockSQL, userID, category); err != nil {
		return fmt.Errorf("op=cv.set_primary: %w: %v", domain.ErrTransactionFailed, err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE cvs SET is_primary=false WHERE user_id=$1 AND category=$2`,
		userID, category); err != nil {
		return fmt.Errorf("op=cv.set_primary: %w: %v", domain.ErrTransactionFailed, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE cvs SET is_primary=true WHERE id=$1`, id); err != nil {
		return fmt.Errorf("op=cv.set_primary: %w: %v", domain.ErrTransactionFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=cv.set_primary: %w: %v", domain.ErrTransactionFailed, err)
	}
	return nil
}

const cvColumns = `id, user_id, filename, COALESCE(stored_filename,''), COALESCE(content_text,''),
	parsed_data, COALESCE(skills,'{}'), COALESCE(experience_years,0), COALESCE(education,'{}'),
	COALESCE(classification_score,0), category, version, is_primary, created_at`

func scanCV(row pgx.Row) (domain.CV, error) {
	var cv domain.CV
	err := row.Scan(&cv.ID, &cv.UserID, &cv.Filename, &cv.StoredFilename, &cv.ContentText,
		&cv.ParsedData, &cv.Skills, &cv.ExperienceYears, &cv.Education,
		&cv.ClassificationScore, &cv.Category, &cv.Version, &cv.IsPrimary, &cv.CreatedAt)
	return cv, err
}

// Get loads a CV by id.
func (r *CVRepo) Get(ctx domain.Context, id int64) (domain.CV, error) {
	tracer := otel.Tracer("repo.cvs")
	ctx, span := tracer.Start(ctx, "cvs.Get")
	defer span.End()
	q := `SELECT ` + cvColumns + ` FROM cvs WHERE id=$1`
	cv, err := scanCV(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CV{}, fmt.Errorf("op=cv.get: %w", domain.ErrNotFound)
		}
		return domain.CV{}, fmt.Errorf("op=cv.get: %w", err)
	}
	return cv, nil
}

// ListByUser returns a user's CVs ordered by category then recency, bounded
// by limit.
func (r *CVRepo) ListByUser(ctx domain.Context, userID int64, limit int) ([]domain.CV, error) {
	tracer := otel.Tracer("repo.cvs")
	ctx, span := tracer.Start(ctx, "cvs.ListByUser")
	defer span.End()
	q := `SELECT ` + cvColumns + ` FROM cvs WHERE user_id=$1 ORDER BY category, created_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("op=cv.list_by_user: %w", err)
	}
	defer rows.Close()
	var out []domain.CV
	for rows.Next() {
		cv, err := scanCV(rows)
		if err != nil {
			return nil, fmt.Errorf("op=cv.list_by_user: %w", err)
		}
		out = append(out, cv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=cv.list_by_user: %w", err)
	}
	return out, nil
}

// Count returns the total number of stored CVs.
func (r *CVRepo) Count(ctx domain.Context) (int64, error) {
	tracer := otel.Tracer("repo.cvs")
	ctx, span := tracer.Start(ctx, "cvs.Count")
	defer span.End()
	var count int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM cvs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("op=cv.count: %w", err)
	}
	return count, nil
}
