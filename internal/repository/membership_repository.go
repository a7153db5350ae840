package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// MembershipRepository stores per-student mark set membership masks. The mask
// is a string of '0'/'1' indexed by mark set sort order; a missing or short
// mask reads as "member everywhere".
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new membership repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Get returns a student's raw mask, or "" when none is stored.
func (r *MembershipRepository) Get(ctx context.Context, studentID string) (string, error) {
	var mask string
	const query = `SELECT mask FROM memberships WHERE student_id = $1`
	if err := r.db.GetContext(ctx, &mask, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get membership mask: %w", err)
	}
	return mask, nil
}

// GetAll returns the stored masks for every listed student; students without
// a row are absent from the result.
func (r *MembershipRepository) GetAll(ctx context.Context, studentIDs []string) (map[string]string, error) {
	masks := make(map[string]string)
	if len(studentIDs) == 0 {
		return masks, nil
	}
	query, args, err := sqlx.In(`SELECT student_id, mask FROM memberships WHERE student_id IN (?)`, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build membership query: %w", err)
	}
	query = r.db.Rebind(query)

	rows := []struct {
		StudentID string `db:"student_id"`
		Mask      string `db:"mask"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch membership masks: %w", err)
	}
	for _, row := range rows {
		masks[row.StudentID] = row.Mask
	}
	return masks, nil
}

// Set stores a student's mask, replacing any previous one.
func (r *MembershipRepository) Set(ctx context.Context, studentID, mask string) error {
	const query = `INSERT INTO memberships (student_id, mask, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (student_id)
        DO UPDATE SET mask = EXCLUDED.mask, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, studentID, mask, time.Now().UTC()); err != nil {
		return fmt.Errorf("set membership mask: %w", err)
	}
	return nil
}
