package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openmarks/markbook-api/internal/models"
)

// AssessmentRepository handles assessment persistence.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates a new assessment repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// ListByMarkSet returns a mark set's assessments narrowed by the filter.
// Deleted-like assessments (weight 0) are hidden unless IncludeDeleted is set.
func (r *AssessmentRepository) ListByMarkSet(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, error) {
	query := `SELECT id, mark_set_id, category, title, weight, out_of, term, legacy_type, created_at, updated_at
        FROM assessments WHERE mark_set_id = $1`
	args := []interface{}{filter.MarkSetID}
	argPos := 2

	if !filter.IncludeDeleted {
		query += " AND weight > 0"
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argPos)
		args = append(args, filter.Category)
		argPos++
	}
	if filter.Term != 0 {
		query += fmt.Sprintf(" AND term = $%d", argPos)
		args = append(args, filter.Term)
		argPos++
	}
	query += " ORDER BY created_at ASC, title ASC"

	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, args...); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	// Legacy type masks do not map onto a single SQL predicate.
	if filter.TypesMask != 0 {
		filtered := assessments[:0]
		for _, a := range assessments {
			if filter.TypesMask&(1<<uint(a.LegacyType)) != 0 {
				filtered = append(filtered, a)
			}
		}
		assessments = filtered
	}
	return assessments, nil
}

// FindByID returns one assessment or nil when absent.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	var assessment models.Assessment
	const query = `SELECT id, mark_set_id, category, title, weight, out_of, term, legacy_type, created_at, updated_at
        FROM assessments WHERE id = $1`
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find assessment: %w", err)
	}
	return &assessment, nil
}

// FindByTitle returns the mark set's assessment with the given title, or nil.
func (r *AssessmentRepository) FindByTitle(ctx context.Context, markSetID, title string) (*models.Assessment, error) {
	var assessment models.Assessment
	const query = `SELECT id, mark_set_id, category, title, weight, out_of, term, legacy_type, created_at, updated_at
        FROM assessments WHERE mark_set_id = $1 AND title = $2`
	if err := r.db.GetContext(ctx, &assessment, query, markSetID, title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find assessment by title: %w", err)
	}
	return &assessment, nil
}

// Create inserts a new assessment.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assessment.CreatedAt = now
	assessment.UpdatedAt = now
	const query = `INSERT INTO assessments (id, mark_set_id, category, title, weight, out_of, term, legacy_type, created_at, updated_at)
        VALUES (:id, :mark_set_id, :category, :title, :weight, :out_of, :term, :legacy_type, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// Update rewrites an assessment's mutable fields. Setting weight 0 is the
// soft-delete path; scores stay in place.
func (r *AssessmentRepository) Update(ctx context.Context, assessment *models.Assessment) error {
	assessment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessments SET category = :category, title = :title, weight = :weight,
        out_of = :out_of, term = :term, legacy_type = :legacy_type, updated_at = :updated_at
        WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, assessment)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
