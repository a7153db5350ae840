package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openmarks/markbook-api/internal/models"
)

// MarkSetRepository handles mark set persistence.
type MarkSetRepository struct {
	db *sqlx.DB
}

// NewMarkSetRepository creates a new mark set repository.
func NewMarkSetRepository(db *sqlx.DB) *MarkSetRepository {
	return &MarkSetRepository{db: db}
}

// ListByClass returns a class's mark sets ordered by sort order, which is
// also the membership-mask bit order.
func (r *MarkSetRepository) ListByClass(ctx context.Context, classID string) ([]models.MarkSet, error) {
	var sets []models.MarkSet
	const query = `SELECT id, class_id, name, weight_method, calc_method, weight, sort_order, created_at, updated_at
        FROM mark_sets WHERE class_id = $1 ORDER BY sort_order ASC`
	if err := r.db.SelectContext(ctx, &sets, query, classID); err != nil {
		return nil, fmt.Errorf("list mark sets: %w", err)
	}
	return sets, nil
}

// FindByID returns one mark set.
func (r *MarkSetRepository) FindByID(ctx context.Context, id string) (*models.MarkSet, error) {
	var set models.MarkSet
	const query = `SELECT id, class_id, name, weight_method, calc_method, weight, sort_order, created_at, updated_at
        FROM mark_sets WHERE id = $1`
	if err := r.db.GetContext(ctx, &set, query, id); err != nil {
		return nil, err
	}
	return &set, nil
}

// FindByIDs returns the selected mark sets keyed by id.
func (r *MarkSetRepository) FindByIDs(ctx context.Context, ids []string) ([]models.MarkSet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, class_id, name, weight_method, calc_method, weight, sort_order, created_at, updated_at
        FROM mark_sets WHERE id IN (?) ORDER BY sort_order ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build mark set query: %w", err)
	}
	var sets []models.MarkSet
	if err := r.db.SelectContext(ctx, &sets, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch mark sets: %w", err)
	}
	return sets, nil
}

// Create inserts a mark set.
func (r *MarkSetRepository) Create(ctx context.Context, set *models.MarkSet) error {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	set.CreatedAt = now
	set.UpdatedAt = now
	const query = `INSERT INTO mark_sets (id, class_id, name, weight_method, calc_method, weight, sort_order, created_at, updated_at)
        VALUES (:id, :class_id, :name, :weight_method, :calc_method, :weight, :sort_order, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, set); err != nil {
		return fmt.Errorf("create mark set: %w", err)
	}
	return nil
}

// Update persists mutable mark set fields.
func (r *MarkSetRepository) Update(ctx context.Context, set *models.MarkSet) error {
	set.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mark_sets SET name = :name, weight_method = :weight_method, calc_method = :calc_method,
        weight = :weight, sort_order = :sort_order, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, set); err != nil {
		return fmt.Errorf("update mark set: %w", err)
	}
	return nil
}
