package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openmarks/markbook-api/internal/models"
)

// CategoryRepository handles category persistence.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// ListByMarkSet returns a mark set's categories.
func (r *CategoryRepository) ListByMarkSet(ctx context.Context, markSetID string) ([]models.Category, error) {
	var categories []models.Category
	const query = `SELECT id, mark_set_id, name, weight, created_at, updated_at
        FROM categories WHERE mark_set_id = $1 ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &categories, query, markSetID); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Upsert inserts or updates a category; names are unique within a mark set.
func (r *CategoryRepository) Upsert(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now
	const query = `INSERT INTO categories (id, mark_set_id, name, weight, created_at, updated_at)
        VALUES (:id, :mark_set_id, :name, :weight, :created_at, :updated_at)
        ON CONFLICT (mark_set_id, name)
        DO UPDATE SET weight = EXCLUDED.weight, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}
