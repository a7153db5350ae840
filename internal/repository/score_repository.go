package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openmarks/markbook-api/internal/models"
)

// ScoreKey identifies one student's score on one assessment.
type ScoreKey struct {
	StudentID    string
	AssessmentID string
}

// ScoreRepository handles raw score persistence.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new score repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// FetchByAssessments loads every score for the given assessments keyed by
// student and assessment. An empty assessment list returns an empty map.
func (r *ScoreRepository) FetchByAssessments(ctx context.Context, assessmentIDs []string) (map[ScoreKey]models.Score, error) {
	scores := make(map[ScoreKey]models.Score)
	if len(assessmentIDs) == 0 {
		return scores, nil
	}
	query, args, err := sqlx.In(`SELECT id, assessment_id, student_id, raw, status, created_at, updated_at
        FROM scores WHERE assessment_id IN (?)`, assessmentIDs)
	if err != nil {
		return nil, fmt.Errorf("build scores query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []models.Score
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	for _, s := range rows {
		scores[ScoreKey{StudentID: s.StudentID, AssessmentID: s.AssessmentID}] = s
	}
	return scores, nil
}

// ListByStudent returns a student's scores within one mark set.
func (r *ScoreRepository) ListByStudent(ctx context.Context, markSetID, studentID string) ([]models.Score, error) {
	var scores []models.Score
	const query = `SELECT s.id, s.assessment_id, s.student_id, s.raw, s.status, s.created_at, s.updated_at
        FROM scores s
        JOIN assessments a ON a.id = s.assessment_id
        WHERE a.mark_set_id = $1 AND s.student_id = $2
        ORDER BY a.created_at ASC`
	if err := r.db.SelectContext(ctx, &scores, query, markSetID, studentID); err != nil {
		return nil, fmt.Errorf("list student scores: %w", err)
	}
	return scores, nil
}

// Upsert inserts or updates a single score.
func (r *ScoreRepository) Upsert(ctx context.Context, score *models.Score) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now
	const query = `INSERT INTO scores (id, assessment_id, student_id, raw, status, created_at, updated_at)
        VALUES (:id, :assessment_id, :student_id, :raw, :status, :created_at, :updated_at)
        ON CONFLICT (assessment_id, student_id)
        DO UPDATE SET raw = EXCLUDED.raw, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	return nil
}

// BulkUpsert inserts or updates multiple scores in a transaction. Either
// every score lands or none do.
func (r *ScoreRepository) BulkUpsert(ctx context.Context, scores []models.Score) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range scores {
		if scores[i].ID == "" {
			scores[i].ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if scores[i].CreatedAt.IsZero() {
			scores[i].CreatedAt = now
		}
		scores[i].UpdatedAt = now
		const query = `INSERT INTO scores (id, assessment_id, student_id, raw, status, created_at, updated_at)
                VALUES (:id, :assessment_id, :student_id, :raw, :status, :created_at, :updated_at)
                ON CONFLICT (assessment_id, student_id)
                DO UPDATE SET raw = EXCLUDED.raw, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
		if _, err := tx.NamedExecContext(ctx, query, scores[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert score: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scores: %w", err)
	}
	return nil
}
