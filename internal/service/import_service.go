package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openmarks/markbook-api/internal/legacy"
	"github.com/openmarks/markbook-api/internal/models"
	appErrors "github.com/openmarks/markbook-api/pkg/errors"
	"github.com/openmarks/markbook-api/pkg/jobs"
)

type importAssessmentRepo interface {
	FindByTitle(ctx context.Context, markSetID, title string) (*models.Assessment, error)
	Create(ctx context.Context, assessment *models.Assessment) error
}

type importStudentRepo interface {
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
}

// ImportRequest names the legacy export file and where its blocks land.
type ImportRequest struct {
	MarkSetID string `json:"mark_set_id" validate:"required"`
	Path      string `json:"path" validate:"required"`
	// Category receives all imported assessments; defaults to "IMPORTED".
	Category string `json:"category"`
}

// ImportSummary reports one file's outcome.
type ImportSummary struct {
	Path               string `json:"path"`
	AssessmentsCreated int    `json:"assessments_created"`
	ScoresWritten      int    `json:"scores_written"`
	ValuesSkipped      int    `json:"values_skipped"`
}

// DirectoryImportResult reports how many files were queued.
type DirectoryImportResult struct {
	Enqueued int      `json:"enqueued"`
	Files    []string `json:"files"`
}

// ImportService seeds mark sets from legacy fixed-format export files. Each
// file is an independent, retryable unit: a malformed file fails alone and
// never rolls back blocks imported from other files.
type ImportService struct {
	markSets    markSetReader
	assessments importAssessmentRepo
	categories  categoryRepo
	students    importStudentRepo
	scores      scoreWriter
	queue       *jobs.Queue
	validator   *validator.Validate
	logger      *zap.Logger
}

type markSetReader interface {
	FindByID(ctx context.Context, id string) (*models.MarkSet, error)
}

// NewImportService constructs ImportService. queue may be nil; directory
// imports then run inline.
func NewImportService(markSets markSetReader, assessments importAssessmentRepo, categories categoryRepo, students importStudentRepo, scores scoreWriter, validate *validator.Validate, logger *zap.Logger) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		markSets:    markSets,
		assessments: assessments,
		categories:  categories,
		students:    students,
		scores:      scores,
		validator:   validate,
		logger:      logger,
	}
}

// SetQueue attaches the worker queue used for directory imports.
func (s *ImportService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// HandleJob adapts a queued file to ImportFile for the worker pool.
func (s *ImportService) HandleJob(ctx context.Context, job jobs.Job) error {
	_, err := s.ImportFile(ctx, ImportRequest{MarkSetID: job.MarkSetID, Path: job.Path, Category: job.Category})
	if err != nil {
		// Malformed files are terminal; retrying cannot fix them.
		if appErr := appErrors.FromError(err); appErr.Code == appErrors.ErrParse.Code || appErr.Code == appErrors.ErrCollision.Code {
			s.logger.Error("import job failed permanently", zap.String("path", job.Path), zap.Error(err))
			return nil
		}
	}
	return err
}

// ImportFile decodes one export file and seeds its blocks into the mark set.
// An assessment whose title already exists in the set is an ambiguous match
// and aborts the whole file; blocks created before the collision stay.
func (s *ImportService) ImportFile(ctx context.Context, req ImportRequest) (*ImportSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadParams.Code, appErrors.ErrBadParams.Status, "invalid import payload")
	}
	if req.Category == "" {
		req.Category = "IMPORTED"
	}

	set, err := s.markSets.FindByID(ctx, req.MarkSetID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "mark set not found")
	}
	students, err := s.students.ListByClass(ctx, set.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	byPosition := make(map[int]models.Student, len(students))
	for _, st := range students {
		byPosition[st.Position] = st
	}

	file, err := legacy.ParseExportFile(req.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, fmt.Sprintf("legacy file %s malformed", filepath.Base(req.Path)))
	}

	if err := s.ensureCategory(ctx, req.MarkSetID, req.Category); err != nil {
		return nil, err
	}

	summary := &ImportSummary{Path: req.Path}
	for _, block := range file.Blocks {
		existing, err := s.assessments.FindByTitle(ctx, req.MarkSetID, block.Title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assessment title")
		}
		if existing != nil {
			return summary, appErrors.Clone(appErrors.ErrCollision, fmt.Sprintf("assessment %q already exists in mark set", block.Title))
		}
		assessment := &models.Assessment{
			MarkSetID: req.MarkSetID,
			Category:  req.Category,
			Title:     block.Title,
			Weight:    1,
			OutOf:     block.OutOf,
		}
		if err := s.assessments.Create(ctx, assessment); err != nil {
			return summary, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assessment")
		}
		summary.AssessmentsCreated++

		batch := make([]models.Score, 0, len(block.Values))
		for i, value := range block.Values {
			student, ok := byPosition[i]
			if !ok {
				// Either the format's trailing extra slot or a roster gap.
				summary.ValuesSkipped++
				continue
			}
			score := models.Score{AssessmentID: assessment.ID, StudentID: student.ID}
			switch {
			case value < 0:
				score.Status = models.ScoreNoMark
			case value == 0:
				score.Status = models.ScoreZero
			default:
				v := value
				score.Status = models.ScoreScored
				score.Raw = &v
			}
			batch = append(batch, score)
		}
		if len(batch) > 0 {
			if err := s.scores.BulkUpsert(ctx, batch); err != nil {
				return summary, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store imported scores")
			}
			summary.ScoresWritten += len(batch)
		}
	}

	s.logger.Info("legacy file imported",
		zap.String("path", req.Path),
		zap.Int("assessments", summary.AssessmentsCreated),
		zap.Int("scores", summary.ScoresWritten))
	return summary, nil
}

// ImportDirectory queues every regular file in dir as its own import job.
func (s *ImportService) ImportDirectory(ctx context.Context, markSetID, dir, category string) (*DirectoryImportResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBadParams.Code, appErrors.ErrBadParams.Status, "failed to read import directory")
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	result := &DirectoryImportResult{Files: files}
	for _, path := range files {
		if s.queue == nil {
			if _, err := s.ImportFile(ctx, ImportRequest{MarkSetID: markSetID, Path: path, Category: category}); err != nil {
				s.logger.Warn("inline import failed", zap.String("path", path), zap.Error(err))
				continue
			}
			result.Enqueued++
			continue
		}
		job := jobs.Job{ID: uuid.NewString(), Path: path, MarkSetID: markSetID, Category: category}
		if err := s.queue.Enqueue(job); err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue import job")
		}
		result.Enqueued++
	}
	return result, nil
}

func (s *ImportService) ensureCategory(ctx context.Context, markSetID, name string) error {
	existing, err := s.categories.ListByMarkSet(ctx, markSetID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	for _, c := range existing {
		if c.Name == name {
			return nil
		}
	}
	category := &models.Category{MarkSetID: markSetID, Name: name, Weight: 1}
	if err := s.categories.Upsert(ctx, category); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create import category")
	}
	return nil
}
