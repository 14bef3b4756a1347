package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/feedbackloop/internal/model"
)

var (
	ErrFeedbackNotFound = errors.New("feedback not found")
)

type FeedbackRepository interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	ByID(ctx context.Context, projectID, id string) (*model.Feedback, error)
	CountByProject(ctx context.Context, projectID string) (int, error)
}

type feedbackRepository struct {
	db *sqlx.DB
}

func NewFeedbackRepository(db *sqlx.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *model.Feedback) error {
	query := `INSERT INTO feedback (id, project_id, type, status, priority, title, description, reporter_name, reporter_email,
	                                page_url, user_agent, browser_info, device_info, custom_data, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		feedback.ID,
		feedback.ProjectID,
		feedback.Type,
		feedback.Status,
		feedback.Priority,
		feedback.Title,
		feedback.Description,
		feedback.ReporterName,
		feedback.ReporterEmail,
		feedback.PageURL,
		feedback.UserAgent,
		feedback.BrowserInfo,
		feedback.DeviceInfo,
		feedback.CustomData,
		feedback.CreatedAt,
		feedback.UpdatedAt,
	)

	return err
}

// ByID is scoped to the owning project so one tenant can never read another's feedback.
func (r *feedbackRepository) ByID(ctx context.Context, projectID, id string) (*model.Feedback, error) {
	feedback := &model.Feedback{}
	query := `SELECT * FROM feedback WHERE id = $1 AND project_id = $2`

	err := r.db.GetContext(ctx, feedback, query, id, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeedbackNotFound
	}

	return feedback, err
}

func (r *feedbackRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM feedback WHERE project_id = $1`

	err := r.db.GetContext(ctx, &count, query, projectID)
	return count, err
}
