package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/feedbackloop/internal/model"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrDuplicateAPIKey = errors.New("api key already exists")
)

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	ByID(ctx context.Context, id string) (*model.Project, error)
	ByAPIKey(ctx context.Context, apiKey string) (*model.Project, error)
	UpdateAPIKey(ctx context.Context, id, apiKey string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type projectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	query := `INSERT INTO projects (id, organization_id, name, api_key, allowed_origins, notify_email, active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.OrganizationID,
		project.Name,
		project.APIKey,
		project.AllowedOrigins,
		project.NotifyEmail,
		project.Active,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAPIKey
		}
		return err
	}

	return nil
}

func (r *projectRepository) ByID(ctx context.Context, id string) (*model.Project, error) {
	project := &model.Project{}
	query := `SELECT * FROM projects WHERE id = $1`

	err := r.db.GetContext(ctx, project, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}

	return project, err
}

// ByAPIKey resolves a project by exact key equality.
func (r *projectRepository) ByAPIKey(ctx context.Context, apiKey string) (*model.Project, error) {
	project := &model.Project{}
	query := `SELECT * FROM projects WHERE api_key = $1`

	err := r.db.GetContext(ctx, project, query, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return project, nil
}

func (r *projectRepository) UpdateAPIKey(ctx context.Context, id, apiKey string) error {
	query := `UPDATE projects SET api_key = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, apiKey, time.Now(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAPIKey
		}
		return err
	}

	return requireAffected(result, ErrProjectNotFound)
}

func (r *projectRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE projects SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrProjectNotFound)
}

// isUniqueViolation works for both SQLite and PostgreSQL error strings.
func isUniqueViolation(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}

func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
