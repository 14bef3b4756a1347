package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/feedbackloop/internal/model"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
)

type OrganizationRepository interface {
	Create(ctx context.Context, org *model.Organization) error
	ByID(ctx context.Context, id string) (*model.Organization, error)
}

type organizationRepository struct {
	db *sqlx.DB
}

func NewOrganizationRepository(db *sqlx.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) error {
	query := `INSERT INTO organizations (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, org.ID, org.Name, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *organizationRepository) ByID(ctx context.Context, id string) (*model.Organization, error) {
	org := &model.Organization{}
	query := `SELECT * FROM organizations WHERE id = $1`

	err := r.db.GetContext(ctx, org, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}

	return org, err
}
