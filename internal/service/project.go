package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/feedbackloop/internal/model"
	"github.com/templui/feedbackloop/internal/repository"
)

// APIKeyPrefix marks project keys so they are recognizable in logs and configs.
const APIKeyPrefix = "fbk_"

type ProjectService struct {
	projectRepo repository.ProjectRepository
	orgRepo     repository.OrganizationRepository
}

func NewProjectService(projectRepo repository.ProjectRepository, orgRepo repository.OrganizationRepository) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		orgRepo:     orgRepo,
	}
}

// Authenticate resolves the project owning apiKey. It never reads the
// request body and is the first pipeline stage.
func (s *ProjectService) Authenticate(ctx context.Context, apiKey string) (*model.Project, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, newError(ErrUnauthenticated, "Missing API key", nil)
	}

	project, err := s.projectRepo.ByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, newError(ErrInvalidCredential, "Invalid API key", nil)
		}
		return nil, newError(ErrStorageUnavailable, "Failed to look up project", err)
	}

	if !project.Active {
		return nil, newError(ErrTenantInactive, "Project is inactive", nil)
	}

	return project, nil
}

// CreateOrganization creates a new organization.
func (s *ProjectService) CreateOrganization(ctx context.Context, name string) (*model.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("organization name is required")
	}

	now := time.Now()
	org := &model.Organization{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.orgRepo.Create(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	return org, nil
}

// CreateProject creates an active project with a freshly generated API key.
func (s *ProjectService) CreateProject(ctx context.Context, orgID, name string, allowedOrigins []string, notifyEmail string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("project name is required")
	}

	_, err := s.orgRepo.ByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	origins := make(model.StringList, 0, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = normalizeOriginEntry(o); o != "" {
			origins = append(origins, o)
		}
	}

	now := time.Now()
	project := &model.Project{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           name,
		APIKey:         apiKey,
		AllowedOrigins: origins,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if email := strings.TrimSpace(notifyEmail); email != "" {
		project.NotifyEmail = &email
	}

	err = s.projectRepo.Create(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// RotateAPIKey replaces a project's key. The old key stops working immediately.
func (s *ProjectService) RotateAPIKey(ctx context.Context, projectID string) (string, error) {
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}

	err = s.projectRepo.UpdateAPIKey(ctx, projectID, apiKey)
	if err != nil {
		return "", err
	}

	return apiKey, nil
}

// Deactivate disables ingestion for a project without deleting its data.
func (s *ProjectService) Deactivate(ctx context.Context, projectID string) error {
	return s.projectRepo.SetActive(ctx, projectID, false)
}

// GenerateAPIKey returns a new random project key of the form fbk_<32 hex>.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(b), nil
}
