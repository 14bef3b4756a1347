package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/templui/feedbackloop/internal/model"
	"github.com/templui/feedbackloop/internal/repository"
	"github.com/templui/feedbackloop/internal/validation"
)

type FeedbackService struct {
	feedbackRepo repository.FeedbackRepository
	defaultType  model.FeedbackType
}

func NewFeedbackService(feedbackRepo repository.FeedbackRepository, defaultType model.FeedbackType) *FeedbackService {
	if !defaultType.Valid() {
		defaultType = model.FeedbackTypeBug
	}

	return &FeedbackService{
		feedbackRepo: feedbackRepo,
		defaultType:  defaultType,
	}
}

// Validate normalizes sub in place and checks its fields.
func (s *FeedbackService) Validate(sub *model.Submission) error {
	err := validation.ValidateSubmission(sub, s.defaultType)
	if err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			return newError(ErrValidation, fe.Message, nil)
		}
		return newError(ErrValidation, err.Error(), nil)
	}
	return nil
}

// Create persists a validated submission as a new feedback row for project.
func (s *FeedbackService) Create(ctx context.Context, project *model.Project, sub *model.Submission) (*model.Feedback, error) {
	now := time.Now()
	feedback := &model.Feedback{
		ID:            uuid.New().String(),
		ProjectID:     project.ID,
		Type:          sub.Type,
		Status:        model.FeedbackStatusNew,
		Priority:      model.FeedbackPriorityMedium,
		Title:         optional(sub.Title),
		Description:   sub.Description,
		ReporterName:  optional(sub.ReporterName),
		ReporterEmail: optional(sub.ReporterEmail),
		PageURL:       optional(sub.PageURL),
		UserAgent:     optional(sub.UserAgent),
		BrowserInfo:   sub.BrowserInfo,
		DeviceInfo:    sub.DeviceInfo,
		CustomData:    sub.CustomData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.feedbackRepo.Create(ctx, feedback)
	if err != nil {
		return nil, newError(ErrStorageUnavailable, "Failed to save feedback", err)
	}

	return feedback, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
