package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/templui/feedbackloop/internal/model"
	"github.com/templui/feedbackloop/internal/repository"
	"github.com/templui/feedbackloop/internal/storage"
	"github.com/templui/feedbackloop/internal/validation"
	"golang.org/x/sync/errgroup"
)

// ValidatedMedia is an attachment that passed the size and type checks.
type ValidatedMedia struct {
	*model.RawAttachment
	ContentType string
	Extension   string
}

type MediaService struct {
	mediaRepo     repository.MediaRepository
	storage       storage.Storage
	maxFileSize   int64
	uploadTimeout time.Duration
	concurrency   int
	now           func() time.Time
}

func NewMediaService(mediaRepo repository.MediaRepository, storage storage.Storage, cfg IngestConfig) *MediaService {
	concurrency := cfg.UploadConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &MediaService{
		mediaRepo:     mediaRepo,
		storage:       storage,
		maxFileSize:   cfg.MaxFileSize,
		uploadTimeout: cfg.UploadTimeout,
		concurrency:   concurrency,
		now:           time.Now,
	}
}

// Validate checks every attachment before anything is persisted. A single
// oversized or unsupported file rejects the whole submission.
func (s *MediaService) Validate(attachments []*model.RawAttachment) ([]*ValidatedMedia, error) {
	validated := make([]*ValidatedMedia, 0, len(attachments))

	for _, a := range attachments {
		if a.Size > s.maxFileSize {
			return nil, newError(ErrFileTooLarge,
				fmt.Sprintf("File %s exceeds maximum size of %s", a.Field, formatSize(s.maxFileSize)), nil)
		}

		detected, err := validation.DetectMedia(a.Kind, a.Data)
		if err != nil {
			return nil, newError(ErrInvalidFileType,
				fmt.Sprintf("File %s has an unsupported type for %s", a.Field, a.Kind), err)
		}

		validated = append(validated, &ValidatedMedia{
			RawAttachment: a,
			ContentType:   detected.ContentType,
			Extension:     detected.Extension,
		})
	}

	return validated, nil
}

// Store uploads validated media for a feedback row and records the ones that
// made it. Upload and metadata failures are logged and skipped; the return
// value is the number of files stored.
func (s *MediaService) Store(ctx context.Context, project *model.Project, feedbackID string, media []*ValidatedMedia) int {
	if len(media) == 0 {
		return 0
	}

	base := s.now()
	stored := make([]*model.MediaAttachment, len(media))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, m := range media {
		// Offset by index so attachments of one submission never share a key
		key := fmt.Sprintf("%s/%s/%s-%d%s", project.OrganizationID, feedbackID, m.Kind, base.UnixMilli()+int64(i), m.Extension)

		g.Go(func() error {
			uctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
			defer cancel()

			err := s.storage.Save(uctx, key, bytes.NewReader(m.Data), int64(len(m.Data)), m.ContentType)
			if err != nil {
				slog.Warn("media upload failed, skipping",
					"error", err,
					"feedback_id", feedbackID,
					"field", m.Field,
					"key", key,
				)
				return nil
			}

			stored[i] = s.attachment(feedbackID, key, m, base)
			return nil
		})
	}
	_ = g.Wait()

	attachments := make([]*model.MediaAttachment, 0, len(stored))
	for _, a := range stored {
		if a != nil {
			attachments = append(attachments, a)
		}
	}

	if len(attachments) > 0 {
		err := s.mediaRepo.CreateBatch(ctx, attachments)
		if err != nil {
			slog.Error("failed to record media attachments",
				"error", err,
				"feedback_id", feedbackID,
				"count", len(attachments),
			)
		}
	}

	return len(attachments)
}

func (s *MediaService) attachment(feedbackID, key string, m *ValidatedMedia, createdAt time.Time) *model.MediaAttachment {
	url := s.storage.URL(key)

	a := &model.MediaAttachment{
		ID:         uuid.New().String(),
		FeedbackID: feedbackID,
		Kind:       m.Kind,
		StorageKey: key,
		URL:        url,
		Size:       int64(len(m.Data)),
		CreatedAt:  createdAt,
	}

	// Screenshots are served as their own thumbnail
	if m.Kind == model.MediaKindScreenshot {
		a.ThumbnailURL = &url
	}

	meta, err := json.Marshal(map[string]string{
		"originalName": m.Filename,
		"contentType":  m.ContentType,
		"field":        m.Field,
	})
	if err == nil {
		a.Metadata = meta
	}

	return a
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
