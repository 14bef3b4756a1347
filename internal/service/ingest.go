package service

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/templui/feedbackloop/internal/model"
)

// multipartOverhead is the slack allowed for boundaries and part headers on
// top of the payload ceilings.
const multipartOverhead = 64 << 10

// IngestConfig carries every limit the pipeline enforces. It is built once
// from application config and passed in; pipeline code never reads the
// environment.
type IngestConfig struct {
	MaxFileSize       int64
	MaxAttachments    int
	MaxJSONSize       int64
	UploadTimeout     time.Duration
	UploadConcurrency int
	DefaultType       model.FeedbackType
}

// MaxBodySize is the largest request body worth reading: every attachment
// at its ceiling plus the submission JSON. It saturates at math.MaxInt64
// rather than overflowing.
func (c IngestConfig) MaxBodySize() int64 {
	headroom := int64(math.MaxInt64 - multipartOverhead)
	if c.MaxJSONSize >= headroom {
		return math.MaxInt64
	}
	headroom -= max(c.MaxJSONSize, 0)

	files := int64(max(c.MaxAttachments, 0))
	if files > 0 && c.MaxFileSize > headroom/files {
		return math.MaxInt64
	}
	return files*max(c.MaxFileSize, 0) + max(c.MaxJSONSize, 0) + multipartOverhead
}

func (c IngestConfig) parseLimits() ParseLimits {
	return ParseLimits{
		MaxFileSize:    c.MaxFileSize,
		MaxAttachments: c.MaxAttachments,
		MaxJSONSize:    c.MaxJSONSize,
	}
}

// IngestRequest is the transport-neutral form of one widget submission.
type IngestRequest struct {
	APIKey      string
	Origin      string
	ContentType string
	UserAgent   string
	Body        io.Reader
}

type IngestResult struct {
	FeedbackID    string
	MediaUploaded int
}

// IngestService runs the submission pipeline:
// authenticate, check origin, parse, validate, write feedback, store media,
// then notify in the background.
type IngestService struct {
	projects   *ProjectService
	feedback   *FeedbackService
	media      *MediaService
	dispatcher *Dispatcher
	cfg        IngestConfig
}

func NewIngestService(projects *ProjectService, feedback *FeedbackService, media *MediaService, dispatcher *Dispatcher, cfg IngestConfig) *IngestService {
	return &IngestService{
		projects:   projects,
		feedback:   feedback,
		media:      media,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

func (s *IngestService) Config() IngestConfig {
	return s.cfg
}

// Submit processes one submission. Any error returned is a *Error and means
// nothing was persisted. Once the feedback row is written the call succeeds;
// media and notification failures only degrade the result.
func (s *IngestService) Submit(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	project, err := s.projects.Authenticate(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}

	// The Origin header is checked before the body is read; without one the
	// page URL from the body stands in.
	headerOrigin := CandidateOrigin(req.Origin, "")
	if headerOrigin != "" {
		err = CheckOrigin(project, headerOrigin)
		if err != nil {
			slog.Info("origin rejected", "project_id", project.ID, "origin", headerOrigin)
			return nil, err
		}
	}

	sub, err := ParseSubmission(req.ContentType, req.Body, s.cfg.parseLimits())
	if err != nil {
		return nil, err
	}

	if headerOrigin == "" {
		err = CheckOrigin(project, sub.PageURL)
		if err != nil {
			slog.Info("origin rejected", "project_id", project.ID, "page_url", sub.PageURL)
			return nil, err
		}
	}

	if strings.TrimSpace(sub.UserAgent) == "" {
		sub.UserAgent = req.UserAgent
	}

	err = s.feedback.Validate(sub)
	if err != nil {
		return nil, err
	}

	media, err := s.media.Validate(sub.Attachments)
	if err != nil {
		return nil, err
	}

	// A client hanging up must not abort persistence half way
	ctx = context.WithoutCancel(ctx)

	feedback, err := s.feedback.Create(ctx, project, sub)
	if err != nil {
		return nil, err
	}

	uploaded := s.media.Store(ctx, project, feedback.ID, media)

	s.dispatcher.Dispatch(NewNotification(project, feedback, uploaded))

	slog.Info("feedback received",
		"project_id", project.ID,
		"feedback_id", feedback.ID,
		"type", feedback.Type,
		"body", sub.Body.String(),
		"attachments", len(media),
		"media_uploaded", uploaded,
	)

	return &IngestResult{
		FeedbackID:    feedback.ID,
		MediaUploaded: uploaded,
	}, nil
}
