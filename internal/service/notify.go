package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/templui/feedbackloop/internal/model"
)

// Notification is the payload handed to every notifier after a feedback row
// is written.
type Notification struct {
	FeedbackID    string             `json:"feedbackId"`
	ProjectID     string             `json:"projectId"`
	ProjectName   string             `json:"projectName"`
	Type          model.FeedbackType `json:"type"`
	Title         string             `json:"title,omitempty"`
	ReporterName  string             `json:"reporterName,omitempty"`
	ReporterEmail string             `json:"reporterEmail,omitempty"`
	PageURL       string             `json:"pageUrl,omitempty"`
	Description   string             `json:"description"`
	MediaCount    int                `json:"mediaCount"`
	CreatedAt     time.Time          `json:"createdAt"`

	// Recipient for email notifications; never sent to webhooks.
	NotifyEmail string `json:"-"`
}

// NewNotification builds the payload for a stored feedback row.
func NewNotification(project *model.Project, feedback *model.Feedback, mediaCount int) Notification {
	n := Notification{
		FeedbackID:  feedback.ID,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Type:        feedback.Type,
		Description: feedback.Description,
		MediaCount:  mediaCount,
		CreatedAt:   feedback.CreatedAt,
	}
	if feedback.Title != nil {
		n.Title = *feedback.Title
	}
	if feedback.ReporterName != nil {
		n.ReporterName = *feedback.ReporterName
	}
	if feedback.ReporterEmail != nil {
		n.ReporterEmail = *feedback.ReporterEmail
	}
	if feedback.PageURL != nil {
		n.PageURL = *feedback.PageURL
	}
	if project.NotifyEmail != nil {
		n.NotifyEmail = *project.NotifyEmail
	}
	return n
}

// Notifier delivers one notification to one downstream target.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Dispatcher runs notifiers in the background. Delivery is best effort:
// each attempt is bounded by a timeout, never retried, and its outcome is
// only logged.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   timeout,
	}
}

// Dispatch returns immediately; notifiers run on detached goroutines that do
// not inherit the request context. After Close, notifications are dropped.
func (d *Dispatcher) Dispatch(n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		slog.Warn("dispatcher closed, dropping notification", "feedback_id", n.FeedbackID)
		return
	}

	for _, notifier := range d.notifiers {
		d.wg.Add(1)
		go d.deliver(notifier, n)
	}
}

// Wait blocks until all in-flight notifications finish. Callers must not
// Dispatch concurrently; use Close at shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops new dispatches and waits for in-flight notifications.
// Handlers still running after an expired shutdown deadline may call
// Dispatch safely; their notifications are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) deliver(notifier Notifier, n Notification) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("notifier panicked",
				"notifier", notifier.Name(),
				"feedback_id", n.FeedbackID,
				"panic", r,
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := notifier.Notify(ctx, n)
	if err != nil {
		slog.Warn("notification failed",
			"error", err,
			"notifier", notifier.Name(),
			"feedback_id", n.FeedbackID,
			"project_id", n.ProjectID,
		)
		return
	}

	slog.Debug("notification delivered", "notifier", notifier.Name(), "feedback_id", n.FeedbackID)
}
