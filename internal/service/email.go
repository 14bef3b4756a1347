package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
	"github.com/templui/feedbackloop/internal/markdown"
)

// EmailNotifier mails new feedback to the project's notification address.
type EmailNotifier struct {
	client    *resend.Client
	fromEmail string
	appName   string
	isDev     bool
	markdown  *markdown.Parser
}

func NewEmailNotifier(apiKey, fromEmail, appName string, isDev bool, md *markdown.Parser) *EmailNotifier {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailNotifier{
		client:    client,
		fromEmail: fromEmail,
		appName:   appName,
		isDev:     isDev,
		markdown:  md,
	}
}

func (s *EmailNotifier) Name() string {
	return "email"
}

func (s *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	if n.NotifyEmail == "" {
		slog.Debug("no notification email configured, skipping", "project_id", n.ProjectID)
		return nil
	}

	subject := feedbackEmailSubject(n)

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "feedback", "to", n.NotifyEmail, "subject", subject, "feedback_id", n.FeedbackID)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{n.NotifyEmail},
		Subject: subject,
		Text:    feedbackEmailText(n, s.appName),
		Html:    s.markdown.ParseString(feedbackEmailMarkdown(n)),
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send feedback email: %w", err)
	}

	slog.Info("email sent", "type", "feedback", "to", n.NotifyEmail, "feedback_id", n.FeedbackID)
	return nil
}
