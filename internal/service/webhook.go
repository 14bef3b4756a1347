package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

const webhookEventFeedbackCreated = "feedback.created"

// WebhookNotifier POSTs new feedback to an HTTP endpoint. When a secret is
// configured the request carries standard-webhooks signature headers.
type WebhookNotifier struct {
	url     string
	webhook *standardwebhooks.Webhook
	client  *http.Client
}

// NewWebhookNotifier accepts either a "whsec_" base64 secret or a raw one.
func NewWebhookNotifier(url, secret string, client *http.Client) (*WebhookNotifier, error) {
	if client == nil {
		client = http.DefaultClient
	}

	n := &WebhookNotifier{
		url:    url,
		client: client,
	}

	if secret != "" {
		var (
			wh  *standardwebhooks.Webhook
			err error
		)
		if strings.HasPrefix(secret, "whsec_") {
			wh, err = standardwebhooks.NewWebhook(secret)
		} else {
			wh, err = standardwebhooks.NewWebhookRaw([]byte(secret))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create webhook signer: %w", err)
		}
		n.webhook = wh
	}

	return n, nil
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	now := time.Now()
	payload, err := json.Marshal(struct {
		Type      string       `json:"type"`
		Timestamp time.Time    `json:"timestamp"`
		Data      Notification `json:"data"`
	}{
		Type:      webhookEventFeedbackCreated,
		Timestamp: now,
		Data:      n,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if w.webhook != nil {
		msgID := "msg_" + uuid.New().String()
		signature, err := w.webhook.Sign(msgID, now, payload)
		if err != nil {
			return fmt.Errorf("failed to sign webhook: %w", err)
		}
		req.Header.Set("webhook-id", msgID)
		req.Header.Set("webhook-timestamp", strconv.FormatInt(now.Unix(), 10))
		req.Header.Set("webhook-signature", signature)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	slog.Info("webhook delivered", "feedback_id", n.FeedbackID, "status", resp.StatusCode)
	return nil
}
