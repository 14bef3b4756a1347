package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/templui/feedbackloop/internal/model"
)

type MediaRepository interface {
	CreateBatch(ctx context.Context, attachments []*model.MediaAttachment) error
	ByFeedback(ctx context.Context, feedbackID string) ([]*model.MediaAttachment, error)
}

type mediaRepository struct {
	db *sqlx.DB
}

func NewMediaRepository(db *sqlx.DB) MediaRepository {
	return &mediaRepository{db: db}
}

const mediaColumns = 9

// CreateBatch writes all attachments in a single multi-row INSERT.
// An empty slice is a no-op.
func (r *mediaRepository) CreateBatch(ctx context.Context, attachments []*model.MediaAttachment) error {
	if len(attachments) == 0 {
		return nil
	}

	rows := make([]string, 0, len(attachments))
	args := make([]any, 0, len(attachments)*mediaColumns)
	for i, a := range attachments {
		placeholders := make([]string, mediaColumns)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", i*mediaColumns+j+1)
		}
		rows = append(rows, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			a.ID,
			a.FeedbackID,
			a.Kind,
			a.StorageKey,
			a.URL,
			a.ThumbnailURL,
			a.Size,
			a.Metadata,
			a.CreatedAt,
		)
	}

	query := `INSERT INTO media_attachments (id, feedback_id, kind, storage_key, url, thumbnail_url, size, metadata, created_at)
	          VALUES ` + strings.Join(rows, ", ")

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *mediaRepository) ByFeedback(ctx context.Context, feedbackID string) ([]*model.MediaAttachment, error) {
	var attachments []*model.MediaAttachment
	query := `SELECT * FROM media_attachments WHERE feedback_id = $1 ORDER BY created_at ASC, id ASC`

	err := r.db.SelectContext(ctx, &attachments, query, feedbackID)
	if err != nil {
		return nil, err
	}

	return attachments, nil
}
