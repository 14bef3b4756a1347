package model

import (
	"strings"
	"time"
)

type MediaKind string

const (
	MediaKindScreenshot MediaKind = "screenshot"
	MediaKindVoice      MediaKind = "voice"
	MediaKindVideo      MediaKind = "video"
)

// KindFromField classifies a multipart file field by its name prefix.
// Unknown prefixes are treated as screenshots.
func KindFromField(field string) MediaKind {
	name := strings.ToLower(field)
	switch {
	case strings.HasPrefix(name, "recording"):
		return MediaKindVoice
	case strings.HasPrefix(name, "video"):
		return MediaKindVideo
	default:
		return MediaKindScreenshot
	}
}

type MediaAttachment struct {
	ID           string    `db:"id"`
	FeedbackID   string    `db:"feedback_id"`
	Kind         MediaKind `db:"kind"`
	StorageKey   string    `db:"storage_key"`
	URL          string    `db:"url"`
	ThumbnailURL *string   `db:"thumbnail_url"`
	Size         int64     `db:"size"`
	Metadata     JSON      `db:"metadata"`
	CreatedAt    time.Time `db:"created_at"`
}
