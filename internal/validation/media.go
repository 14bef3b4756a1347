package validation

import (
	"errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/templui/feedbackloop/internal/model"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// MediaAllowList maps each attachment kind to the content types it admits.
// Types are matched against the sniffed type, its aliases and its parents,
// so "audio/webm" admits a recording sniffed as "video/webm".
var MediaAllowList = map[model.MediaKind][]string{
	model.MediaKindScreenshot: {
		"image/png",
		"image/jpeg",
		"image/gif",
		"image/webp",
	},
	model.MediaKindVoice: {
		"audio/webm",
		"audio/ogg",
		"application/ogg",
		"audio/mpeg",
		"audio/wav",
		"audio/mp4",
		"audio/x-m4a",
		"audio/aac",
		"video/mp4", // Safari records audio into an mp4 container
	},
	model.MediaKindVideo: {
		"video/mp4",
		"video/webm",
		"video/quicktime",
	},
}

// DetectedMedia is the result of sniffing an attachment payload.
type DetectedMedia struct {
	ContentType string
	Extension   string
}

// DetectMedia sniffs data from its magic numbers and checks the result
// against the allow-list for kind. The declared filename and part header
// are never trusted.
func DetectMedia(kind model.MediaKind, data []byte) (DetectedMedia, error) {
	if len(data) == 0 {
		return DetectedMedia{}, ErrEmptyFile
	}

	allowed, ok := MediaAllowList[kind]
	if !ok {
		return DetectedMedia{}, ErrUnsupportedType
	}

	detected := mimetype.Detect(data)
	for mt := detected; mt != nil; mt = mt.Parent() {
		if mt.Is("application/octet-stream") {
			break
		}
		for _, a := range allowed {
			if mt.Is(a) {
				return DetectedMedia{
					ContentType: detected.String(),
					Extension:   detected.Extension(),
				}, nil
			}
		}
	}

	return DetectedMedia{ContentType: detected.String()}, ErrUnsupportedType
}
