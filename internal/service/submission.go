package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/templui/feedbackloop/internal/model"
)

// DataField is the multipart part carrying the submission JSON.
const DataField = "data"

// ParseLimits bounds what the parser will buffer.
type ParseLimits struct {
	MaxFileSize    int64
	MaxAttachments int
	MaxJSONSize    int64
}

// ParseSubmission decodes a request body into a Submission. The wire format
// is decided once from contentType: multipart/form-data is streamed part by
// part, anything else is decoded as JSON.
//
// File parts are buffered up to MaxFileSize+1 bytes; the rest of an oversized
// part is counted and discarded so the media validator sees its true size.
func ParseSubmission(contentType string, body io.Reader, limits ParseLimits) (*model.Submission, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && mediaType == "multipart/form-data" {
		return parseMultipart(body, params["boundary"], limits)
	}
	return parseJSON(body, limits)
}

func parseJSON(body io.Reader, limits ParseLimits) (*model.Submission, error) {
	raw, err := readLimited(body, limits.MaxJSONSize)
	if err != nil {
		return nil, err
	}

	sub, err := decodeSubmission(raw)
	if err != nil {
		return nil, err
	}
	sub.Body = model.BodyJSON

	return sub, nil
}

func parseMultipart(body io.Reader, boundary string, limits ParseLimits) (*model.Submission, error) {
	if boundary == "" {
		return nil, newError(ErrMalformedBody, "Missing multipart boundary", nil)
	}

	var (
		sub         *model.Submission
		attachments []*model.RawAttachment
	)

	mr := multipart.NewReader(body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError("Invalid multipart body", err)
		}

		name := part.FormName()
		switch {
		case name == DataField:
			raw, err := readLimited(part, limits.MaxJSONSize)
			if err != nil {
				return nil, err
			}
			sub, err = decodeSubmission(raw)
			if err != nil {
				return nil, err
			}

		case part.FileName() != "":
			if len(attachments) >= limits.MaxAttachments {
				return nil, newError(ErrTooManyAttachments,
					fmt.Sprintf("Too many attachments (max %d)", limits.MaxAttachments), nil)
			}
			a, err := readAttachment(part, limits.MaxFileSize)
			if err != nil {
				return nil, err
			}
			attachments = append(attachments, a)

		default:
			// Unknown form fields are ignored
			_, err := io.Copy(io.Discard, part)
			if err != nil {
				return nil, readError("Invalid multipart body", err)
			}
		}
	}

	if sub == nil {
		return nil, newError(ErrMalformedBody, "Missing data field", nil)
	}

	sub.Body = model.BodyMultipart
	sub.Attachments = attachments

	slog.Debug("parsed multipart submission", "attachments", len(attachments))
	return sub, nil
}

func readAttachment(part *multipart.Part, maxSize int64) (*model.RawAttachment, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxSize+1))
	if err != nil {
		return nil, readError("Invalid multipart body", err)
	}

	rest, err := io.Copy(io.Discard, part)
	if err != nil {
		return nil, readError("Invalid multipart body", err)
	}

	return &model.RawAttachment{
		Field:    part.FormName(),
		Filename: part.FileName(),
		Kind:     model.KindFromField(part.FormName()),
		Data:     data,
		Size:     int64(len(data)) + rest,
	}, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, readError("Failed to read request body", err)
	}
	if int64(len(raw)) > max {
		return nil, newError(ErrMalformedBody, "Submission data too large", nil)
	}
	return raw, nil
}

func decodeSubmission(raw []byte) (*model.Submission, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, newError(ErrMalformedBody, "Empty request body", nil)
	}

	sub := &model.Submission{}
	err := json.Unmarshal(raw, sub)
	if err != nil {
		return nil, newError(ErrMalformedBody, "Invalid JSON", err)
	}
	return sub, nil
}

// readError classifies a body read failure. Hitting the request size ceiling
// is reported as an oversized upload.
func readError(message string, err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return newError(ErrFileTooLarge, "Request body too large", err)
	}
	return newError(ErrMalformedBody, message, err)
}
