package service

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/feedbackloop/internal/model"
)

var testLimits = ParseLimits{
	MaxFileSize:    1 << 10,
	MaxAttachments: 5,
	MaxJSONSize:    4 << 10,
}

func TestParseSubmission_JSON(t *testing.T) {
	body := `{
		"type": "suggestion",
		"description": "dark mode please",
		"reporterEmail": "ana@example.com",
		"pageUrl": "https://app.example.com/settings",
		"browserInfo": {"name": "firefox"},
		"customData": null,
		"somethingNew": true
	}`

	sub, err := ParseSubmission("application/json; charset=utf-8", strings.NewReader(body), testLimits)
	require.NoError(t, err)

	assert.Equal(t, model.BodyJSON, sub.Body)
	assert.Equal(t, model.FeedbackTypeSuggestion, sub.Type)
	assert.Equal(t, "dark mode please", sub.Description)
	assert.Equal(t, "ana@example.com", sub.ReporterEmail)
	assert.JSONEq(t, `{"name": "firefox"}`, string(sub.BrowserInfo))
	assert.True(t, sub.CustomData.IsNull())
	assert.Empty(t, sub.Attachments)
}

func TestParseSubmission_JSONWithoutContentType(t *testing.T) {
	sub, err := ParseSubmission("", strings.NewReader(`{"description":"beacon"}`), testLimits)
	require.NoError(t, err)
	assert.Equal(t, model.BodyJSON, sub.Body)
	assert.Equal(t, "beacon", sub.Description)
}

func TestParseSubmission_MalformedJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "truncated", body: `{"description":`},
		{name: "wrong shape", body: `["description"]`},
		{name: "too large", body: `{"description":"` + strings.Repeat("a", 5<<10) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubmission("application/json", strings.NewReader(tt.body), testLimits)
			assert.Equal(t, ErrMalformedBody, KindOf(err))
		})
	}
}

func TestParseSubmission_Multipart(t *testing.T) {
	contentType, body := multipartBody(t, `{"description":"see screenshot","type":"bug"}`,
		filePart{field: "screenshot-0", filename: "shot.png", data: pngBytes},
		filePart{field: "recording-0", filename: "voice.webm", data: []byte("audio")},
		filePart{field: "video-0", filename: "clip.mp4", data: []byte("video")},
	)

	sub, err := ParseSubmission(contentType, body, testLimits)
	require.NoError(t, err)

	assert.Equal(t, model.BodyMultipart, sub.Body)
	assert.Equal(t, "see screenshot", sub.Description)
	require.Len(t, sub.Attachments, 3)

	shot := sub.Attachments[0]
	assert.Equal(t, "screenshot-0", shot.Field)
	assert.Equal(t, "shot.png", shot.Filename)
	assert.Equal(t, model.MediaKindScreenshot, shot.Kind)
	assert.Equal(t, pngBytes, shot.Data)
	assert.Equal(t, int64(len(pngBytes)), shot.Size)

	assert.Equal(t, model.MediaKindVoice, sub.Attachments[1].Kind)
	assert.Equal(t, model.MediaKindVideo, sub.Attachments[2].Kind)
}

func TestParseSubmission_MultipartDataAsFile(t *testing.T) {
	contentType, body := multipartBody(t, "",
		filePart{field: DataField, filename: "blob", data: []byte(`{"description":"from a blob"}`)},
		filePart{field: "attachment", filename: "x.png", data: pngBytes},
	)

	sub, err := ParseSubmission(contentType, body, testLimits)
	require.NoError(t, err)
	assert.Equal(t, "from a blob", sub.Description)
	require.Len(t, sub.Attachments, 1)
	assert.Equal(t, model.MediaKindScreenshot, sub.Attachments[0].Kind)
}

func TestParseSubmission_MultipartIgnoresPlainFields(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("source", "widget"))
	require.NoError(t, w.WriteField("screenshot-0", "not a file"))
	require.NoError(t, w.WriteField(DataField, `{"description":"x"}`))
	require.NoError(t, w.Close())

	sub, err := ParseSubmission(w.FormDataContentType(), &buf, testLimits)
	require.NoError(t, err)
	assert.Equal(t, "x", sub.Description)
	assert.Empty(t, sub.Attachments)
}

func TestParseSubmission_MultipartMissingData(t *testing.T) {
	contentType, body := multipartBody(t, "",
		filePart{field: "screenshot-0", filename: "shot.png", data: pngBytes},
	)

	_, err := ParseSubmission(contentType, body, testLimits)
	assert.Equal(t, ErrMalformedBody, KindOf(err))
}

func TestParseSubmission_MultipartBadData(t *testing.T) {
	contentType, body := multipartBody(t, `{not json`)

	_, err := ParseSubmission(contentType, body, testLimits)
	assert.Equal(t, ErrMalformedBody, KindOf(err))
}

func TestParseSubmission_MultipartBroken(t *testing.T) {
	_, err := ParseSubmission("multipart/form-data; boundary=xyz", strings.NewReader("garbage without boundaries"), testLimits)
	assert.Equal(t, ErrMalformedBody, KindOf(err))

	_, err = ParseSubmission("multipart/form-data", strings.NewReader(""), testLimits)
	assert.Equal(t, ErrMalformedBody, KindOf(err))
}

func TestParseSubmission_TooManyAttachments(t *testing.T) {
	files := make([]filePart, 6)
	for i := range files {
		files[i] = filePart{field: fmt.Sprintf("screenshot-%d", i), filename: "s.png", data: pngBytes}
	}
	contentType, body := multipartBody(t, `{"description":"x"}`, files...)

	_, err := ParseSubmission(contentType, body, testLimits)
	assert.Equal(t, ErrTooManyAttachments, KindOf(err))
}

func TestParseSubmission_OversizedPartKeepsTrueSize(t *testing.T) {
	big := bytes.Repeat([]byte{0xAB}, 3<<10)
	contentType, body := multipartBody(t, `{"description":"x"}`,
		filePart{field: "screenshot-0", filename: "big.png", data: big},
	)

	sub, err := ParseSubmission(contentType, body, testLimits)
	require.NoError(t, err)
	require.Len(t, sub.Attachments, 1)

	a := sub.Attachments[0]
	assert.Len(t, a.Data, int(testLimits.MaxFileSize)+1)
	assert.Equal(t, int64(len(big)), a.Size)
}

func TestParseSubmission_BodyLimitIsFileTooLarge(t *testing.T) {
	contentType, body := multipartBody(t, `{"description":"x"}`,
		filePart{field: "screenshot-0", filename: "s.png", data: bytes.Repeat([]byte{1}, 2<<10)},
	)

	rec := httptest.NewRecorder()
	limited := http.MaxBytesReader(rec, io.NopCloser(body), 512)

	_, err := ParseSubmission(contentType, limited, testLimits)
	assert.Equal(t, ErrFileTooLarge, KindOf(err))
}
