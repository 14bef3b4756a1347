package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/feedbackloop/internal/app"
	"github.com/templui/feedbackloop/internal/config"
	"github.com/templui/feedbackloop/internal/db"
	"github.com/templui/feedbackloop/internal/handler"
	"github.com/templui/feedbackloop/internal/middleware"
	"github.com/templui/feedbackloop/internal/model"
	"github.com/templui/feedbackloop/internal/repository"
	"github.com/templui/feedbackloop/internal/service"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memoryStorage) Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStorage) URL(key string) string {
	return "https://cdn.test/" + key
}

type recordingNotifier struct {
	mu    sync.Mutex
	count int
	err   error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(ctx context.Context, _ service.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	return n.err
}

type testEnv struct {
	handler  http.Handler
	db       *sqlx.DB
	app      *app.App
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, appEnv string, rateLimit int) *testEnv {
	t.Helper()

	database := db.NewTestDB(t)
	notifier := &recordingNotifier{}
	ingestCfg := service.IngestConfig{
		MaxFileSize:       1 << 10,
		MaxAttachments:    5,
		MaxJSONSize:       16 << 10,
		UploadTimeout:     time.Second,
		UploadConcurrency: 2,
		DefaultType:       model.FeedbackTypeBug,
	}

	projects := service.NewProjectService(repository.NewProjectRepository(database), repository.NewOrganizationRepository(database))
	feedback := service.NewFeedbackService(repository.NewFeedbackRepository(database), ingestCfg.DefaultType)
	media := service.NewMediaService(repository.NewMediaRepository(database), &memoryStorage{objects: map[string][]byte{}}, ingestCfg)
	dispatcher := service.NewDispatcher(time.Second, notifier)

	limiter := middleware.NewRateLimiter(rateLimit, time.Minute)
	t.Cleanup(limiter.Close)

	a := &app.App{
		Cfg:            &config.Config{AppEnv: appEnv},
		DB:             database,
		ProjectService: projects,
		IngestService:  service.NewIngestService(projects, feedback, media, dispatcher, ingestCfg),
		Dispatcher:     dispatcher,
		Limiter:        limiter,
	}

	return &testEnv{
		handler:  SetupRoutes(a),
		db:       database,
		app:      a,
		notifier: notifier,
	}
}

func (e *testEnv) project(t *testing.T, origins ...string) *model.Project {
	t.Helper()
	ctx := context.Background()

	org, err := e.app.ProjectService.CreateOrganization(ctx, "Acme")
	require.NoError(t, err)
	p, err := e.app.ProjectService.CreateProject(ctx, org.ID, "Widget", origins, "")
	require.NoError(t, err)
	return p
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func jsonPost(apiKey, origin, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(handler.ProjectKeyHeader, apiKey)
	}
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

type part struct {
	field string
	data  []byte
}

func multipartPost(t *testing.T, apiKey, data string, files ...part) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("data", data))
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.field+".png")
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(handler.ProjectKeyHeader, apiKey)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestSubmit_MissingKey(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	env.project(t)

	rec := env.do(jsonPost("", "", `{"description":"x"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))
}

func TestSubmit_InvalidKey(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	env.project(t)

	rec := env.do(jsonPost("fbk_00000000000000000000000000000000", "", `{"description":"x"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))
}

func TestSubmit_InactiveProject(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)
	require.NoError(t, env.app.ProjectService.Deactivate(context.Background(), p.ID))

	rec := env.do(jsonPost(p.APIKey, "", `{"description":"x"}`))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))
}

func TestSubmit_OriginAllowList(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t, "*.example.com")

	rec := env.do(jsonPost(p.APIKey, "https://evil.com", `{"description":"x"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))

	rec = env.do(jsonPost(p.APIKey, "https://notexample.com", `{"description":"x"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(jsonPost(p.APIKey, "https://app.example.com", `{"description":"x"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, db.CountRows(t, env.db, "feedback"))
}

func TestSubmit_EmptyDescription(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)

	for _, body := range []string{`{"description":""}`, `{"type":"bug"}`, `{"description":"   "}`} {
		rec := env.do(jsonPost(p.APIKey, "", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["error"], "description")
	}
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))
}

func TestSubmit_MalformedJSON(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)

	rec := env.do(jsonPost(p.APIKey, "", `{"description":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))
}

func TestSubmit_TooManyAttachments(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)

	files := make([]part, 6)
	for i := range files {
		files[i] = part{field: fmt.Sprintf("screenshot-%d", i), data: pngBytes}
	}

	rec := env.do(multipartPost(t, p.APIKey, `{"description":"x"}`, files...))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "Too many attachments")
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))
}

func TestSubmit_OversizedFileRejectsWholeRequest(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 2<<10)...)
	rec := env.do(multipartPost(t, p.APIKey, `{"description":"x"}`,
		part{field: "screenshot-0", data: pngBytes},
		part{field: "screenshot-1", data: big},
	))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "screenshot-1")
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))
	assert.Equal(t, 0, db.CountRows(t, env.db, "media_attachments"))
}

func TestSubmit_BodyOverTotalLimit(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)

	// Far beyond attachments*fileSize+json, so the body reader itself gives up
	huge := bytes.Repeat([]byte{0}, 200<<10)
	rec := env.do(multipartPost(t, p.APIKey, `{"description":"x"}`, part{field: "screenshot-0", data: huge}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, db.CountRows(t, env.db, "feedback"))
}

func TestSubmit_JSONSuccess(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)

	rec := env.do(jsonPost(p.APIKey, "", `{"description":"broken save","type":"bug"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["mediaUploaded"])
	assert.NotEmpty(t, body["message"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	assert.Equal(t, 1, db.CountRows(t, env.db, "feedback"))
	stored, err := repository.NewFeedbackRepository(env.db).ByID(context.Background(), p.ID, id)
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.ProjectID)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestSubmit_MultipartSuccess(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)

	rec := env.do(multipartPost(t, p.APIKey, `{"description":"see screenshot"}`, part{field: "screenshot-0", data: pngBytes}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, float64(1), body["mediaUploaded"])

	assert.Equal(t, 1, db.CountRows(t, env.db, "feedback"))
	rows, err := repository.NewMediaRepository(env.db).ByFeedback(context.Background(), body["id"].(string))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.MediaKindScreenshot, rows[0].Kind)
}

func TestSubmit_NotificationFailureStillSucceeds(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	env.notifier.err = errors.New("always fails")
	p := env.project(t)

	rec := env.do(jsonPost(p.APIKey, "", `{"description":"x"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["id"])

	env.app.Dispatcher.Wait()
	assert.Equal(t, 1, env.notifier.count)
}

func TestSubmit_CustomDataRoundTrip(t *testing.T) {
	env := newTestEnv(t, "production", 100)
	p := env.project(t)

	rec := env.do(jsonPost(p.APIKey, "", `{"description":"x","customData":{"a":1}}`))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := repository.NewFeedbackRepository(env.db).ByID(context.Background(), p.ID, decode(t, rec)["id"].(string))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(stored.CustomData), &got))
	assert.Equal(t, map[string]any{"a": float64(1)}, got)
}

func TestSubmit_InternalErrorDetails(t *testing.T) {
	for _, tt := range []struct {
		env         string
		wantDetails bool
	}{
		{env: "development", wantDetails: true},
		{env: "production", wantDetails: false},
	} {
		t.Run(tt.env, func(t *testing.T) {
			env := newTestEnv(t, tt.env, 100)
			p := env.project(t)

			_, err := env.db.Exec(`DROP TABLE media_attachments`)
			require.NoError(t, err)
			_, err = env.db.Exec(`DROP TABLE feedback`)
			require.NoError(t, err)

			rec := env.do(jsonPost(p.APIKey, "", `{"description":"x"}`))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			body := decode(t, rec)
			assert.NotEmpty(t, body["error"])
			_, hasDetails := body["details"]
			assert.Equal(t, tt.wantDetails, hasDetails)
		})
	}
}

func TestSubmit_RateLimited(t *testing.T) {
	env := newTestEnv(t, "production", 1)
	p := env.project(t)

	rec := env.do(jsonPost(p.APIKey, "", `{"description":"x"}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(jsonPost(p.APIKey, "", `{"description":"x"}`))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])
}

func TestSubmit_RateLimitIgnoresForwardedFor(t *testing.T) {
	env := newTestEnv(t, "production", 1)
	p := env.project(t)

	req := jsonPost(p.APIKey, "", `{"description":"x"}`)
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	rec := env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = jsonPost(p.APIKey, "", `{"description":"x"}`)
	req.Header.Set("X-Forwarded-For", "198.51.100.2")
	req.Header.Set("X-Real-IP", "198.51.100.3")
	rec = env.do(req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, "production", 100)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/feedback", nil)
	req.Header.Set("Origin", "https://customer.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Project-Key")

	rec := env.do(req)
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOperationalRoutes(t *testing.T) {
	env := newTestEnv(t, "production", 100)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode(t, rec)["error"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/feedback", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	require.NoError(t, env.db.Close())
	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
