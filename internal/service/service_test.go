package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/feedbackloop/internal/db"
	"github.com/templui/feedbackloop/internal/model"
	"github.com/templui/feedbackloop/internal/repository"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

var testIngestConfig = IngestConfig{
	MaxFileSize:       1 << 10,
	MaxAttachments:    5,
	MaxJSONSize:       64 << 10,
	UploadTimeout:     time.Second,
	UploadConcurrency: 3,
	DefaultType:       model.FeedbackTypeBug,
}

// fakeStorage is an in-memory Storage. Keys matching fail are rejected.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    func(key string) bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects: map[string][]byte{},
		types:   map[string]string{},
	}
}

func (s *fakeStorage) Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.fail != nil && s.fail(key) {
		return errors.New("bucket unavailable")
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func (s *fakeStorage) URL(key string) string {
	return "https://cdn.test/" + key
}

func (s *fakeStorage) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// fakeNotifier records notifications and can fail or panic on demand.
type fakeNotifier struct {
	mu       sync.Mutex
	received []Notification
	err      error
	panics   bool
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	n.received = append(n.received, notification)
	n.mu.Unlock()

	if n.panics {
		panic("notifier exploded")
	}
	return n.err
}

func (n *fakeNotifier) calls() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.received...)
}

type testPipeline struct {
	db         *sqlx.DB
	ingest     *IngestService
	projects   *ProjectService
	storage    *fakeStorage
	notifier   *fakeNotifier
	dispatcher *Dispatcher
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	database := db.NewTestDB(t)
	store := newFakeStorage()
	notifier := &fakeNotifier{}
	dispatcher := NewDispatcher(time.Second, notifier)

	projects := NewProjectService(repository.NewProjectRepository(database), repository.NewOrganizationRepository(database))
	feedback := NewFeedbackService(repository.NewFeedbackRepository(database), testIngestConfig.DefaultType)
	media := NewMediaService(repository.NewMediaRepository(database), store, testIngestConfig)

	return &testPipeline{
		db:         database,
		ingest:     NewIngestService(projects, feedback, media, dispatcher, testIngestConfig),
		projects:   projects,
		storage:    store,
		notifier:   notifier,
		dispatcher: dispatcher,
	}
}

func (p *testPipeline) seedProject(t *testing.T, origins ...string) *model.Project {
	t.Helper()
	ctx := context.Background()

	org, err := p.projects.CreateOrganization(ctx, "Acme")
	require.NoError(t, err)

	project, err := p.projects.CreateProject(ctx, org.ID, "Widget", origins, "team@acme.test")
	require.NoError(t, err)
	return project
}

type filePart struct {
	field    string
	filename string
	data     []byte
}

// multipartBody encodes a submission. An empty data string omits the data part.
func multipartBody(t *testing.T, data string, files ...filePart) (string, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if data != "" {
		require.NoError(t, w.WriteField(DataField, data))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return w.FormDataContentType(), &buf
}

func jsonRequest(apiKey, body string) IngestRequest {
	return IngestRequest{
		APIKey:      apiKey,
		ContentType: "application/json",
		UserAgent:   "test-agent/1.0",
		Body:        strings.NewReader(body),
	}
}
