package httpcontroller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/freshness-go/internal/conf"
	"github.com/tphakala/freshness-go/internal/datastore"
	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/labels"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
	"github.com/tphakala/freshness-go/internal/observability"
	"github.com/tphakala/freshness-go/internal/processor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubStore is an in-memory store whose failures can be switched on.
type stubStore struct {
	saveErr   error
	exportErr error
}

func (s *stubStore) Load(context.Context) ([]ledger.Entry, error) {
	return nil, ledger.ErrStoreNotFound
}
func (s *stubStore) Save(context.Context, []ledger.Entry) error { return s.saveErr }
func (s *stubStore) Export(context.Context, io.Writer) error    { return s.exportErr }
func (s *stubStore) Close() error                               { return nil }

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func webSettings() *conf.WebServerSettings {
	return &conf.WebServerSettings{
		Enabled:         true,
		Listen:          "127.0.0.1:0",
		BodyLimit:       "1K",
		ShutdownTimeout: time.Second,
	}
}

func newTestServer(t *testing.T, store ledger.Store) *Server {
	t.Helper()
	return newTestServerWithLog(t, store, testLogger())
}

func newTestServerWithLog(t *testing.T, store ledger.Store, log logger.Logger) *Server {
	t.Helper()

	l, err := ledger.Load(t.Context(), store, ledger.Options{Location: time.UTC, Logger: log})
	require.NoError(t, err)

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	proc := processor.New(labels.NewTable(labels.DefaultLabels, labels.DefaultThreshold), l,
		processor.WithLogger(log),
		processor.WithMetrics(m.Processor))
	return New(webSettings(), proc, l, m.Handler(), log)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestPostDetections(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubStore{})

	rec := do(s, http.MethodPost, "/api/v1/detections", `{"detections":[
		{"class_index":0,"confidence":0.9,"bbox":[1,2,3,4]},
		{"class_index":99,"confidence":0.9,"bbox":[1,2,3,4]},
		{"class_index":3,"confidence":0.2,"bbox":[1,2,3,4]}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusCompleted, resp["status"])
	assert.NotEmpty(t, resp["batch_id"])
	assert.InDelta(t, 1, resp["invalid"], 0)
	assert.InDelta(t, 1, resp["discarded"], 0)

	detections, ok := resp["detections"].([]any)
	require.True(t, ok)
	require.Len(t, detections, 1)
	assert.Equal(t, "apple", detections[0].(map[string]any)["product"])

	apple, ok := s.Ledger.Get("apple")
	require.True(t, ok)
	assert.Equal(t, 1, apple.FreshCount)
}

func TestPostDetectionsBadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"detections":[`},
		{"missing detections", `{}`},
		{"empty body", ""},
		{"wrong type", `{"detections":"apple"}`},
	}

	s := newTestServer(t, &stubStore{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/v1/detections", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, s.Ledger.Len())
}

func TestPostDetectionsBodyLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubStore{})
	body := `{"detections":[` + strings.Repeat(`{"class_index":0,"confidence":0.9,"bbox":[1,2,3,4]},`, 100) + `{}]}`
	rec := do(s, http.MethodPost, "/api/v1/detections", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPostDetectionsPersistFailure(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	s := newTestServer(t, store)
	store.saveErr = assert.AnError

	rec := do(s, http.MethodPost, "/api/v1/detections", `{"detections":[{"class_index":0,"confidence":0.9,"bbox":[0,0,1,1]}]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "Failed to persist freshness ledger", resp.Message)
	assert.Len(t, resp.CorrelationID, 8)
}

func TestPostEmptyBatch(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubStore{})
	rec := do(s, http.MethodPost, "/api/v1/detections", `{"detections":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detections":[]`)
}

func TestGetLedger(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubStore{})
	rec := do(s, http.MethodPost, "/api/v1/detections", `{"detections":[
		{"class_index":2,"confidence":0.9,"bbox":[0,0,1,1]},
		{"class_index":0,"confidence":0.9,"bbox":[0,0,1,1]}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LedgerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "onion", resp.Entries[0].Product)
	assert.Equal(t, 0, resp.Entries[0].Sequence)
	assert.Equal(t, "apple", resp.Entries[1].Product)
	assert.Equal(t, ledger.Days(10), resp.Entries[0].Lifespan)
}

func TestExportLedger(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "detection_fresh_count.csv")
	s := newTestServer(t, datastore.NewCSVStore(path, time.UTC, testLogger()))

	rec := do(s, http.MethodPost, "/api/v1/detections", `{"detections":[{"class_index":4,"confidence":0.8,"bbox":[0,0,1,1]}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/ledger/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "detection_fresh_count.csv")
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), strings.Join(datastore.Header, ",")))
}

func TestExportLedgerNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubStore{exportErr: ledger.ErrStoreNotFound})
	rec := do(s, http.MethodGet, "/api/v1/ledger/export", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = newTestServer(t, &stubStore{exportErr: assert.AnError})
	rec = do(s, http.MethodGet, "/api/v1/ledger/export", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportLedgerWorkbook(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "detection_fresh_count.xlsx")
	store := datastore.NewXLSXStore(path, time.UTC, testLogger())
	s := newTestServer(t, store)

	rec := do(s, http.MethodPost, "/api/v1/detections", `{"detections":[{"class_index":0,"confidence":0.8,"bbox":[0,0,1,1]}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/ledger/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "detection_fresh_count.xlsx")
	assert.Equal(t, datastore.XLSXExport.ContentType, rec.Header().Get("Content-Type"))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, onDisk, rec.Body.Bytes())
}

func TestErrorCategoryDecidesStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category errors.ErrorCategory
		want     int
	}{
		{"not found", errors.CategoryNotFound, http.StatusNotFound},
		{"validation", errors.CategoryValidation, http.StatusBadRequest},
		{"database", errors.CategoryDatabase, http.StatusInternalServerError},
		{"file io", errors.CategoryFileIO, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exportErr := errors.New(assert.AnError).
				Component("datastore").
				Category(tt.category).
				Context("path", "/var/lib/freshness/ledger.csv").
				Build()
			s := newTestServer(t, &stubStore{exportErr: exportErr})

			rec := do(s, http.MethodGet, "/api/v1/ledger/export", "")
			assert.Equal(t, tt.want, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestHandleErrorLogsErrorMetadata(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	exportErr := errors.New(assert.AnError).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("path", "/var/lib/freshness/ledger.csv").
		Build()
	s := newTestServerWithLog(t, &stubStore{exportErr: exportErr},
		logger.NewSlogLogger(&buf, logger.LogLevelDebug, time.UTC))

	rec := do(s, http.MethodGet, "/api/v1/ledger/export", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var record map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		if line["msg"] == "API error" {
			record = line
		}
	}
	require.NotNil(t, record, "API error was not logged")
	assert.Equal(t, "not-found", record["category"])
	assert.Equal(t, "datastore", record["component"])
	assert.Equal(t, map[string]any{"path": "/var/lib/freshness/ledger.csv"}, record["error_context"])
	assert.InDelta(t, float64(http.StatusNotFound), record["code"], 0)
}

func TestMetricsAndHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubStore{})
	do(s, http.MethodPost, "/api/v1/detections", `{"detections":[{"class_index":0,"confidence":0.9,"bbox":[0,0,1,1]}]}`)

	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `freshness_detections_total{outcome="accepted"} 1`)

	rec = do(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","entries":1}`, rec.Body.String())
}

func TestStartShutdown(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubStore{})

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	require.Eventually(t, func() bool { return s.Echo.ListenerAddr() != nil },
		5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), s.Settings.ShutdownTimeout)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-done)
}
