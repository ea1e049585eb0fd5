package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldside/tagd/internal/clips"
	"github.com/fieldside/tagd/internal/db"
	"github.com/fieldside/tagd/internal/events"
	"github.com/fieldside/tagd/internal/export"
)

type fakeExtractor struct {
	gotSource string
	gotPre    float64
	gotPost   float64
	gotCount  int
	err       error
}

func (f *fakeExtractor) Extract(ctx context.Context, source string, pre, post float64, evs []*events.Event, outDir string) ([]string, error) {
	f.gotSource = source
	f.gotPre = pre
	f.gotPost = post
	f.gotCount = len(evs)
	if f.err != nil {
		return nil, f.err
	}
	paths := make([]string, len(evs))
	for i := range evs {
		paths[i] = filepath.Join(outDir, fmt.Sprintf("%04d.mp4", i))
	}
	return paths, nil
}

func newTestRouter(t *testing.T, extractor clips.ExtractService) http.Handler {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.New(filepath.Join(tmpDir, "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := events.NewService(events.NewRepository(database.Conn()), logger)

	return NewRouter(ServerConfig{
		Version:      "test",
		CORSOrigin:   "*",
		ClipsDir:     filepath.Join(tmpDir, "clips"),
		UploadsDir:   filepath.Join(tmpDir, "uploads"),
		EventService: svc,
		Extractor:    extractor,
		ExportCSV:    export.ToCSV,
		ExportXLSX:   export.ToXLSX,
		Logger:       logger,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body error = %v", err)
		}
		reader = bytes.NewReader(data)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	h.ServeHTTP(rr, req)
	return rr
}

func createEvent(t *testing.T, h http.Handler, ts float64, label string) EventResponse {
	t.Helper()

	rr := doJSON(t, h, http.MethodPost, "/events", map[string]any{"timestamp_s": ts, "label": label})
	if rr.Code != http.StatusOK {
		t.Fatalf("create event status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp EventResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response error = %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, nil)
	createEvent(t, h, 5, "Fall")

	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if resp.Status != "ok" || resp.Version != "test" || resp.Events != 1 || resp.Time == 0 {
		t.Errorf("health = %+v", resp)
	}
}

func TestCreateEvent_Validation(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := doJSON(t, h, http.MethodPost, "/events", map[string]any{"label": "Fall"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing timestamp status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/events", map[string]any{"timestamp_s": 5})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing label status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/events", map[string]any{"timestamp_s": -1, "label": "Fall"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("negative timestamp status = %d, want 400", rr.Code)
	}
}

func TestListEvents_Ordering(t *testing.T) {
	h := newTestRouter(t, nil)
	createEvent(t, h, 10, "Tackle")
	createEvent(t, h, 5, "Fall")

	rr := doJSON(t, h, http.MethodGet, "/events", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var list []EventResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(list) != 2 || list[0].Label != "Fall" || list[1].Label != "Tackle" {
		t.Errorf("list = %+v, want [Fall, Tackle]", list)
	}
}

func TestListEvents_LabelFilter(t *testing.T) {
	h := newTestRouter(t, nil)
	createEvent(t, h, 1, "Fall")
	createEvent(t, h, 2, "Tackle")

	rr := doJSON(t, h, http.MethodGet, "/events?label=Tackle", nil)

	var list []EventResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(list) != 1 || list[0].Label != "Tackle" {
		t.Errorf("filtered list = %+v", list)
	}
}

func TestPatchEvent(t *testing.T) {
	h := newTestRouter(t, nil)
	created := createEvent(t, h, 7, "Fall")

	rr := doJSON(t, h, http.MethodPatch, "/events/"+created.ID,
		map[string]any{"severity": 4, "unknown_field": "ignored"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp EventResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if resp.Severity != 4 || resp.Label != "Fall" || resp.TimestampS != 7 {
		t.Errorf("patched event = %+v", resp)
	}
	if resp.CreatedAt != created.CreatedAt {
		t.Errorf("created_at changed: %s -> %s", created.CreatedAt, resp.CreatedAt)
	}
}

func TestPatchEvent_NotFound(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := doJSON(t, h, http.MethodPatch, "/events/nope", map[string]any{"severity": 1})
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestDeleteEvent_AlwaysOK(t *testing.T) {
	h := newTestRouter(t, nil)
	created := createEvent(t, h, 1, "Fall")

	for _, id := range []string{created.ID, created.ID, "never-existed"} {
		rr := doJSON(t, h, http.MethodDelete, "/events/"+id, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("delete %s status = %d, want 200", id, rr.Code)
		}
		var resp DeleteResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if !resp.OK {
			t.Errorf("delete %s ok = false", id)
		}
	}
}

func TestExportCSV(t *testing.T) {
	h := newTestRouter(t, nil)
	createEvent(t, h, 5, "Fall")

	rr := doJSON(t, h, http.MethodGet, "/export/csv", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "id,timestamp_s,time_hms,label") {
		t.Errorf("csv body = %q", rr.Body.String())
	}
}

func TestExportXLSX(t *testing.T) {
	h := newTestRouter(t, nil)
	createEvent(t, h, 5, "Fall")

	rr := doJSON(t, h, http.MethodGet, "/export/xlsx", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "events.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rr.Body.Len() == 0 {
		t.Error("empty workbook body")
	}
}

func TestExtract(t *testing.T) {
	fake := &fakeExtractor{}
	h := newTestRouter(t, fake)
	createEvent(t, h, 30, "Injury")

	rr := doJSON(t, h, http.MethodPost, "/extract", map[string]any{"source": "match.mp4"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp ExtractResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if resp.OutDir == "" || len(resp.Clips) != 1 {
		t.Errorf("extract response = %+v", resp)
	}

	// pre/post default to 2 seconds each when omitted
	if fake.gotSource != "match.mp4" || fake.gotPre != 2 || fake.gotPost != 2 || fake.gotCount != 1 {
		t.Errorf("extractor called with source=%q pre=%v post=%v count=%d",
			fake.gotSource, fake.gotPre, fake.gotPost, fake.gotCount)
	}
}

func TestExtract_Validation(t *testing.T) {
	h := newTestRouter(t, &fakeExtractor{})

	rr := doJSON(t, h, http.MethodPost, "/extract", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing source status = %d, want 400", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/extract", map[string]any{"source": "v.mp4", "pre": -1})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("negative pre status = %d, want 400", rr.Code)
	}
}

func TestExtract_FailureSurfacesDetail(t *testing.T) {
	fake := &fakeExtractor{err: &clips.ExtractionError{
		Failures: []clips.ClipFailure{{Index: 1, Start: 18, Duration: 4, Err: errors.New("boom")}},
		Total:    3,
	}}
	h := newTestRouter(t, fake)
	createEvent(t, h, 20, "Fall")

	rr := doJSON(t, h, http.MethodPost, "/extract", map[string]any{"source": "v.mp4"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !strings.Contains(resp.Error, "clip 1") || !strings.Contains(resp.Error, "boom") {
		t.Errorf("error detail = %q", resp.Error)
	}
}

func TestExtract_NoFFmpeg(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := doJSON(t, h, http.MethodPost, "/extract", map[string]any{"source": "v.mp4"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if resp.Code != "FFMPEG_UNAVAILABLE" {
		t.Errorf("code = %q, want FFMPEG_UNAVAILABLE", resp.Code)
	}
}

func TestUpload(t *testing.T) {
	h := newTestRouter(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", "match.mp4")
	if err != nil {
		t.Fatalf("create form file error = %v", err)
	}
	part.Write([]byte("fake video bytes"))
	mw.Close()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp UploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if resp.File == "" || !strings.HasSuffix(resp.File, ".mp4") {
		t.Errorf("upload file = %q", resp.File)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := doJSON(t, h, http.MethodPost, "/upload", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestRouter(t, nil)

	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
