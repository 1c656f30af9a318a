package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/llm"
	"github.com/dgallion1/recap/internal/pipeline"
	"github.com/dgallion1/recap/internal/summarize"
)

// completionBackend answers every chat completion with a short summary, and
// with a shorter one for compression requests.
func completionBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		reply := "A faithful summary of the supplied document text."
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "shorter version") {
			reply = "Short."
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	backend := completionBackend(t)
	cfg := config.Config{
		ServerAPIKey:   apiKey,
		BaseURL:        backend.URL,
		Model:          "test-model",
		Timeout:        5 * time.Second,
		Concurrency:    2,
		ContextWindow:  config.DefaultContextWindow,
		WorkerCount:    1,
		MaxQueueSize:   10,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := llm.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	orch := pipeline.NewOrchestrator(cfg, client, summarize.DefaultPrompts(), log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, client, log, cfg)
}

func multipartBody(t *testing.T, fields map[string]string, fileField string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(fileField, name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, s *Server, fields map[string]string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fields, "file", files)
	req := httptest.NewRequest(http.MethodPost, "/api/summarize", body)
	req.Header.Set("Content-Type", ct)
	return do(t, s, req)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "secret")
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, "secret")

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Basic secret", http.StatusUnauthorized},
		{"Bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if rec := do(t, s, req); rec.Code != tc.want {
			t.Errorf("Authorization %q: expected %d, got %d", tc.header, tc.want, rec.Code)
		}
	}
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 without a server key, got %d", rec.Code)
	}
}

func TestSummarize_EndToEnd(t *testing.T) {
	s := newTestServer(t, "")
	text := strings.Repeat("The ship left the harbor at dawn. ", 200)

	rec := upload(t, s, map[string]string{"summary": "2", "keep": "true"}, map[string]string{"story.txt": text})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		PollURL string `json:"poll_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Status != "queued" || accepted.PollURL != "/api/summarize/"+accepted.JobID+"/status" {
		t.Errorf("unexpected response %+v", accepted)
	}

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, accepted.PollURL, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatal(err)
		}
		if snap.Status == pipeline.StatusCompleted || snap.Status == pipeline.StatusFailed || snap.Status == pipeline.StatusPartial {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish: %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s: %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Detail != 2 || !snap.Keep || len(snap.Artifacts) != 3 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	base := "/api/summarize/" + accepted.JobID + "/artifacts/"
	full := do(t, s, httptest.NewRequest(http.MethodGet, base+"Full_Summary_story.txt", nil))
	short := do(t, s, httptest.NewRequest(http.MethodGet, base+"Summary_story.txt", nil))
	if full.Code != http.StatusOK || short.Code != http.StatusOK {
		t.Fatalf("expected artifacts, got %d and %d", full.Code, short.Code)
	}
	if !strings.HasPrefix(full.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("unexpected content type %q", full.Header().Get("Content-Type"))
	}
	if short.Body.Len() >= full.Body.Len() {
		t.Errorf("expected summary shorter than full summary: %q vs %q", short.Body.String(), full.Body.String())
	}

	if rec := do(t, s, httptest.NewRequest(http.MethodGet, base+"nope.txt", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("missing artifact: expected 404, got %d", rec.Code)
	}
}

func TestSummarize_Validation(t *testing.T) {
	s := newTestServer(t, "")
	story := map[string]string{"story.txt": "Once upon a time."}

	cases := []struct {
		name   string
		fields map[string]string
		files  map[string]string
	}{
		{"level too high", map[string]string{"summary": "9"}, story},
		{"level not a number", map[string]string{"summary": "max"}, story},
		{"bad keep", map[string]string{"keep": "maybe"}, story},
		{"context too small", map[string]string{"context": "10"}, story},
		{"missing file", nil, nil},
		{"binary file", nil, map[string]string{"blob.bin": "\x00\x01\x02\xff\xfe\x00"}},
	}
	for _, tc := range cases {
		if rec := upload(t, s, tc.fields, tc.files); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestBatchSummarize(t *testing.T) {
	s := newTestServer(t, "")
	body, ct := multipartBody(t, map[string]string{"summary": "5"}, "files", map[string]string{
		"a.txt":    "First document.",
		"b.md":     "# Second\n\nDocument.",
		"blob.bin": "\x00\x01\x02\xff",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/summarize/batch", body)
	req.Header.Set("Content-Type", ct)

	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 3 {
		t.Fatalf("expected 3 results, got %v", resp.Jobs)
	}
	var queued, rejected int
	for _, j := range resp.Jobs {
		if _, ok := j["job_id"]; ok {
			queued++
		}
		if _, ok := j["error"]; ok {
			rejected++
		}
	}
	if queued != 2 || rejected != 1 {
		t.Errorf("expected 2 queued and 1 rejected, got %d and %d", queued, rejected)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/summarize/does-not-exist/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestLLMStats(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Model string            `json:"model"`
		Stats llm.StatsSnapshot `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", resp.Model)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"story.txt":          "story.txt",
		"../../etc/passwd":   "passwd",
		`C:\docs\report.pdf`: `C:_docs_report.pdf`,
		"":                   "unnamed",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
