package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/recap/internal/chunker"
	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/llm"
	"github.com/dgallion1/recap/internal/output"
	"github.com/dgallion1/recap/internal/summarize"
)

const placeholder = "This is a fixed-length placeholder summary of the supplied text."

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// fakeBackend serves /v1/chat/completions, answering with reply(system, user).
func fakeBackend(t *testing.T, calls *atomic.Int32, reply func(system, user string) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var system, user string
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				system = m.Content
			case "user":
				user = m.Content
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply(system, user)},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// synthDocument builds n characters of prose in paragraphs.
func synthDocument(n int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		fmt.Fprintf(&sb, "Sentence %d moves the story along a little further. ", i)
		if i%8 == 7 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()[:n]
}

func runConfig(baseURL string, contextWindow, detail int, keep bool) config.RunConfig {
	return config.RunConfig{
		ContextWindow:    contextWindow,
		Detail:           detail,
		KeepIntermediate: keep,
		BaseURL:          baseURL,
		Model:            "test-model",
		Timeout:          5 * time.Second,
		Concurrency:      2,
		MaxRetries:       0,
		Polish:           true,
	}
}

func runAndWrite(t *testing.T, cfg config.RunConfig, doc summarize.Document) (*Result, []os.DirEntry, string, error) {
	t.Helper()
	client := llm.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	defer client.Close()

	res, runErr := NewRunner(client, cfg, summarize.DefaultPrompts(), testLogger()).Run(context.Background(), doc)
	dir := t.TempDir()
	if _, err := output.Write(dir, res.Plan); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return res, entries, dir, runErr
}

func TestRun_FullSummaryOnly(t *testing.T) {
	srv := fakeBackend(t, nil, func(system, user string) string { return placeholder })
	doc := summarize.Document{Name: "story.txt", Text: synthDocument(50_000)}

	_, entries, dir, err := runAndWrite(t, runConfig(srv.URL+"/v1", 32000, 5, false), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "Full_Summary_story.txt" {
		t.Fatalf("expected only Full_Summary_story.txt, got %v", entries)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "Full_Summary_story.txt"))
	if strings.TrimSpace(string(data)) == "" {
		t.Error("expected non-empty full summary")
	}
}

func TestRun_AllArtifacts(t *testing.T) {
	srv := fakeBackend(t, nil, func(system, user string) string {
		if strings.Contains(system, "shorter version") {
			return "A short summary."
		}
		return placeholder
	})
	doc := summarize.Document{Name: "story.txt", Text: synthDocument(50_000)}

	_, entries, dir, err := runAndWrite(t, runConfig(srv.URL, 32000, 2, true), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 files, got %v", entries)
	}
	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	full := read("Full_Summary_story.txt")
	short := read("Summary_story.txt")
	chunks := read("chunk_summaries_story.txt")

	if len(short) >= len(full) {
		t.Errorf("expected summary (%d chars) shorter than full summary (%d chars)", len(short), len(full))
	}
	if !strings.HasPrefix(chunks, "Chunk summaries for story.txt") || !strings.Contains(chunks, "--- Chunk 1 ---") {
		t.Errorf("unexpected chunk summaries file: %q", chunks)
	}
}

func TestRun_UnreachableBackendWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	doc := summarize.Document{Name: "story.txt", Text: synthDocument(50_000)}
	res, entries, _, err := runAndWrite(t, runConfig(url, 32000, 5, false), doc)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, summarize.ErrAllChunksFailed) || !errors.Is(err, llm.ErrBackendUnreachable) {
		t.Errorf("expected all chunks to fail as unreachable, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files, got %v", entries)
	}
	if len(res.Plan.Warnings) == 0 {
		t.Error("expected a warning about the missing summary")
	}
}

func TestRun_MultipleChunks(t *testing.T) {
	var calls atomic.Int32
	srv := fakeBackend(t, &calls, func(system, user string) string { return placeholder })
	doc := summarize.Document{Name: "story.txt", Text: synthDocument(50_000)}

	cfg := runConfig(srv.URL, 2000, 5, true)
	res, _, _, err := runAndWrite(t, cfg, doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := len(chunker.Split(doc.Text, cfg.ChunkBudget()))
	if res.Chunks != want || want < 2 {
		t.Errorf("expected %d chunks (at least 2), got %d", want, res.Chunks)
	}
	// One call per chunk plus the polish pass.
	if int(calls.Load()) != want+1 {
		t.Errorf("expected %d calls, got %d", want+1, calls.Load())
	}
	chunks, ok := res.Plan.Get(output.KindChunks)
	if !ok || strings.Count(chunks.Content, "--- Chunk ") != want {
		t.Errorf("expected %d chunk blocks, got %q", want, chunks.Content)
	}
}

func TestRun_NonConvergenceKeepsChunkSummaries(t *testing.T) {
	srv := fakeBackend(t, nil, func(system, user string) string { return user })
	doc := summarize.Document{Name: "story.txt", Text: strings.Repeat("word ", 1600)}

	res, entries, _, err := runAndWrite(t, runConfig(srv.URL, 200, 5, true), doc)
	if !errors.Is(err, summarize.ErrReductionDidNotConverge) {
		t.Fatalf("expected ErrReductionDidNotConverge, got %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "chunk_summaries_story.txt" {
		t.Errorf("expected only chunk summaries, got %v", entries)
	}
	if _, ok := res.Plan.Get(output.KindFull); ok {
		t.Error("expected no full summary")
	}
}

func TestRun_EmptyDocument(t *testing.T) {
	srv := fakeBackend(t, nil, func(system, user string) string {
		t.Error("unexpected backend call")
		return ""
	})
	res, entries, _, err := runAndWrite(t, runConfig(srv.URL, 32000, 5, false), summarize.Document{Name: "empty.txt"})
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if len(entries) != 0 || res.Chunks != 0 {
		t.Errorf("expected nothing produced, got %v", entries)
	}
}

type levelRecorder struct {
	levels atomic.Int32
	chunks atomic.Int32
}

func (r *levelRecorder) LevelStarted(level, chunks int) { r.levels.Add(1) }
func (r *levelRecorder) ChunkDone(level, ordinal int, err error) {
	r.chunks.Add(1)
}

func TestRun_NotifiesObserver(t *testing.T) {
	srv := fakeBackend(t, nil, func(system, user string) string { return placeholder })
	cfg := runConfig(srv.URL, 2000, 5, false)
	client := llm.NewClient(cfg.BaseURL, "", cfg.Model, cfg.Timeout)

	rec := &levelRecorder{}
	runner := NewRunner(client, cfg, summarize.DefaultPrompts(), testLogger())
	runner.Observer = rec
	res, err := runner.Run(context.Background(), summarize.Document{Name: "s.txt", Text: synthDocument(20_000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.levels.Load() != 1 || int(rec.chunks.Load()) != res.Chunks {
		t.Errorf("expected 1 level and %d chunks, got %d and %d", res.Chunks, rec.levels.Load(), rec.chunks.Load())
	}
}
