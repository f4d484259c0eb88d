package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelpipe/internal/httpretry"
)

type fakeGemini struct {
	mu         sync.Mutex
	polls      int
	finalState string
	uploaded   []byte
	deleted    bool
	generate   map[string]any
	reply      string
}

func (f *fakeGemini) handler(t *testing.T, srv **httptest.Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-Goog-Upload-Command") != "start" {
			t.Errorf("unexpected upload command %q", r.Header.Get("X-Goog-Upload-Command"))
		}
		w.Header().Set("X-Goog-Upload-URL", (*srv).URL+"/resumable/abc")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/resumable/abc", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploaded = body
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"file": map[string]string{"name": "files/abc", "uri": "https://example/files/abc", "mimeType": "video/mp4", "state": "PROCESSING"},
		})
	})
	mux.HandleFunc("/v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodDelete {
			f.deleted = true
			w.WriteHeader(http.StatusOK)
			return
		}
		f.polls++
		state := "PROCESSING"
		if f.polls >= 2 {
			state = f.finalState
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "files/abc", "uri": "https://example/files/abc", "state": state})
	})
	mux.HandleFunc("/v1beta/models/test-model:generateContent", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.generate = payload
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]string{"text": f.reply}}},
			}},
		})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeGemini) (*GeminiClient, string) {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(f.handler(t, &srv))
	t.Cleanup(srv.Close)

	video := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(video, []byte("fake-video-bytes"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	client := NewGeminiClient(GeminiConfig{
		APIKey:       "key",
		BaseURL:      srv.URL,
		Model:        "test-model",
		PollInterval: time.Millisecond,
	}, WithHTTP(httpretry.New(httpretry.WithRetryMaxAttempts(1))))
	return client, video
}

func TestGeminiAnalyze(t *testing.T) {
	f := &fakeGemini{
		finalState: "ACTIVE",
		reply:      `{"trim_start_sec": 2, "trim_end_sec": 20, "hook_text": "WAIT FOR IT", "caption_style": "bold", "transcript": [{"start": 3, "end": 4, "text": "hi"}], "suggested_caption": "Fun.", "hashtags": ["fun"], "raw_duration_sec": 30}`,
	}
	client, video := newTestClient(t, f)

	result, err := client.Analyze(context.Background(), video)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.TrimStart != 2 || result.TrimEnd != 20 || result.HookText != "WAIT FOR IT" {
		t.Fatalf("unexpected result: %+v", result)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if string(f.uploaded) != "fake-video-bytes" {
		t.Fatalf("uploaded body = %q", f.uploaded)
	}
	if f.polls != 2 {
		t.Fatalf("polls = %d, want 2", f.polls)
	}
	if !f.deleted {
		t.Fatal("expected uploaded file to be deleted")
	}
	cfg, _ := f.generate["generationConfig"].(map[string]any)
	if cfg["response_mime_type"] != "application/json" || cfg["temperature"] != 0.3 {
		t.Fatalf("generation config = %v", cfg)
	}
	encoded, _ := json.Marshal(f.generate["contents"])
	if !strings.Contains(string(encoded), "https://example/files/abc") {
		t.Fatalf("contents missing file uri: %s", encoded)
	}
}

func TestGeminiAnalyzeProcessingFailed(t *testing.T) {
	f := &fakeGemini{finalState: "FAILED"}
	client, video := newTestClient(t, f)

	_, err := client.Analyze(context.Background(), video)
	if err == nil || !strings.Contains(err.Error(), "processing failed") {
		t.Fatalf("expected processing failure, got %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.deleted {
		t.Fatal("expected cleanup after failure")
	}
}

func TestGeminiAnalyzeRequiresAPIKey(t *testing.T) {
	client := NewGeminiClient(GeminiConfig{})
	if _, err := client.Analyze(context.Background(), "/nonexistent.mp4"); err == nil {
		t.Fatal("expected error without api key")
	}
}
