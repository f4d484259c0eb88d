package drive

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"reelpipe/internal/config"
	"reelpipe/internal/httpretry"
	"reelpipe/internal/testsupport"
)

type fakeDrive struct {
	key         *rsa.PrivateKey
	tokenCalls  atomic.Int32
	lastQuery   atomic.Value
	downloadHit atomic.Int32
}

func newFakeDrive(t *testing.T) (*fakeDrive, *httptest.Server) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := &fakeDrive{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != jwtBearerGrant {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(r.Form.Get("assertion"), claims, func(*jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil || claims["scope"] != readOnlyScope || claims["iss"] != "bot@example.iam.gserviceaccount.com" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})
	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.lastQuery.Store(r.URL.Query())
		_ = json.NewEncoder(w).Encode(map[string]any{"files": []map[string]string{
			{"id": "b", "name": "second.MOV", "createdTime": "2026-03-02T10:00:00Z", "size": "2048"},
			{"id": "n", "name": "notes.txt"},
			{"id": "a", "name": "first.mp4", "createdTime": "2026-03-01T10:00:00Z"},
		}})
	})
	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.downloadHit.Add(1)
		if r.URL.Query().Get("alt") != "media" || r.PathValue("id") != "a" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("video-content"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestClient(t *testing.T, f *fakeDrive, srv *httptest.Server) (*Client, *config.Config) {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(f.key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	account, _ := json.Marshal(ServiceAccount{
		ClientEmail: "bot@example.iam.gserviceaccount.com",
		PrivateKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	})

	cfg := testsupport.NewConfig(t)
	cfg.Drive.ServiceAccountJSON = string(account)
	cfg.Drive.BaseURL = srv.URL
	cfg.Drive.TokenURL = srv.URL + "/token"

	client, err := NewClient(cfg, WithHTTP(httpretry.New(httpretry.WithRetryMaxAttempts(1))))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, cfg
}

func TestListNewItemsFiltersAndKeepsOrder(t *testing.T) {
	f, srv := newFakeDrive(t)
	client, _ := newTestClient(t, f, srv)

	files, err := client.ListNewItems(context.Background())
	if err != nil {
		t.Fatalf("ListNewItems: %v", err)
	}
	if len(files) != 2 || files[0].ID != "b" || files[1].ID != "a" {
		t.Fatalf("unexpected files: %+v", files)
	}
	if files[0].Size != 2048 || files[0].CreatedTime.IsZero() {
		t.Fatalf("metadata not parsed: %+v", files[0])
	}

	query, _ := f.lastQuery.Load().(url.Values)
	if got := query["q"]; len(got) != 1 || got[0] != "'test-folder' in parents and trashed=false" {
		t.Fatalf("q = %v", got)
	}
	if got := query["orderBy"]; len(got) != 1 || got[0] != "createdTime desc" {
		t.Fatalf("orderBy = %v", got)
	}
	if got := query["pageSize"]; len(got) != 1 || got[0] != "50" {
		t.Fatalf("pageSize = %v", got)
	}

	if _, err := client.ListNewItems(context.Background()); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if calls := f.tokenCalls.Load(); calls != 1 {
		t.Fatalf("token calls = %d, want cached token", calls)
	}
}

func TestDownloadWritesIntoDownloadsDir(t *testing.T) {
	f, srv := newFakeDrive(t)
	client, cfg := newTestClient(t, f, srv)

	path, err := client.Download(context.Background(), "a", "sub/first.mp4")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if want := filepath.Join(cfg.DownloadsDir(), "sub-first.mp4"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "video-content" {
		t.Fatalf("content = %q (%v)", data, err)
	}
	entries, _ := os.ReadDir(cfg.DownloadsDir())
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestDownloadMissingFile(t *testing.T) {
	f, srv := newFakeDrive(t)
	client, cfg := newTestClient(t, f, srv)

	_, err := client.Download(context.Background(), "zzz", "gone.mp4")
	if !httpretry.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.DownloadsDir(), "gone.mp4")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no file written, stat err = %v", statErr)
	}
}

func TestNewClientRejectsBadCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error for empty service account")
	}
	cfg.Drive.FolderID = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error for missing folder id")
	}
}

func TestLoadServiceAccountFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"client_email":"x@y","private_key":"pem"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	account, err := LoadServiceAccount("", path)
	if err != nil {
		t.Fatalf("LoadServiceAccount: %v", err)
	}
	if account.ClientEmail != "x@y" {
		t.Fatalf("client email = %q", account.ClientEmail)
	}
}
