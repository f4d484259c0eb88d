package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reelpipe/internal/config"
	"reelpipe/internal/httpretry"
	"reelpipe/internal/logging"
	"reelpipe/internal/textutil"
)

const listFields = "files(id, name, mimeType, createdTime, size)"

// File is a source item in the watched folder.
type File struct {
	ID          string
	Name        string
	MimeType    string
	CreatedTime time.Time
	Size        int64
}

// Client lists and downloads files from one Drive folder.
type Client struct {
	folderID     string
	baseURL      string
	pageSize     int
	extensions   map[string]struct{}
	downloadsDir string
	tokens       *tokenSource
	http         *httpretry.Client
	logger       *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTP overrides the retrying HTTP client used for API and token calls.
func WithHTTP(client *httpretry.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client from configuration. Credentials are parsed
// eagerly so a broken key surfaces at startup.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if strings.TrimSpace(cfg.Drive.FolderID) == "" {
		return nil, errors.New("drive folder id not configured")
	}
	client := &Client{
		folderID:     cfg.Drive.FolderID,
		baseURL:      strings.TrimRight(cfg.Drive.BaseURL, "/"),
		pageSize:     cfg.Drive.PageSize,
		extensions:   make(map[string]struct{}, len(cfg.Drive.Extensions)),
		downloadsDir: cfg.DownloadsDir(),
		http:         httpretry.New(httpretry.WithTimeout(10 * time.Minute)),
		logger:       logging.NewNop(),
	}
	for _, ext := range cfg.Drive.Extensions {
		client.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, opt := range opts {
		opt(client)
	}

	account, err := LoadServiceAccount(cfg.Drive.ServiceAccountJSON, cfg.Drive.ServiceAccountFile)
	if err != nil {
		return nil, err
	}
	client.tokens, err = newTokenSource(account, cfg.Drive.TokenURL, client.http)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Supported reports whether name has one of the configured video extensions.
func (c *Client) Supported(name string) bool {
	_, ok := c.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ListNewItems returns supported files in the folder, newest first. Callers
// filter out items that already have a job.
func (c *Client) ListNewItems(ctx context.Context) ([]File, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("drive auth: %w", err)
	}
	query := url.Values{
		"q":        {fmt.Sprintf("'%s' in parents and trashed=false", c.folderID)},
		"fields":   {listFields},
		"orderBy":  {"createdTime desc"},
		"pageSize": {strconv.Itoa(c.pageSize)},
	}
	endpoint := c.baseURL + "/files?" + query.Encode()
	resp, err := c.http.Do(ctx, "drive list", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Files []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			MimeType    string `json:"mimeType"`
			CreatedTime string `json:"createdTime"`
			Size        string `json:"size"`
		} `json:"files"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}

	files := make([]File, 0, len(payload.Files))
	for _, entry := range payload.Files {
		if entry.ID == "" || !c.Supported(entry.Name) {
			continue
		}
		file := File{ID: entry.ID, Name: entry.Name, MimeType: entry.MimeType}
		if created, err := time.Parse(time.RFC3339, entry.CreatedTime); err == nil {
			file.CreatedTime = created
		}
		if size, err := strconv.ParseInt(entry.Size, 10, 64); err == nil {
			file.Size = size
		}
		files = append(files, file)
	}
	c.logger.Debug("drive folder listed",
		logging.Int("listed", len(payload.Files)),
		logging.Int("supported", len(files)),
	)
	return files, nil
}

// Download streams the file's content to localName in the downloads
// directory and returns the local path. An existing file at the destination
// is replaced.
func (c *Client) Download(ctx context.Context, fileID, localName string) (string, error) {
	localName = textutil.SanitizeFileName(localName)
	if localName == "" {
		localName = fileID
	}
	if err := os.MkdirAll(c.downloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}
	dest := filepath.Join(c.downloadsDir, localName)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("drive auth: %w", err)
	}
	endpoint := fmt.Sprintf("%s/files/%s?alt=media", c.baseURL, url.PathEscape(fileID))
	resp, err := c.http.Open(ctx, "drive download", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(c.downloadsDir, "."+localName+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	written, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		if copyErr != nil {
			return "", fmt.Errorf("write download: %w", copyErr)
		}
		return "", fmt.Errorf("close download: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("finalize download: %w", err)
	}

	c.logger.Info("source downloaded",
		logging.String(logging.FieldEventType, "source_downloaded"),
		logging.String("file_id", fileID),
		logging.String("path", dest),
		logging.Int64("bytes", written),
	)
	return dest, nil
}
