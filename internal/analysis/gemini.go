package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reelpipe/internal/httpretry"
	"reelpipe/internal/logging"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-1.5-flash"
	defaultPollInterval  = 3 * time.Second
	videoMimeType        = "video/mp4"
	generateTemperature  = 0.3

	fileStateProcessing = "PROCESSING"
	fileStateFailed     = "FAILED"
)

// GeminiConfig captures the runtime settings for the Gemini API.
type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
}

// GeminiClient analyzes videos with the Gemini Files and generateContent APIs.
type GeminiClient struct {
	cfg    GeminiConfig
	http   *httpretry.Client
	logger *slog.Logger
}

// GeminiOption customizes the client.
type GeminiOption func(*GeminiClient)

// WithHTTP overrides the retrying HTTP client.
func WithHTTP(client *httpretry.Client) GeminiOption {
	return func(c *GeminiClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) GeminiOption {
	return func(c *GeminiClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewGeminiClient constructs a client using the supplied configuration.
func NewGeminiClient(cfg GeminiConfig, opts ...GeminiOption) *GeminiClient {
	client := &GeminiClient{
		cfg: GeminiConfig{
			APIKey:       strings.TrimSpace(cfg.APIKey),
			BaseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:        strings.TrimSpace(cfg.Model),
			PollInterval: cfg.PollInterval,
		},
		http:   httpretry.New(httpretry.WithTimeout(10 * time.Minute)),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultGeminiBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultGeminiModel
	}
	if client.cfg.PollInterval <= 0 {
		client.cfg.PollInterval = defaultPollInterval
	}
	return client
}

type geminiFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	State    string `json:"state"`
}

type uploadResponse struct {
	File geminiFile `json:"file"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	FileData *fileData `json:"file_data,omitempty"`
	Text     string    `json:"text,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"response_mime_type"`
	Temperature      float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Analyze uploads the video, waits for Gemini to process it, requests the
// structured analysis, and deletes the uploaded file.
func (c *GeminiClient) Analyze(ctx context.Context, localPath string) (Result, error) {
	if c.cfg.APIKey == "" {
		return Result{}, errors.New("gemini api key not configured")
	}
	file, err := c.upload(ctx, localPath)
	if err != nil {
		return Result{}, err
	}
	defer c.deleteFile(file.Name)

	file, err = c.waitActive(ctx, file)
	if err != nil {
		return Result{}, err
	}

	c.logger.Info("requesting video analysis",
		logging.String(logging.FieldEventType, "analysis_request"),
		logging.String("model", c.cfg.Model),
		logging.String("file", file.Name),
	)
	text, err := c.generate(ctx, file)
	if err != nil {
		return Result{}, err
	}
	c.logger.Debug("analysis response received", logging.Int("chars", len(text)))

	result, err := DecodePayload(text)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (c *GeminiClient) upload(ctx context.Context, localPath string) (geminiFile, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return geminiFile{}, fmt.Errorf("stat video: %w", err)
	}
	meta, err := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": filepath.Base(localPath)},
	})
	if err != nil {
		return geminiFile{}, fmt.Errorf("encode upload metadata: %w", err)
	}

	start, err := c.http.Do(ctx, "gemini upload start", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload/v1beta/files", bytes.NewReader(meta))
		if err != nil {
			return nil, err
		}
		c.authorize(req)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Upload-Protocol", "resumable")
		req.Header.Set("X-Goog-Upload-Command", "start")
		req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(info.Size(), 10))
		req.Header.Set("X-Goog-Upload-Header-Content-Type", videoMimeType)
		return req, nil
	})
	if err != nil {
		return geminiFile{}, err
	}
	uploadURL := strings.TrimSpace(start.Header.Get("X-Goog-Upload-URL"))
	if uploadURL == "" {
		return geminiFile{}, errors.New("gemini upload start: missing upload url")
	}

	c.logger.Info("uploading video for analysis",
		logging.String(logging.FieldEventType, "analysis_upload"),
		logging.String("path", localPath),
		logging.Int64("bytes", info.Size()),
	)
	resp, err := c.http.Do(ctx, "gemini upload", func(ctx context.Context) (*http.Request, error) {
		f, err := os.Open(localPath)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
		if err != nil {
			f.Close()
			return nil, err
		}
		req.ContentLength = info.Size()
		req.Header.Set("X-Goog-Upload-Offset", "0")
		req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
		return req, nil
	})
	if err != nil {
		return geminiFile{}, err
	}
	var uploaded uploadResponse
	if err := json.Unmarshal(resp.Body, &uploaded); err != nil {
		return geminiFile{}, fmt.Errorf("decode upload response: %w", err)
	}
	if uploaded.File.Name == "" {
		return geminiFile{}, errors.New("gemini upload: response missing file name")
	}
	return uploaded.File, nil
}

func (c *GeminiClient) waitActive(ctx context.Context, file geminiFile) (geminiFile, error) {
	for file.State == fileStateProcessing {
		c.logger.Debug("waiting for gemini file processing", logging.String("file", file.Name))
		timer := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return geminiFile{}, ctx.Err()
		case <-timer.C:
		}
		next, err := c.getFile(ctx, file.Name)
		if err != nil {
			return geminiFile{}, err
		}
		file = next
	}
	if file.State == fileStateFailed {
		return geminiFile{}, fmt.Errorf("gemini file processing failed for %s", file.Name)
	}
	return file, nil
}

func (c *GeminiClient) getFile(ctx context.Context, name string) (geminiFile, error) {
	resp, err := c.http.Do(ctx, "gemini get file", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1beta/"+name, nil)
		if err != nil {
			return nil, err
		}
		c.authorize(req)
		return req, nil
	})
	if err != nil {
		return geminiFile{}, err
	}
	var file geminiFile
	if err := json.Unmarshal(resp.Body, &file); err != nil {
		return geminiFile{}, fmt.Errorf("decode file status: %w", err)
	}
	return file, nil
}

func (c *GeminiClient) generate(ctx context.Context, file geminiFile) (string, error) {
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = videoMimeType
	}
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{
			{FileData: &fileData{MimeType: mimeType, FileURI: file.URI}},
			{Text: Prompt},
		}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			Temperature:      generateTemperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	resp, err := c.http.Do(ctx, "gemini generate", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		c.authorize(req)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	var decoded generateResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("gemini generate: no candidates (payload snippet: %s)", snippet(string(resp.Body)))
	}
	var text strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", fmt.Errorf("gemini generate: empty content (finish reason %q)", decoded.Candidates[0].FinishReason)
	}
	return out, nil
}

// deleteFile removes the uploaded file. Failures are logged and ignored.
func (c *GeminiClient) deleteFile(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := c.http.Do(ctx, "gemini delete file", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.BaseURL+"/v1beta/"+name, nil)
		if err != nil {
			return nil, err
		}
		c.authorize(req)
		return req, nil
	})
	if err != nil {
		c.logger.Warn("gemini file cleanup failed",
			logging.String("file", name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "analysis_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "uploaded file expires on its own after 48 hours"),
			logging.String("impact", "remote storage holds the file until expiry"),
		)
	}
}

func (c *GeminiClient) authorize(req *http.Request) {
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
}
