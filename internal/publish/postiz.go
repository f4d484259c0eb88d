package publish

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
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reelpipe/internal/config"
	"reelpipe/internal/httpretry"
	"reelpipe/internal/logging"
	"reelpipe/internal/services"
)

// ErrNoDestinations is returned when no integration ids are configured.
var ErrNoDestinations = errors.New("no publish destinations configured")

// Publisher uploads a rendered video and creates a post for it.
type Publisher interface {
	Publish(ctx context.Context, renderedPath, caption string, hashtags []string) (string, error)
}

// Media identifies an uploaded media object.
type Media struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// PostizClient talks to the Postiz public API.
type PostizClient struct {
	baseURL        string
	apiKey         string
	integrationIDs []string
	http           *httpretry.Client
	logger         *slog.Logger
}

// Option customizes the client.
type Option func(*PostizClient)

// WithHTTP overrides the retrying HTTP client.
func WithHTTP(client *httpretry.Client) Option {
	return func(c *PostizClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *PostizClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewPostizClient builds a client from the postiz config section.
func NewPostizClient(cfg *config.Config, opts ...Option) *PostizClient {
	client := &PostizClient{
		http:   httpretry.New(httpretry.WithTimeout(5 * time.Minute)),
		logger: logging.NewNop(),
	}
	if cfg != nil {
		client.baseURL = strings.TrimRight(strings.TrimSpace(cfg.Postiz.APIURL), "/")
		client.apiKey = strings.TrimSpace(cfg.Postiz.APIKey)
		client.integrationIDs = cfg.IntegrationIDs()
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Publish uploads the video and creates a post. It returns the post id.
func (c *PostizClient) Publish(ctx context.Context, renderedPath, caption string, hashtags []string) (string, error) {
	if len(c.integrationIDs) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "posting", "postiz", "set at least one integration id", ErrNoDestinations)
	}
	media, err := c.UploadMedia(ctx, renderedPath)
	if err != nil {
		return "", err
	}
	return c.CreatePost(ctx, media, caption, hashtags)
}

// UploadMedia uploads the file as multipart form data.
func (c *PostizClient) UploadMedia(ctx context.Context, path string) (Media, error) {
	if _, err := os.Stat(path); err != nil {
		return Media{}, fmt.Errorf("stat media: %w", err)
	}
	resp, err := c.http.Do(ctx, "postiz upload", func(ctx context.Context) (*http.Request, error) {
		body, contentType := multipartFile(path)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/public/v1/upload", body)
		if err != nil {
			_ = body.Close()
			return nil, err
		}
		c.authorize(req)
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return Media{}, err
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return Media{}, fmt.Errorf("decode upload response: %w", err)
	}
	media := Media{
		ID:   firstString(payload, "id", "mediaId"),
		Path: firstString(payload, "path", "url"),
	}
	if nested, ok := payload["data"].(map[string]any); ok {
		if media.ID == "" {
			media.ID = firstString(nested, "id")
		}
		if media.Path == "" {
			media.Path = firstString(nested, "path")
		}
	}
	if media.ID == "" {
		return Media{}, fmt.Errorf("postiz upload response missing media id: %s", strings.TrimSpace(string(resp.Body)))
	}
	c.logger.Info("media uploaded",
		logging.String(logging.FieldEventType, "media_uploaded"),
		logging.String("media_id", media.ID),
	)
	return media, nil
}

type postRequest struct {
	Type      string     `json:"type"`
	ShortLink bool       `json:"shortLink"`
	Tags      []string   `json:"tags"`
	Posts     []postItem `json:"posts"`
}

type postItem struct {
	Integration integrationRef `json:"integration"`
	Value       []postValue    `json:"value"`
}

type integrationRef struct {
	ID string `json:"id"`
}

type postValue struct {
	Content string  `json:"content"`
	Image   []Media `json:"image"`
}

// CreatePost creates one immediate post targeting every integration.
func (c *PostizClient) CreatePost(ctx context.Context, media Media, caption string, hashtags []string) (string, error) {
	if len(c.integrationIDs) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "posting", "postiz", "set at least one integration id", ErrNoDestinations)
	}
	content := PostContent(caption, hashtags)
	request := postRequest{Type: "now", Tags: []string{}}
	for _, id := range c.integrationIDs {
		request.Posts = append(request.Posts, postItem{
			Integration: integrationRef{ID: id},
			Value:       []postValue{{Content: content, Image: []Media{media}}},
		})
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encode post: %w", err)
	}

	resp, err := c.http.Do(ctx, "postiz post", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/public/v1/posts", bytes.NewReader(body))
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

	postID := parsePostID(resp.Body)
	if postID == "" {
		return "", fmt.Errorf("postiz post response missing id: %s", strings.TrimSpace(string(resp.Body)))
	}
	c.logger.Info("post created",
		logging.String(logging.FieldEventType, "post_created"),
		logging.String("post_id", postID),
		logging.Int("platforms", len(c.integrationIDs)),
	)
	return postID, nil
}

// PostContent joins the caption and hashtags the way they appear in a post.
func PostContent(caption string, hashtags []string) string {
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, "#"+tag)
		}
	}
	return strings.TrimSpace(caption + "\n\n" + strings.Join(tags, " "))
}

func (c *PostizClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

// parsePostID accepts an object or an array of objects.
func parsePostID(body []byte) string {
	var single map[string]any
	if err := json.Unmarshal(body, &single); err == nil {
		if id := firstString(single, "id", "postId"); id != "" {
			return id
		}
		if nested, ok := single["data"].(map[string]any); ok {
			return firstString(nested, "id", "postId")
		}
		return ""
	}
	var many []map[string]any
	if err := json.Unmarshal(body, &many); err == nil && len(many) > 0 {
		return firstString(many[0], "id", "postId")
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// multipartFile streams path as the "file" field of a multipart body.
func multipartFile(path string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		err := writeFilePart(writer, path)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		_ = pw.CloseWithError(err)
	}()
	return pr, writer.FormDataContentType()
}

func writeFilePart(writer *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", "video/mp4")
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}
