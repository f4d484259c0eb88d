package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Drive contains configuration for the watched Google Drive folder.
type Drive struct {
	FolderID           string   `toml:"folder_id"`
	ServiceAccountFile string   `toml:"service_account_file"`
	ServiceAccountJSON string   `toml:"service_account_json"`
	BaseURL            string   `toml:"base_url"`
	TokenURL           string   `toml:"token_url"`
	PageSize           int      `toml:"page_size"`
	Extensions         []string `toml:"extensions"`
}

// Gemini contains configuration for the video analysis model.
type Gemini struct {
	APIKey              string `toml:"api_key"`
	Model               string `toml:"model"`
	BaseURL             string `toml:"base_url"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// Postiz contains configuration for the social publishing API.
type Postiz struct {
	APIURL                 string `toml:"api_url"`
	APIKey                 string `toml:"api_key"`
	InstagramIntegrationID string `toml:"instagram_integration_id"`
	FacebookIntegrationID  string `toml:"facebook_integration_id"`
	YouTubeIntegrationID   string `toml:"youtube_integration_id"`
}

// Pipeline contains scheduling, size budget, and per-step timeouts.
type Pipeline struct {
	PollIntervalSeconds    int `toml:"poll_interval_seconds"`
	MaxOutputSizeMB        int `toml:"max_output_size_mb"`
	DownloadTimeoutSeconds int `toml:"download_timeout_seconds"`
	AnalyzeTimeoutSeconds  int `toml:"analyze_timeout_seconds"`
	RenderTimeoutSeconds   int `toml:"render_timeout_seconds"`
	ProbeTimeoutSeconds    int `toml:"probe_timeout_seconds"`
	PublishTimeoutSeconds  int `toml:"publish_timeout_seconds"`
	MinFreeGiB             int `toml:"min_free_gib"`
}

// Render contains media tool settings.
type Render struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	FontFile      string `toml:"font_file"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobDone        bool   `toml:"job_done"`
	JobFailed      bool   `toml:"job_failed"`
	ScanSummary    bool   `toml:"scan_summary"`
}

// Events contains configuration for the job event exchange.
type Events struct {
	AMQPURL  string `toml:"amqp_url"`
	Exchange string `toml:"exchange"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelpipe.
//
// Configuration sections by subsystem:
//   - Paths: data directory, API bind address, and optional API token
//   - Drive: watched source folder and service account credentials
//   - Gemini: video analysis model
//   - Postiz: publishing destinations
//   - Pipeline: scan interval, output size budget, and step timeouts
//   - Render: ffmpeg/ffprobe binaries and overlay font
//   - Notifications: ntfy push notification settings
//   - Events: optional AMQP job event exchange
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Drive         Drive         `toml:"drive"`
	Gemini        Gemini        `toml:"gemini"`
	Postiz        Postiz        `toml:"postiz"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Render        Render        `toml:"render"`
	Notifications Notifications `toml:"notifications"`
	Events        Events        `toml:"events"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelpipe/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in
// the working directory is loaded first without overriding variables that are
// already set. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// DownloadsDir is where source media is downloaded.
func (c *Config) DownloadsDir() string { return filepath.Join(c.Paths.DataDir, "downloads") }

// OutputDir is where rendered media is written.
func (c *Config) OutputDir() string { return filepath.Join(c.Paths.DataDir, "output") }

// CaptionsDir is where generated subtitle files are written.
func (c *Config) CaptionsDir() string { return filepath.Join(c.Paths.DataDir, "captions") }

// LogDir is where the daemon log file lives.
func (c *Config) LogDir() string { return filepath.Join(c.Paths.DataDir, "logs") }

// DatabasePath is the job store location.
func (c *Config) DatabasePath() string { return filepath.Join(c.Paths.DataDir, "pipeline.db") }

// LockPath is the single-instance daemon lock file.
func (c *Config) LockPath() string { return filepath.Join(c.Paths.DataDir, "reelpipe.lock") }

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.DownloadsDir(), c.OutputDir(), c.CaptionsDir(), c.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the scheduler tick interval.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Pipeline.PollIntervalSeconds)
}

// GeminiPollInterval returns how often upload processing state is polled.
func (c *Config) GeminiPollInterval() time.Duration {
	return seconds(c.Gemini.PollIntervalSeconds)
}

// StepTimeouts groups the upper bounds applied to each external call.
type StepTimeouts struct {
	Download time.Duration
	Analyze  time.Duration
	Render   time.Duration
	Probe    time.Duration
	Publish  time.Duration
}

// Timeouts returns the configured per-step timeouts.
func (c *Config) Timeouts() StepTimeouts {
	return StepTimeouts{
		Download: seconds(c.Pipeline.DownloadTimeoutSeconds),
		Analyze:  seconds(c.Pipeline.AnalyzeTimeoutSeconds),
		Render:   seconds(c.Pipeline.RenderTimeoutSeconds),
		Probe:    seconds(c.Pipeline.ProbeTimeoutSeconds),
		Publish:  seconds(c.Pipeline.PublishTimeoutSeconds),
	}
}

// IntegrationIDs returns the configured Postiz integrations in publish order.
func (c *Config) IntegrationIDs() []string {
	ids := make([]string, 0, 3)
	for _, id := range []string{c.Postiz.InstagramIntegrationID, c.Postiz.FacebookIntegrationID, c.Postiz.YouTubeIntegrationID} {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
