package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Validate ensures the configuration is usable. Missing publish destinations
// are deliberately not checked here; the publish step reports them per job.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

// ValidateForServe checks the credentials a running daemon needs to scan and
// analyze new sources.
func (c *Config) ValidateForServe() error {
	if c.Drive.FolderID == "" {
		return fmt.Errorf("drive.folder_id is required. Set GOOGLE_DRIVE_FOLDER_ID env var or edit %s (create with 'reelpipe config init')", displayConfigPath())
	}
	if strings.TrimSpace(c.Drive.ServiceAccountJSON) == "" {
		if _, err := os.Stat(c.Drive.ServiceAccountFile); err != nil {
			return fmt.Errorf("drive service account: set drive.service_account_json or provide %s: %w", c.Drive.ServiceAccountFile, err)
		}
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s", displayConfigPath())
	}
	return nil
}

func (c *Config) validatePipeline() error {
	checks := []struct {
		name  string
		value int
	}{
		{"pipeline.poll_interval_seconds", c.Pipeline.PollIntervalSeconds},
		{"pipeline.max_output_size_mb", c.Pipeline.MaxOutputSizeMB},
		{"pipeline.download_timeout_seconds", c.Pipeline.DownloadTimeoutSeconds},
		{"pipeline.analyze_timeout_seconds", c.Pipeline.AnalyzeTimeoutSeconds},
		{"pipeline.render_timeout_seconds", c.Pipeline.RenderTimeoutSeconds},
		{"pipeline.probe_timeout_seconds", c.Pipeline.ProbeTimeoutSeconds},
		{"pipeline.publish_timeout_seconds", c.Pipeline.PublishTimeoutSeconds},
	}
	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("%s must be positive", check.name)
		}
	}
	if c.Pipeline.MinFreeGiB < 0 {
		return errors.New("pipeline.min_free_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func displayConfigPath() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return "~/.config/reelpipe/config.toml"
	}
	return path
}
