package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDrive(); err != nil {
		return err
	}
	c.normalizeGemini()
	c.normalizePostiz()
	c.normalizePipeline()
	c.normalizeRender()
	c.normalizeEvents()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := lookupEnv("REELPIPE_DATA_DIR"); ok && strings.TrimSpace(c.Paths.DataDir) == defaultDataDir {
		c.Paths.DataDir = value
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	fillFromEnv(&c.Paths.APIToken, "REELPIPE_API_TOKEN")
	return nil
}

func (c *Config) normalizeDrive() error {
	c.Drive.FolderID = strings.TrimSpace(c.Drive.FolderID)
	if c.Drive.FolderID == "" {
		if value, ok := lookupEnv("GOOGLE_DRIVE_FOLDER_ID"); ok {
			c.Drive.FolderID = value
		}
	}
	if strings.TrimSpace(c.Drive.ServiceAccountJSON) == "" {
		if value, ok := lookupEnv("GOOGLE_SERVICE_ACCOUNT_JSON_CONTENT"); ok {
			c.Drive.ServiceAccountJSON = value
		}
	}
	if value, ok := lookupEnv("GOOGLE_SERVICE_ACCOUNT_JSON"); ok && c.Drive.ServiceAccountFile == defaultServiceAccountFile {
		c.Drive.ServiceAccountFile = value
	}
	if strings.TrimSpace(c.Drive.ServiceAccountFile) != "" {
		var err error
		if c.Drive.ServiceAccountFile, err = expandPath(strings.TrimSpace(c.Drive.ServiceAccountFile)); err != nil {
			return fmt.Errorf("drive.service_account_file: %w", err)
		}
	}
	c.Drive.BaseURL = strings.TrimRight(strings.TrimSpace(c.Drive.BaseURL), "/")
	if c.Drive.BaseURL == "" {
		c.Drive.BaseURL = defaultDriveBaseURL
	}
	c.Drive.TokenURL = strings.TrimSpace(c.Drive.TokenURL)
	if c.Drive.TokenURL == "" {
		c.Drive.TokenURL = defaultDriveTokenURL
	}
	if c.Drive.PageSize <= 0 {
		c.Drive.PageSize = defaultDrivePageSize
	}
	exts := make([]string, 0, len(c.Drive.Extensions))
	for _, ext := range c.Drive.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Drive.Extensions = exts
	return nil
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		if value, ok := lookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = value
		}
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	if c.Gemini.PollIntervalSeconds <= 0 {
		c.Gemini.PollIntervalSeconds = defaultGeminiPollSeconds
	}
}

func (c *Config) normalizePostiz() {
	c.Postiz.APIURL = strings.TrimSpace(c.Postiz.APIURL)
	if value, ok := lookupEnv("POSTIZ_API_URL"); ok && (c.Postiz.APIURL == "" || c.Postiz.APIURL == defaultPostizAPIURL) {
		c.Postiz.APIURL = value
	}
	c.Postiz.APIURL = strings.TrimRight(c.Postiz.APIURL, "/")
	if c.Postiz.APIURL == "" {
		c.Postiz.APIURL = defaultPostizAPIURL
	}
	fillFromEnv(&c.Postiz.APIKey, "POSTIZ_API_KEY")
	fillFromEnv(&c.Postiz.InstagramIntegrationID, "POSTIZ_INSTAGRAM_INTEGRATION_ID")
	fillFromEnv(&c.Postiz.FacebookIntegrationID, "POSTIZ_FACEBOOK_INTEGRATION_ID")
	fillFromEnv(&c.Postiz.YouTubeIntegrationID, "POSTIZ_YOUTUBE_INTEGRATION_ID")
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.PollIntervalSeconds == defaultPollIntervalSeconds {
		intFromEnv(&c.Pipeline.PollIntervalSeconds, "POLL_INTERVAL_SECONDS")
	}
	if c.Pipeline.MaxOutputSizeMB == defaultMaxOutputSizeMB {
		intFromEnv(&c.Pipeline.MaxOutputSizeMB, "MAX_OUTPUT_SIZE_MB")
	}
}

func (c *Config) normalizeRender() {
	c.Render.FFmpegBinary = strings.TrimSpace(c.Render.FFmpegBinary)
	if c.Render.FFmpegBinary == "" {
		c.Render.FFmpegBinary = defaultFFmpegBinary
	}
	c.Render.FFprobeBinary = strings.TrimSpace(c.Render.FFprobeBinary)
	if c.Render.FFprobeBinary == "" {
		c.Render.FFprobeBinary = defaultFFprobeBinary
	}
	c.Render.FontFile = strings.TrimSpace(c.Render.FontFile)
	if c.Render.FontFile == "" {
		c.Render.FontFile = defaultFontFile
	}
}

func (c *Config) normalizeEvents() {
	fillFromEnv(&c.Events.AMQPURL, "REELPIPE_AMQP_URL")
	c.Events.Exchange = strings.TrimSpace(c.Events.Exchange)
	if c.Events.Exchange == "" {
		c.Events.Exchange = defaultEventsExchange
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func fillFromEnv(field *string, key string) {
	*field = strings.TrimSpace(*field)
	if *field != "" {
		return
	}
	if value, ok := lookupEnv(key); ok {
		*field = value
	}
}

func intFromEnv(field *int, key string) {
	value, ok := lookupEnv(key)
	if !ok {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*field = parsed
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
