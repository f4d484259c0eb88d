package config

const (
	defaultDataDir                = "./data"
	defaultAPIBind                = "127.0.0.1:8000"
	defaultServiceAccountFile     = "service_account.json"
	defaultDriveBaseURL           = "https://www.googleapis.com/drive/v3"
	defaultDriveTokenURL          = "https://oauth2.googleapis.com/token"
	defaultDrivePageSize          = 50
	defaultGeminiModel            = "gemini-1.5-flash"
	defaultGeminiBaseURL          = "https://generativelanguage.googleapis.com"
	defaultGeminiPollSeconds      = 3
	defaultPostizAPIURL           = "https://api.postiz.com"
	defaultPollIntervalSeconds    = 60
	defaultMaxOutputSizeMB        = 95
	defaultDownloadTimeoutSeconds = 600
	defaultAnalyzeTimeoutSeconds  = 600
	defaultRenderTimeoutSeconds   = 300
	defaultProbeTimeoutSeconds    = 30
	defaultPublishTimeoutSeconds  = 300
	defaultMinFreeGiB             = 2
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultFontFile               = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"
	defaultNotifyRequestTimeout   = 10
	defaultEventsExchange         = "reelpipe.jobs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

var defaultExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Drive: Drive{
			ServiceAccountFile: defaultServiceAccountFile,
			BaseURL:            defaultDriveBaseURL,
			TokenURL:           defaultDriveTokenURL,
			PageSize:           defaultDrivePageSize,
			Extensions:         append([]string(nil), defaultExtensions...),
		},
		Gemini: Gemini{
			Model:               defaultGeminiModel,
			BaseURL:             defaultGeminiBaseURL,
			PollIntervalSeconds: defaultGeminiPollSeconds,
		},
		Postiz: Postiz{
			APIURL: defaultPostizAPIURL,
		},
		Pipeline: Pipeline{
			PollIntervalSeconds:    defaultPollIntervalSeconds,
			MaxOutputSizeMB:        defaultMaxOutputSizeMB,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			AnalyzeTimeoutSeconds:  defaultAnalyzeTimeoutSeconds,
			RenderTimeoutSeconds:   defaultRenderTimeoutSeconds,
			ProbeTimeoutSeconds:    defaultProbeTimeoutSeconds,
			PublishTimeoutSeconds:  defaultPublishTimeoutSeconds,
			MinFreeGiB:             defaultMinFreeGiB,
		},
		Render: Render{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			FontFile:      defaultFontFile,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobDone:        true,
			JobFailed:      true,
			ScanSummary:    true,
		},
		Events: Events{
			Exchange: defaultEventsExchange,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
