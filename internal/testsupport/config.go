package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp data directory per
// test. It defaults credentials and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Drive.FolderID = "test-folder"
	cfgVal.Drive.ServiceAccountJSON = "{}"
	cfgVal.Gemini.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithIntegrations sets Postiz destinations on the test config.
func WithIntegrations(instagram, facebook, youtube string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Postiz.InstagramIntegrationID = instagram
		b.cfg.Postiz.FacebookIntegrationID = facebook
		b.cfg.Postiz.YouTubeIntegrationID = youtube
	}
}

// WithStubbedBinaries writes stub executables that exit successfully and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		for _, name := range names {
			WriteStub(b.t, b.baseDir, name, "#!/bin/sh\nexit 0\n")
		}
	}
}

// WithStubScript installs a stub executable with the given shell script body.
func WithStubScript(name, script string) ConfigOption {
	return func(b *configBuilder) {
		WriteStub(b.t, b.baseDir, name, script)
	}
}

// WriteStub writes an executable into base/bin and prepends that directory to
// PATH for the duration of the test.
func WriteStub(t testing.TB, base, name, script string) string {
	t.Helper()

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	oldPath := os.Getenv("PATH")
	if parts := filepath.SplitList(oldPath); len(parts) == 0 || parts[0] != binDir {
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
