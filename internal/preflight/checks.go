package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"reelpipe/internal/config"
	"reelpipe/internal/deps"
	"reelpipe/internal/drive"
)

const bytesPerGiB = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minGiB
// available to unprivileged users. A non-positive minimum only reports.
func CheckFreeSpace(name, path string, minGiB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize) //nolint:gosec
	freeGiB := float64(free) / bytesPerGiB
	if minGiB > 0 && free < uint64(minGiB)*bytesPerGiB {
		return Result{Name: name, Detail: fmt.Sprintf("%.1f GiB free (need %d GiB)", freeGiB, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%.1f GiB free", freeGiB)}
}

// CheckDriveCredentials verifies the watched folder and service account.
func CheckDriveCredentials(cfg *config.Config) Result {
	const name = "Google Drive"
	if strings.TrimSpace(cfg.Drive.FolderID) == "" {
		return Result{Name: name, Detail: "missing folder id"}
	}
	if _, err := drive.LoadServiceAccount(cfg.Drive.ServiceAccountJSON, cfg.Drive.ServiceAccountFile); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("service account unusable (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "folder " + cfg.Drive.FolderID}
}

// CheckGeminiKey verifies an analysis API key is configured.
func CheckGeminiKey(cfg *config.Config) Result {
	const name = "Gemini"
	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	return Result{Name: name, Passed: true, Detail: "model " + cfg.Gemini.Model}
}

// CheckPostizDestinations reports how many publish destinations are set.
// Zero destinations is not fatal at startup but fails every publish step.
func CheckPostizDestinations(cfg *config.Config) Result {
	const name = "Postiz"
	if strings.TrimSpace(cfg.Postiz.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	ids := cfg.IntegrationIDs()
	if len(ids) == 0 {
		return Result{Name: name, Detail: "no integration ids configured (publishing will fail)"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d destination(s)", len(ids))}
}

// CheckFontFile verifies the hook overlay font exists.
func CheckFontFile(path string) Result {
	const name = "Overlay font"
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSystemDeps evaluates the media binaries for the given config. Both the
// daemon and the CLI status command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Render.FFmpegBinary,
			Description: "Required for rendering",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Render.FFprobeBinary,
			Description: "Required for the output size budget",
		},
	})
}
