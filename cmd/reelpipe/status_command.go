package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelpipe/internal/config"
	"reelpipe/internal/jobs"
	"reelpipe/internal/preflight"
	"reelpipe/internal/textutil"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show dependencies, preflight checks, and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				counts, err := store.CountByStatus(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				lines := statusLines(cfg, ctx.configPath, counts, colorize)
				fmt.Fprintln(out, strings.Join(lines, "\n"))
				return nil
			})
		},
	}
}

func statusLines(cfg *config.Config, configPath string, counts map[jobs.Status]int, colorize bool) []string {
	var lines []string

	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	daemonKind, daemonMsg := statusInfo, "not running"
	if daemonRunning(cfg) {
		daemonKind, daemonMsg = statusOK, "running (api "+cfg.Paths.APIBind+")"
	}
	lines = append(lines, renderStatusLine("Daemon", daemonKind, daemonMsg, colorize))
	if configPath != "" {
		lines = append(lines, renderStatusLine("Config", statusInfo, configPath, colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, cfg.DatabasePath(), colorize))
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		kind, msg := statusOK, dep.Command
		if !dep.Available {
			kind, msg = statusError, dep.Detail
			if dep.Optional {
				kind = statusWarn
			}
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, msg, colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, result := range preflight.RunAll(cfg) {
		kind := statusOK
		if !result.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Jobs", colorize)...)
	rows := make([][]string, 0, len(jobs.AllStatuses()))
	for _, status := range jobs.AllStatuses() {
		rows = append(rows, []string{textutil.Label(string(status)), strconv.Itoa(counts[status])})
	}
	lines = append(lines, renderTable([]tableColumn{{Title: "Status"}, {Title: "Count", AlignRight: true}}, rows))
	active := 0
	for status, n := range counts {
		if status.IsProcessing() {
			active += n
		}
	}
	lines = append(lines, renderStatusLine("In progress", statusInfo, strconv.Itoa(active), colorize))
	if failed := counts[jobs.StatusFailed]; failed > 0 {
		lines = append(lines, renderStatusLine("Failed jobs", statusWarn,
			fmt.Sprintf("%d (inspect with `reelpipe jobs list -s failed`)", failed), colorize))
	}
	return lines
}

// daemonRunning tries the instance lock without holding it.
func daemonRunning(cfg *config.Config) bool {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}
