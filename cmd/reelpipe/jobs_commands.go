package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelpipe/internal/config"
	"reelpipe/internal/jobs"
	"reelpipe/internal/pipeline"
	"reelpipe/internal/textutil"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and control pipeline jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				list, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprintln(out, renderJobTable(list))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				printJob(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Retry a failed job in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withProcessLock(func() error {
				return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
					rt, err := buildRuntime(cfg, store, logger)
					if err != nil {
						return err
					}
					defer rt.Close() //nolint:errcheck

					job, err := rt.orchestrator.Retry(cmd.Context(), id)
					if errors.Is(err, pipeline.ErrNotRetryable) {
						return fmt.Errorf("job %d is %s; only failed jobs can be retried", id, job.Status)
					}
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					if job.Status == jobs.StatusFailed {
						fmt.Fprintf(out, "Job %d failed again: %s\n", job.ID, job.ErrorMessage)
						return nil
					}
					fmt.Fprintf(out, "Job %d %s (post %s)\n", job.ID, job.Status, job.PostID)
					return nil
				})
			})
		},
	}
}

func parseStatuses(values []string) ([]jobs.Status, error) {
	statuses := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := jobs.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}

func renderJobTable(list []*jobs.Job) string {
	columns := []tableColumn{
		{Title: "ID", AlignRight: true},
		{Title: "File"},
		{Title: "Status"},
		{Title: "Updated"},
		{Title: "Post"},
		{Title: "Error"},
	}
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			job.FileName,
			textutil.Label(string(job.Status)),
			formatTimestamp(job.UpdatedAt),
			job.PostID,
			truncate(job.ErrorMessage, 60),
		})
	}
	return renderTable(columns, rows)
}

func printJob(out io.Writer, job *jobs.Job) {
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(out, "%-18s %s\n", label+":", value)
	}
	line("ID", strconv.FormatInt(job.ID, 10))
	line("Source", job.SourceID)
	line("File", job.FileName)
	line("Status", textutil.Label(string(job.Status)))
	line("Error", job.ErrorMessage)
	line("Local file", job.LocalPath)
	line("Analyzed", yesNo(job.HasAnalysis()))
	if job.HasAnalysis() {
		line("Window", fmt.Sprintf("%.2fs - %.2fs of %.2fs", job.TrimStart, job.TrimEnd, job.SourceDuration))
		line("Hook", job.HookText)
		line("Caption style", job.CaptionStyle)
		line("Caption", job.SuggestedCaption)
		line("Hashtags", strings.Join(job.Hashtags, " "))
		line("Segments", strconv.Itoa(len(job.Transcript)))
	}
	line("Captions", job.CaptionsPath)
	line("Output", job.OutputPath)
	line("Post", job.PostID)
	line("Created", formatTimestamp(job.CreatedAt))
	line("Updated", formatTimestamp(job.UpdatedAt))
	if job.CompletedAt != nil {
		line("Completed", formatTimestamp(*job.CompletedAt))
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
