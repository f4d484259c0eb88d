package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"reelpipe/internal/jobs"
	"reelpipe/internal/logging"
	"reelpipe/internal/pipeline"
	"reelpipe/internal/services"
)

type handler struct {
	jobs     JobReader
	pipeline Controller
	logger   *slog.Logger
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: serviceName})
}

func (h *handler) status(c *gin.Context) {
	counts, err := h.jobs.CountByStatus(c.Request.Context())
	if err != nil {
		h.internalError(c, "count jobs", err)
		return
	}
	resp := StatusResponse{
		Running:   h.pipeline.Running(),
		LastError: h.pipeline.LastError(),
		Counts:    make(map[string]int, len(counts)),
	}
	for _, status := range jobs.AllStatuses() {
		resp.Counts[string(status)] = counts[status]
		if status.IsProcessing() {
			resp.Active += counts[status]
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) listJobs(c *gin.Context) {
	var statuses []jobs.Status
	for _, raw := range c.QueryArray("status") {
		for part := range strings.SplitSeq(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := jobs.ParseStatus(part)
			if !ok {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("unknown status %q", strings.TrimSpace(part))})
				return
			}
			statuses = append(statuses, status)
		}
	}
	list, err := h.jobs.List(c.Request.Context(), statuses...)
	if err != nil {
		h.internalError(c, "list jobs", err)
		return
	}
	c.JSON(http.StatusOK, JobListResponse{Jobs: FromJobs(list)})
}

func (h *handler) getJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "get job", err)
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("job %d not found", id)})
		return
	}
	c.JSON(http.StatusOK, FromJob(job))
}

func (h *handler) retryJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	job, err := h.jobs.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "get job", err)
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("job %d not found", id)})
		return
	}
	if job.Status != jobs.StatusFailed {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: notRetryableMessage(job)})
		return
	}

	err = h.pipeline.RetryAsync(ctx, id)
	switch {
	case err == nil:
		h.logger.Info("retry accepted",
			logging.Int64(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "retry_accepted"),
		)
		c.JSON(http.StatusAccepted, AcceptedResponse{Message: "retry started", JobID: id})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("job %d not found", id)})
	case errors.Is(err, pipeline.ErrNotRetryable):
		// Status changed between the lookup and the precondition check.
		if current, _ := h.jobs.GetByID(ctx, id); current != nil {
			job = current
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: notRetryableMessage(job)})
	case errors.Is(err, pipeline.ErrJobBusy):
		c.JSON(http.StatusConflict, ErrorResponse{Error: fmt.Sprintf("job %d is already being processed", id)})
	default:
		h.internalError(c, "retry job", err)
	}
}

func (h *handler) trigger(c *gin.Context) {
	if !h.pipeline.Trigger(c.Request.Context()) {
		c.JSON(http.StatusAccepted, AcceptedResponse{Message: "scan already running"})
		return
	}
	h.logger.Info("scan triggered", logging.String(logging.FieldEventType, "scan_triggered"))
	c.JSON(http.StatusAccepted, AcceptedResponse{Message: "scan started"})
}

func (h *handler) internalError(c *gin.Context, op string, err error) {
	_ = c.Error(err)
	h.logger.Error("api operation failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldEventType, "api_error"),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: op + " failed"})
}

func notRetryableMessage(job *jobs.Job) string {
	return fmt.Sprintf("job %d is %s; only failed jobs can be retried", job.ID, job.Status)
}

func parseID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid job id %q", raw)})
		return 0, false
	}
	return id, true
}
