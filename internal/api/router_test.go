package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelpipe/internal/jobs"
	"reelpipe/internal/pipeline"
	"reelpipe/internal/testsupport"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeController struct {
	mu        sync.Mutex
	triggers  int
	absorb    bool
	retries   []int64
	retryErr  error
	running   bool
	lastError string
}

func (f *fakeController) Trigger(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return !f.absorb
}

func (f *fakeController) RetryAsync(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retryErr != nil {
		return f.retryErr
	}
	f.retries = append(f.retries, id)
	return nil
}

func (f *fakeController) Running() bool     { return f.running }
func (f *fakeController) LastError() string { return f.lastError }

type apiFixture struct {
	store  *jobs.Store
	ctrl   *fakeController
	router *gin.Engine
}

func newFixture(t *testing.T, token string) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctrl := &fakeController{running: true}
	return &apiFixture{
		store:  store,
		ctrl:   ctrl,
		router: NewRouter(Dependencies{Jobs: store, Pipeline: ctrl, Token: token}),
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) failedJob(t *testing.T, sourceID string) *jobs.Job {
	t.Helper()
	job := testsupport.NewJob(t, f.store, sourceID, sourceID+".mp4")
	job.SetFailed("render video: ffmpeg timed out")
	require.NoError(t, f.store.Update(context.Background(), job))
	return job
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "secret")

	rec := f.do(t, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "reelpipe", body.Service)
}

func TestListJobsNewestFirst(t *testing.T) {
	f := newFixture(t, "")
	first := testsupport.NewJob(t, f.store, "a", "a.mp4")
	second := f.failedJob(t, "b")

	rec := f.do(t, http.MethodGet, "/jobs")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[JobListResponse](t, rec)
	require.Len(t, body.Jobs, 2)
	assert.Equal(t, second.ID, body.Jobs[0].ID)
	assert.Equal(t, first.ID, body.Jobs[1].ID)
	assert.Equal(t, "failed", body.Jobs[0].Status)
	assert.Equal(t, "render video: ffmpeg timed out", body.Jobs[0].Error)
	assert.Equal(t, "b", body.Jobs[0].SourceID)
	assert.NotEmpty(t, body.Jobs[0].CreatedAt)
}

func TestListJobsFiltersByStatus(t *testing.T) {
	f := newFixture(t, "")
	testsupport.NewJob(t, f.store, "a", "a.mp4")
	failed := f.failedJob(t, "b")

	rec := f.do(t, http.MethodGet, "/jobs?status=failed")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[JobListResponse](t, rec)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, failed.ID, body.Jobs[0].ID)

	rec = f.do(t, http.MethodGet, "/jobs?status=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	f := newFixture(t, "")
	job := testsupport.NewJob(t, f.store, "a", "clip.mp4")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/jobs/%d", job.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[Job](t, rec)
	assert.Equal(t, "clip.mp4", body.FileName)
	assert.Equal(t, "pending", body.Status)
	assert.Nil(t, body.TrimStart)
	assert.Empty(t, body.CompletedAt)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/jobs/999").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/jobs/abc").Code)
}

func TestRetryJob(t *testing.T) {
	f := newFixture(t, "")
	failed := f.failedJob(t, "a")
	pending := testsupport.NewJob(t, f.store, "b", "b.mp4")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/jobs/%d/retry", failed.ID))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []int64{failed.ID}, f.ctrl.retries)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/jobs/%d/retry", pending.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "pending")

	rec = f.do(t, http.MethodPost, "/jobs/404/retry")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, f.ctrl.retries, 1)
}

func TestRetryJobInFlight(t *testing.T) {
	f := newFixture(t, "")
	failed := f.failedJob(t, "a")
	f.ctrl.retryErr = fmt.Errorf("%w: job %d", pipeline.ErrJobBusy, failed.ID)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/jobs/%d/retry", failed.ID))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrigger(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPost, "/trigger")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.ctrl.triggers)
	assert.Equal(t, "scan started", decode[AcceptedResponse](t, rec).Message)
}

func TestTriggerAbsorbedByRunningScan(t *testing.T) {
	f := newFixture(t, "")
	f.ctrl.absorb = true

	rec := f.do(t, http.MethodPost, "/trigger")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "scan already running", decode[AcceptedResponse](t, rec).Message)
}

func TestStatusReportsCounts(t *testing.T) {
	f := newFixture(t, "")
	f.ctrl.lastError = "discovery error: scan: list source items"
	f.failedJob(t, "a")
	testsupport.NewJob(t, f.store, "b", "b.mp4")
	busy := testsupport.NewJob(t, f.store, "c", "c.mp4")
	busy.SetStatus(jobs.StatusEditing)
	require.NoError(t, f.store.Update(context.Background(), busy))

	rec := f.do(t, http.MethodGet, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[StatusResponse](t, rec)
	assert.True(t, body.Running)
	assert.Equal(t, f.ctrl.lastError, body.LastError)
	assert.Equal(t, 1, body.Counts["failed"])
	assert.Equal(t, 1, body.Counts["pending"])
	assert.Equal(t, 0, body.Counts["done"])
	assert.Equal(t, 1, body.Counts["editing"])
	assert.Equal(t, 1, body.Active)
}

func TestBearerToken(t *testing.T) {
	f := newFixture(t, "secret")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/jobs").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/jobs", "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/jobs", "Authorization", "Bearer secret").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/trigger").Code)
	assert.Zero(t, f.ctrl.triggers)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/nope").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodDelete, "/trigger").Code)
}
