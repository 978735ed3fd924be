package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-scheduler/internal/capacity"
	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/monitoring"
	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
	"github.com/ignite/warmup-scheduler/internal/pkg/httputil"
	"github.com/ignite/warmup-scheduler/internal/pkg/kvstore"
	"github.com/ignite/warmup-scheduler/internal/repository/memory"
	"github.com/ignite/warmup-scheduler/internal/service/sending"
	"github.com/ignite/warmup-scheduler/internal/warmup"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testIdentities() []domain.Identity {
	seasoned := testNow.AddDate(-1, 0, 0)
	return []domain.Identity{
		{ID: "gm", Host: "smtp.gmail.com", Active: true, CreatedAt: seasoned, EmailsSentTotal: 50000},
		{ID: "ses", Host: "email-smtp.eu-west-1.amazonaws.com", Active: true, DailyLimit: 15, CreatedAt: seasoned, EmailsSentTotal: 50000},
	}
}

func newTestService(kv kvstore.Store, metrics *monitoring.Metrics) *sending.Service {
	clk := clock.NewMock(testNow)
	return sending.NewService(memory.NewIdentityRegistry(testIdentities()),
		capacity.NewTracker(kv, clk), warmup.NewStore(kv, clk), clk, 2, sending.WithMetrics(metrics))
}

func setupTestRouter(t *testing.T) (http.Handler, *monitoring.Metrics) {
	t.Helper()
	kv := kvstore.NewMemoryStore(clock.NewMock(testNow))
	m := monitoring.NewMetrics(nil)
	router := SetupRoutes(NewHandlers(newTestService(kv, m)), RouteOptions{
		Health:         NewHealthChecker(nil, nil),
		Metrics:        m,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	return router, m
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCanSendEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/identities/gm/capacity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[sending.Verdict](t, rec)
	assert.True(t, v.Allowed)
	assert.Equal(t, 100, v.Remaining)

	rec = do(t, router, http.MethodGet, "/api/v1/identities/ghost/capacity", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "identity_not_found", decode[httputil.ErrorResponse](t, rec).Code)
}

func TestRecordSendEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	for i := 0; i < 3; i++ {
		rec := do(t, router, http.MethodPost, "/api/v1/identities/ses/sends", "")
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	v := decode[sending.Verdict](t, do(t, router, http.MethodGet, "/api/v1/identities/ses/capacity", ""))
	assert.Equal(t, 12, v.Remaining)

	rec := do(t, router, http.MethodDelete, "/api/v1/identities/ses/rate-limits", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	v = decode[sending.Verdict](t, do(t, router, http.MethodGet, "/api/v1/identities/ses/capacity", ""))
	assert.Equal(t, 15, v.Remaining)

	rec = do(t, router, http.MethodPost, "/api/v1/identities/ghost/sends", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordErrorAndAdvice(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/identities/gm/errors", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/identities/gm/advice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	advice := decode[domain.Advice](t, rec)
	assert.Equal(t, "gm", advice.IdentityID)
	assert.Equal(t, "Gmail", advice.Provider.Name)
	assert.Contains(t, advice.Warnings, "Send error in the last 24 hours")
}

func TestWarmupLifecycle(t *testing.T) {
	router, _ := setupTestRouter(t)
	base := "/api/v1/identities/gm/warmup"

	rec := do(t, router, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "warmup_not_initialized", decode[httputil.ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodPost, base, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[domain.WarmupRecord](t, rec)
	assert.Equal(t, domain.ProfileStandard, created.Profile)
	assert.Equal(t, domain.Limit(10), created.DailyLimit)

	rec = do(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[warmup.Status](t, rec)
	assert.Equal(t, 1, st.Phase)
	assert.Equal(t, 4, st.PhaseCount)
	assert.Equal(t, 30, st.DaysRemaining)

	rec = do(t, router, http.MethodPost, base+"/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[sending.Verdict](t, do(t, router, http.MethodGet, "/api/v1/identities/gm/capacity", ""))
	assert.False(t, v.Allowed)
	assert.Equal(t, "warmup_paused", v.Reason)

	rec = do(t, router, http.MethodPost, base+"/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPut, base+"/daily-limit", `{"daily_limit": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Limit(3), decode[domain.WarmupRecord](t, rec).DailyLimit)

	rec = do(t, router, http.MethodPut, base+"/daily-limit", `{"daily_limit": null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Limit(10), decode[domain.WarmupRecord](t, rec).DailyLimit)

	rec = do(t, router, http.MethodPut, base, `{"profile": "aggressive"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Limit(20), decode[domain.WarmupRecord](t, rec).DailyLimit)

	rec = do(t, router, http.MethodPost, base+"/disable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.WarmupRecord](t, rec).Enabled)

	rec = do(t, router, http.MethodPost, base+"/pause", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "warmup_disabled", decode[httputil.ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodDelete, base, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWarmupValidation(t *testing.T) {
	router, _ := setupTestRouter(t)
	base := "/api/v1/identities/gm/warmup"

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown profile", http.MethodPost, base, `{"profile": "turbo"}`, http.StatusBadRequest, "invalid_warmup"},
		{"future start", http.MethodPost, base, `{"start_date": "2026-04-01"}`, http.StatusBadRequest, "invalid_warmup"},
		{"malformed json", http.MethodPost, base, `{"profile":`, http.StatusBadRequest, "bad_request"},
		{"unknown identity", http.MethodPost, "/api/v1/identities/ghost/warmup", "", http.StatusNotFound, "identity_not_found"},
		{"negative override", http.MethodPut, base + "/daily-limit", `{"daily_limit": -1}`, http.StatusBadRequest, "invalid_warmup"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[httputil.ErrorResponse](t, rec).Code)
		})
	}
}

func TestSelectionEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/selection", `{"mode": "balanced", "count": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var sel struct {
		Mode     string `json:"mode"`
		Selected []struct {
			IdentityID string `json:"identity_id"`
			Remaining  int    `json:"remaining"`
		} `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sel))
	assert.Equal(t, "balanced", sel.Mode)
	require.Len(t, sel.Selected, 2)
	// Gmail has 500 left today, the SES identity its own 15.
	assert.Equal(t, "gm", sel.Selected[0].IdentityID)

	rec = do(t, router, http.MethodPost, "/api/v1/selection", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/selection", `{"mode": "random"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/selection", `{"exclude_ids": ["gm", "ses"]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	e := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "no_capacity", e.Code)
	assert.Equal(t, "All active accounts are excluded", e.Error)
}

func jobsBody(n int) string {
	jobs := make([]string, n)
	for i := range jobs {
		jobs[i] = fmt.Sprintf(`{"id": "job-%d"}`, i)
	}
	return `{"jobs": [` + strings.Join(jobs, ",") + `]}`
}

func TestDistributionEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/v1/identities/gm/warmup", "").Code)

	rec := do(t, router, http.MethodPost, "/api/v1/distribution", jobsBody(30))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	e := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "insufficient_capacity", e.Code)
	assert.Equal(t, "Capacity 25 is less than 30 jobs", e.Error)

	rec = do(t, router, http.MethodPost, "/api/v1/distribution", jobsBody(25))
	require.Equal(t, http.StatusOK, rec.Code)
	var b struct {
		ID          string                       `json:"id"`
		Assignments map[string][]json.RawMessage `json:"assignments"`
		TotalJobs   int                          `json:"total_jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, 25, b.TotalJobs)
	assert.Len(t, b.Assignments["gm"], 10)
	assert.Len(t, b.Assignments["ses"], 15)

	rec = do(t, router, http.MethodPost, "/api/v1/distribution", `{"jobs": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRotationEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/rotation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rs struct {
		Total     int `json:"total"`
		Available int `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rs))
	assert.Equal(t, 2, rs.Total)
	assert.Equal(t, 2, rs.Available)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	do(t, router, http.MethodGet, "/api/v1/identities/gm/capacity", "")

	rec := do(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `route="/api/v1/identities/{id}/capacity"`)
	assert.Contains(t, body, `warmup_scheduler_capacity_decisions_total{allowed="true",reason="none"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rotation", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

// downStore fails every call the way an unreachable Redis would.
type downStore struct{}

var errDown = fmt.Errorf("%w: connection refused", kvstore.ErrUnavailable)

func (downStore) Get(context.Context, string) (string, bool, error)        { return "", false, errDown }
func (downStore) Set(context.Context, string, string, time.Duration) error { return errDown }
func (downStore) Del(context.Context, ...string) error                     { return errDown }
func (downStore) Incr(context.Context, string) (int64, error)              { return 0, errDown }
func (downStore) Expire(context.Context, string, time.Duration) error      { return errDown }
func (downStore) Keys(context.Context, string) ([]string, error)           { return nil, errDown }

func TestStoreUnavailable(t *testing.T) {
	router := SetupRoutes(NewHandlers(newTestService(downStore{}, monitoring.NewMetrics(nil))), RouteOptions{})

	rec := do(t, router, http.MethodPost, "/api/v1/identities/gm/sends", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	e := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, "store_unavailable", e.Code)
	assert.NotContains(t, e.Error, "connection refused")
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	hs := decode[HealthStatus](t, rec)
	assert.Equal(t, "healthy", hs.Status)
	assert.Equal(t, "disabled", hs.Checks["redis"].Status)
	assert.Equal(t, "disabled", hs.Checks["database"].Status)

	rec = do(t, router, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessFollowsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hc := NewHealthChecker(nil, client)
	router := SetupRoutes(NewHandlers(nil), RouteOptions{Health: hc})

	rec := do(t, router, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)

	mr.Close()
	rec = do(t, router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "2m 5s", formatUptime(125*time.Second))
	assert.Equal(t, "3h 10m", formatUptime(3*time.Hour+10*time.Minute))
	assert.Equal(t, "1d 2h 0m", formatUptime(26*time.Hour))
}
