package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/warmup-scheduler/internal/domain"
	"github.com/ignite/warmup-scheduler/internal/pkg/httputil"
	"github.com/ignite/warmup-scheduler/internal/selection"
	"github.com/ignite/warmup-scheduler/internal/service/sending"
	"github.com/ignite/warmup-scheduler/internal/warmup"
)

// Scheduler is the part of sending.Service the API exposes.
type Scheduler interface {
	CanSend(ctx context.Context, identityID string) (*sending.Verdict, error)
	RecordSend(ctx context.Context, identityID string) error
	RecordError(ctx context.Context, identityID string) error
	SelectBest(ctx context.Context, opts selection.Options) (*selection.Selection, error)
	Distribute(ctx context.Context, jobs []selection.Job) (*selection.Batches, error)
	RotationStatus(ctx context.Context) (*selection.RotationStatus, error)
	Advise(ctx context.Context, identityID string) (*domain.Advice, error)

	InitializeWarmup(ctx context.Context, identityID string, settings domain.WarmupSettings) (*domain.WarmupRecord, error)
	PauseWarmup(ctx context.Context, identityID string) (*domain.WarmupRecord, error)
	ResumeWarmup(ctx context.Context, identityID string) (*domain.WarmupRecord, error)
	DisableWarmup(ctx context.Context, identityID string) (*domain.WarmupRecord, error)
	OverrideDailyLimit(ctx context.Context, identityID string, limit *int) (*domain.WarmupRecord, error)
	UpdateWarmupSettings(ctx context.Context, identityID string, settings domain.WarmupSettings) (*domain.WarmupRecord, error)
	WarmupStatus(ctx context.Context, identityID string) (*warmup.Status, error)
	DeleteWarmup(ctx context.Context, identityID string) error
	ResetRateLimits(ctx context.Context, identityID string) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	scheduler Scheduler
}

// NewHandlers creates a new Handlers instance
func NewHandlers(scheduler Scheduler) *Handlers {
	return &Handlers{scheduler: scheduler}
}

// DistributeRequest is the body of POST /distribution.
type DistributeRequest struct {
	Jobs []selection.Job `json:"jobs"`
}

// DailyLimitRequest is the body of PUT /warmup/daily-limit. A null
// daily_limit clears the override.
type DailyLimitRequest struct {
	DailyLimit *int `json:"daily_limit"`
}

// CanSend reports whether an identity may send now.
//
//	GET /api/v1/identities/{id}/capacity
func (h *Handlers) CanSend(w http.ResponseWriter, r *http.Request) {
	v, err := h.scheduler.CanSend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, v)
}

// RecordSend counts one completed send.
//
//	POST /api/v1/identities/{id}/sends
func (h *Handlers) RecordSend(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.RecordSend(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// RecordError stamps a delivery failure.
//
//	POST /api/v1/identities/{id}/errors
func (h *Handlers) RecordError(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.RecordError(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// Advise returns the health report.
//
//	GET /api/v1/identities/{id}/advice
func (h *Handlers) Advise(w http.ResponseWriter, r *http.Request) {
	a, err := h.scheduler.Advise(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, a)
}

// ResetRateLimits clears the current hour and day counters.
//
//	DELETE /api/v1/identities/{id}/rate-limits
func (h *Handlers) ResetRateLimits(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.ResetRateLimits(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// GetWarmup returns the record with its derived ramp values.
//
//	GET /api/v1/identities/{id}/warmup
func (h *Handlers) GetWarmup(w http.ResponseWriter, r *http.Request) {
	st, err := h.scheduler.WarmupStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, st)
}

// InitializeWarmup starts or restarts a warm-up. An empty body uses the
// default profile starting today.
//
//	POST /api/v1/identities/{id}/warmup
func (h *Handlers) InitializeWarmup(w http.ResponseWriter, r *http.Request) {
	var settings domain.WarmupSettings
	if !decodeOptional(w, r, &settings) {
		return
	}
	rec, err := h.scheduler.InitializeWarmup(r.Context(), chi.URLParam(r, "id"), settings)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, rec)
}

// UpdateWarmup changes the ramp without touching counters.
//
//	PUT /api/v1/identities/{id}/warmup
func (h *Handlers) UpdateWarmup(w http.ResponseWriter, r *http.Request) {
	var settings domain.WarmupSettings
	if !httputil.Decode(w, r, &settings) {
		return
	}
	rec, err := h.scheduler.UpdateWarmupSettings(r.Context(), chi.URLParam(r, "id"), settings)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// DeleteWarmup removes the record.
//
//	DELETE /api/v1/identities/{id}/warmup
func (h *Handlers) DeleteWarmup(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.DeleteWarmup(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) PauseWarmup(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.PauseWarmup)
}

func (h *Handlers) ResumeWarmup(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.ResumeWarmup)
}

func (h *Handlers) DisableWarmup(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.scheduler.DisableWarmup)
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*domain.WarmupRecord, error)) {
	rec, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// OverrideDailyLimit pins or clears the warm-up quota.
//
//	PUT /api/v1/identities/{id}/warmup/daily-limit
func (h *Handlers) OverrideDailyLimit(w http.ResponseWriter, r *http.Request) {
	var req DailyLimitRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	rec, err := h.scheduler.OverrideDailyLimit(r.Context(), chi.URLParam(r, "id"), req.DailyLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// SelectBest picks identities for the next sends.
//
//	POST /api/v1/selection
func (h *Handlers) SelectBest(w http.ResponseWriter, r *http.Request) {
	var opts selection.Options
	if !decodeOptional(w, r, &opts) {
		return
	}
	if !opts.Mode.Valid() {
		httputil.BadRequest(w, "unknown selection mode: "+string(opts.Mode))
		return
	}
	if opts.Count < 0 {
		httputil.BadRequest(w, "count must not be negative")
		return
	}
	sel, err := h.scheduler.SelectBest(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, sel)
}

// Distribute spreads a batch of jobs over the pool.
//
//	POST /api/v1/distribution
func (h *Handlers) Distribute(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Jobs) == 0 {
		httputil.BadRequest(w, "jobs must not be empty")
		return
	}
	b, err := h.scheduler.Distribute(r.Context(), req.Jobs)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, b)
}

// RotationStatus reports every identity's current standing.
//
//	GET /api/v1/rotation
func (h *Handlers) RotationStatus(w http.ResponseWriter, r *http.Request) {
	rs, err := h.scheduler.RotationStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rs)
}

// decodeOptional is httputil.Decode that also accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	httputil.BadRequest(w, "invalid JSON: "+err.Error())
	return false
}
