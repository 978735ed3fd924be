package api

import (
	"errors"
	"net/http"

	"github.com/ignite/warmup-scheduler/internal/pkg/httputil"
	"github.com/ignite/warmup-scheduler/internal/pkg/kvstore"
	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
	"github.com/ignite/warmup-scheduler/internal/selection"
	"github.com/ignite/warmup-scheduler/internal/service/sending"
	"github.com/ignite/warmup-scheduler/internal/warmup"
)

// writeError maps service errors onto status codes and stable error codes.
// Anything unrecognized is logged and answered with a generic 500 so store
// or driver details never reach the client.
func writeError(w http.ResponseWriter, err error) {
	var f *selection.Failure
	switch {
	case errors.As(err, &f):
		status := http.StatusConflict
		if errors.Is(f, selection.ErrInsufficientCapacity) {
			status = http.StatusUnprocessableEntity
		}
		httputil.ErrorCode(w, status, f.Code, f.Message)
	case errors.Is(err, sending.ErrIdentityNotFound):
		httputil.ErrorCode(w, http.StatusNotFound, "identity_not_found", err.Error())
	case errors.Is(err, warmup.ErrNotInitialized):
		httputil.ErrorCode(w, http.StatusNotFound, "warmup_not_initialized", err.Error())
	case errors.Is(err, warmup.ErrWarmupDisabled):
		httputil.ErrorCode(w, http.StatusConflict, "warmup_disabled", err.Error())
	case errors.Is(err, warmup.ErrInvalidRecord):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_warmup", err.Error())
	case errors.Is(err, kvstore.ErrUnavailable):
		logger.Error("[API] store unavailable", "error", err)
		httputil.ErrorCode(w, http.StatusServiceUnavailable, "store_unavailable", "state store is unavailable, retry later")
	default:
		httputil.InternalError(w, err)
	}
}
