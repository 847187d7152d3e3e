package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mediashrink/internal/domain"
	"mediashrink/internal/infra"
	"mediashrink/internal/jobs"
)

const defaultKeepAlive = 15 * time.Second

type App struct {
	Jobs           *jobs.Service
	Logger         *infra.Logger
	MaxUploadBytes int64
	// KeepAlive is the interval between comment frames on idle streams.
	KeepAlive time.Duration
}

func NewApp(svc *jobs.Service, logger *infra.Logger, maxUploadBytes int64) *App {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &App{
		Jobs:           svc,
		Logger:         logger,
		MaxUploadBytes: maxUploadBytes,
		KeepAlive:      defaultKeepAlive,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, errorResponse{Error: errCode, Message: msg})
}

// fail maps service errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("handlers: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
