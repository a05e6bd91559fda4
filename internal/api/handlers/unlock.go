package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"careervision/internal/core"
)

// UnlockStore is the subset of the unlock store the handler needs.
type UnlockStore interface {
	UnlockWithCode(code string) error
	Unlocked() bool
	ExpiresAt() (time.Time, bool)
}

// UnlockRequest is the request body for POST /v1/unlock.
type UnlockRequest struct {
	Code string `json:"code" validate:"required"`
}

// UnlockResponse reports the unlock state after a submission or query.
type UnlockResponse struct {
	Unlocked  bool       `json:"unlocked"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// UnlockHandler handles unlock-code submission and state queries.
type UnlockHandler struct {
	store     UnlockStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewUnlockHandler creates a new UnlockHandler with the provided
// dependencies.
func NewUnlockHandler(store UnlockStore, v *core.Validator, logger *slog.Logger) *UnlockHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnlockHandler{store: store, validator: v, logger: logger}
}

// RegisterRoutes mounts the unlock endpoints.
func (h *UnlockHandler) RegisterRoutes(r chi.Router) {
	r.Post("/unlock", h.SubmitCode)
	r.Get("/unlock", h.GetState)
}

// SubmitCode handles POST /v1/unlock. A wrong code is a 403 with
// unlock_code_invalid; a correct one answers with the grant's expiry.
func (h *UnlockHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.store.UnlockWithCode(req.Code); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.snapshot()})
}

// GetState handles GET /v1/unlock.
func (h *UnlockHandler) GetState(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.snapshot()})
}

func (h *UnlockHandler) snapshot() UnlockResponse {
	resp := UnlockResponse{Unlocked: h.store.Unlocked()}
	if expiresAt, ok := h.store.ExpiresAt(); ok {
		resp.ExpiresAt = &expiresAt
	}
	return resp
}
