package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"feedra/internal/events"
	dErrors "feedra/pkg/domain-errors"
	"feedra/pkg/email"
	"feedra/pkg/platform/httputil"
	"feedra/pkg/requestcontext"
)

// Publisher accepts events for asynchronous delivery.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Handler exposes the registration welcome trigger.
type Handler struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewHandler(publisher Publisher, logger *slog.Logger) *Handler {
	return &Handler{publisher: publisher, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/notifications/welcome", h.handleWelcome)
}

type welcomeRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
}

func (h *Handler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req welcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.UserType = strings.TrimSpace(req.UserType)

	switch {
	case req.Email == "":
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "email is required"))
		return
	case req.Name == "":
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "name is required"))
		return
	case !email.Valid(req.Email):
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "email is invalid"))
		return
	}

	e := events.New(ctx, events.TypeUserRegistered)
	e.User = &events.UserSummary{Name: req.Name, Email: req.Email, UserType: req.UserType}
	if actor, ok := requestcontext.ActorFrom(ctx); ok {
		e.ActorID = actor.ID
	}
	if err := h.publisher.Publish(ctx, e); err != nil {
		h.logger.WarnContext(ctx, "failed to queue welcome email",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "notifications are unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "eventId": e.ID})
}
