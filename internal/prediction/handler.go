package prediction

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "feedra/pkg/domain-errors"
	"feedra/pkg/platform/httputil"
	"feedra/pkg/requestcontext"
)

// Predictor is the model client used by the handler.
type Predictor interface {
	Predict(ctx context.Context, in Input) (Prediction, error)
	Status(ctx context.Context) Status
}

type Handler struct {
	predictor Predictor
	logger    *slog.Logger
}

func NewHandler(predictor Predictor, logger *slog.Logger) *Handler {
	return &Handler{predictor: predictor, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/predictions", h.handlePredict)
	r.Get("/v1/predictions/status", h.handleStatus)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	out, err := h.predictor.Predict(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "prediction failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.predictor.Status(r.Context()))
}
