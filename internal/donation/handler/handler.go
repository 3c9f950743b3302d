package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"feedra/internal/donation/feed"
	"feedra/internal/donation/models"
	"feedra/internal/platform/middleware"
	"feedra/internal/platform/sse"
	dErrors "feedra/pkg/domain-errors"
	"feedra/pkg/platform/httputil"
	"feedra/pkg/requestcontext"
)

// Service defines the donation operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, actor requestcontext.Actor, req models.CreateRequest) (models.Donation, error)
	Claim(ctx context.Context, donationID, actorID string) (models.Donation, error)
	Complete(ctx context.Context, donationID string) (models.Donation, error)
	Get(ctx context.Context, id string) (models.Donation, error)
	List(ctx context.Context, filter models.Filter) ([]models.Donation, error)
	ListByDonor(ctx context.Context, donorID string) ([]models.Donation, error)
	Delete(ctx context.Context, actor requestcontext.Actor, id string) error
}

// Feed defines the live subscriptions served over SSE.
type Feed interface {
	Subscribe(ctx context.Context, filter models.Filter, onData feed.DataFunc, onError feed.ErrorFunc) feed.Unsubscribe
	SubscribeStats(ctx context.Context, onData func(feed.Stats), onError feed.ErrorFunc) feed.Unsubscribe
}

// Handler serves /v1/donations.
type Handler struct {
	service     Service
	feed        Feed
	validator   middleware.TokenValidator
	logger      *slog.Logger
	timeout     time.Duration
	heartbeat   time.Duration
	limitWrites func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithHeartbeat sets how often idle streams send a keep-alive comment.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) { h.heartbeat = d }
}

// WithWriteLimiter wraps create, claim and complete.
func WithWriteLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.limitWrites = mw }
}

func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

func New(service Service, f Feed, validator middleware.TokenValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:     service,
		feed:        f,
		validator:   validator,
		logger:      logger,
		timeout:     30 * time.Second,
		heartbeat:   15 * time.Second,
		limitWrites: func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the donation routes. Stream routes are exempt from the
// request timeout.
func (h *Handler) Register(r chi.Router) {
	optionalAuth := middleware.OptionalAuth(h.validator, h.logger)
	requireAuth := middleware.RequireAuth(h.validator, h.logger)

	r.Route("/v1/donations", func(r chi.Router) {
		r.With(optionalAuth).Get("/stream", h.handleStream)
		r.With(optionalAuth).Get("/stats/stream", h.handleStatsStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(h.timeout))
			r.Use(optionalAuth)
			r.Get("/", h.handleList)
			r.Get("/{id}", h.handleGet)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/mine", h.handleListMine)
				r.With(h.limitWrites).Post("/", h.handleCreate)
				r.With(h.limitWrites).Post("/{id}/claim", h.handleClaim)
				r.With(h.limitWrites).Post("/{id}/complete", h.handleComplete)
				r.With(middleware.RequireAdmin(h.logger)).Delete("/{id}", h.handleDelete)
			})
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := requestcontext.ActorFrom(ctx)

	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create donation request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	donation, err := h.service.Create(ctx, actor, req)
	if err != nil {
		h.writeServiceError(ctx, w, "create donation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, donation)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	donations, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(r.Context(), w, "list donations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Donations: donations})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := requestcontext.ActorFrom(ctx)
	donations, err := h.service.ListByDonor(ctx, actor.ID)
	if err != nil {
		h.writeServiceError(ctx, w, "list own donations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Donations: donations})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	donation, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(r.Context(), w, "get donation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donation)
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := requestcontext.ActorFrom(ctx)
	donation, err := h.service.Claim(ctx, chi.URLParam(r, "id"), actor.ID)
	if err != nil {
		h.writeServiceError(ctx, w, "claim donation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donation)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	donation, err := h.service.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(r.Context(), w, "complete donation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donation)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := requestcontext.ActorFrom(ctx)
	if err := h.service.Delete(ctx, actor, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, "delete donation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listResponse struct {
	Donations []models.Donation `json:"donations"`
}

type streamError struct {
	Category feed.Category `json:"category"`
	Message  string        `json:"message"`
}

type streamMessage struct {
	event string
	data  any
	last  bool
}

// handleStream sends a "snapshot" event with the full result set on open and
// after every change. Feed failures arrive as "error" events; a setup failure
// ends the stream.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.stream(w, r, func(ctx context.Context, send func(streamMessage)) feed.Unsubscribe {
		return h.feed.Subscribe(ctx, filter,
			func(d []models.Donation) { send(streamMessage{event: "snapshot", data: listResponse{Donations: d}}) },
			func(err error) { send(errorMessage(err)) },
		)
	})
}

func (h *Handler) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, func(ctx context.Context, send func(streamMessage)) feed.Unsubscribe {
		return h.feed.SubscribeStats(ctx,
			func(s feed.Stats) { send(streamMessage{event: "stats", data: s}) },
			func(err error) { send(errorMessage(err)) },
		)
	})
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, subscribe func(context.Context, func(streamMessage)) feed.Unsubscribe) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sw, err := sse.Start(w)
	if err != nil {
		h.logger.ErrorContext(ctx, "cannot open event stream",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}

	messages := make(chan streamMessage, 8)
	send := func(m streamMessage) {
		select {
		case messages <- m:
		case <-ctx.Done():
		}
	}
	unsubscribe := subscribe(ctx, send)
	// Cancel first: Unsubscribe waits for a callback that may be blocked in send.
	defer func() {
		cancel()
		unsubscribe()
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-messages:
			if err := sw.Event(m.event, m.data); err != nil {
				h.logger.DebugContext(ctx, "event stream write failed", "error", err)
				return
			}
			if m.last {
				return
			}
		case <-ticker.C:
			if err := sw.Comment("keep-alive"); err != nil {
				return
			}
		}
	}
}

func errorMessage(err error) streamMessage {
	var fe *feed.Error
	if !errors.As(err, &fe) {
		return streamMessage{event: "error", data: streamError{Category: feed.CategoryUnknown, Message: feed.MessageLoadFailed}}
	}
	return streamMessage{
		event: "error",
		data:  streamError{Category: fe.Category, Message: fe.Message},
		last:  fe.Terminal,
	}
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "failed to "+action,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, action+" rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

// parseFilter reads status, donorId and limit query parameters.
func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	filter := models.Filter{
		Status:  q.Get("status"),
		OwnerID: q.Get("donorId"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}
