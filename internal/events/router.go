package events

import (
	"context"
	"log/slog"
)

// Router dispatches events to type-specific handlers.
type Router struct {
	handlers map[Type]Handler
	fallback Handler
	logger   *slog.Logger
}

// NewRouter creates a router with an optional fallback handler.
func NewRouter(logger *slog.Logger, fallback Handler) *Router {
	return &Router{
		handlers: make(map[Type]Handler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a handler for an event type, replacing any previous one.
func (r *Router) Register(typ Type, handler Handler) {
	r.handlers[typ] = handler
}

// Handle routes the event to its handler.
func (r *Router) Handle(ctx context.Context, e Event) error {
	handler, ok := r.handlers[e.Type]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, e)
		}
		r.logger.DebugContext(ctx, "no handler for event type, skipping",
			"type", e.Type,
			"event_id", e.ID,
		)
		return nil
	}
	return handler.Handle(ctx, e)
}
