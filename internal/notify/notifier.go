package notify

import (
	"context"
	"log/slog"

	"feedra/internal/events"
	"feedra/pkg/email"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Deduper guards against sending twice for a redelivered event.
type Deduper interface {
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Notifier turns events into emails. It runs behind the event bus, so a
// failure never affects the write that produced the event. A failed send clears
// the dedupe mark and returns the error so the consumer can try it again.
type Notifier struct {
	sender   Sender
	deduper  Deduper
	fromName string
	logger   *slog.Logger
}

type Option func(*Notifier)

func WithDeduper(d Deduper) Option {
	return func(n *Notifier) { n.deduper = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) { n.logger = logger }
}

func New(sender Sender, fromName string, opts ...Option) *Notifier {
	n := &Notifier{sender: sender, fromName: fromName, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Register binds the notifier to the event types it renders.
func (n *Notifier) Register(r *events.Router) {
	r.Register(events.TypeUserRegistered, events.HandlerFunc(n.handleUserRegistered))
	r.Register(events.TypeDonationCreated, events.HandlerFunc(n.handleDonationCreated))
	r.Register(events.TypeDonationClaimed, events.HandlerFunc(n.handleDonationClaimed))
}

func (n *Notifier) handleUserRegistered(ctx context.Context, e events.Event) error {
	if e.User == nil {
		return nil
	}
	return n.deliver(ctx, e, Welcome(n.fromName, e.User.Name, e.User.Email, e.User.UserType))
}

func (n *Notifier) handleDonationCreated(ctx context.Context, e events.Event) error {
	d := e.Donation
	if d == nil {
		return nil
	}
	to := donorAddress(e.ActorEmail, d.ContactInfo)
	if to == "" {
		n.logger.DebugContext(ctx, "no donor address, skipping donation email", "donation_id", d.ID)
		return nil
	}
	return n.deliver(ctx, e, DonationPosted(n.fromName, d.DonorName, to, d.Quantity, d.FoodType, d.Location))
}

func (n *Notifier) handleDonationClaimed(ctx context.Context, e events.Event) error {
	d := e.Donation
	if d == nil {
		return nil
	}
	// The actor is the claimant; the donor is reachable only through the contact field.
	to := donorAddress("", d.ContactInfo)
	if to == "" {
		n.logger.DebugContext(ctx, "no donor address, skipping claim email", "donation_id", d.ID)
		return nil
	}
	claimer := email.DisplayName(e.ActorName, e.ActorEmail)
	return n.deliver(ctx, e, ClaimNotify(n.fromName, d.DonorName, to, claimer, d.Quantity, d.FoodType))
}

func (n *Notifier) deliver(ctx context.Context, e events.Event, msg Message) error {
	if n.deduper != nil {
		first, err := n.deduper.FirstDelivery(ctx, e.ID)
		if err != nil {
			n.logger.WarnContext(ctx, "notification dedupe unavailable, sending anyway",
				"event_id", e.ID,
				"error", err,
			)
		} else if !first {
			n.logger.DebugContext(ctx, "duplicate event, notification already sent", "event_id", e.ID)
			return nil
		}
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.WarnContext(ctx, "notification failed",
			"event_id", e.ID,
			"template", msg.Template,
			"request_id", e.RequestID,
			"error", err,
		)
		if n.deduper != nil {
			if ferr := n.deduper.Forget(ctx, e.ID); ferr != nil {
				n.logger.DebugContext(ctx, "failed to clear dedupe mark", "event_id", e.ID, "error", ferr)
			}
		}
		return err
	}
	n.logger.InfoContext(ctx, "notification sent",
		"event_id", e.ID,
		"template", msg.Template,
		"request_id", e.RequestID,
	)
	return nil
}

func donorAddress(candidates ...string) string {
	for _, c := range candidates {
		if email.Valid(c) {
			return c
		}
	}
	return ""
}
