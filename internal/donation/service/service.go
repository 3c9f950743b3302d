package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"feedra/internal/donation/metrics"
	"feedra/internal/donation/models"
	"feedra/internal/donation/normalize"
	"feedra/internal/donation/query"
	"feedra/internal/events"
	dErrors "feedra/pkg/domain-errors"
	"feedra/pkg/email"
	"feedra/pkg/platform/sentinel"
	"feedra/pkg/requestcontext"
)

// donorListLimit caps a donor's own history listing.
const donorListLimit = 10

type Store interface {
	Create(ctx context.Context, rec models.Record) (string, error)
	Get(ctx context.Context, id string) (models.Record, error)
	Query(ctx context.Context, spec query.Spec) ([]models.Record, error)
	UpdateFields(ctx context.Context, id string, fields models.Fields) error
	Delete(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// Service creates donations and advances them through available → claimed →
// completed.
//
// Transitions read the current status to reject illegal moves, then issue a
// partial write. The read and the write are not atomic: two claims racing on
// the same available donation both succeed and the later write wins.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("feedra/donation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates req and stores a new available donation owned by actor.
func (s *Service) Create(ctx context.Context, actor requestcontext.Actor, req models.CreateRequest) (models.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "donation.Create")
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveWrite("create", start)

	if actor.ID == "" {
		return models.Donation{}, dErrors.New(dErrors.CodeUnauthorized, "sign in to post a donation")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.Donation{}, err
	}

	now := requestcontext.Now(ctx)
	expiry, ok := normalize.Instant(models.RawTimestamp(req.ExpiryDate))
	if !ok {
		return models.Donation{}, dErrors.New(dErrors.CodeValidation, "expiryDate must be a valid date")
	}
	if !expiry.After(now) {
		return models.Donation{}, dErrors.New(dErrors.CodeValidation, "expiryDate must be in the future")
	}

	contact := req.ContactInfo
	if contact == "" {
		contact = actor.Email
	}
	rec := models.Record{
		FoodType:           req.FoodType,
		Description:        req.Description,
		Quantity:           req.Quantity,
		Location:           req.Location,
		Tags:               req.Tags,
		PickupInstructions: req.PickupInstructions,
		Status:             models.StatusAvailable,
		Urgency:            req.Urgency,
		CreatedAt:          models.Instant(now),
		ExpiryDate:         models.Instant(expiry),
		DonorID:            actor.ID,
		DonorName:          email.DisplayName(actor.Name, actor.Email),
		ContactInfo:        contact,
	}

	id, err := s.store.Create(ctx, rec)
	if err != nil {
		return models.Donation{}, s.fail(span, translate(err, "create donation"))
	}
	rec.ID = id
	span.SetAttributes(attribute.String("donation.id", id))

	s.logger.InfoContext(ctx, "donation created",
		"donation_id", id,
		"donor_id", actor.ID,
		"food_type", rec.FoodType,
	)
	s.metrics.IncrementTransition(string(models.StatusAvailable))
	s.publish(ctx, events.TypeDonationCreated, rec)

	return normalize.Donation(rec, now), nil
}

// Claim moves an available donation to claimed by actorID.
func (s *Service) Claim(ctx context.Context, donationID, actorID string) (models.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "donation.Claim", trace.WithAttributes(
		attribute.String("donation.id", donationID),
	))
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveWrite("claim", start)

	if strings.TrimSpace(actorID) == "" {
		return models.Donation{}, dErrors.New(dErrors.CodeValidation, "claimant id is required")
	}
	now := requestcontext.Now(ctx)
	d, err := s.transition(ctx, donationID, models.StatusClaimed, models.ClaimFields(actorID, now), now)
	if err != nil {
		return models.Donation{}, s.fail(span, err)
	}
	s.logger.InfoContext(ctx, "donation claimed", "donation_id", donationID, "claimed_by", actorID)
	return d, nil
}

// Complete moves a claimed donation to completed.
func (s *Service) Complete(ctx context.Context, donationID string) (models.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "donation.Complete", trace.WithAttributes(
		attribute.String("donation.id", donationID),
	))
	defer span.End()
	start := time.Now()
	defer s.metrics.ObserveWrite("complete", start)

	now := requestcontext.Now(ctx)
	d, err := s.transition(ctx, donationID, models.StatusCompleted, models.CompleteFields(now), now)
	if err != nil {
		return models.Donation{}, s.fail(span, err)
	}
	s.logger.InfoContext(ctx, "donation completed", "donation_id", donationID)
	return d, nil
}

func (s *Service) transition(ctx context.Context, id string, to models.Status, fields models.Fields, now time.Time) (models.Donation, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Donation{}, translate(err, "load donation")
	}
	if !rec.Status.CanTransitionTo(to) {
		s.metrics.IncrementRejectedTransition(string(rec.Status), string(to))
		return models.Donation{}, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("donation is %s and cannot become %s", rec.Status, to))
	}
	if err := s.store.UpdateFields(ctx, id, fields); err != nil {
		return models.Donation{}, translate(err, "update donation")
	}
	fields.Apply(&rec)
	s.metrics.IncrementTransition(string(to))

	typ := events.TypeDonationClaimed
	if to == models.StatusCompleted {
		typ = events.TypeDonationCompleted
	}
	s.publish(ctx, typ, rec)
	return normalize.Donation(rec, now), nil
}

// Get loads one donation.
func (s *Service) Get(ctx context.Context, id string) (models.Donation, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Donation{}, translate(err, "load donation")
	}
	return normalize.Donation(rec, requestcontext.Now(ctx)), nil
}

// List runs filter once, newest first.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]models.Donation, error) {
	spec, err := query.Build(filter)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.Query(ctx, spec)
	if err != nil {
		return nil, translate(err, "list donations")
	}
	return normalize.Donations(recs, requestcontext.Now(ctx)), nil
}

// ListByDonor returns a donor's most recent donations.
func (s *Service) ListByDonor(ctx context.Context, donorID string) ([]models.Donation, error) {
	if strings.TrimSpace(donorID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "donor id is required")
	}
	return s.List(ctx, models.Filter{OwnerID: donorID, Limit: donorListLimit})
}

// Delete removes a donation. Only administrators may delete.
func (s *Service) Delete(ctx context.Context, actor requestcontext.Actor, id string) error {
	ctx, span := s.tracer.Start(ctx, "donation.Delete", trace.WithAttributes(
		attribute.String("donation.id", id),
	))
	defer span.End()

	if !actor.Admin {
		return s.fail(span, dErrors.New(dErrors.CodeForbidden, "admin access required"))
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.fail(span, translate(err, "delete donation"))
	}
	s.logger.InfoContext(ctx, "donation deleted", "donation_id", id, "admin_id", actor.ID)
	return nil
}

// publish emits a post-commit event. A failed publish never fails the write.
func (s *Service) publish(ctx context.Context, typ events.Type, rec models.Record) {
	if s.publisher == nil {
		return
	}
	e := events.New(ctx, typ)
	if actor, ok := requestcontext.ActorFrom(ctx); ok {
		e.ActorID = actor.ID
		e.ActorName = email.DisplayName(actor.Name, actor.Email)
		e.ActorEmail = actor.Email
	}
	e.Donation = &events.DonationSummary{
		ID:          rec.ID,
		FoodType:    rec.FoodType,
		Quantity:    rec.Quantity,
		Location:    rec.Location,
		Status:      string(rec.Status),
		DonorID:     rec.DonorID,
		DonorName:   rec.DonorName,
		ContactInfo: rec.ContactInfo,
	}
	if typ == events.TypeDonationClaimed {
		e.ActorID = rec.ClaimedBy
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to publish donation event",
			"type", typ,
			"donation_id", rec.ID,
			"error", err,
		)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

// translate maps store failures onto domain error codes.
func translate(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "donation not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "donation already exists")
	case errors.Is(err, sentinel.ErrPermissionDenied):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "permission denied by the donation store")
	case errors.Is(err, sentinel.ErrFailedPrecondition):
		return dErrors.Wrap(err, dErrors.CodePreconditionFailed, "donation query requires a missing index")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "donation store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}
