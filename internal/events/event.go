// Package events carries post-commit domain events from the donation and
// notification services to best-effort consumers such as the email notifier.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"feedra/pkg/requestcontext"
)

type Type string

const (
	TypeDonationCreated   Type = "donation.created"
	TypeDonationClaimed   Type = "donation.claimed"
	TypeDonationCompleted Type = "donation.completed"
	TypeUserRegistered    Type = "user.registered"
)

// Event is published only after the write it describes succeeded.
// Consumers must tolerate redelivery; ID is stable across retries.
type Event struct {
	ID         string           `json:"id"`
	Type       Type             `json:"type"`
	OccurredAt time.Time        `json:"occurredAt"`
	RequestID  string           `json:"requestId,omitempty"`
	ActorID    string           `json:"actorId,omitempty"`
	ActorName  string           `json:"actorName,omitempty"`
	ActorEmail string           `json:"actorEmail,omitempty"`
	Donation   *DonationSummary `json:"donation,omitempty"`
	User       *UserSummary     `json:"user,omitempty"`
}

// DonationSummary is the slice of a donation consumers need to render messages.
type DonationSummary struct {
	ID          string  `json:"id"`
	FoodType    string  `json:"foodType"`
	Quantity    float64 `json:"quantity"`
	Location    string  `json:"location"`
	Status      string  `json:"status"`
	DonorID     string  `json:"donorId"`
	DonorName   string  `json:"donorName"`
	ContactInfo string  `json:"contactInfo"`
}

type UserSummary struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType,omitempty"`
}

// New stamps a fresh event with an id, the request clock and request id.
func New(ctx context.Context, typ Type) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: requestcontext.Now(ctx),
		RequestID:  requestcontext.RequestID(ctx),
	}
}

// Publisher delivers events to consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Handler consumes events.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }
