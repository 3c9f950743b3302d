package models

import (
	"strings"

	dErrors "feedra/pkg/domain-errors"
)

// Filter selects donations for a one-shot read or a live subscription.
// Zero values mean "no constraint".
type Filter struct {
	Status  string `json:"status,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// CreateRequest is the donor-supplied part of a new donation.
type CreateRequest struct {
	FoodType           string   `json:"foodType"`
	Description        string   `json:"description"`
	Quantity           float64  `json:"quantity"`
	Location           string   `json:"location"`
	ExpiryDate         string   `json:"expiryDate"`
	ContactInfo        string   `json:"contactInfo"`
	Urgency            Urgency  `json:"urgency"`
	Tags               []string `json:"tags"`
	PickupInstructions string   `json:"pickupInstructions"`
}

// Normalize trims free text, lower-cases the food category and applies defaults.
func (r *CreateRequest) Normalize() {
	r.FoodType = strings.ToLower(strings.TrimSpace(r.FoodType))
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
	r.ExpiryDate = strings.TrimSpace(r.ExpiryDate)
	r.ContactInfo = strings.TrimSpace(r.ContactInfo)
	r.PickupInstructions = strings.TrimSpace(r.PickupInstructions)
	if r.Urgency == "" {
		r.Urgency = UrgencyMedium
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
}

// Validate checks required fields and the positive-quantity invariant. The
// expiry-in-the-future rule needs a clock and is checked by the service.
func (r *CreateRequest) Validate() error {
	var missing []string
	if r.FoodType == "" {
		missing = append(missing, FieldFoodType)
	}
	if r.Description == "" {
		missing = append(missing, FieldDescription)
	}
	if r.Location == "" {
		missing = append(missing, FieldLocation)
	}
	if r.ExpiryDate == "" {
		missing = append(missing, FieldExpiryDate)
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	if !(r.Quantity > 0) {
		return dErrors.New(dErrors.CodeValidation, "quantity must be greater than 0")
	}
	if !r.Urgency.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "urgency must be one of low, medium, high")
	}
	return nil
}
