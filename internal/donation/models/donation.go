package models

import "time"

// Donation is one offer of surplus food, as served to readers. Timestamps are
// already normalized; optional lifecycle instants are nil until they happen.
//
// Invariants:
//   - Status only moves available → claimed → completed
//   - ClaimedBy and ClaimedAt are set together on available → claimed
//   - CompletedAt is set only on claimed → completed
//   - Quantity > 0 and ExpiryDate is after CreatedAt (checked at creation)
type Donation struct {
	ID                 string     `json:"id"`
	FoodType           string     `json:"foodType"`
	Description        string     `json:"description"`
	Quantity           float64    `json:"quantity"`
	Location           string     `json:"location"`
	Tags               []string   `json:"tags"`
	PickupInstructions string     `json:"pickupInstructions,omitempty"`
	Status             Status     `json:"status"`
	Urgency            Urgency    `json:"urgency"`
	CreatedAt          time.Time  `json:"createdAt"`
	ExpiryDate         time.Time  `json:"expiryDate"`
	ClaimedBy          string     `json:"claimedBy,omitempty"`
	ClaimedAt          *time.Time `json:"claimedAt"`
	CompletedAt        *time.Time `json:"completedAt"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
	DonorID            string     `json:"donorId"`
	DonorName          string     `json:"donorName"`
	ContactInfo        string     `json:"contactInfo"`
}

// Record is a donation as read from a store, before timestamp normalization.
// Stores fill timestamp fields with whatever representation they hold.
type Record struct {
	ID                 string
	FoodType           string
	Description        string
	Quantity           float64
	Location           string
	Tags               []string
	PickupInstructions string
	Status             Status
	Urgency            Urgency
	CreatedAt          Timestamp
	ExpiryDate         Timestamp
	ClaimedBy          string
	ClaimedAt          Timestamp
	CompletedAt        Timestamp
	UpdatedAt          Timestamp
	DonorID            string
	DonorName          string
	ContactInfo        string
}

// Clone returns a deep copy so stores never hand out shared slices.
func (r Record) Clone() Record {
	if r.Tags != nil {
		r.Tags = append([]string(nil), r.Tags...)
	}
	return r
}
