// Package normalize converts stored timestamp representations into instants.
//
// Required fields (createdAt, expiryDate) fall back to the caller's "now" when the
// value is missing or unparseable; optional lifecycle fields (claimedAt,
// completedAt, updatedAt) fall back to nil so no history is fabricated.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"feedra/internal/donation/models"
)

// rawLayouts are tried in order for string timestamps. The minute-precision
// layout is what an HTML datetime-local input submits.
var rawLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Instant resolves ts to an instant. ok is false for Missing or unparseable values.
func Instant(ts models.Timestamp) (time.Time, bool) {
	switch ts.Kind {
	case models.TimestampInstant:
		if ts.Instant.IsZero() {
			return time.Time{}, false
		}
		return ts.Instant, true
	case models.TimestampEpoch:
		return fromMillis(ts.Millis)
	case models.TimestampRaw:
		return parseRaw(ts.Raw)
	default:
		return time.Time{}, false
	}
}

// Required resolves ts, falling back to now.
func Required(ts models.Timestamp, now time.Time) time.Time {
	if t, ok := Instant(ts); ok {
		return t
	}
	return now
}

// Optional resolves ts, falling back to nil.
func Optional(ts models.Timestamp) *time.Time {
	if t, ok := Instant(ts); ok {
		return &t
	}
	return nil
}

// Donation converts a stored record into its normalized read model.
func Donation(rec models.Record, now time.Time) models.Donation {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	} else {
		tags = append([]string(nil), tags...)
	}
	return models.Donation{
		ID:                 rec.ID,
		FoodType:           rec.FoodType,
		Description:        rec.Description,
		Quantity:           rec.Quantity,
		Location:           rec.Location,
		Tags:               tags,
		PickupInstructions: rec.PickupInstructions,
		Status:             rec.Status,
		Urgency:            rec.Urgency,
		CreatedAt:          Required(rec.CreatedAt, now),
		ExpiryDate:         Required(rec.ExpiryDate, now),
		ClaimedBy:          rec.ClaimedBy,
		ClaimedAt:          Optional(rec.ClaimedAt),
		CompletedAt:        Optional(rec.CompletedAt),
		UpdatedAt:          Optional(rec.UpdatedAt),
		DonorID:            rec.DonorID,
		DonorName:          rec.DonorName,
		ContactInfo:        rec.ContactInfo,
	}
}

// Donations normalizes a batch against a single "now" so every fallback in one
// snapshot shares the same instant.
func Donations(recs []models.Record, now time.Time) []models.Donation {
	out := make([]models.Donation, len(recs))
	for i, rec := range recs {
		out[i] = Donation(rec, now)
	}
	return out
}

func fromMillis(ms int64) (time.Time, bool) {
	if ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func parseRaw(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range rawLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return fromMillis(ms)
	}
	return time.Time{}, false
}
