package models

import "time"

// Stored field names. They match the document keys the web client writes to the
// donations collection, so both sides read the same documents.
const (
	FieldFoodType           = "foodType"
	FieldDescription        = "description"
	FieldQuantity           = "quantity"
	FieldLocation           = "location"
	FieldTags               = "tags"
	FieldPickupInstructions = "pickupInstructions"
	FieldStatus             = "status"
	FieldUrgency            = "urgency"
	FieldCreatedAt          = "createdAt"
	FieldExpiryDate         = "expiryDate"
	FieldClaimedBy          = "claimedBy"
	FieldClaimedAt          = "claimedAt"
	FieldCompletedAt        = "completedAt"
	FieldUpdatedAt          = "updatedAt"
	FieldDonorID            = "donorId"
	FieldDonorName          = "donorName"
	FieldContactInfo        = "contactInfo"
)

// FieldUpdate sets one field in a partial write.
type FieldUpdate struct {
	Field string
	Value any
}

// Fields is a partial-field write applied atomically to a single document.
type Fields []FieldUpdate

// ClaimFields is the partial write for available → claimed.
func ClaimFields(actorID string, now time.Time) Fields {
	return Fields{
		{Field: FieldStatus, Value: StatusClaimed},
		{Field: FieldClaimedBy, Value: actorID},
		{Field: FieldClaimedAt, Value: now},
		{Field: FieldUpdatedAt, Value: now},
	}
}

// CompleteFields is the partial write for claimed → completed.
func CompleteFields(now time.Time) Fields {
	return Fields{
		{Field: FieldStatus, Value: StatusCompleted},
		{Field: FieldCompletedAt, Value: now},
		{Field: FieldUpdatedAt, Value: now},
	}
}

// Apply writes the updates onto rec. Unknown fields are ignored; value types
// follow ClaimFields/CompleteFields.
func (f Fields) Apply(rec *Record) {
	for _, u := range f {
		switch u.Field {
		case FieldStatus:
			switch v := u.Value.(type) {
			case Status:
				rec.Status = v
			case string:
				rec.Status = Status(v)
			}
		case FieldClaimedBy:
			if v, ok := u.Value.(string); ok {
				rec.ClaimedBy = v
			}
		case FieldClaimedAt:
			rec.ClaimedAt = TimestampOf(u.Value)
		case FieldCompletedAt:
			rec.CompletedAt = TimestampOf(u.Value)
		case FieldUpdatedAt:
			rec.UpdatedAt = TimestampOf(u.Value)
		case FieldUrgency:
			if v, ok := u.Value.(Urgency); ok {
				rec.Urgency = v
			}
		case FieldPickupInstructions:
			if v, ok := u.Value.(string); ok {
				rec.PickupInstructions = v
			}
		}
	}
}
