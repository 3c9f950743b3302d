package models

// Status is the lifecycle state of a donation.
type Status string

const (
	StatusAvailable Status = "available"
	StatusClaimed   Status = "claimed"
	StatusCompleted Status = "completed"
)

// StatusAll is the filter sentinel meaning "no status filter".
const StatusAll = "all"

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusClaimed, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo enforces the one-way lifecycle available → claimed → completed.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusAvailable:
		return next == StatusClaimed
	case StatusClaimed:
		return next == StatusCompleted
	}
	return false
}

func (s Status) String() string { return string(s) }

// Urgency is the donor-declared pickup priority.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}
