package feed

import (
	"errors"

	"feedra/pkg/platform/sentinel"
)

// Category classifies a feed failure for the subscriber.
type Category string

const (
	CategoryPermissionDenied Category = "permission_denied"
	CategoryIndexRequired    Category = "index_required"
	CategorySetup            Category = "setup"
	CategoryClosed           Category = "stream_closed"
	CategoryUnknown          Category = "unknown"
)

// User-facing messages delivered through the error callback.
const (
	MessagePermissionDenied = "Permission denied. Check Firestore rules."
	MessageIndexRequired    = "Firestore index required. Create index and reload."
	MessageLoadFailed       = "Failed to load live donations."
	MessageSetupFailed      = "Failed to initialize real-time listener"
	MessageStreamClosed     = "Live updates stopped. Reload to reconnect."
)

// Error is what subscribers receive. Error() is the display message; the
// backend cause stays reachable through errors.Is/As. Setup is true when the
// subscription never started. Terminal is true whenever no data will follow,
// which covers setup failures and a backend that closed the stream.
type Error struct {
	Category Category
	Message  string
	Setup    bool
	Terminal bool
	Err      error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// categorize maps a stream error to its user-facing form.
func categorize(err error) *Error {
	switch {
	case errors.Is(err, sentinel.ErrPermissionDenied):
		return &Error{Category: CategoryPermissionDenied, Message: MessagePermissionDenied, Err: err}
	case errors.Is(err, sentinel.ErrFailedPrecondition):
		return &Error{Category: CategoryIndexRequired, Message: MessageIndexRequired, Err: err}
	}
	return &Error{Category: CategoryUnknown, Message: MessageLoadFailed, Err: err}
}

// categorizeSetup keeps the specific message for permission and index
// failures; anything else reads as a failed initialization.
func categorizeSetup(err error) *Error {
	fe := categorize(err)
	fe.Setup = true
	fe.Terminal = true
	if fe.Category == CategoryUnknown {
		fe.Category = CategorySetup
		fe.Message = MessageSetupFailed
	}
	return fe
}
