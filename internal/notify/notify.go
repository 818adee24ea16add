package notify

import (
	"context"

	"github.com/google/uuid"
)

type Kind string

const (
	KindNewBooking   Kind = "new_booking"
	KindCancellation Kind = "cancellation"
)

// Event is a transient notification produced by the booking core. Content
// is the fully rendered text; sinks never re-template it.
type Event struct {
	Kind           Kind
	RecipientID    uuid.UUID
	RecipientName  string
	RecipientEmail string
	Content        string
}

// Sink receives events for asynchronous delivery. Delivery is best effort:
// the booking core calls Emit after the transaction has committed and never
// reverses the operation when delivery fails.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}
