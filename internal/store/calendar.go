package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
)

// ProviderCalendarTx is the transactional view of one provider's calendar.
// Implementations hold whatever lock serializes writers on that calendar
// for the lifetime of the transaction, so a check followed by an insert
// cannot interleave with another request for the same provider.
type ProviderCalendarTx interface {
	FindActiveAppointment(ctx context.Context, providerID uuid.UUID, slot time.Time) (domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}
