package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
)

// BookingRepository is the persistence collaborator the booking core
// depends on. Implementations must enforce the active-slot uniqueness
// guarantee in storage: CreateAppointment fails with ErrSlotTaken when an
// uncancelled appointment already holds (provider_id, scheduled_at), even
// under concurrent inserts.
type BookingRepository interface {
	// FindProvider returns the user only if the provider flag is set;
	// a missing user and a non-provider both yield ErrNotFound.
	FindProvider(ctx context.Context, id uuid.UUID) (domain.User, error)
	FindUser(ctx context.Context, id uuid.UUID) (domain.User, error)

	FindActiveAppointment(ctx context.Context, providerID uuid.UUID, slot time.Time) (domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// FindAppointment loads the Client and Provider relations.
	FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)

	ListActiveForClient(ctx context.Context, clientID uuid.UUID, page, pageSize int) ([]domain.Appointment, error)
	ListProviders(ctx context.Context) ([]domain.User, error)
	ListProviderDay(ctx context.Context, providerID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.Appointment, error)
}
