package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/notify"
	"agenda/backend/internal/store"
)

type CreateInput struct {
	ClientID   uuid.UUID
	ProviderID uuid.UUID
	Date       time.Time
}

// Create books the provider's slot containing in.Date. The slot is
// truncated to the hour; validation runs in order and stops at the first
// failure. The availability read here is a fast path only: races between
// concurrent requests are decided by the store, which re-checks under the
// provider's lock with the unique index as the final backstop.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	if in.ClientID == uuid.Nil {
		return domain.Appointment{}, validationError("client_id is required")
	}
	if in.ProviderID == uuid.Nil {
		return domain.Appointment{}, validationError("provider_id is required")
	}
	if in.Date.IsZero() {
		return domain.Appointment{}, validationError("date is required")
	}

	provider, err := s.repo.FindProvider(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrInvalidProvider
		}
		return domain.Appointment{}, err
	}

	// One clock read per request; every later check uses it.
	now := s.now()
	slot := domain.NormalizeSlot(in.Date)
	if domain.IsPast(slot, now) {
		return domain.Appointment{}, ErrPastDate
	}

	if _, err := s.repo.FindActiveAppointment(ctx, in.ProviderID, slot); err == nil {
		return domain.Appointment{}, ErrSlotTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Appointment{}, err
	}

	appt, err := s.repo.CreateAppointment(ctx, domain.Appointment{
		ClientID:    in.ClientID,
		ProviderID:  in.ProviderID,
		ScheduledAt: slot,
	})
	if err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			return domain.Appointment{}, ErrSlotTaken
		}
		return domain.Appointment{}, err
	}

	s.notifyBooked(ctx, provider, appt)

	return appt, nil
}

// notifyBooked tells the provider about the new booking. Best effort: a
// failed client lookup downgrades to a nameless notice and sink errors are
// already swallowed by the dispatcher, so the booking stands either way.
func (s *Service) notifyBooked(ctx context.Context, provider domain.User, appt domain.Appointment) {
	content := fmt.Sprintf("New booking for %s", formatSlot(appt.ScheduledAt))
	client, err := s.repo.FindUser(ctx, appt.ClientID)
	if err != nil {
		s.log.Warn("client lookup for notification failed",
			slog.Any("err", err),
			slog.String("client_id", appt.ClientID.String()),
		)
	} else {
		content = fmt.Sprintf("New booking from %s for %s", client.Name, formatSlot(appt.ScheduledAt))
	}

	_ = s.sink.Emit(ctx, notify.Event{
		Kind:           notify.KindNewBooking,
		RecipientID:    provider.ID,
		RecipientName:  provider.Name,
		RecipientEmail: provider.Email,
		Content:        content,
	})
}

// ListForClient returns the client's active appointments, soonest first.
func (s *Service) ListForClient(ctx context.Context, clientID uuid.UUID, page int) ([]domain.Appointment, error) {
	if clientID == uuid.Nil {
		return nil, validationError("user_id is required")
	}
	if page < 1 {
		page = 1
	}
	return s.repo.ListActiveForClient(ctx, clientID, page, s.cfg.PageSize)
}
