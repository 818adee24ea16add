package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/notify"
	"agenda/backend/internal/store"
)

// Cancel marks the appointment cancelled on behalf of the booking client.
// The transition is terminal: a second cancel fails with
// ErrAlreadyCancelled rather than moving the cancellation timestamp.
func (s *Service) Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if requesterID == uuid.Nil {
		return domain.Appointment{}, validationError("user_id is required")
	}

	appt, err := s.repo.FindAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrNotFound
		}
		return domain.Appointment{}, err
	}

	if appt.ClientID != requesterID {
		return domain.Appointment{}, ErrForbidden
	}
	if !appt.Active() {
		return domain.Appointment{}, ErrAlreadyCancelled
	}

	now := s.now()
	if domain.WithinCancellationWindow(appt.ScheduledAt, now, s.cfg.CancellationWindow) {
		return domain.Appointment{}, ErrTooLateToCancel
	}

	cancelledAt := now
	appt.CancelledAt = &cancelledAt
	updated, err := s.repo.UpdateAppointment(ctx, appt)
	if err != nil {
		return domain.Appointment{}, err
	}
	updated.Client = appt.Client
	updated.Provider = appt.Provider

	s.notifyCancelled(ctx, updated)

	return updated, nil
}

// notifyCancelled mails the provider. The event just gets queued here;
// delivery runs in the background and never reverses the cancellation.
func (s *Service) notifyCancelled(ctx context.Context, appt domain.Appointment) {
	if appt.Provider == nil {
		s.log.Warn("cancelled appointment has no provider loaded",
			slog.String("appointment_id", appt.ID.String()),
		)
		return
	}

	clientName := "The client"
	if appt.Client != nil {
		clientName = appt.Client.Name
	}
	content := fmt.Sprintf(
		"%s cancelled the appointment scheduled for %s.",
		clientName,
		formatSlot(appt.ScheduledAt),
	)

	_ = s.sink.Emit(ctx, notify.Event{
		Kind:           notify.KindCancellation,
		RecipientID:    appt.Provider.ID,
		RecipientName:  appt.Provider.Name,
		RecipientEmail: appt.Provider.Email,
		Content:        content,
	})
}
