package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

// AvailableSlot is one bookable hour of a provider's day.
type AvailableSlot struct {
	Time      time.Time `json:"time"`
	Hour      string    `json:"hour"`
	Available bool      `json:"available"`
}

// ListProviders returns all users who can receive bookings.
func (s *Service) ListProviders(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListProviders(ctx)
}

// ProviderSchedule returns the provider's active appointments for the day
// containing day, soonest first. The caller must be a provider.
func (s *Service) ProviderSchedule(ctx context.Context, providerID uuid.UUID, day time.Time) ([]domain.Appointment, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if day.IsZero() {
		return nil, validationError("date is required")
	}

	if _, err := s.repo.FindProvider(ctx, providerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidProvider
		}
		return nil, err
	}

	dayStart, dayEnd := dayBounds(day)
	return s.repo.ListProviderDay(ctx, providerID, dayStart, dayEnd)
}

// AvailableHours lists every slot of the provider's working day and whether
// it can still be booked: a slot is unavailable once it is past or taken by
// an active appointment.
func (s *Service) AvailableHours(ctx context.Context, providerID uuid.UUID, day time.Time) ([]AvailableSlot, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if day.IsZero() {
		return nil, validationError("date is required")
	}

	if _, err := s.repo.FindProvider(ctx, providerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidProvider
		}
		return nil, err
	}

	dayStart, dayEnd := dayBounds(day)
	appts, err := s.repo.ListProviderDay(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	taken := make(map[int64]struct{}, len(appts))
	for _, a := range appts {
		taken[a.ScheduledAt.UTC().Unix()] = struct{}{}
	}

	now := s.now()
	out := make([]AvailableSlot, 0, s.cfg.DayEndHour-s.cfg.DayStartHour+1)
	for h := s.cfg.DayStartHour; h <= s.cfg.DayEndHour; h++ {
		slot := dayStart.Add(time.Duration(h) * time.Hour)
		_, isTaken := taken[slot.Unix()]
		out = append(out, AvailableSlot{
			Time:      slot,
			Hour:      slot.Format("15:04"),
			Available: !isTaken && !domain.IsPast(slot, now),
		})
	}
	return out, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
