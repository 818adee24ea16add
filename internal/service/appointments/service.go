package appointments

import (
	"errors"
	"log/slog"
	"time"

	"agenda/backend/internal/notify"
	"agenda/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Business outcomes the calling layer maps to responses. Anything else
// coming out of this package is an internal failure.
var (
	ErrInvalidProvider  = errors.New("appointments can only be created with providers")
	ErrPastDate         = errors.New("past dates are not permitted")
	ErrSlotTaken        = errors.New("appointment date is not available")
	ErrNotFound         = errors.New("appointment not found")
	ErrForbidden        = errors.New("only the booking client may cancel an appointment")
	ErrTooLateToCancel  = errors.New("too late to cancel the appointment")
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
)

const (
	DefaultCancellationWindow = 2 * time.Hour
	DefaultPageSize           = 20

	// Bookable hours of a provider's day, inclusive on both ends.
	DefaultDayStartHour = 8
	DefaultDayEndHour   = 19
)

type Config struct {
	CancellationWindow time.Duration
	PageSize           int
	DayStartHour       int
	DayEndHour         int
}

func (c Config) withDefaults() Config {
	if c.CancellationWindow <= 0 {
		c.CancellationWindow = DefaultCancellationWindow
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.DayStartHour <= 0 {
		c.DayStartHour = DefaultDayStartHour
	}
	if c.DayEndHour <= 0 {
		c.DayEndHour = DefaultDayEndHour
	}
	return c
}

type Service struct {
	repo store.BookingRepository
	sink notify.Sink
	cfg  Config
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo store.BookingRepository, sink notify.Sink, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo: repo,
		sink: sink,
		cfg:  cfg.withDefaults(),
		log:  log.With(slog.String("component", "service.appointments")),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func formatSlot(t time.Time) string {
	return t.Format("Monday, January 2 2006 at 15:04")
}
