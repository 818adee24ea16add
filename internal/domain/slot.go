package domain

import "time"

// Slot helpers. Appointments are booked at hour granularity: a slot is the
// start of an hour in UTC, and a provider hosts at most one active
// appointment per slot.

// NormalizeSlot truncates t to the start of its containing hour, in UTC.
// Idempotent: NormalizeSlot(NormalizeSlot(t)) == NormalizeSlot(t).
func NormalizeSlot(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// IsPast reports whether t is strictly before now. A slot equal to now is
// still bookable.
func IsPast(t, now time.Time) bool {
	return t.Before(now)
}

// WithinCancellationWindow reports whether fewer than window remains before
// slot, i.e. cancellation is no longer allowed. Exactly window before the
// slot is still outside the window.
func WithinCancellationWindow(slot, now time.Time, window time.Duration) bool {
	return slot.Add(-window).Before(now)
}
