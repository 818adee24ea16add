package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

// slotUniqueConstraint is the partial unique index on
// (provider_id, scheduled_at) WHERE cancelled_at IS NULL. The index, not
// the preceding availability read, is what makes double-booking impossible.
const slotUniqueConstraint = "appointments_provider_slot_active"

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type providerCalendarTx struct {
	tx bun.Tx
}

func (r *BookingRepo) FindProvider(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Where("id = ?", id).
		Where("provider = TRUE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *BookingRepo) FindUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *BookingRepo) FindActiveAppointment(ctx context.Context, providerID uuid.UUID, slot time.Time) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("provider_id = ?", providerID).
		Where("scheduled_at = ?", slot).
		Where("cancelled_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r *BookingRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.InProviderTransaction(ctx, appt.ProviderID, func(ctx context.Context, tx store.ProviderCalendarTx) error {
		// Re-check under the lock so a losing writer gets ErrSlotTaken
		// from the read instead of the constraint violation.
		if _, err := tx.FindActiveAppointment(ctx, appt.ProviderID, appt.ScheduledAt); err == nil {
			return store.ErrSlotTaken
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		a, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *BookingRepo) FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Relation("Client").
		Relation("Provider").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r *BookingRepo) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.db.NewUpdate().
		Model(&m).
		Column("cancelled_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func (r *BookingRepo) ListActiveForClient(ctx context.Context, clientID uuid.UUID, page, pageSize int) ([]domain.Appointment, error) {
	if page < 1 {
		page = 1
	}
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Provider").
		Where("?TableAlias.client_id = ?", clientID).
		Where("?TableAlias.cancelled_at IS NULL").
		OrderExpr("?TableAlias.scheduled_at ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) ListProviders(ctx context.Context) ([]domain.User, error) {
	var rows []domain.User
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider = TRUE").
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BookingRepo) ListProviderDay(ctx context.Context, providerID uuid.UUID, dayStart, dayEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Client").
		Where("?TableAlias.provider_id = ?", providerID).
		Where("?TableAlias.cancelled_at IS NULL").
		Where("?TableAlias.scheduled_at >= ?", dayStart).
		Where("?TableAlias.scheduled_at < ?", dayEnd).
		OrderExpr("?TableAlias.scheduled_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InProviderTransaction runs fn inside a transaction that holds an advisory
// lock on the provider's calendar, serializing concurrent writers for the
// same provider even across process instances.
func (r *BookingRepo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.ProviderCalendarTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderCalendar(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, providerCalendarTx{tx: tx})
	})
}

func lockProviderCalendar(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Exec(ctx)
	return err
}

func (t providerCalendarTx) FindActiveAppointment(ctx context.Context, providerID uuid.UUID, slot time.Time) (domain.Appointment, error) {
	var a domain.Appointment
	err := t.tx.NewSelect().
		Model(&a).
		Where("provider_id = ?", providerID).
		Where("scheduled_at = ?", slot).
		Where("cancelled_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func (t providerCalendarTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:          appt.ID,
		ClientID:    appt.ClientID,
		ProviderID:  appt.ProviderID,
		ScheduledAt: appt.ScheduledAt,
		CancelledAt: appt.CancelledAt,
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}

	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == slotUniqueConstraint {
			return domain.Appointment{}, store.ErrSlotTaken
		}
		return domain.Appointment{}, err
	}
	return m, nil
}
