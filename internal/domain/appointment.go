package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	ClientID    uuid.UUID  `bun:"client_id,notnull,type:uuid"`
	ProviderID  uuid.UUID  `bun:"provider_id,notnull,type:uuid"`
	ScheduledAt time.Time  `bun:"scheduled_at,notnull"`
	CancelledAt *time.Time `bun:"cancelled_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`

	Client   *User `bun:"rel:belongs-to,join:client_id=id"`
	Provider *User `bun:"rel:belongs-to,join:provider_id=id"`
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a.CancelledAt == nil
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
