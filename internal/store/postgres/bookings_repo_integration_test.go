package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

func TestPostgresIntegration_BookingLifecycle(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("AGENDA_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("AGENDA_TEST_DATABASE_URL not set")
	}

	admin, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(admin)
	})

	schema := "agenda_test_" + randomHex(t, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := admin.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema error: %v", err)
	}
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = admin.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(dropCtx)
	})

	db, err := Open(scopedURL(t, databaseURL, schema), PoolConfig{MaxOpenConns: 10})
	if err != nil {
		t.Fatalf("Open scoped error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("migrations error: %v", err)
	}

	client := domain.User{ID: uuid.New(), Name: "Chris Client", Email: "chris@example.com"}
	provider := domain.User{ID: uuid.New(), Name: "Pat Provider", Email: "pat@example.com", Provider: true}
	third := domain.User{ID: uuid.New(), Name: "Terry Third", Email: "terry@example.com"}
	for _, u := range []domain.User{client, provider, third} {
		m := u
		if _, err := db.NewInsert().Model(&m).Exec(ctx); err != nil {
			t.Fatalf("insert user error: %v", err)
		}
	}

	repo := NewBookingRepo(db)

	if _, err := repo.FindProvider(ctx, provider.ID); err != nil {
		t.Fatalf("FindProvider error: %v", err)
	}
	if _, err := repo.FindProvider(ctx, client.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindProvider on non-provider = %v, want %v", err, store.ErrNotFound)
	}

	slot := time.Date(2030, 6, 1, 14, 0, 0, 0, time.UTC)

	appt, err := repo.CreateAppointment(ctx, domain.Appointment{
		ClientID:    client.ID,
		ProviderID:  provider.ID,
		ScheduledAt: slot,
	})
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if appt.ID == uuid.Nil {
		t.Fatalf("expected assigned id")
	}

	if _, err := repo.FindActiveAppointment(ctx, provider.ID, slot); err != nil {
		t.Fatalf("FindActiveAppointment error: %v", err)
	}

	if _, err := repo.CreateAppointment(ctx, domain.Appointment{
		ClientID:    third.ID,
		ProviderID:  provider.ID,
		ScheduledAt: slot,
	}); !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("duplicate slot err = %v, want %v", err, store.ErrSlotTaken)
	}

	// The transactional view must see the active appointment, so the locked
	// check-then-insert path decides conflicts before touching the index.
	err = repo.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.ProviderCalendarTx) error {
		if _, err := tx.FindActiveAppointment(ctx, provider.ID, slot); err != nil {
			t.Errorf("in-tx FindActiveAppointment on taken slot = %v, want nil", err)
		}
		if _, err := tx.FindActiveAppointment(ctx, provider.ID, slot.Add(3*time.Hour)); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("in-tx FindActiveAppointment on free slot = %v, want %v", err, store.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InProviderTransaction error: %v", err)
	}

	// The unique index must hold under concurrent inserts too.
	contested := slot.Add(time.Hour)
	const attempts = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateAppointment(ctx, domain.Appointment{
				ClientID:    client.ID,
				ProviderID:  provider.ID,
				ScheduledAt: contested,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, store.ErrSlotTaken):
				conflicts++
			default:
				t.Errorf("concurrent create error: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("concurrent creates: successes = %d, conflicts = %d, want 1 and %d", successes, conflicts, attempts-1)
	}

	loaded, err := repo.FindAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("FindAppointment error: %v", err)
	}
	if loaded.Provider == nil || loaded.Provider.Email != provider.Email {
		t.Fatalf("provider relation not loaded: %+v", loaded.Provider)
	}
	if loaded.Client == nil || loaded.Client.Name != client.Name {
		t.Fatalf("client relation not loaded: %+v", loaded.Client)
	}

	// Cancelling frees the slot for a third party.
	cancelledAt := time.Now().UTC()
	loaded.CancelledAt = &cancelledAt
	if _, err := repo.UpdateAppointment(ctx, loaded); err != nil {
		t.Fatalf("UpdateAppointment error: %v", err)
	}
	if _, err := repo.FindActiveAppointment(ctx, provider.ID, slot); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cancelled appointment still active: %v", err)
	}
	if _, err := repo.CreateAppointment(ctx, domain.Appointment{
		ClientID:    third.ID,
		ProviderID:  provider.ID,
		ScheduledAt: slot,
	}); err != nil {
		t.Fatalf("rebooking freed slot error: %v", err)
	}

	rows, err := repo.ListActiveForClient(ctx, client.ID, 1, 20)
	if err != nil {
		t.Fatalf("ListActiveForClient error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("active rows = %d, want 1 (cancelled row must not reappear)", len(rows))
	}
	if !rows[0].ScheduledAt.Equal(contested) {
		t.Fatalf("listed slot = %v, want %v", rows[0].ScheduledAt, contested)
	}

	day, err := repo.ListProviderDay(ctx, provider.ID, slot.Truncate(24*time.Hour), slot.Truncate(24*time.Hour).Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListProviderDay error: %v", err)
	}
	if len(day) != 2 {
		t.Fatalf("day rows = %d, want 2", len(day))
	}

	providers, err := repo.ListProviders(ctx)
	if err != nil {
		t.Fatalf("ListProviders error: %v", err)
	}
	if len(providers) != 1 || providers[0].ID != provider.ID {
		t.Fatalf("providers = %+v, want only %s", providers, provider.ID)
	}
}

func scopedURL(t *testing.T, databaseURL, schema string) string {
	t.Helper()
	u, err := url.Parse(databaseURL)
	if err != nil {
		t.Fatalf("parse database url error: %v", err)
	}
	q := u.Query()
	q.Set("options", "-csearch_path="+schema)
	u.RawQuery = q.Encode()
	return u.String()
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

func applyMigrations(ctx context.Context, db *bun.DB) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
