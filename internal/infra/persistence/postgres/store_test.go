package postgres

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"giftmatch/pkg/domain"
)

// Round-trip tests need a reachable server; they are skipped unless
// GIFTMATCH_POSTGRES_TEST_DSN points at one.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GIFTMATCH_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("GIFTMATCH_POSTGRES_TEST_DSN not set")
	}
	store, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		store.db.ExecContext(context.Background(), `DELETE FROM drive_state`)
		store.Close()
	})
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	want := domain.Snapshot{
		Donors: []domain.Donor{
			{ID: 1, First: "Helping Hands", Last: "Association", Email: "board@example.org"},
			{ID: 2, First: "Mike", Last: "Elkins", Email: "mike@example.com", Pledges: 2},
		},
		Recipients: []domain.Recipient{
			{ID: 31, Valid: "true", OrgEmail: "pat@example.org", Name: "Pat Smith", Store: "North"},
		},
		Donations: []domain.Donation{
			{Donor: 2, Recipient: 31, Date: domain.DateOf(2025, time.November, 20)},
		},
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("saved snapshot not found")
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip changed the snapshot:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestDefaultDSNPrefersEnv(t *testing.T) {
	t.Setenv("GIFTMATCH_POSTGRES_DSN", "postgres://u:p@db:5432/drive")
	if got := DefaultDSN(); got != "postgres://u:p@db:5432/drive" {
		t.Fatalf("DefaultDSN = %q", got)
	}
	t.Setenv("GIFTMATCH_POSTGRES_DSN", "")
	if got := DefaultDSN(); got == "" {
		t.Fatal("DefaultDSN fallback empty")
	}
}
