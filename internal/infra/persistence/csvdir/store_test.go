package csvdir

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"giftmatch/pkg/domain"
)

func testSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Donors: []domain.Donor{
			{ID: 1, First: "Helping Hands", Last: "Association", Email: "board@example.org"},
			{ID: 2, First: "Mike", Last: "Elkins", Email: "mike@example.com", Pledges: 2, Comments: "north side"},
		},
		Recipients: []domain.Recipient{
			{
				ID: 31, Valid: "true", Status: "employee", OrgEmail: "pat@example.org",
				Name: "Pat Smith", Address: "12 Oak St, Springfield", HomeEmail: "pat@home.net",
				Store: "North", Phone: "555-0100", NoPhysicalCard: true,
			},
			{ID: 32, Valid: "false", OrgEmail: "lee@example.org", Name: "Lee Wong", Store: "South"},
		},
		Donations: []domain.Donation{
			{Donor: 2, Recipient: 31, Date: domain.DateOf(2025, time.November, 20)},
			{Donor: 2, Recipient: 32},
		},
	}
}

func TestLoadEmptyDirectory(t *testing.T) {
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("empty directory reported a snapshot")
	}
	if len(snap.Donors)+len(snap.Recipients)+len(snap.Donations) != 0 {
		t.Fatalf("empty directory yielded records: %+v", snap)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := testSnapshot()
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

func TestSaveRotatesAndCleansBackups(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first := testSnapshot()
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	second := first
	second.Donations = append(second.Donations, domain.Donation{Donor: 1, Recipient: 31, Date: domain.DateOf(2025, time.November, 21)})
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	for _, name := range []string{"donors", "recipients", "donations"} {
		if _, err := os.Stat(filepath.Join(dir, name+".bak")); !os.IsNotExist(err) {
			t.Fatalf("%s.bak left behind after a clean save", name)
		}
		if _, err := os.Stat(filepath.Join(dir, name+".tmp")); !os.IsNotExist(err) {
			t.Fatalf("%s.tmp left behind after a clean save", name)
		}
	}

	got, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Donations) != 3 {
		t.Fatalf("second save not visible: %+v", got.Donations)
	}
}

func TestLoadPartialDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	content := "Donor #,First,Last,Email,Pledge units,Comments\n2,Mike,Elkins,mike@example.com,2,\n"
	if err := os.WriteFile(filepath.Join(dir, "donors.csv"), []byte(content), 0o644); err != nil {
		t.Fatalf("write donors.csv: %v", err)
	}
	store, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("directory with one file should count as found")
	}
	if len(snap.Donors) != 1 || snap.Donors[0].ID != 2 {
		t.Fatalf("donors: %+v", snap.Donors)
	}
}
