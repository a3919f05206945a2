package core

import (
	"bytes"
	"context"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"giftmatch/internal/rows"
	"giftmatch/pkg/domain"
)

type memorySnapshotStore struct {
	snap  domain.Snapshot
	ok    bool
	saves int
}

func (s *memorySnapshotStore) Load(context.Context) (domain.Snapshot, bool, error) {
	return s.snap, s.ok, nil
}

func (s *memorySnapshotStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.snap = snap
	s.ok = true
	s.saves++
	return nil
}

func TestServicePipeline(t *testing.T) {
	ctx := context.Background()
	store := &memorySnapshotStore{}
	svc := NewService(store, WithRand(rand.New(rand.NewSource(1))))

	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load on an empty store: %v", err)
	}

	res, err := svc.UpdateDonors(ctx, []rows.Row{
		donorRow("1", "Helping Hands", "Association", "board@example.org", "0"),
		donorRow("2", "Mike", "Elkins", "mike@example.com", "2"),
		donorRow("3", "Lena", "Ruiz", "lena@example.com", "2"),
	})
	if err != nil || !res.Ok() {
		t.Fatalf("UpdateDonors: %v %v", err, res.Errors)
	}
	if store.saves != 1 {
		t.Fatalf("donor batch saved %d times", store.saves)
	}

	res, err = svc.UpdateRecipients(ctx, []rows.Row{
		recipientRow("31", "Pat Smith", "pat@example.org", "", "North"),
		recipientRow("32", "Lee Wong", "lee@example.org", "", "South"),
	})
	if err != nil || !res.Ok() {
		t.Fatalf("UpdateRecipients: %v %v", err, res.Errors)
	}

	report, err := svc.Match(ctx)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !report.Match.Success || report.Match.NewDonations == 0 {
		t.Fatalf("match report: %+v", report.Match)
	}
	if report.Optimize.FinalScore < report.Optimize.InitialScore {
		t.Fatalf("optimizer regressed the score: %+v", report.Optimize)
	}
	if store.saves != 3 {
		t.Fatalf("pipeline saved %d times, want 3", store.saves)
	}

	// A fresh service loading the same store sees the matched state.
	reloaded := NewService(store)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(reloaded.Ledger().Donations(), svc.Ledger().Donations()) {
		t.Fatal("reloaded donations differ")
	}
}

func TestServiceDoesNotPersistFailedBatch(t *testing.T) {
	ctx := context.Background()
	store := &memorySnapshotStore{}
	svc := NewService(store)

	if _, err := svc.UpdateDonors(ctx, []rows.Row{
		donorRow("1", "Helping Hands", "Association", "board@example.org", "0"),
	}); err != nil {
		t.Fatalf("UpdateDonors: %v", err)
	}
	saves := store.saves

	res, err := svc.UpdateRecipients(ctx, []rows.Row{
		recipientRow("31", "Pat Smith", "pat@example.org", "", "North"),
		recipientRow("32", "Patricia Smythe", "pat@example.org", "", "South"),
	})
	if err != nil {
		t.Fatalf("UpdateRecipients: %v", err)
	}
	if res.Ok() {
		t.Fatal("duplicate email batch should not be ok")
	}
	if store.saves != saves {
		t.Fatal("failed batch was persisted")
	}
}

func TestServiceMatchFailsWithoutAssociation(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	if err := ledger.ImportSnapshot(domain.Snapshot{
		Donors:     []domain.Donor{{ID: 2, First: "Mike", Last: "Elkins", Pledges: 1}},
		Recipients: []domain.Recipient{{ID: 31, Valid: "true", Name: "Pat Smith", OrgEmail: "pat@example.org", Store: "North"}},
	}); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	store := &memorySnapshotStore{}
	svc := NewService(store, WithLedger(ledger))
	if _, err := svc.Match(ctx); err == nil {
		t.Fatal("match without the association donor should fail")
	}
	if store.saves != 0 {
		t.Fatal("failed match was persisted")
	}
}

func TestJSONTraceTracerEmitsOneLinePerSpan(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTraceTracer(&buf)
	_, span := tracer.StartSpan(context.Background(), "match")
	span.End(nil)
	_, span = tracer.StartSpan(context.Background(), "load")
	span.End(context.DeadlineExceeded)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 trace lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"operation":"match"`) {
		t.Fatalf("first span: %s", lines[0])
	}
	if !strings.Contains(lines[1], "context deadline exceeded") {
		t.Fatalf("failed span should carry the error: %s", lines[1])
	}
}
