package core

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"giftmatch/internal/rows"
	"giftmatch/pkg/domain"
)

func TestOptimizerNeedsTwoSessionDonations(t *testing.T) {
	l := seededLedger(t,
		[]rows.Row{donorRow("2", "Mike", "Elkins", "mike@example.com", "1")},
		[]rows.Row{recipientRow("31", "Pat Smith", "pat@example.org", "", "North")})
	l.Pledge(2, 31)
	res := NewOptimizer(OptimizeConfig{TrialBudget: 50}, rand.New(rand.NewSource(1)), nil).Run(l)
	if res.Trials != 0 || res.Swaps != 0 {
		t.Fatalf("single-donation session should return immediately: %+v", res)
	}
	if res.InitialScore != res.FinalScore {
		t.Fatalf("score changed with no trials: %+v", res)
	}
}

// clusteredLedger builds a session where crossing the donors regroups
// each donor's cards at one store, which the score strictly prefers.
func clusteredLedger(t *testing.T) *Ledger {
	t.Helper()
	l := seededLedger(t,
		[]rows.Row{
			donorRow("2", "Mike", "Elkins", "mike@example.com", "2"),
			donorRow("3", "Lena", "Ruiz", "lena@example.com", "2"),
		},
		[]rows.Row{
			recipientRow("31", "Pat Smith", "pat@example.org", "", "North"),
			recipientRow("32", "Lee Wong", "lee@example.org", "", "South"),
			recipientRow("33", "Ana Diaz", "ana@example.org", "", "North"),
			recipientRow("34", "Kai Moon", "kai@example.org", "", "South"),
		})
	l.RecordDonation(domain.Donation{Donor: 2, Recipient: 33, Date: domain.DateOf(2024, time.December, 1)})
	l.RecordDonation(domain.Donation{Donor: 3, Recipient: 34, Date: domain.DateOf(2024, time.December, 1)})
	// Donor 2 is anchored North but pledged South, and vice versa.
	l.Pledge(2, 32)
	l.Pledge(3, 31)
	return l
}

func TestOptimizerAcceptsImprovingSwap(t *testing.T) {
	l := clusteredLedger(t)
	before := l.Score()
	res := NewOptimizer(OptimizeConfig{TrialBudget: 50}, rand.New(rand.NewSource(1)), nil).Run(l)
	if res.InitialScore != before {
		t.Fatalf("InitialScore = %d, want %d", res.InitialScore, before)
	}
	// 422 before the swap, 440 once each donor holds two cards at one
	// store.
	if res.FinalScore != 440 {
		t.Fatalf("FinalScore = %d, want 440", res.FinalScore)
	}
	if res.Swaps != 1 {
		t.Fatalf("Swaps = %d, want 1", res.Swaps)
	}
	if res.FinalScore != l.Score() {
		t.Fatalf("reported score %d does not match the ledger's %d", res.FinalScore, l.Score())
	}
	if !l.HasGiven(2, 31) || !l.HasGiven(3, 32) {
		t.Fatal("swap not reflected in the adjacency indexes")
	}
	if l.HasGiven(2, 32) || l.HasGiven(3, 31) {
		t.Fatal("old pairs survived the swap")
	}
}

func TestOptimizerRejectedTrialsLeaveStateUntouched(t *testing.T) {
	l := seededLedger(t,
		[]rows.Row{
			donorRow("2", "Mike", "Elkins", "mike@example.com", "1"),
			donorRow("3", "Lena", "Ruiz", "lena@example.com", "1"),
		},
		[]rows.Row{
			recipientRow("31", "Pat Smith", "pat@example.org", "", "North"),
			recipientRow("32", "Lee Wong", "lee@example.org", "", "North"),
		})
	l.Pledge(2, 31)
	l.Pledge(3, 32)
	before := l.ExportSnapshot()
	score := l.Score()

	// Both recipients share a store, so every swap scores identically
	// and is rejected.
	res := NewOptimizer(OptimizeConfig{TrialBudget: 100}, rand.New(rand.NewSource(7)), nil).Run(l)
	if res.Swaps != 0 {
		t.Fatalf("symmetric session accepted %d swaps", res.Swaps)
	}
	if res.Trials < 100 {
		t.Fatalf("budget not spent: %+v", res)
	}
	if !reflect.DeepEqual(l.ExportSnapshot(), before) {
		t.Fatal("rejected trials mutated the ledger")
	}
	if l.Score() != score {
		t.Fatalf("score drifted from %d to %d", score, l.Score())
	}
}

func TestOptimizerDeterministicForSeed(t *testing.T) {
	run := func() (OptimizeResult, domain.Snapshot) {
		l := clusteredLedger(t)
		res := NewOptimizer(OptimizeConfig{TrialBudget: 50}, rand.New(rand.NewSource(42)), nil).Run(l)
		return res, l.ExportSnapshot()
	}
	res1, snap1 := run()
	res2, snap2 := run()
	if res1 != res2 {
		t.Fatalf("same seed, different results: %+v vs %+v", res1, res2)
	}
	if !reflect.DeepEqual(snap1, snap2) {
		t.Fatal("same seed, different final assignments")
	}
}

func TestSwappableRefusesIllegalPairs(t *testing.T) {
	l := seededLedger(t,
		[]rows.Row{
			donorRow("2", "Mike", "Elkins", "mike@example.com", "2"),
			donorRow("3", "Lena", "Ruiz", "lena@example.com", "1"),
		},
		[]rows.Row{
			recipientRow("31", "Pat Smith", "pat@example.org", "", "North"),
			recipientRow("32", "Lee Wong", "lee@example.org", "", "South"),
			recipientRow("33", "Ana Diaz", "ana@example.org", "", "North"),
		})
	l.Pledge(2, 31) // slot 0
	l.Pledge(2, 32) // slot 1, shares donor 2 with slot 0
	l.Pledge(3, 33) // slot 2
	l.Pledge(1, 33) // slot 3, association top-up

	if l.swappable(0, 0) {
		t.Fatal("a donation cannot swap with itself")
	}
	if l.swappable(0, 1) {
		t.Fatal("swapping two donations of one donor is a no-op pair")
	}
	if l.swappable(0, 3) {
		t.Fatal("association donations must not move")
	}
	// Swapping slots 1 and 2 would hand donor 3 recipient 32 and donor 2
	// recipient 33, neither of which they already hold.
	if !l.swappable(1, 2) {
		t.Fatal("legal pair refused")
	}

	l.swapSessionDonors(1, 2)
	if !l.HasGiven(3, 32) || !l.HasGiven(2, 33) {
		t.Fatal("swap did not exchange donors")
	}
	l.swapSessionDonors(1, 2)
	if !l.HasGiven(2, 32) || !l.HasGiven(3, 33) {
		t.Fatal("second swap did not revert the first")
	}

	// Once donor 3 also holds recipient 31, handing it slot 0 would
	// duplicate that pair.
	l.Pledge(3, 31)
	if l.swappable(0, 2) {
		t.Fatal("swap creating a duplicate pair should be refused")
	}
}
