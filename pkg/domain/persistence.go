package domain

import "context"

// Snapshot is the full persisted state of a drive: every donor and
// recipient ever seen plus the complete donation list, in stable order.
type Snapshot struct {
	Donors     []Donor     `json:"donors"`
	Recipients []Recipient `json:"recipients"`
	Donations  []Donation  `json:"donations"`
}

// SnapshotStore loads and saves drive snapshots. Load reports ok=false
// when no snapshot has been saved yet, which callers treat as an empty
// drive rather than an error.
type SnapshotStore interface {
	Load(ctx context.Context) (snap Snapshot, ok bool, err error)
	Save(ctx context.Context, snap Snapshot) error
}
