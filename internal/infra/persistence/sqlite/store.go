// Package sqlite persists drive snapshots in a single-file SQLite
// database using the pure-Go driver. State lives in one table of JSON
// buckets, one bucket per record set.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"giftmatch/pkg/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS drive_state (
	bucket TEXT PRIMARY KEY,
	payload TEXT NOT NULL
)`

const (
	bucketDonors     = "donors"
	bucketRecipients = "recipients"
	bucketDonations  = "donations"
)

// Store is a SnapshotStore over one SQLite database file.
type Store struct {
	db *sql.DB
}

var _ domain.SnapshotStore = (*Store)(nil)

// Open creates the database file and schema as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	found := false
	targets := map[string]any{
		bucketDonors:     &snap.Donors,
		bucketRecipients: &snap.Recipients,
		bucketDonations:  &snap.Donations,
	}
	for bucket, target := range targets {
		var payload string
		err := s.db.QueryRowContext(ctx,
			`SELECT payload FROM drive_state WHERE bucket = ?`, bucket).Scan(&payload)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("load bucket %s: %w", bucket, err)
		}
		if err := json.Unmarshal([]byte(payload), target); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("decode bucket %s: %w", bucket, err)
		}
		found = true
	}
	return snap, found, nil
}

func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	buckets := map[string]any{
		bucketDonors:     snap.Donors,
		bucketRecipients: snap.Recipients,
		bucketDonations:  snap.Donations,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()
	for bucket, value := range buckets {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode bucket %s: %w", bucket, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO drive_state (bucket, payload) VALUES (?, ?)
			 ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
			bucket, string(payload))
		if err != nil {
			return fmt.Errorf("save bucket %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
