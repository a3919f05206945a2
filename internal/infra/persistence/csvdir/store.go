// Package csvdir persists drive snapshots as three CSV files in a
// memory directory. Saves are transactional: new content lands under
// .tmp names, the live files rotate to .bak, and any rename failure
// rolls the whole set back so the previous state survives.
package csvdir

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"giftmatch/internal/logging"
	"giftmatch/internal/rows"
	"giftmatch/pkg/domain"
)

const (
	donorsFile     = "donors.csv"
	recipientsFile = "recipients.csv"
	donationsFile  = "donations.csv"
)

var donorHeader = []string{"Donor #", "First", "Last", "Email", "Pledge units", "Comments"}

var recipientHeader = []string{
	"Recipient #", "Valid", "Status", "Org Email", "Name", "Address",
	"Home Email", "Store", "Phone", "No physical card", "Comments",
}

var donationHeader = []string{"Donor", "Recipient", "Date"}

// Store reads and writes a snapshot directory.
type Store struct {
	dir string
	log logging.Logger
}

var _ domain.SnapshotStore = (*Store)(nil)

// New creates the directory if needed.
func New(dir string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NopLogger{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Load reads whichever snapshot files exist. A directory with none of
// them is an empty drive, not an error.
func (s *Store) Load(_ context.Context) (domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	found := false

	donorRows, ok, err := s.readFile(donorsFile)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	found = found || ok
	for _, row := range donorRows {
		donor, err := rows.ParseDonor(row)
		if err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("%s: %w", donorsFile, err)
		}
		snap.Donors = append(snap.Donors, donor)
	}

	recipientRows, ok, err := s.readFile(recipientsFile)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	found = found || ok
	for _, row := range recipientRows {
		recipient, err := rows.ParseRecipient(row)
		if err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("%s: %w", recipientsFile, err)
		}
		snap.Recipients = append(snap.Recipients, recipient)
	}

	donationRows, ok, err := s.readFile(donationsFile)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	found = found || ok
	for _, row := range donationRows {
		donation, err := rows.ParseDonation(row)
		if err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("%s: %w", donationsFile, err)
		}
		snap.Donations = append(snap.Donations, donation)
	}
	return snap, found, nil
}

func (s *Store) readFile(name string) ([]rows.Row, bool, error) {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	loaded, err := rows.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return loaded, true, nil
}

// Save writes the snapshot with backup rotation. The .bak copies are
// removed only after every rename succeeded.
func (s *Store) Save(_ context.Context, snap domain.Snapshot) error {
	files := map[string][][]string{
		donorsFile:     donorRecords(snap.Donors),
		recipientsFile: recipientRecords(snap.Recipients),
		donationsFile:  donationRecords(snap.Donations),
	}
	names := []string{donorsFile, recipientsFile, donationsFile}

	for _, name := range names {
		tmp := s.swapPath(name, ".tmp")
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear stale %s: %w", tmp, err)
		}
		if err := writeCSV(tmp, files[name]); err != nil {
			return err
		}
	}

	type rename struct{ from, to string }
	var rollback []rename
	var removeOnSuccess []string
	fail := func(err error) error {
		for i := len(rollback) - 1; i >= 0; i-- {
			if rerr := os.Rename(rollback[i].from, rollback[i].to); rerr != nil {
				s.log.Error("rollback rename failed", "from", rollback[i].from, "error", rerr)
			}
		}
		return err
	}
	for _, name := range names {
		live := filepath.Join(s.dir, name)
		bak := s.swapPath(name, ".bak")
		tmp := s.swapPath(name, ".tmp")
		if _, err := os.Stat(live); err == nil {
			if err := os.Rename(live, bak); err != nil {
				return fail(fmt.Errorf("rotate %s: %w", live, err))
			}
			rollback = append(rollback, rename{from: bak, to: live})
			removeOnSuccess = append(removeOnSuccess, bak)
		} else if !os.IsNotExist(err) {
			return fail(err)
		}
		if err := os.Rename(tmp, live); err != nil {
			return fail(fmt.Errorf("commit %s: %w", live, err))
		}
		rollback = append(rollback, rename{from: live, to: tmp})
		s.log.Info("wrote snapshot file", "path", live)
	}
	for _, bak := range removeOnSuccess {
		if err := os.Remove(bak); err != nil {
			s.log.Warn("could not remove backup", "path", bak, "error", err)
		}
	}
	return nil
}

func (s *Store) swapPath(name, ext string) string {
	base := name[:len(name)-len(filepath.Ext(name))]
	return filepath.Join(s.dir, base+ext)
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func donorRecords(donors []domain.Donor) [][]string {
	records := [][]string{donorHeader}
	for _, d := range donors {
		records = append(records, []string{
			strconv.Itoa(d.ID), d.First, d.Last, d.Email, strconv.Itoa(d.Pledges), d.Comments,
		})
	}
	return records
}

func recipientRecords(recipients []domain.Recipient) [][]string {
	records := [][]string{recipientHeader}
	for _, r := range recipients {
		mark := ""
		if r.NoPhysicalCard {
			mark = "x"
		}
		records = append(records, []string{
			strconv.Itoa(r.ID), r.Valid, r.Status, r.OrgEmail, r.Name, r.Address,
			r.HomeEmail, r.Store, r.Phone, mark, r.Comments,
		})
	}
	return records
}

func donationRecords(donations []domain.Donation) [][]string {
	records := [][]string{donationHeader}
	for _, d := range donations {
		records = append(records, []string{
			strconv.Itoa(d.Donor), strconv.Itoa(d.Recipient), d.Date.String(),
		})
	}
	return records
}
