package core

import (
	"fmt"

	"giftmatch/internal/rows"
	"giftmatch/pkg/domain"
)

// ExportSnapshot clones the ledger's three record sets in stable order
// for persistence. Session markers are deliberately not exported; a
// loaded snapshot starts with an empty session.
func (l *Ledger) ExportSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Donors:     l.Donors(),
		Recipients: l.Recipients(),
		Donations:  l.Donations(),
	}
}

// ImportSnapshot loads persisted state into an empty ledger. Donations
// are replayed through RecordDonation so every derived index is rebuilt
// by the same code path that maintains it incrementally.
func (l *Ledger) ImportSnapshot(snap domain.Snapshot) error {
	if len(l.donors) > 0 || len(l.recipients) > 0 || len(l.donations) > 0 {
		return fmt.Errorf("import into non-empty ledger")
	}
	for _, donor := range snap.Donors {
		if _, ok := l.donors[donor.ID]; ok {
			return fmt.Errorf("snapshot contains duplicate donor id %d", donor.ID)
		}
		l.donors[donor.ID] = donor
		l.donorOrder = append(l.donorOrder, donor.ID)
		if donor.ID == l.associationID {
			l.hasAssociation = true
		}
	}
	for _, r := range snap.Recipients {
		if _, ok := l.recipients[r.ID]; ok {
			return fmt.Errorf("snapshot contains duplicate recipient id %d", r.ID)
		}
		if _, ok := l.orgEmails[r.OrgEmail]; ok && r.OrgEmail != "" {
			return fmt.Errorf("snapshot contains duplicate org email %q", r.OrgEmail)
		}
		if _, ok := l.homeEmails[r.HomeEmail]; ok && r.HomeEmail != "" {
			return fmt.Errorf("snapshot contains duplicate home email %q", r.HomeEmail)
		}
		if r.OrgEmail != "" {
			l.orgEmails[r.OrgEmail] = r.Name
		}
		if r.HomeEmail != "" {
			l.homeEmails[r.HomeEmail] = r.Name
		}
		key := rows.NormalizeName(r.Name)
		if _, ok := l.names[key]; !ok {
			l.names[key] = nameKey{Name: r.Name, ID: r.ID}
		}
		l.recipients[r.ID] = r
		l.recipientOrder = append(l.recipientOrder, r.ID)
	}
	for _, d := range snap.Donations {
		l.RecordDonation(d)
	}
	return nil
}
