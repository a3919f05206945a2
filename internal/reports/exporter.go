// Package reports renders the human-facing audit views of a drive and
// archives them as CSV objects in a blob store.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"giftmatch/internal/blob"
	"giftmatch/internal/core"
	"giftmatch/internal/logging"
)

const contentTypeCSV = "text/csv"

// Exporter reads the ledger's query surface and writes report
// artifacts. It never mutates drive state.
type Exporter struct {
	view  core.LedgerView
	store blob.Store
	log   logging.Logger
	now   func() time.Time
}

func NewExporter(view core.LedgerView, store blob.Store, log logging.Logger) *Exporter {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Exporter{view: view, store: store, log: log, now: time.Now}
}

// ExportAll writes the recipient, donor and association views under one
// timestamped key prefix and returns their object infos.
func (e *Exporter) ExportAll(ctx context.Context) ([]blob.Info, error) {
	prefix := "reports/" + e.now().UTC().Format("20060102-150405")
	views := []struct {
		name    string
		records [][]string
	}{
		{"recipient_view.csv", e.RecipientView()},
		{"donor_view.csv", e.DonorView()},
		{"association_view.csv", e.AssociationView()},
	}
	var out []blob.Info
	for _, v := range views {
		info, err := e.put(ctx, prefix+"/"+v.name, v.records)
		if err != nil {
			return out, err
		}
		e.log.Info("wrote report", "key", info.Key, "bytes", info.Size)
		out = append(out, info)
	}
	return out, nil
}

func (e *Exporter) put(ctx context.Context, key string, records [][]string) (blob.Info, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return blob.Info{}, fmt.Errorf("encode %s: %w", key, err)
	}
	info, err := e.store.Put(ctx, key, &buf, blob.PutOptions{ContentType: contentTypeCSV})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store %s: %w", key, err)
	}
	return info, nil
}

// RecipientView is the audit table: one row per valid recipient holding
// donations, with contact details and the sorted donor ids. A starred
// store means the recipient takes no physical card.
func (e *Exporter) RecipientView() [][]string {
	maxDonations := 0
	for _, r := range e.view.ValidRecipients() {
		if n := e.view.DonationsTo(r.ID); n > maxDonations {
			maxDonations = n
		}
	}
	header := []string{
		"Name", "Recipient #", "Status", "Org Email", "Address", "Home Email",
		"Store", "Phone", "Previous Donations", "Total Donations",
	}
	for i := 0; i < maxDonations; i++ {
		header = append(header, "Donor "+strconv.Itoa(i+1))
	}
	records := [][]string{header}
	for _, r := range e.view.ValidRecipients() {
		donors := e.view.DonorsFor(r.ID)
		if len(donors) == 0 {
			continue
		}
		row := []string{
			r.Name, strconv.Itoa(r.ID), r.Status, r.OrgEmail, r.Address, r.HomeEmail,
			storeTag(r.Store, r.NoPhysicalCard), r.Phone,
			strconv.Itoa(e.view.PreviousDonationsTo(r.ID)),
			strconv.Itoa(e.view.DonationsTo(r.ID)),
		}
		for _, donor := range donors {
			row = append(row, strconv.Itoa(donor))
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		records = append(records, row)
	}
	return records
}

// DonorView is the mail-merge input: one row per ordinary donor with
// new donations this session, one denormalized recipient cell per
// donation. The trailing spaces in the cell format separate the store
// tag when cells are later split apart.
func (e *Exporter) DonorView() [][]string {
	byDonor := make(map[int][]int)
	maxDonations := 0
	for _, d := range e.view.NewDonations() {
		if d.Donor == e.view.AssociationID() {
			continue
		}
		byDonor[d.Donor] = append(byDonor[d.Donor], d.Recipient)
		if len(byDonor[d.Donor]) > maxDonations {
			maxDonations = len(byDonor[d.Donor])
		}
	}
	header := []string{"First", "Last", "Email", "Pledge", "Donor #"}
	for i := 0; i < maxDonations; i++ {
		header = append(header, "Recipient "+strconv.Itoa(i+1))
	}
	records := [][]string{header}
	donorIDs := make([]int, 0, len(byDonor))
	for id := range byDonor {
		donorIDs = append(donorIDs, id)
	}
	sort.Ints(donorIDs)
	for _, id := range donorIDs {
		donor, ok := e.view.Donor(id)
		if !ok {
			continue
		}
		row := []string{
			donor.First, donor.Last, donor.Email,
			strconv.Itoa(donor.Pledges), strconv.Itoa(donor.ID),
		}
		for _, recipientID := range byDonor[id] {
			r, ok := e.view.Recipient(recipientID)
			if !ok {
				continue
			}
			row = append(row, fmt.Sprintf("%s, %s %s %s %s   ",
				r.Name, r.Address, r.HomeEmail, r.Phone, storeTag(r.Store, r.NoPhysicalCard)))
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		records = append(records, row)
	}
	return records
}

// AssociationView lists this session's association donations with the
// recipient contact columns the association needs to send its cards.
func (e *Exporter) AssociationView() [][]string {
	records := [][]string{{"Recipient #", "Name", "Address", "Email", "Phone", "Store"}}
	for _, d := range e.view.NewDonations() {
		if d.Donor != e.view.AssociationID() {
			continue
		}
		r, ok := e.view.Recipient(d.Recipient)
		if !ok {
			continue
		}
		records = append(records, []string{
			strconv.Itoa(r.ID), r.Name, r.Address, r.HomeEmail, r.Phone,
			storeTag(r.Store, r.NoPhysicalCard),
		})
	}
	return records
}

func storeTag(store string, noPhysicalCard bool) string {
	if noPhysicalCard {
		return store + "*"
	}
	return store
}
