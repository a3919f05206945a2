package rows

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"giftmatch/pkg/domain"
)

// Logical id columns, exported so batch imports can skip incomplete
// rows before full parsing.
const (
	DonorIDColumn     = "Donor #"
	RecipientIDColumn = "Recipient #"
)

// InlineDonorPrefix marks recovery donation columns on recipient rows.
const InlineDonorPrefix = "Donor "

func intValue(row Row, field string) (int, error) {
	text, err := Value(row, field)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", field, err)
	}
	return n, nil
}

// ParseDonor converts one donor import row.
func ParseDonor(row Row) (domain.Donor, error) {
	var d domain.Donor
	var err error
	if d.ID, err = intValue(row, DonorIDColumn); err != nil {
		return domain.Donor{}, err
	}
	if d.First, err = Value(row, "First"); err != nil {
		return domain.Donor{}, err
	}
	if d.Last, err = Value(row, "Last"); err != nil {
		return domain.Donor{}, err
	}
	if d.Email, err = Value(row, "Email"); err != nil {
		return domain.Donor{}, err
	}
	pledgeText, err := Value(row, "Pledge units")
	if err != nil {
		return domain.Donor{}, err
	}
	if d.Pledges, err = InitialInt(pledgeText); err != nil {
		return domain.Donor{}, fmt.Errorf("column %q: %w", "Pledge units", err)
	}
	if d.Comments, err = Value(row, "Comments"); err != nil {
		return domain.Donor{}, err
	}
	return d, nil
}

// ParseRecipient converts one recipient import row. Some form revisions
// combine name and address into one column; those split at the first
// comma, and a comma-free value is all name.
func ParseRecipient(row Row) (domain.Recipient, error) {
	var r domain.Recipient
	var err error
	if r.ID, err = intValue(row, RecipientIDColumn); err != nil {
		return domain.Recipient{}, err
	}
	if r.Name, r.Address, err = splitNameAddress(row); err != nil {
		return domain.Recipient{}, err
	}
	if r.Valid, err = Value(row, "Valid"); err != nil {
		return domain.Recipient{}, err
	}
	if r.Status, err = Value(row, "Status"); err != nil {
		return domain.Recipient{}, err
	}
	orgEmail, err := Value(row, "Org Email")
	if err != nil {
		return domain.Recipient{}, err
	}
	r.OrgEmail = strings.ToLower(strings.TrimSpace(orgEmail))
	if r.HomeEmail, err = Value(row, "Home Email"); err != nil {
		return domain.Recipient{}, err
	}
	if r.Store, err = Value(row, "Store"); err != nil {
		return domain.Recipient{}, err
	}
	if r.Phone, err = Value(row, "Phone"); err != nil {
		return domain.Recipient{}, err
	}
	mark, err := Value(row, "No physical card")
	if err != nil {
		return domain.Recipient{}, err
	}
	if r.NoPhysicalCard, err = ParseMark(mark); err != nil {
		return domain.Recipient{}, fmt.Errorf("column %q: %w", "No physical card", err)
	}
	if r.Comments, err = Value(row, "Comments"); err != nil {
		return domain.Recipient{}, err
	}
	return r, nil
}

// splitNameAddress prefers separate Name and Address columns. The
// Address check is exact on purpose: a loose lookup would match the
// combined "Name and Address" header.
func splitNameAddress(row Row) (name, address string, err error) {
	if _, ok := row["Address"]; ok {
		if name, err = Value(row, "Name"); err != nil {
			return "", "", err
		}
		return name, row["Address"], nil
	}
	combined, err := Value(row, "Name and Address")
	if err != nil {
		return "", "", err
	}
	if i := strings.Index(combined, ","); i >= 0 {
		return strings.TrimSpace(combined[:i]), strings.TrimSpace(combined[i+1:]), nil
	}
	return combined, "", nil
}

// ParseDonation converts one persisted donation row.
func ParseDonation(row Row) (domain.Donation, error) {
	var d domain.Donation
	var err error
	if d.Donor, err = intValue(row, "Donor"); err != nil {
		return domain.Donation{}, err
	}
	if d.Recipient, err = intValue(row, "Recipient"); err != nil {
		return domain.Donation{}, err
	}
	dateText, err := Value(row, "Date")
	if err != nil {
		return domain.Donation{}, err
	}
	if d.Date, err = domain.ParseDate(dateText); err != nil {
		return domain.Donation{}, err
	}
	return d, nil
}

// InlineDonations extracts hand-entered donation columns ("Donor 1",
// "Donor 2", ...) from a recipient row, in slot order. These exist only
// when a spreadsheet has been edited by hand after a previous run.
func InlineDonations(row Row) ([]int, error) {
	type slot struct {
		order int
		donor int
	}
	var slots []slot
	for key, value := range row {
		trimmed := strings.TrimSpace(key)
		if !strings.HasPrefix(trimmed, InlineDonorPrefix) || value == "" {
			continue
		}
		order, err := strconv.Atoi(strings.TrimSpace(trimmed[len(InlineDonorPrefix):]))
		if err != nil {
			continue
		}
		donor, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", trimmed, err)
		}
		slots = append(slots, slot{order: order, donor: donor})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].order < slots[j].order })
	donors := make([]int, 0, len(slots))
	for _, s := range slots {
		donors = append(donors, s.donor)
	}
	return donors, nil
}
