package core

import (
	"context"
	"fmt"

	"giftmatch/pkg/domain"
)

// DonationIntegrityRule checks that every donation references known
// records, that no (donor, recipient) pair repeats, and that the
// adjacency indexes agree with the donation list.
type DonationIntegrityRule struct{}

func (DonationIntegrityRule) Name() string { return "donation_integrity" }

func (DonationIntegrityRule) Evaluate(_ context.Context, view LedgerView) (domain.Result, error) {
	var res domain.Result
	block := func(entity domain.EntityType, id int, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "donation_integrity",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   entity,
			EntityID: id,
		})
	}

	type pair struct{ donor, recipient int }
	seen := make(map[pair]bool)
	toCounts := make(map[int]int)
	fromCounts := make(map[int]int)
	for _, d := range view.Donations() {
		if _, ok := view.Donor(d.Donor); !ok {
			block(domain.EntityDonation, d.Donor, "donation references unknown donor %d", d.Donor)
		}
		if _, ok := view.Recipient(d.Recipient); !ok {
			block(domain.EntityDonation, d.Recipient, "donation references unknown recipient %d", d.Recipient)
		}
		p := pair{donor: d.Donor, recipient: d.Recipient}
		if seen[p] {
			block(domain.EntityDonation, d.Donor,
				"duplicate donation pair donor %d recipient %d", d.Donor, d.Recipient)
		}
		seen[p] = true
		if !view.HasGiven(d.Donor, d.Recipient) {
			block(domain.EntityDonation, d.Recipient,
				"donation from donor %d to recipient %d missing from recipient index", d.Donor, d.Recipient)
		}
		toCounts[d.Recipient]++
		fromCounts[d.Donor]++
	}
	for recipient, want := range toCounts {
		if got := view.DonationsTo(recipient); got != want {
			block(domain.EntityRecipient, recipient,
				"recipient %d index holds %d donations, donation list holds %d", recipient, got, want)
		}
	}
	for donor, want := range fromCounts {
		if got := view.DonationsFrom(donor); got != want {
			block(domain.EntityDonor, donor,
				"donor %d index holds %d donations, donation list holds %d", donor, got, want)
		}
	}
	return res, nil
}
