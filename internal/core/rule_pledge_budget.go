package core

import (
	"context"
	"fmt"

	"giftmatch/pkg/domain"
)

// PledgeBudgetRule checks that no ordinary donor exceeds its pledge
// budget. The association funds top-up slots and is exempt.
type PledgeBudgetRule struct{}

func (PledgeBudgetRule) Name() string { return "pledge_budget" }

func (PledgeBudgetRule) Evaluate(_ context.Context, view LedgerView) (domain.Result, error) {
	var res domain.Result
	for _, donor := range view.Donors() {
		if donor.ID == view.AssociationID() {
			continue
		}
		if given := view.DonationsFrom(donor.ID); given > donor.Pledges {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "pledge_budget",
				Severity: domain.SeverityBlock,
				Message: fmt.Sprintf("donor %d made %d donations but pledged only %d",
					donor.ID, given, donor.Pledges),
				Entity:   domain.EntityDonor,
				EntityID: donor.ID,
			})
		}
	}
	return res, nil
}
