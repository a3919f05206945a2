package core

import (
	"context"
	"fmt"

	"giftmatch/pkg/domain"
)

// RecipientCapRule checks that no recipient holds more donations than
// the per-recipient cap.
type RecipientCapRule struct {
	Cap int
}

func (RecipientCapRule) Name() string { return "recipient_cap" }

func (r RecipientCapRule) Evaluate(_ context.Context, view LedgerView) (domain.Result, error) {
	cap := r.Cap
	if cap <= 0 {
		cap = DefaultRecipientCap
	}
	var res domain.Result
	for _, recipient := range view.Recipients() {
		if got := view.DonationsTo(recipient.ID); got > cap {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "recipient_cap",
				Severity: domain.SeverityBlock,
				Message: fmt.Sprintf("recipient %d received %d donations, cap is %d",
					recipient.ID, got, cap),
				Entity:   domain.EntityRecipient,
				EntityID: recipient.ID,
			})
		}
	}
	return res, nil
}
