package core

import (
	"context"
	"fmt"

	"giftmatch/pkg/domain"
)

// InvalidRecipientRule flags recipients that hold donations despite not
// being vetted. Vetting flags get corrected by hand after the fact, so
// this is a warning for operators rather than a hard failure.
type InvalidRecipientRule struct{}

func (InvalidRecipientRule) Name() string { return "invalid_recipient" }

func (InvalidRecipientRule) Evaluate(_ context.Context, view LedgerView) (domain.Result, error) {
	var res domain.Result
	for _, r := range view.Recipients() {
		if r.IsValid() {
			continue
		}
		if got := view.DonationsTo(r.ID); got > 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "invalid_recipient",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("invalid recipient %d has received %d donations", r.ID, got),
				Entity:   domain.EntityRecipient,
				EntityID: r.ID,
			})
		}
	}
	return res, nil
}
