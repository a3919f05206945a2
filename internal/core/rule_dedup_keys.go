package core

import (
	"context"
	"fmt"

	"giftmatch/internal/rows"
	"giftmatch/pkg/domain"
)

// DedupKeysRule checks that every recipient's org email, home email and
// normalized name appear in the duplicate-detection maps. The maps may
// point at a different recipient; they exist to catch duplicates, not
// to identify records.
type DedupKeysRule struct{}

func (DedupKeysRule) Name() string { return "dedup_keys" }

func (DedupKeysRule) Evaluate(_ context.Context, view LedgerView) (domain.Result, error) {
	var res domain.Result
	block := func(id int, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "dedup_keys",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf(format, args...),
			Entity:   domain.EntityRecipient,
			EntityID: id,
		})
	}
	for _, r := range view.Recipients() {
		if r.OrgEmail != "" && !view.HasOrgEmailKey(r.OrgEmail) {
			block(r.ID, "recipient %d org email missing from duplicate map", r.ID)
		}
		if r.HomeEmail != "" && !view.HasHomeEmailKey(r.HomeEmail) {
			block(r.ID, "recipient %d home email missing from duplicate map", r.ID)
		}
		if !view.HasNameKey(rows.NormalizeName(r.Name)) {
			block(r.ID, "recipient %d normalized name missing from duplicate map", r.ID)
		}
	}
	return res, nil
}
