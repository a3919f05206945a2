package core

import (
	"context"
	"fmt"

	"giftmatch/pkg/domain"
)

// Rule checks one drive invariant against a read-only ledger view.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view LedgerView) (domain.Result, error)
}

// RulesEngine evaluates registered rules in order and aggregates their
// findings.
type RulesEngine struct {
	rules []Rule
}

func NewRulesEngine() *RulesEngine { return &RulesEngine{} }

// NewDefaultRulesEngine returns an engine loaded with every drive
// invariant the validator enforces.
func NewDefaultRulesEngine() *RulesEngine {
	e := NewRulesEngine()
	e.Register(DonationIntegrityRule{})
	e.Register(PledgeBudgetRule{})
	e.Register(RecipientCapRule{Cap: DefaultRecipientCap})
	e.Register(DedupKeysRule{})
	e.Register(InvalidRecipientRule{})
	return e
}

// Register appends a rule. Evaluation order is registration order.
func (e *RulesEngine) Register(r Rule) { e.rules = append(e.rules, r) }

// Evaluate runs every rule and merges the results. A rule returning an
// error aborts evaluation; that is an engine failure, not a violation.
func (e *RulesEngine) Evaluate(ctx context.Context, view LedgerView) (domain.Result, error) {
	var merged domain.Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		res, err := rule.Evaluate(ctx, view)
		if err != nil {
			return merged, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		merged = merged.Merge(res)
	}
	return merged, nil
}
