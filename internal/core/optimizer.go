package core

import (
	"math/rand"

	"giftmatch/internal/logging"
)

// DefaultTrialBudget is how many consecutive non-improving trials the
// optimizer tolerates before halting.
const DefaultTrialBudget = 10000

// OptimizeConfig tunes the local search pass.
type OptimizeConfig struct {
	// TrialBudget halts the search after this many consecutive trials
	// without a score improvement. Rejected trials count.
	TrialBudget int
}

func DefaultOptimizeConfig() OptimizeConfig {
	return OptimizeConfig{TrialBudget: DefaultTrialBudget}
}

// OptimizeResult reports one optimizer run.
type OptimizeResult struct {
	Trials       int
	Swaps        int
	InitialScore int
	FinalScore   int
}

// Optimizer improves the session's assignment by randomized
// hill-climbing over donor swaps. It only ever accepts strict score
// improvements, so it converges to a local optimum that depends on the
// trial order; the injected random source makes runs reproducible.
type Optimizer struct {
	cfg OptimizeConfig
	rng *rand.Rand
	log logging.Logger
}

// NewOptimizer builds an optimizer around an injected random source.
// rng must not be nil; sharing process-global randomness would make
// runs impossible to reproduce.
func NewOptimizer(cfg OptimizeConfig, rng *rand.Rand, log logging.Logger) *Optimizer {
	if cfg.TrialBudget <= 0 {
		cfg.TrialBudget = DefaultTrialBudget
	}
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Optimizer{cfg: cfg, rng: rng, log: log}
}

// Run repeatedly picks two session donations at random and swaps their
// donors when the swap is legal and strictly improves the global score.
// Illegal or non-improving trials revert and spend budget; an accepted
// swap resets it. Donations from earlier sessions are never touched.
func (o *Optimizer) Run(ledger *Ledger) OptimizeResult {
	score := ledger.Score()
	result := OptimizeResult{InitialScore: score, FinalScore: score}
	n := ledger.sessionSize()
	if n < 2 {
		return result
	}
	misses := 0
	for misses < o.cfg.TrialBudget {
		result.Trials++
		i, j := o.rng.Intn(n), o.rng.Intn(n)
		if !ledger.swappable(i, j) {
			misses++
			continue
		}
		ledger.swapSessionDonors(i, j)
		if improved := ledger.Score(); improved > score {
			score = improved
			result.Swaps++
			misses = 0
			o.log.Debug("accepted swap", "score", score)
			continue
		}
		ledger.swapSessionDonors(i, j)
		misses++
	}
	result.FinalScore = score
	return result
}
