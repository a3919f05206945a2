package core

import "giftmatch/internal/logging"

// MatchConfig tunes the greedy assignment pass.
type MatchConfig struct {
	// RecipientCap is the most donations any recipient may hold.
	RecipientCap int
	// AssociationReserve is how many of those slots are held back for
	// the association's top-up when TopUp is enabled.
	AssociationReserve int
	// MopUp keeps a donor's partial allocation when the donor cannot be
	// fully satisfied. Off, the donor's session pledges roll back so
	// commitment is all-or-nothing per donor.
	MopUp bool
	// TopUp grants the reserved slots from the association after the
	// main pass.
	TopUp bool
}

// DefaultMatchConfig mirrors a normal drive: cap of ten with one slot
// reserved for the association, all-or-nothing donors.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		RecipientCap:       DefaultRecipientCap,
		AssociationReserve: 1,
		TopUp:              true,
	}
}

// MatchResult reports one matcher run.
type MatchResult struct {
	Success      bool
	NewDonations int
}

// Matcher greedily assigns donor pledges to recipients with unmet need.
type Matcher struct {
	cfg MatchConfig
	log logging.Logger
}

func NewMatcher(cfg MatchConfig, log logging.Logger) *Matcher {
	if cfg.RecipientCap <= 0 {
		cfg.RecipientCap = DefaultRecipientCap
	}
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Matcher{cfg: cfg, log: log}
}

// Run walks donors in admission order, skipping the association, and
// grants each donor's remaining pledges one at a time. Each grant goes
// to the eligible recipient where the donor's store affinity is
// strictly greatest, first found winning ties. Recipients the donor
// already gave to, and recipients at their ordinary complement, are not
// eligible. A recipient nobody can serve is expected steady state, not
// a failure.
func (m *Matcher) Run(ledger *Ledger) MatchResult {
	ordinary := m.cfg.RecipientCap
	if m.cfg.TopUp {
		ordinary -= m.cfg.AssociationReserve
	}
	created := 0
	for _, donor := range ledger.Donors() {
		if donor.ID == ledger.AssociationID() {
			continue
		}
		granted := 0
		satisfied := true
		for ledger.RemainingPledges(donor.ID) > 0 {
			recipient, ok := m.bestRecipient(ledger, donor.ID, ordinary)
			if !ok {
				satisfied = false
				break
			}
			ledger.Pledge(donor.ID, recipient)
			granted++
		}
		if !satisfied && !m.cfg.MopUp && granted > 0 {
			m.log.Info("rolling back partially satisfied donor",
				"donor", donor.ID, "granted", granted)
			ledger.RemoveNewPledges(donor.ID)
			granted = 0
		}
		created += granted
	}
	result := MatchResult{Success: true, NewDonations: created}
	if m.cfg.TopUp {
		if _, ok := ledger.Donor(ledger.AssociationID()); !ok {
			m.log.Error("top-up requested but the association donor is missing",
				"association", ledger.AssociationID())
			result.Success = false
			return result
		}
		result.NewDonations += m.topUp(ledger, ordinary)
	}
	return result
}

// bestRecipient scans valid recipients in admission order for the one
// with unmet ordinary need this donor can serve, preferring the
// strictly highest count of the donor's existing donations at the
// recipient's store.
func (m *Matcher) bestRecipient(ledger *Ledger, donor, ordinary int) (int, bool) {
	best := 0
	bestCount := 0
	found := false
	for _, recipient := range ledger.ValidRecipients() {
		if ledger.DonationsTo(recipient.ID) >= ordinary {
			continue
		}
		if ledger.HasGiven(donor, recipient.ID) {
			continue
		}
		count := ledger.StoreCount(donor, recipient.Store)
		if !found || count > bestCount {
			best = recipient.ID
			bestCount = count
			found = true
		}
	}
	return best, found
}

// topUp grants the association's reserved slots to recipients who have
// reached their full ordinary complement. The association is exempt
// from the pledge budget.
func (m *Matcher) topUp(ledger *Ledger, ordinary int) int {
	association := ledger.AssociationID()
	created := 0
	for _, recipient := range ledger.ValidRecipients() {
		held := ledger.DonationsTo(recipient.ID)
		if held < ordinary || held >= m.cfg.RecipientCap {
			continue
		}
		if ledger.HasGiven(association, recipient.ID) {
			continue
		}
		ledger.Pledge(association, recipient.ID)
		created++
	}
	if created > 0 {
		m.log.Info("association top-up complete", "donations", created)
	}
	return created
}
