// Package core owns the relational state of a gift-card drive and the
// matching and optimization passes that run over it. The Ledger is the
// only writer of its indexes; every mutation goes through its methods
// so the donation list and the adjacency maps cannot drift apart.
package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"giftmatch/internal/logging"
	"giftmatch/internal/rows"
	"giftmatch/pkg/domain"
)

const (
	// DefaultAssociationID is the donor id reserved for the program's
	// own matching association.
	DefaultAssociationID = 1
	// DefaultRecipientCap bounds donations per recipient.
	DefaultRecipientCap = 10
)

// LedgerView is the read-only query surface of a Ledger, used by the
// invariant rules, the report exporters, and tests.
type LedgerView interface {
	Donors() []domain.Donor
	Recipients() []domain.Recipient
	Donations() []domain.Donation
	NewDonations() []domain.Donation
	Donor(id int) (domain.Donor, bool)
	Recipient(id int) (domain.Recipient, bool)
	AssociationID() int

	DonationsTo(recipient int) int
	DonationsFrom(donor int) int
	PreviousDonationsTo(recipient int) int
	AssociationDonationsTo(recipient int) int
	RemainingPledges(donor int) int
	StoreCount(donor int, store string) int
	HasGiven(donor, recipient int) bool
	DonorsFor(recipient int) []int
	ValidRecipients() []domain.Recipient

	HasOrgEmailKey(email string) bool
	HasHomeEmailKey(email string) bool
	HasNameKey(key string) bool
}

type nameKey struct {
	Name string
	ID   int
}

// Ledger holds every donor, recipient and donation of a drive together
// with the derived indexes used for duplicate detection and matching.
// It is not safe for concurrent use; a run owns it exclusively.
type Ledger struct {
	donors         map[int]domain.Donor
	donorOrder     []int
	recipients     map[int]domain.Recipient
	recipientOrder []int

	donations  []domain.Donation
	newSession []int // positions in donations pledged this session

	orgEmails  map[string]string // org email -> recipient name
	homeEmails map[string]string
	names      map[string]nameKey

	donationsTo   map[int][]int // recipient -> donor ids
	donationsFrom map[int][]int // donor -> recipient ids
	prevTo        map[int]int   // recipient -> donations before this session

	associationID  int
	hasAssociation bool

	engine *RulesEngine
	log    logging.Logger
	now    func() domain.Date
}

var _ LedgerView = (*Ledger)(nil)

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLogger routes ledger notices somewhere other than a nop logger.
func WithLogger(log logging.Logger) LedgerOption {
	return func(l *Ledger) { l.log = log }
}

// WithAssociationID overrides the distinguished association donor id.
func WithAssociationID(id int) LedgerOption {
	return func(l *Ledger) { l.associationID = id }
}

// WithClock overrides the date stamped on new pledges.
func WithClock(now func() domain.Date) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithRulesEngine overrides the invariant rules evaluated by Validate.
func WithRulesEngine(engine *RulesEngine) LedgerOption {
	return func(l *Ledger) { l.engine = engine }
}

// NewLedger builds an empty ledger with the default invariant rules.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		donors:        make(map[int]domain.Donor),
		recipients:    make(map[int]domain.Recipient),
		orgEmails:     make(map[string]string),
		homeEmails:    make(map[string]string),
		names:         make(map[string]nameKey),
		donationsTo:   make(map[int][]int),
		donationsFrom: make(map[int][]int),
		prevTo:        make(map[int]int),
		associationID: DefaultAssociationID,
		log:           logging.NopLogger{},
		now:           domain.Today,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.engine == nil {
		l.engine = NewDefaultRulesEngine()
	}
	return l
}

// AdmitDonors folds a batch of donor import rows into the ledger. Rows
// with a blank id or with both name fields empty are skipped; ids
// already present are no-ops because admitted records are authoritative
// over re-imports. The batch fails if the association donor is still
// undefined when it ends.
func (l *Ledger) AdmitDonors(batch []rows.Row) domain.AdmitResult {
	var res domain.AdmitResult
	for _, row := range batch {
		idText, err := rows.Value(row, rows.DonorIDColumn)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		if strings.TrimSpace(idText) == "" {
			continue
		}
		donor, err := rows.ParseDonor(row)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		if _, ok := l.donors[donor.ID]; ok {
			continue
		}
		if donor.First == "" && donor.Last == "" {
			continue
		}
		l.donors[donor.ID] = donor
		l.donorOrder = append(l.donorOrder, donor.ID)
		if donor.ID == l.associationID {
			l.hasAssociation = true
		}
		res.NewCount++
	}
	if !l.hasAssociation {
		res.Errors = append(res.Errors,
			fmt.Sprintf("no definition for the association as a donor with id %d", l.associationID))
	}
	return res
}

// AdmitRecipients folds a batch of recipient import rows into the
// ledger. Blank-id rows are skipped and known ids are no-ops. An email
// collision rejects the row without touching any index. Populated
// inline donor columns are the recovery path for hand-edited
// spreadsheets; they become donations with no recorded date.
func (l *Ledger) AdmitRecipients(batch []rows.Row) domain.AdmitResult {
	var res domain.AdmitResult
	for _, row := range batch {
		idText, err := rows.Value(row, rows.RecipientIDColumn)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		if strings.TrimSpace(idText) == "" {
			continue
		}
		recipient, err := rows.ParseRecipient(row)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		l.admitRecipient(recipient, &res)
		if _, ok := l.recipients[recipient.ID]; !ok {
			continue
		}
		donors, err := rows.InlineDonations(row)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		for _, donorID := range donors {
			l.log.Info("adding donation while updating recipients",
				"recipient", recipient.Name, "recipient_id", recipient.ID, "donor", donorID)
			l.RecordDonation(domain.Donation{Donor: donorID, Recipient: recipient.ID})
		}
	}
	return res
}

func (l *Ledger) admitRecipient(r domain.Recipient, res *domain.AdmitResult) {
	if _, ok := l.recipients[r.ID]; ok {
		return
	}
	if existing, ok := l.orgEmails[r.OrgEmail]; ok && r.OrgEmail != "" {
		res.Errors = append(res.Errors,
			fmt.Sprintf("duplicate email addresses used for %s and %s", existing, r.Name))
		return
	}
	if existing, ok := l.homeEmails[r.HomeEmail]; ok && r.HomeEmail != "" {
		res.Errors = append(res.Errors,
			fmt.Sprintf("duplicate home email addresses used for %s and %s", existing, r.Name))
		return
	}
	if r.OrgEmail != "" {
		l.orgEmails[r.OrgEmail] = r.Name
	}
	if r.HomeEmail != "" {
		l.homeEmails[r.HomeEmail] = r.Name
	}
	key := rows.NormalizeName(r.Name)
	if existing, ok := l.names[key]; ok {
		// The fuzzy key is advisory, so a collision is a warning.
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("duplicate recipient found:\n %s, Recipient # %d\nmight be\n %s, Recipient # %d",
				r.Name, r.ID, existing.Name, existing.ID))
	} else {
		l.names[key] = nameKey{Name: r.Name, ID: r.ID}
	}
	l.recipients[r.ID] = r
	l.recipientOrder = append(l.recipientOrder, r.ID)
	res.NewToValidate = append(res.NewToValidate, r.ID)
	res.NewCount++
}

// RecordDonation appends a donation that predates this session. Only
// valid recipients may ever reach this call; anything else is a broken
// caller contract and panics. An exact repeat of an existing pair is a
// no-op, and only repeats carrying a known date are worth a notice.
func (l *Ledger) RecordDonation(d domain.Donation) {
	r, ok := l.recipients[d.Recipient]
	if !ok {
		panic(fmt.Sprintf("donation recorded for unknown recipient %d", d.Recipient))
	}
	if !r.IsValid() {
		panic(fmt.Sprintf("donation recorded for invalid recipient %d", d.Recipient))
	}
	for _, existing := range l.donations {
		if existing.Recipient == d.Recipient && existing.Donor == d.Donor {
			if d.Date.Known {
				l.log.Info("ignoring duplicate donation", "donor", d.Donor, "recipient", d.Recipient)
			}
			return
		}
	}
	l.donations = append(l.donations, d)
	l.donationsTo[d.Recipient] = append(l.donationsTo[d.Recipient], d.Donor)
	l.donationsFrom[d.Donor] = append(l.donationsFrom[d.Donor], d.Recipient)
	l.prevTo[d.Recipient]++
}

// Pledge creates a donation dated today and marks it as belonging to
// the current session. Session donations are the only ones the
// optimizer may swap and RemoveNewPledges may roll back.
func (l *Ledger) Pledge(donor, recipient int) {
	d := domain.Donation{Donor: donor, Recipient: recipient, Date: l.now()}
	l.donations = append(l.donations, d)
	l.donationsTo[recipient] = append(l.donationsTo[recipient], donor)
	l.donationsFrom[donor] = append(l.donationsFrom[donor], recipient)
	l.newSession = append(l.newSession, len(l.donations)-1)
}

// RemoveNewPledges rolls back every donation the given donor made this
// session, from the donation list, both adjacency indexes, and the
// session list.
func (l *Ledger) RemoveNewPledges(donor int) {
	doomed := make(map[int]bool)
	for _, pos := range l.newSession {
		if l.donations[pos].Donor == donor {
			doomed[pos] = true
		}
	}
	if len(doomed) == 0 {
		return
	}
	for pos := range doomed {
		d := l.donations[pos]
		l.donationsTo[d.Recipient] = removeOne(l.donationsTo[d.Recipient], d.Donor)
		l.donationsFrom[d.Donor] = removeOne(l.donationsFrom[d.Donor], d.Recipient)
	}
	remap := make(map[int]int, len(l.donations)-len(doomed))
	kept := make([]domain.Donation, 0, len(l.donations)-len(doomed))
	for pos, d := range l.donations {
		if doomed[pos] {
			continue
		}
		remap[pos] = len(kept)
		kept = append(kept, d)
	}
	l.donations = kept
	session := l.newSession[:0]
	for _, pos := range l.newSession {
		if doomed[pos] {
			continue
		}
		session = append(session, remap[pos])
	}
	l.newSession = session
}

func removeOne(list []int, value int) []int {
	for i, v := range list {
		if v == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Donors returns all donors in admission order.
func (l *Ledger) Donors() []domain.Donor {
	out := make([]domain.Donor, 0, len(l.donorOrder))
	for _, id := range l.donorOrder {
		out = append(out, l.donors[id])
	}
	return out
}

// Recipients returns all recipients in admission order.
func (l *Ledger) Recipients() []domain.Recipient {
	out := make([]domain.Recipient, 0, len(l.recipientOrder))
	for _, id := range l.recipientOrder {
		out = append(out, l.recipients[id])
	}
	return out
}

// Donations returns a copy of the donation list.
func (l *Ledger) Donations() []domain.Donation {
	out := make([]domain.Donation, len(l.donations))
	copy(out, l.donations)
	return out
}

// NewDonations returns the donations pledged this session.
func (l *Ledger) NewDonations() []domain.Donation {
	out := make([]domain.Donation, 0, len(l.newSession))
	for _, pos := range l.newSession {
		out = append(out, l.donations[pos])
	}
	return out
}

func (l *Ledger) Donor(id int) (domain.Donor, bool) {
	d, ok := l.donors[id]
	return d, ok
}

func (l *Ledger) Recipient(id int) (domain.Recipient, bool) {
	r, ok := l.recipients[id]
	return r, ok
}

// AssociationID returns the distinguished association donor id.
func (l *Ledger) AssociationID() int { return l.associationID }

// DonationsTo counts all donations a recipient has received.
func (l *Ledger) DonationsTo(recipient int) int { return len(l.donationsTo[recipient]) }

// DonationsFrom counts all donations a donor has made.
func (l *Ledger) DonationsFrom(donor int) int { return len(l.donationsFrom[donor]) }

// PreviousDonationsTo counts a recipient's donations recorded before
// this session.
func (l *Ledger) PreviousDonationsTo(recipient int) int { return l.prevTo[recipient] }

// AssociationDonationsTo counts a recipient's donations from the
// association.
func (l *Ledger) AssociationDonationsTo(recipient int) int {
	total := 0
	for _, donor := range l.donationsTo[recipient] {
		if donor == l.associationID {
			total++
		}
	}
	return total
}

// RemainingPledges is the donor's unspent pledge budget.
func (l *Ledger) RemainingPledges(donor int) int {
	return l.donors[donor].Pledges - len(l.donationsFrom[donor])
}

// StoreCount counts how many of the donor's recipients prefer the given
// store. The matcher uses it to cluster a donor's cards per store.
func (l *Ledger) StoreCount(donor int, store string) int {
	total := 0
	for _, recipient := range l.donationsFrom[donor] {
		if l.recipients[recipient].Store == store {
			total++
		}
	}
	return total
}

// HasGiven reports whether the donor already gave to the recipient.
func (l *Ledger) HasGiven(donor, recipient int) bool {
	for _, d := range l.donationsTo[recipient] {
		if d == donor {
			return true
		}
	}
	return false
}

// DonorsFor lists the donor ids that gave to a recipient, sorted for
// deterministic output.
func (l *Ledger) DonorsFor(recipient int) []int {
	out := make([]int, len(l.donationsTo[recipient]))
	copy(out, l.donationsTo[recipient])
	sort.Ints(out)
	return out
}

// ValidRecipients returns the vetted recipients in admission order.
func (l *Ledger) ValidRecipients() []domain.Recipient {
	var out []domain.Recipient
	for _, id := range l.recipientOrder {
		if r := l.recipients[id]; r.IsValid() {
			out = append(out, r)
		}
	}
	return out
}

func (l *Ledger) HasOrgEmailKey(email string) bool {
	_, ok := l.orgEmails[email]
	return ok
}

func (l *Ledger) HasHomeEmailKey(email string) bool {
	_, ok := l.homeEmails[email]
	return ok
}

func (l *Ledger) HasNameKey(key string) bool {
	_, ok := l.names[key]
	return ok
}

// Score rates the current assignment: 100 points per donation anywhere,
// then per ordinary donor 10 times the largest count of that donor's
// recipients sharing one store plus the second largest count once.
// Nothing past the top two tallies scores.
func (l *Ledger) Score() int {
	total := 0
	for _, id := range l.recipientOrder {
		total += 100 * len(l.donationsTo[id])
	}
	for _, id := range l.donorOrder {
		if id == l.associationID {
			continue
		}
		tally := make(map[string]int)
		for _, recipient := range l.donationsFrom[id] {
			tally[l.recipients[recipient].Store]++
		}
		best, second := 0, 0
		for _, count := range tally {
			if count > best {
				best, second = count, best
			} else if count > second {
				second = count
			}
		}
		total += best*10 + second
	}
	return total
}

// Validate evaluates the drive invariants. Blocking violations come
// back as a *domain.RuleViolationError; warn-level findings are logged
// and returned in the result without failing the run.
func (l *Ledger) Validate(ctx context.Context) (domain.Result, error) {
	result, err := l.engine.Evaluate(ctx, l)
	if err != nil {
		return result, err
	}
	for _, w := range result.Warnings() {
		l.log.Warn(w)
	}
	if result.HasBlocking() {
		return result, &domain.RuleViolationError{Result: result}
	}
	return result, nil
}

// sessionDonation resolves a session slot to its donation.
func (l *Ledger) sessionDonation(i int) domain.Donation {
	return l.donations[l.newSession[i]]
}

func (l *Ledger) sessionSize() int { return len(l.newSession) }

// swappable reports whether exchanging the donors of session donations
// i and j would keep every invariant. Swaps touching the association
// are refused so its top-up allocations stay intact.
func (l *Ledger) swappable(i, j int) bool {
	if i == j {
		return false
	}
	d1, d2 := l.sessionDonation(i), l.sessionDonation(j)
	if d1.Recipient == d2.Recipient || d1.Donor == d2.Donor {
		return false
	}
	if d1.Donor == l.associationID || d2.Donor == l.associationID {
		return false
	}
	if l.HasGiven(d1.Donor, d2.Recipient) || l.HasGiven(d2.Donor, d1.Recipient) {
		return false
	}
	return true
}

// swapSessionDonors exchanges the donors of session donations i and j,
// keeping both adjacency indexes in lockstep with the donation list.
// Calling it again with the same arguments reverts the swap.
func (l *Ledger) swapSessionDonors(i, j int) {
	p1, p2 := l.newSession[i], l.newSession[j]
	d1, d2 := l.donations[p1], l.donations[p2]

	l.donationsTo[d1.Recipient] = removeOne(l.donationsTo[d1.Recipient], d1.Donor)
	l.donationsTo[d2.Recipient] = removeOne(l.donationsTo[d2.Recipient], d2.Donor)
	l.donationsFrom[d1.Donor] = removeOne(l.donationsFrom[d1.Donor], d1.Recipient)
	l.donationsFrom[d2.Donor] = removeOne(l.donationsFrom[d2.Donor], d2.Recipient)

	l.donationsTo[d1.Recipient] = append(l.donationsTo[d1.Recipient], d2.Donor)
	l.donationsTo[d2.Recipient] = append(l.donationsTo[d2.Recipient], d1.Donor)
	l.donationsFrom[d2.Donor] = append(l.donationsFrom[d2.Donor], d1.Recipient)
	l.donationsFrom[d1.Donor] = append(l.donationsFrom[d1.Donor], d2.Recipient)

	l.donations[p1].Donor, l.donations[p2].Donor = d2.Donor, d1.Donor
}
