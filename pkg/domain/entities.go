package domain

import (
	"fmt"
	"strings"
)

// Donor is a person or organization that pledged gift cards.
type Donor struct {
	ID       int    `json:"id"`
	First    string `json:"first"`
	Last     string `json:"last"`
	Email    string `json:"email"`
	Pledges  int    `json:"pledges"`
	Comments string `json:"comments,omitempty"`
}

// DisplayName renders the donor the way reports list them.
func (d Donor) DisplayName() string {
	return strings.TrimSpace(d.First + " " + d.Last)
}

// Recipient is a household nominated to receive gift cards.
type Recipient struct {
	ID             int    `json:"id"`
	Valid          string `json:"valid"`
	Status         string `json:"status,omitempty"`
	OrgEmail       string `json:"org_email"`
	Name           string `json:"name"`
	Address        string `json:"address,omitempty"`
	HomeEmail      string `json:"home_email,omitempty"`
	Store          string `json:"store"`
	Phone          string `json:"phone,omitempty"`
	NoPhysicalCard bool   `json:"no_physical_card,omitempty"`
	Comments       string `json:"comments,omitempty"`
}

// IsValid reports whether the recipient has been vetted and may be
// assigned donations. The valid flag is free text sourced from a
// spreadsheet, so anything other than "true" counts as not vetted.
func (r Recipient) IsValid() bool {
	return strings.EqualFold(strings.TrimSpace(r.Valid), "true")
}

// Donation links one donor to one recipient. Date records when the
// pledge was made and may be unknown for rows imported from older
// spreadsheets.
type Donation struct {
	Donor     int  `json:"donor"`
	Recipient int  `json:"recipient"`
	Date      Date `json:"date"`
}

// EntityType identifies which record a violation refers to.
type EntityType string

const (
	EntityDonor     EntityType = "donor"
	EntityRecipient EntityType = "recipient"
	EntityDonation  EntityType = "donation"
)

// Severity indicates how a rule violation should be treated.
type Severity string

const (
	// SeverityBlock rejects the change that produced the violation.
	SeverityBlock Severity = "block"
	// SeverityWarn keeps the change but surfaces the issue to operators.
	SeverityWarn Severity = "warn"
	// SeverityLog records the issue without surfacing it.
	SeverityLog Severity = "log"
)

// Violation describes a single rule failure.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity,omitempty"`
	EntityID int        `json:"entity_id,omitempty"`
}

// Result aggregates violations produced by rule evaluation.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge folds other into the receiver and returns the combined result.
func (r Result) Merge(other Result) Result {
	if len(other.Violations) == 0 {
		return r
	}
	merged := Result{Violations: make([]Violation, 0, len(r.Violations)+len(other.Violations))}
	merged.Violations = append(merged.Violations, r.Violations...)
	merged.Violations = append(merged.Violations, other.Violations...)
	return merged
}

// HasBlocking reports whether any violation carries SeverityBlock.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the messages of all warn-level violations.
func (r Result) Warnings() []string {
	var out []string
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v.Message)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations reject a change.
type RuleViolationError struct {
	Result Result
}

func (e *RuleViolationError) Error() string {
	count := 0
	first := ""
	for _, v := range e.Result.Violations {
		if v.Severity != SeverityBlock {
			continue
		}
		if count == 0 {
			first = v.Message
		}
		count++
	}
	if count == 1 {
		return fmt.Sprintf("rule violation: %s", first)
	}
	return fmt.Sprintf("%d rule violations (first: %s)", count, first)
}

// AdmitResult reports the outcome of folding a batch of imported rows
// into the ledger.
type AdmitResult struct {
	NewCount      int
	NewToValidate []int
	Warnings      []string
	Errors        []string
}

// Ok reports whether the batch was admitted without hard errors.
func (r AdmitResult) Ok() bool {
	return len(r.Errors) == 0
}
