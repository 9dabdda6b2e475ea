package dialogue

import (
	"strings"

	"honeypot-lab/internal/domain/models"
)

// Requirement is one clause of the completion predicate. It holds when the
// evidence has at least one value in any of its categories.
type Requirement struct {
	Label string
	AnyOf []models.Category
}

// Met reports whether the clause holds for e
func (r Requirement) Met(e models.EvidenceSet) bool {
	for _, c := range r.AnyOf {
		if e.Has(c) {
			return true
		}
	}
	return false
}

// Requirements is the completion predicate, in the order missing items are asked for
type Requirements []Requirement

// DefaultRequirements builds the predicate
// (bank_account OR upi_id) AND ifsc_code AND phone_number AND phishing_link,
// optionally extended with email and a mandatory UPI id.
func DefaultRequirements(requireEmail, requireUPI bool) Requirements {
	payment := Requirement{
		Label: "account number or UPI ID",
		AnyOf: []models.Category{models.CategoryBankAccount, models.CategoryUPIID},
	}
	if requireUPI {
		// (bank OR upi) AND upi reduces to upi
		payment = Requirement{Label: "UPI ID", AnyOf: []models.Category{models.CategoryUPIID}}
	}

	reqs := Requirements{
		payment,
		{Label: "IFSC code", AnyOf: []models.Category{models.CategoryIFSCCode}},
		{Label: "contact phone number", AnyOf: []models.Category{models.CategoryPhoneNumber}},
		{Label: "verification link", AnyOf: []models.Category{models.CategoryPhishingLink}},
	}
	if requireEmail {
		reqs = append(reqs, Requirement{Label: "email address", AnyOf: []models.Category{models.CategoryEmail}})
	}
	return reqs
}

// Satisfied evaluates the completion predicate over the full evidence set
func (rs Requirements) Satisfied(e models.EvidenceSet) bool {
	for _, r := range rs {
		if !r.Met(e) {
			return false
		}
	}
	return true
}

// Missing returns the unmet clauses in asking order
func (rs Requirements) Missing(e models.EvidenceSet) Requirements {
	var missing Requirements
	for _, r := range rs {
		if !r.Met(e) {
			missing = append(missing, r)
		}
	}
	return missing
}

// Labels returns the human labels of the clauses
func (rs Requirements) Labels() []string {
	labels := make([]string, len(rs))
	for i, r := range rs {
		labels[i] = r.Label
	}
	return labels
}

// JoinLabels renders "a", "a and b" or "a, b and c"
func JoinLabels(labels []string) string {
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
	}
}
