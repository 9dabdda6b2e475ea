package models

import (
	"sort"
)

// Category is a kind of adversary-identifying fact captured from counterpart messages
type Category string

const (
	CategoryBankAccount  Category = "bank_account"
	CategoryUPIID        Category = "upi_id"
	CategoryPhoneNumber  Category = "phone_number"
	CategoryIFSCCode     Category = "ifsc_code"
	CategoryEmail        Category = "email"
	CategoryPhishingLink Category = "phishing_link"
	CategoryAmount       Category = "amount"
	CategoryKeyword      Category = "keyword"
)

// AllCategories lists every category in reporting order
var AllCategories = []Category{
	CategoryBankAccount,
	CategoryUPIID,
	CategoryPhoneNumber,
	CategoryIFSCCode,
	CategoryEmail,
	CategoryPhishingLink,
	CategoryAmount,
	CategoryKeyword,
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the wire name of the category
func (c Category) String() string {
	return string(c)
}

// EvidenceSet maps each category to its unique observed values.
// Values are kept sorted; a value is never stored twice and never removed.
type EvidenceSet map[Category][]string

// NewEvidenceSet returns an empty evidence set
func NewEvidenceSet() EvidenceSet {
	return make(EvidenceSet)
}

// Add inserts value under c and reports whether it was new
func (e EvidenceSet) Add(c Category, value string) bool {
	if value == "" {
		return false
	}
	values := e[c]
	i := sort.SearchStrings(values, value)
	if i < len(values) && values[i] == value {
		return false
	}
	values = append(values, "")
	copy(values[i+1:], values[i:])
	values[i] = value
	e[c] = values
	return true
}

// Merge unions other into e and returns only the values that were not present before
func (e EvidenceSet) Merge(other EvidenceSet) EvidenceSet {
	added := NewEvidenceSet()
	for c, values := range other {
		for _, v := range values {
			if e.Add(c, v) {
				added.Add(c, v)
			}
		}
	}
	return added
}

// Has reports whether at least one value was captured for c
func (e EvidenceSet) Has(c Category) bool {
	return len(e[c]) > 0
}

// Count returns the number of unique values for c
func (e EvidenceSet) Count(c Category) int {
	return len(e[c])
}

// Values returns a copy of the values captured for c
func (e EvidenceSet) Values(c Category) []string {
	values := e[c]
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Counts returns the per-category value counts, including zero counts
func (e EvidenceSet) Counts() map[Category]int {
	counts := make(map[Category]int, len(AllCategories))
	for _, c := range AllCategories {
		counts[c] = len(e[c])
	}
	return counts
}

// Total returns the number of values across all categories
func (e EvidenceSet) Total() int {
	total := 0
	for _, values := range e {
		total += len(values)
	}
	return total
}

// IsEmpty reports whether nothing has been captured
func (e EvidenceSet) IsEmpty() bool {
	return e.Total() == 0
}

// Clone returns a deep copy
func (e EvidenceSet) Clone() EvidenceSet {
	out := make(EvidenceSet, len(e))
	for c, values := range e {
		cp := make([]string, len(values))
		copy(cp, values)
		out[c] = cp
	}
	return out
}
