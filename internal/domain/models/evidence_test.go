package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvidenceSetAddDeduplicates(t *testing.T) {
	e := NewEvidenceSet()

	assert.True(t, e.Add(CategoryPhoneNumber, "9876543210"))
	assert.False(t, e.Add(CategoryPhoneNumber, "9876543210"))
	assert.False(t, e.Add(CategoryPhoneNumber, ""))
	assert.True(t, e.Add(CategoryPhoneNumber, "8765432109"))

	assert.Equal(t, []string{"8765432109", "9876543210"}, e.Values(CategoryPhoneNumber))
	assert.Equal(t, 2, e.Count(CategoryPhoneNumber))
	assert.False(t, e.Has(CategoryIFSCCode))
}

func TestEvidenceSetMergeReturnsOnlyNewValues(t *testing.T) {
	e := NewEvidenceSet()
	e.Add(CategoryIFSCCode, "HDFC0001234")

	incoming := NewEvidenceSet()
	incoming.Add(CategoryIFSCCode, "HDFC0001234")
	incoming.Add(CategoryIFSCCode, "SBIN0005678")
	incoming.Add(CategoryUPIID, "fraud@ybl")

	added := e.Merge(incoming)

	assert.Equal(t, []string{"SBIN0005678"}, added.Values(CategoryIFSCCode))
	assert.Equal(t, []string{"fraud@ybl"}, added.Values(CategoryUPIID))
	assert.Equal(t, 2, e.Count(CategoryIFSCCode))

	again := e.Merge(incoming)
	assert.True(t, again.IsEmpty())
	assert.Equal(t, 3, e.Total())
}

func TestEvidenceSetMergeIsMonotonic(t *testing.T) {
	e := NewEvidenceSet()
	batches := []EvidenceSet{
		{CategoryBankAccount: {"123456789012"}},
		{},
		{CategoryBankAccount: {"123456789012", "998877665544"}, CategoryEmail: {"a@b.com"}},
		{CategoryEmail: {"a@b.com"}},
	}

	prev := e.Counts()
	for _, b := range batches {
		e.Merge(b)
		cur := e.Counts()
		for _, c := range AllCategories {
			assert.GreaterOrEqual(t, cur[c], prev[c], "category %s shrank", c)
		}
		prev = cur
	}
}

func TestEvidenceSetCloneIsDeep(t *testing.T) {
	e := NewEvidenceSet()
	e.Add(CategoryEmail, "x@y.com")

	cp := e.Clone()
	cp.Add(CategoryEmail, "z@y.com")

	assert.Equal(t, 1, e.Count(CategoryEmail))
	assert.Equal(t, 2, cp.Count(CategoryEmail))
}

func TestCountsIncludesEveryCategory(t *testing.T) {
	counts := NewEvidenceSet().Counts()
	assert.Len(t, counts, len(AllCategories))
	for _, c := range AllCategories {
		assert.True(t, c.IsValid())
		assert.Zero(t, counts[c])
	}
	assert.False(t, Category("ssn").IsValid())
}
