package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"honeypot-lab/internal/domain/models"
)

func TestEvidenceItemsKeepsOnlyIdentifyingCategories(t *testing.T) {
	e := models.NewEvidenceSet()
	e.Add(models.CategoryPhoneNumber, "9876543210")
	e.Add(models.CategoryUPIID, "fraud@ybl")
	e.Add(models.CategoryIFSCCode, "HDFC0001234")
	e.Add(models.CategoryAmount, "INR 5000")
	e.Add(models.CategoryKeyword, "urgent")

	items := evidenceItems(e)

	assert.Equal(t, []map[string]any{
		{"category": "upi_id", "value": "fraud@ybl"},
		{"category": "phone_number", "value": "9876543210"},
	}, items)
}

func TestEvidenceItemsEmpty(t *testing.T) {
	assert.Empty(t, evidenceItems(models.NewEvidenceSet()))
}
