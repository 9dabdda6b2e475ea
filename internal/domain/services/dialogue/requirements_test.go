package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"honeypot-lab/internal/domain/models"
)

func evidence(pairs ...string) models.EvidenceSet {
	e := models.NewEvidenceSet()
	for i := 0; i+1 < len(pairs); i += 2 {
		e.Add(models.Category(pairs[i]), pairs[i+1])
	}
	return e
}

func TestRequirementsPredicate(t *testing.T) {
	base := []string{
		"ifsc_code", "HDFC0001234",
		"phone_number", "9876543210",
		"phishing_link", "http://verify.example.com",
	}
	withBank := append([]string{"bank_account", "123456789012"}, base...)
	withUPI := append([]string{"upi_id", "a@ybl"}, base...)
	withAll := append(append([]string{"email", "a@b.com"}, withBank...), "upi_id", "a@ybl")

	tests := []struct {
		name         string
		requireEmail bool
		requireUPI   bool
		ev           models.EvidenceSet
		want         bool
	}{
		{"empty", false, false, evidence(), false},
		{"no payment handle", false, false, evidence(base...), false},
		{"bank satisfies payment", false, false, evidence(withBank...), true},
		{"upi satisfies payment", false, false, evidence(withUPI...), true},
		{"email required", true, false, evidence(withBank...), false},
		{"upi required, bank only", false, true, evidence(withBank...), false},
		{"upi required, upi given", false, true, evidence(withUPI...), true},
		{"everything", true, true, evidence(withAll...), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := DefaultRequirements(tt.requireEmail, tt.requireUPI)
			for i := 0; i < 3; i++ {
				assert.Equal(t, tt.want, reqs.Satisfied(tt.ev))
			}
			assert.Equal(t, tt.want, len(reqs.Missing(tt.ev)) == 0)
		})
	}
}

func TestMissingKeepsAskingOrder(t *testing.T) {
	reqs := DefaultRequirements(true, false)

	missing := reqs.Missing(evidence("ifsc_code", "HDFC0001234"))

	assert.Equal(t, []string{
		"account number or UPI ID",
		"contact phone number",
		"verification link",
		"email address",
	}, missing.Labels())
}

func TestJoinLabels(t *testing.T) {
	assert.Equal(t, "", JoinLabels(nil))
	assert.Equal(t, "a", JoinLabels([]string{"a"}))
	assert.Equal(t, "a and b", JoinLabels([]string{"a", "b"}))
	assert.Equal(t, "a, b and c", JoinLabels([]string{"a", "b", "c"}))
}
