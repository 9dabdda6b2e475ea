package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeypot-lab/internal/domain/models"
)

func TestPhaseForBoundaries(t *testing.T) {
	table := DefaultPhaseTable()

	tests := []struct {
		step     int
		phase    models.Phase
		register models.Register
	}{
		{0, models.PhaseRapport, models.RegisterWorry},
		{1, models.PhaseRapport, models.RegisterWorry},
		{3, models.PhaseRapport, models.RegisterWorry},
		{4, models.PhaseVerify, models.RegisterConfusion},
		{6, models.PhaseVerify, models.RegisterConfusion},
		{7, models.PhaseCooperate, models.RegisterCooperation},
		{9, models.PhaseCooperate, models.RegisterCooperation},
		{10, models.PhaseElicit, models.RegisterTrust},
		{20, models.PhaseElicit, models.RegisterTrust},
		{500, models.PhaseElicit, models.RegisterTrust},
	}
	for _, tt := range tests {
		band := table.PhaseFor(tt.step)
		assert.Equal(t, tt.phase, band.Phase, "step %d", tt.step)
		assert.Equal(t, tt.register, band.Register, "step %d", tt.step)
	}
}

func TestAdvanceIsCapped(t *testing.T) {
	table := DefaultPhaseTable()

	assert.Equal(t, 2, table.Advance(1))
	assert.Equal(t, 2, table.Advance(0))
	assert.Equal(t, 20, table.Advance(19))
	assert.Equal(t, 20, table.Advance(20))
	assert.Equal(t, 20, table.Advance(35))
	assert.Equal(t, 20, table.MaxStep())
}

func TestNewPhaseTableRejectsBadBands(t *testing.T) {
	_, err := NewPhaseTable(4, 4, 10, 20)
	assert.Error(t, err)
	_, err = NewPhaseTable(1, 7, 10, 20)
	assert.Error(t, err)
	_, err = NewPhaseTable(4, 7, 10, 9)
	assert.Error(t, err)

	table, err := NewPhaseTable(2, 3, 4, 4)
	require.NoError(t, err)
	assert.Len(t, table.Bands(), 4)
	assert.Equal(t, models.PhaseElicit, table.PhaseFor(4).Phase)
}
