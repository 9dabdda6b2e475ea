package dialogue

import (
	"fmt"

	"honeypot-lab/internal/domain/models"
)

// Band maps a step range starting at From to a phase and its emotional register.
// A band ends where the next one starts; the last band is open ended.
type Band struct {
	From     int
	Phase    models.Phase
	Register models.Register
}

// PhaseTable partitions steps into increasing, non-overlapping bands
type PhaseTable struct {
	bands   []Band
	maxStep int
}

// NewPhaseTable builds the rapport, verify, cooperate and elicit bands.
// maxStep caps the step counter and must reach the elicit band.
func NewPhaseTable(verifyFrom, cooperateFrom, elicitFrom, maxStep int) (*PhaseTable, error) {
	if !(1 < verifyFrom && verifyFrom < cooperateFrom && cooperateFrom < elicitFrom) {
		return nil, fmt.Errorf("phase bands must increase: verify=%d cooperate=%d elicit=%d",
			verifyFrom, cooperateFrom, elicitFrom)
	}
	if maxStep < elicitFrom {
		return nil, fmt.Errorf("max step %d is below the elicit band at %d", maxStep, elicitFrom)
	}

	return &PhaseTable{
		bands: []Band{
			{From: 1, Phase: models.PhaseRapport, Register: models.RegisterWorry},
			{From: verifyFrom, Phase: models.PhaseVerify, Register: models.RegisterConfusion},
			{From: cooperateFrom, Phase: models.PhaseCooperate, Register: models.RegisterCooperation},
			{From: elicitFrom, Phase: models.PhaseElicit, Register: models.RegisterTrust},
		},
		maxStep: maxStep,
	}, nil
}

// DefaultPhaseTable returns bands starting at steps 1, 4, 7 and 10 with a cap of 20
func DefaultPhaseTable() *PhaseTable {
	t, _ := NewPhaseTable(4, 7, 10, 20)
	return t
}

// PhaseFor returns the band containing step. Steps below 1 belong to the first band.
func (t *PhaseTable) PhaseFor(step int) Band {
	band := t.bands[0]
	for _, b := range t.bands[1:] {
		if step < b.From {
			break
		}
		band = b
	}
	return band
}

// Advance returns the next step, never beyond the cap
func (t *PhaseTable) Advance(step int) int {
	if step < 1 {
		step = 1
	}
	if step >= t.maxStep {
		return t.maxStep
	}
	return step + 1
}

// MaxStep returns the step cap
func (t *PhaseTable) MaxStep() int {
	return t.maxStep
}

// Bands returns a copy of the table rows
func (t *PhaseTable) Bands() []Band {
	out := make([]Band, len(t.bands))
	copy(out, t.bands)
	return out
}
