package dialogue

import (
	"fmt"

	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/services/extraction"
)

// ExtractorFromConfig builds the extractor the extraction section describes.
// Extra UPI handles extend the built-in list.
func ExtractorFromConfig(cfg config.ExtractionConfig) *extraction.Extractor {
	opts := extraction.Options{
		MinAccountDigits: cfg.MinAccountDigits,
		MaxAccountDigits: cfg.MaxAccountDigits,
		LinkPolicy:       extraction.LinkPolicy(cfg.LinkPolicy),
	}
	if len(cfg.ExtraUPIHandles) > 0 {
		opts.UPIHandles = append(append([]string{}, extraction.DefaultUPIHandles...), cfg.ExtraUPIHandles...)
	}
	return extraction.New(opts)
}

// EngineFromConfig wires an engine from the dialogue and extraction sections
func EngineFromConfig(d config.DialogueConfig, x config.ExtractionConfig) (*Engine, error) {
	table, err := NewPhaseTable(d.VerifyFrom, d.CooperateFrom, d.ElicitFrom, d.MaxStep)
	if err != nil {
		return nil, err
	}

	book := DefaultPhrasebook()
	if d.PhrasebookFile != "" {
		book, err = LoadPhrasebook(d.PhrasebookFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load phrasebook: %w", err)
		}
	}

	return NewEngine(
		ExtractorFromConfig(x),
		table,
		DefaultRequirements(d.RequireEmail, d.RequireUPI),
		book,
		NewRandomSelector(d.Seed),
		Options{EmotionChance: d.EmotionChance, HesitationChance: d.HesitationChance},
	), nil
}
