package dialogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/models"
)

func TestEngineFromDefaultConfig(t *testing.T) {
	cfg := config.Default()

	e, err := EngineFromConfig(cfg.Dialogue, cfg.Extraction)
	require.NoError(t, err)

	assert.Equal(t, 20, e.table.MaxStep())
	assert.Equal(t, DefaultPhrasebook().Fallback, e.Fallback())
}

func TestEngineFromConfigRequireEmail(t *testing.T) {
	cfg := config.Default()
	cfg.Dialogue.RequireEmail = true

	e, err := EngineFromConfig(cfg.Dialogue, cfg.Extraction)
	require.NoError(t, err)

	ev := e.Extractor().Extract(fullDisclosure)
	assert.False(t, e.Satisfied(ev))
	ev.Add(models.CategoryEmail, "boss@fraud.example")
	assert.True(t, e.Satisfied(ev))
}

func TestEngineFromConfigRejectsBadBands(t *testing.T) {
	cfg := config.Default()
	cfg.Dialogue.CooperateFrom = cfg.Dialogue.ElicitFrom

	_, err := EngineFromConfig(cfg.Dialogue, cfg.Extraction)
	assert.Error(t, err)
}

func TestEngineFromConfigLoadsPhrasebook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fallback: \"Sorry, who is this?\"\n"), 0o600))

	cfg := config.Default()
	cfg.Dialogue.PhrasebookFile = path

	e, err := EngineFromConfig(cfg.Dialogue, cfg.Extraction)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, who is this?", e.Fallback())
}

func TestExtractorFromConfigExtraHandles(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.ExtraUPIHandles = []string{"fraudbank"}

	x := ExtractorFromConfig(cfg.Extraction)
	ev := x.Extract("pay to scam@fraudbank or scam@ybl")
	assert.Equal(t, []string{"scam@fraudbank", "scam@ybl"}, ev.Values(models.CategoryUPIID))
}
