// Package dialogue drives the scripted decoy conversation: it merges extracted
// evidence into a session, evaluates the completion predicate and picks the
// next utterance from the phase the session's step falls into.
package dialogue

import (
	"strings"
	"time"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services/extraction"
)

// Options tunes the stylistic decoration of replies
type Options struct {
	EmotionChance    float64
	HesitationChance float64
}

// DefaultOptions matches the production persona
func DefaultOptions() Options {
	return Options{EmotionChance: 0.7, HesitationChance: 0.4}
}

// Turn is the outcome of one processed message
type Turn struct {
	Reply    string
	Phase    models.Phase
	Register models.Register
	// Step is the step this message was processed at
	Step   int
	Active bool
	// Closed is true only on the message that completed the session
	Closed      bool
	Missing     []string
	NewEvidence models.EvidenceSet
}

// phaseHandler renders the utterance for one phase and returns the template it used
type phaseHandler func(s *models.Session, band Band) (template, reply string)

// Engine is the dialogue state machine. It holds no per-session state, so one
// Engine serves every session; callers serialize access to each session.
type Engine struct {
	extractor *extraction.Extractor
	table     *PhaseTable
	reqs      Requirements
	book      *Phrasebook
	selector  Selector
	opts      Options
	handlers  map[models.Phase]phaseHandler
	now       func() time.Time
}

// NewEngine wires an engine. Nil collaborators fall back to the defaults.
func NewEngine(
	extractor *extraction.Extractor,
	table *PhaseTable,
	reqs Requirements,
	book *Phrasebook,
	selector Selector,
	opts Options,
) *Engine {
	if extractor == nil {
		extractor = extraction.New(extraction.DefaultOptions())
	}
	if table == nil {
		table = DefaultPhaseTable()
	}
	if len(reqs) == 0 {
		reqs = DefaultRequirements(false, false)
	}
	if book == nil {
		book = DefaultPhrasebook()
	}
	if selector == nil {
		selector = NewRandomSelector(0)
	}

	e := &Engine{
		extractor: extractor,
		table:     table,
		reqs:      reqs,
		book:      book,
		selector:  selector,
		opts:      opts,
		now:       time.Now,
	}
	e.handlers = map[models.Phase]phaseHandler{
		models.PhaseRapport:   e.scripted,
		models.PhaseVerify:    e.scripted,
		models.PhaseCooperate: e.cooperate,
		models.PhaseElicit:    e.elicit,
	}
	return e
}

// Respond processes one counterpart message against s and mutates it:
// evidence is merged, the active flag may drop, and the step advances.
// It always produces a reply.
func (e *Engine) Respond(s *models.Session, text string) Turn {
	now := e.now()
	if s.Evidence == nil {
		s.Evidence = models.NewEvidenceSet()
	}

	added := s.Evidence.Merge(e.extractor.Extract(text))
	s.Messages++
	s.Touch(now)

	if s.IsClosed() {
		tpl := e.selector.Select(models.PhaseClosed, models.RegisterTrust, e.book.Idles, s.LastTemplate)
		s.LastTemplate = tpl
		return Turn{
			Reply:       tpl,
			Phase:       models.PhaseClosed,
			Register:    models.RegisterTrust,
			Step:        s.Step,
			NewEvidence: added,
		}
	}

	if e.reqs.Satisfied(s.Evidence) {
		tpl := e.selector.Select(models.PhaseClosed, models.RegisterTrust, e.book.Closings, s.LastTemplate)
		filler := e.selector.Select(models.PhaseClosed, models.RegisterTrust, e.book.Fillers, "")
		s.Close(now)
		s.LastTemplate = tpl
		return Turn{
			Reply:       filler + tpl,
			Phase:       models.PhaseClosed,
			Register:    models.RegisterTrust,
			Step:        s.Step,
			Closed:      true,
			NewEvidence: added,
		}
	}

	step := s.Step
	band := e.table.PhaseFor(step)
	tpl, reply := e.handlers[band.Phase](s, band)

	s.Phase = band.Phase
	s.LastTemplate = tpl
	s.Step = e.table.Advance(step)

	return Turn{
		Reply:       e.decorate(band, reply),
		Phase:       band.Phase,
		Register:    band.Register,
		Step:        step,
		Active:      true,
		Missing:     e.reqs.Missing(s.Evidence).Labels(),
		NewEvidence: added,
	}
}

// Satisfied evaluates the completion predicate for an evidence set
func (e *Engine) Satisfied(ev models.EvidenceSet) bool {
	return e.reqs.Satisfied(ev)
}

// Extractor exposes the extractor the engine merges evidence from
func (e *Engine) Extractor() *extraction.Extractor {
	return e.extractor
}

// Fallback is the non-committal reply used when no session could be processed
func (e *Engine) Fallback() string {
	return e.book.Fallback
}

func (e *Engine) scripted(s *models.Session, band Band) (string, string) {
	tpl := e.selector.Select(band.Phase, band.Register, e.book.Phases[band.Phase], s.LastTemplate)
	return tpl, tpl
}

// cooperate follows up on a known account whose routing code is still missing
func (e *Engine) cooperate(s *models.Session, band Band) (string, string) {
	accounts := s.Evidence.Values(models.CategoryBankAccount)
	if len(accounts) == 0 || s.Evidence.Has(models.CategoryIFSCCode) || len(e.book.AccountFollowups) == 0 {
		return e.scripted(s, band)
	}
	tpl := e.selector.Select(band.Phase, band.Register, e.book.AccountFollowups, s.LastTemplate)
	return tpl, strings.ReplaceAll(tpl, PlaceholderAccount, accounts[0])
}

// elicit names exactly the unmet requirements
func (e *Engine) elicit(s *models.Session, band Band) (string, string) {
	missing := e.reqs.Missing(s.Evidence)
	tpl := e.selector.Select(band.Phase, band.Register, e.book.Elicit, s.LastTemplate)
	return tpl, strings.ReplaceAll(tpl, PlaceholderMissing, JoinLabels(missing.Labels()))
}

// decorate layers filler, emotional register and hesitation onto a reply
func (e *Engine) decorate(band Band, reply string) string {
	var b strings.Builder
	b.WriteString(e.selector.Select(band.Phase, band.Register, e.book.Fillers, ""))
	if e.selector.Chance(e.opts.EmotionChance) {
		if emotion := e.selector.Select(band.Phase, band.Register, e.book.Registers[band.Register], ""); emotion != "" {
			b.WriteString(emotion)
			b.WriteString(" ")
		}
	}
	b.WriteString(reply)
	if e.selector.Chance(e.opts.HesitationChance) {
		b.WriteString(e.selector.Select(band.Phase, band.Register, e.book.Hesitations, ""))
	}
	return b.String()
}
