package dialogue

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"honeypot-lab/internal/domain/models"
)

// Template placeholders
const (
	PlaceholderMissing = "{missing}"
	PlaceholderAccount = "{account}"
)

// Phrasebook holds every utterance the decoy can produce
type Phrasebook struct {
	Phases    map[models.Phase][]string    `yaml:"phases"`
	Registers map[models.Register][]string `yaml:"registers"`

	// Elicit templates name the missing items through {missing}
	Elicit []string `yaml:"elicit"`
	// AccountFollowups ask for the routing code of a known account through {account}
	AccountFollowups []string `yaml:"account_followups"`

	Fillers     []string `yaml:"fillers"`
	Hesitations []string `yaml:"hesitations"`
	Closings    []string `yaml:"closings"`
	Idles       []string `yaml:"idles"`
	Fallback    string   `yaml:"fallback"`
}

// DefaultPhrasebook returns the built-in decoy persona
func DefaultPhrasebook() *Phrasebook {
	return &Phrasebook{
		Phases: map[models.Phase][]string{
			models.PhaseRapport: {
				"I just got your message about my account! This is really worrying me! What's happening exactly?",
				"I'm really concerned about this! How do I know this is genuine? Do you have any reference number?",
				"This is making me really anxious! Which organization is this from? I need to be sure!",
				"Is my money safe? Please tell me what happened, I don't understand these things well.",
			},
			models.PhaseVerify: {
				"Okay, I understand there might be an issue. What exactly do you need from me to fix this?",
				"I want to cooperate to resolve this. What information should I prepare?",
				"Tell me the proper steps. I want to do this correctly but I'm really nervous!",
				"How will I know it's fixed after I do this? Please explain slowly.",
			},
			models.PhaseCooperate: {
				"If payment is needed, what payment method should I use? And what details do I need to note down?",
				"I'm ready to follow your instructions. Where exactly should I send it?",
				"I have my phone ready. What details should I enter for the transfer?",
				"My son usually does this for me, so please tell me every detail I need to write down.",
			},
		},
		Registers: map[models.Register][]string{
			models.RegisterWorry: {
				"Oh no! This is really worrying me!",
				"I'm getting really anxious about this!",
				"This is making me panic!",
				"My heart is racing just thinking about this!",
				"I'm so stressed right now!",
				"This has me really scared!",
				"I'm feeling really nervous about this!",
			},
			models.RegisterConfusion: {
				"Sorry, I'm a bit confused...",
				"Can you explain that again?",
				"I don't fully understand...",
				"Wait, let me make sure I get this...",
				"I'm not sure I'm following...",
			},
			models.RegisterCooperation: {
				"I want to cooperate to fix this...",
				"Let me help resolve this issue...",
				"I'll do whatever is needed...",
				"Tell me how I can help...",
				"I want to get this sorted out...",
			},
			models.RegisterTrust: {
				"Thank you for explaining...",
				"I appreciate you helping me with this...",
				"You're being very clear...",
				"This is making more sense now...",
				"I feel better understanding this...",
			},
		},
		Elicit: []string{
			"To feel secure about this, I need the {missing}. Can you please provide?",
			"I still need the {missing} before I can proceed.",
			"I'm worried about entering something wrong. Please share the {missing}.",
			"Before I do anything I have to note down the {missing}. Please give me the exact details.",
		},
		AccountFollowups: []string{
			"I see. For account {account}, what's the IFSC code? I need it for the transfer.",
			"The bank app is asking for the IFSC code for account {account}. What should I put?",
		},
		Fillers:     []string{"", "Um, ", "Actually, ", "You know, ", "I think "},
		Hesitations: []string{"...", " Let me think... ", " Hmm... ", " You know... "},
		Closings: []string{
			"Thank you for all the information! I have everything I need now. I'll take care of this right away.",
			"Okay, I have noted everything down. I'm doing it right now, thank you so much!",
			"That's everything I needed, thank you. I'll go ahead and complete it now.",
		},
		Idles: []string{
			"I've already noted everything down, thank you. I'm taking care of it.",
			"Yes yes, I'm doing it now. Thank you for your patience.",
			"Thank you again, I have all the details I need.",
		},
		Fallback: "Hello, I received your message. I'm a bit concerned - can you explain what this is about?",
	}
}

// ParsePhrasebook decodes a YAML document and layers it over the defaults.
// Sections absent from the document keep their default utterances.
func ParsePhrasebook(data []byte) (*Phrasebook, error) {
	var override Phrasebook
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse phrasebook: %w", err)
	}

	book := DefaultPhrasebook()
	book.merge(&override)

	if err := book.Validate(); err != nil {
		return nil, err
	}
	return book, nil
}

// LoadPhrasebook reads a YAML phrasebook override from path
func LoadPhrasebook(path string) (*Phrasebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read phrasebook %s: %w", path, err)
	}
	return ParsePhrasebook(data)
}

func (p *Phrasebook) merge(o *Phrasebook) {
	for phase, lines := range o.Phases {
		if len(lines) > 0 {
			p.Phases[phase] = lines
		}
	}
	for reg, lines := range o.Registers {
		if len(lines) > 0 {
			p.Registers[reg] = lines
		}
	}
	replace := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	replace(&p.Elicit, o.Elicit)
	replace(&p.AccountFollowups, o.AccountFollowups)
	replace(&p.Fillers, o.Fillers)
	replace(&p.Hesitations, o.Hesitations)
	replace(&p.Closings, o.Closings)
	replace(&p.Idles, o.Idles)
	if o.Fallback != "" {
		p.Fallback = o.Fallback
	}
}

// Validate checks that every branch of the dialogue has something to say
func (p *Phrasebook) Validate() error {
	for _, phase := range []models.Phase{models.PhaseRapport, models.PhaseVerify, models.PhaseCooperate} {
		if len(p.Phases[phase]) == 0 {
			return fmt.Errorf("phrasebook has no utterances for phase %s", phase)
		}
	}
	if len(p.Elicit) == 0 {
		return fmt.Errorf("phrasebook has no elicit templates")
	}
	for _, tpl := range p.Elicit {
		if !strings.Contains(tpl, PlaceholderMissing) {
			return fmt.Errorf("elicit template %q lacks %s", tpl, PlaceholderMissing)
		}
	}
	for _, tpl := range p.AccountFollowups {
		if !strings.Contains(tpl, PlaceholderAccount) {
			return fmt.Errorf("account follow-up %q lacks %s", tpl, PlaceholderAccount)
		}
	}
	if len(p.Closings) == 0 || len(p.Idles) == 0 {
		return fmt.Errorf("phrasebook needs closing and idle utterances")
	}
	if p.Fallback == "" {
		return fmt.Errorf("phrasebook needs a fallback reply")
	}
	return nil
}
