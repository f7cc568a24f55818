package model

import "github.com/rotisserie/eris"

// Per-field character limits for extracted hooks. The extraction prompt asks
// the model to respect these; Clamp enforces them after parsing.
const (
	MaxHookTitleLen    = 80
	MaxHookTextLen     = 220
	MaxWhyItWorksLen   = 160
	MaxWeaknessNoteLen = 120
	MaxEvidenceLen     = 200
)

// HookTier is the degradation-ladder tier of a hook: tier1 is intent-aligned,
// tier2 is adjacent background, tier3 is bare identity facts.
type HookTier string

const (
	HookTier1 HookTier = "tier1"
	HookTier2 HookTier = "tier2"
	HookTier3 HookTier = "tier3"
)

// Source is a citation backing a hook.
type Source struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Evidence is a verbatim quote backing a hook.
type Evidence struct {
	Label string `json:"label"`
	Quote string `json:"quote"`
}

// Hook is one evidence-backed personalization angle surfaced to the user.
type Hook struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Hook         string     `json:"hook"`
	WhyItWorks   string     `json:"whyItWorks"`
	Confidence   float64    `json:"confidence"`
	Tier         HookTier   `json:"tier"`
	WeaknessNote string     `json:"weaknessNote,omitempty"`
	Sources      []Source   `json:"sources"`
	Evidence     []Evidence `json:"evidence"`
}

// Validate checks the required-field shape of an extracted hook.
func (h Hook) Validate() error {
	if h.Title == "" {
		return eris.New("hook: title is required")
	}
	if h.Hook == "" {
		return eris.New("hook: hook text is required")
	}
	if h.WhyItWorks == "" {
		return eris.New("hook: whyItWorks is required")
	}
	if h.Confidence < 0 || h.Confidence > 1 {
		return eris.Errorf("hook: confidence %f out of range", h.Confidence)
	}
	switch h.Tier {
	case HookTier1, HookTier2, HookTier3:
	default:
		return eris.Errorf("hook: unknown tier %q", h.Tier)
	}
	if len(h.Sources) == 0 {
		return eris.New("hook: at least one source is required")
	}
	if len(h.Evidence) == 0 {
		return eris.New("hook: at least one evidence quote is required")
	}
	return nil
}

// Clamp trims over-limit fields in place. The model is asked to respect the
// limits but its compliance is not guaranteed.
func (h *Hook) Clamp() {
	h.Title = truncate(h.Title, MaxHookTitleLen)
	h.Hook = truncate(h.Hook, MaxHookTextLen)
	h.WhyItWorks = truncate(h.WhyItWorks, MaxWhyItWorksLen)
	h.WeaknessNote = truncate(h.WeaknessNote, MaxWeaknessNoteLen)
	for i := range h.Evidence {
		h.Evidence[i].Quote = truncate(h.Evidence[i].Quote, MaxEvidenceLen)
	}
	if h.Confidence < 0 {
		h.Confidence = 0
	}
	if h.Confidence > 1 {
		h.Confidence = 1
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Cut on a rune boundary.
	runes := []rune(s)
	for len(string(runes)) > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
