package research

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-research/internal/llmjson"
	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/pkg/anthropic"
)

// maxHooks is the most hooks ever surfaced for one job.
const maxHooks = 3

// thinEvidenceConfidenceCap bounds hook confidence when the excerpt budget
// was below the trust threshold.
const thinEvidenceConfidenceCap = 0.6

var errNoHooksPayload = eris.New("research: no hooks payload in model output")

const extractSystemPrompt = `You extract personalization hooks for sales outreach from research documents about a specific person.

A hook is one concrete, evidence-backed angle the sender can open with. Rank hooks on a degradation ladder:
- tier1: directly aligned with the sender's outreach intent
- tier2: adjacent professional background worth referencing
- tier3: bare identity facts (role, company milestones) usable as a last resort

Rules:
- Produce at most 3 hooks, best first.
- Every hook must cite at least one source label (S1, S2, ...) and quote verbatim evidence from that source. Never invent quotes.
- Field limits: title 80 chars, hook 220, whyItWorks 160, weaknessNote 120, each evidence quote 200.
- confidence is 0..1. Add a weaknessNote when the evidence is indirect or dated.

Respond with only a JSON object of the form:
{"hooks": [{"title": "...", "hook": "...", "whyItWorks": "...", "confidence": 0.8, "tier": "tier1", "weaknessNote": "", "sources": [{"label": "S1", "url": "..."}], "evidence": [{"label": "S1", "quote": "..."}]}]}`

const fallbackSystemPrompt = `You extract conservative personalization hooks from raw research material. Work in two steps.

Step 1: for each source, select one or two verbatim snippets that directly mention the recipient by name or describe something they did. Ignore everything else.
Step 2: from those snippets only, extract 1 to 3 hooks. Every claim must be backed by a selected snippet quoted as evidence. Never state a fact that is not in a snippet and never invent quotes. If no snippet supports a hook, return an empty hooks array.

Field limits: title 80 chars, hook 220, whyItWorks 160, weaknessNote 120, each evidence quote 200. At most 3 hooks.
Respond with only a JSON object of the form:
{"hooks": [{"title": "...", "hook": "...", "whyItWorks": "...", "confidence": 0.4, "tier": "tier3", "weaknessNote": "...", "sources": [{"label": "S1", "url": "..."}], "evidence": [{"label": "S1", "quote": "..."}]}]}`

// hooksPayload is the wire shape both extraction prompts ask for.
type hooksPayload struct {
	Hooks []model.Hook `json:"hooks"`
}

// ExtractHooks runs hook extraction over the fetched documents. It is total:
// the returned fallback mode, not an error, reports how extraction degraded.
// An empty mode means the primary pass succeeded on adequate evidence; a thin
// excerpt budget or an empty primary result triggers the conservative
// fallback pass, whose outcome decides the mode.
func (p *Pipeline) ExtractHooks(ctx context.Context, in model.JobInput, docs []model.Document) ([]model.Hook, model.FallbackMode) {
	docs = selectExtractDocs(docs, p.cfg.Research.MaxExtractDocs)
	budget := excerptBudget(docs)

	hooks, err := p.runExtraction(ctx, p.cfg.Anthropic.SonnetModel, extractSystemPrompt, in, docs, "extract")
	if err != nil {
		zap.L().Warn("primary extraction failed", zap.Error(err))
		hooks = nil
	}

	thin := budget < p.cfg.Research.MinHighlightBudget
	if err == nil && len(hooks) > 0 && !thin {
		return hooks, model.FallbackNone
	}

	zap.L().Info("running fallback extraction",
		zap.Int("budget", budget),
		zap.Bool("thin", thin),
		zap.Int("primary_hooks", len(hooks)))
	fallbackHooks, fbErr := p.runExtraction(ctx, p.cfg.Anthropic.HaikuModel, fallbackSystemPrompt, in, docs, "extract_fallback")

	switch {
	case fbErr == nil && len(fallbackHooks) > 0:
		return fallbackHooks, model.FallbackHooksFound
	case len(hooks) > 0:
		// The thin primary hooks stand, but the weak excerpt budget caps how
		// much the caller should trust them.
		for i := range hooks {
			if hooks[i].Confidence > thinEvidenceConfidenceCap {
				hooks[i].Confidence = thinEvidenceConfidenceCap
			}
		}
		return hooks, model.FallbackHooksFound
	case fbErr == nil:
		return nil, model.FallbackNoHooksAvailable
	default:
		// With no hooks in hand the fallback pass was the last word, and it
		// could not produce a payload.
		zap.L().Error("fallback extraction failed", zap.Error(fbErr))
		return nil, model.FallbackExtractionFailed
	}
}

func (p *Pipeline) runExtraction(ctx context.Context, llmModel, system string, in model.JobInput, docs []model.Document, phase string) ([]model.Hook, error) {
	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     llmModel,
		MaxTokens: 4096,
		System:    system,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: extractionPrompt(in, docs),
		}},
	})
	if err != nil {
		return nil, err
	}
	p.recordUsage(resp.Usage, llmModel, phase)

	return parseHooks(resp.Text(), resp.Truncated())
}

// parseHooks recovers the hooks payload from model output. The ladder:
// balanced object extraction, then a structural repair when the fragment at
// least names the hooks key, then truncation-aware salvage of complete
// leading array items. A nil error with zero hooks means the model answered
// cleanly that there was nothing to extract; an error means no payload could
// be recovered at all. Invalid items are dropped, valid ones clamped; never
// more than maxHooks survive.
func parseHooks(text string, truncated bool) ([]model.Hook, error) {
	var payload hooksPayload
	parsed := false

	if strings.Contains(text, `"hooks"`) {
		if raw, ok := llmjson.ExtractObject(text); ok {
			if err := json.Unmarshal([]byte(raw), &payload); err == nil {
				parsed = true
			}
		}
	} else if raw, ok := llmjson.ExtractArray(text); ok {
		// Some answers drop the wrapper object and emit the bare array.
		if err := json.Unmarshal([]byte(raw), &payload.Hooks); err == nil {
			parsed = true
		}
	}

	if !parsed && strings.Contains(text, `"hooks"`) {
		repaired := llmjson.RepairTruncated(text)
		if raw, ok := llmjson.ExtractObject(repaired); ok {
			if err := json.Unmarshal([]byte(raw), &payload); err == nil {
				parsed = true
			}
		}
	}

	if !parsed && truncated {
		for _, obj := range llmjson.SalvageArrayObjects(text) {
			var h model.Hook
			if err := json.Unmarshal([]byte(obj), &h); err == nil {
				payload.Hooks = append(payload.Hooks, h)
				parsed = true
			}
		}
	}

	if !parsed {
		return nil, errNoHooksPayload
	}

	var valid []model.Hook
	for _, h := range payload.Hooks {
		h.Clamp()
		if err := h.Validate(); err != nil {
			zap.L().Debug("dropping invalid hook", zap.Error(err))
			continue
		}
		if h.ID == "" {
			h.ID = uuid.New().String()
		}
		valid = append(valid, h)
		if len(valid) == maxHooks {
			break
		}
	}
	return valid, nil
}

// selectExtractDocs keeps the most specific documents, person-specific ahead
// of company-specific, capped at limit.
func selectExtractDocs(docs []model.Document, limit int) []model.Document {
	sorted := make([]model.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sourceRank(sorted[i].SourceType) < sourceRank(sorted[j].SourceType)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func sourceRank(t model.SourceType) int {
	switch t {
	case model.SourcePersonSpecific:
		return 0
	case model.SourceCompanySpecific:
		return 1
	default:
		return 2
	}
}

// excerptBudget totals the highlight characters available for quoting.
func excerptBudget(docs []model.Document) int {
	total := 0
	for _, d := range docs {
		for _, h := range d.Highlights {
			total += len(h)
		}
	}
	return total
}

func extractionPrompt(in model.JobInput, docs []model.Document) string {
	var b strings.Builder
	if in.Recipient.Role != "" {
		fmt.Fprintf(&b, "Recipient: %s, %s at %s\n", in.Recipient.Name, in.Recipient.Role, in.Recipient.Company)
	} else {
		fmt.Fprintf(&b, "Recipient: %s at %s\n", in.Recipient.Name, in.Recipient.Company)
	}
	if in.Intent != "" {
		fmt.Fprintf(&b, "Outreach intent: %s\n", in.Intent)
	}
	if in.Credibility != "" {
		fmt.Fprintf(&b, "Sender credibility: %s\n", in.Credibility)
	}

	b.WriteString("\nDocuments:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "\n[S%d] %s\nURL: %s\nType: %s\n", i+1, d.Title, d.URL, d.SourceType)
		if len(d.Highlights) > 0 {
			b.WriteString("Highlights:\n")
			for _, h := range d.Highlights {
				fmt.Fprintf(&b, "- %s\n", h)
			}
		}
		fmt.Fprintf(&b, "Text:\n%s\n", d.Text)
	}
	return b.String()
}
