package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-research/internal/llmjson"
	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/pkg/anthropic"
)

// hypothesisCount is the number of search queries generated per job, one per
// evidence type.
const hypothesisCount = 5

var errNoArray = eris.New("research: no JSON array in model output")

// evidenceTypes are the artifact categories each hypothesis query targets,
// in order: long-form voice, short-form voice, action, presence, and
// context/inflection.
var evidenceTypes = []string{
	"long-form voice: an interview, podcast or keynote where they speak at length",
	"short-form voice: a post, article or essay they authored",
	"action: a launch, initiative or project they drove",
	"presence: a talk, panel or speaking appearance",
	"context or inflection: a role change, promotion or company milestone",
}

const hypothesesSystemPrompt = `You generate web search queries for researching a specific professional.
Given a person, produce exactly 5 search queries, one targeting each evidence type listed.
Each query must contain the person's full name and a concrete artifact keyword (interview, podcast, keynote, article, launch, panel, ...), and be 6 to 14 words long.
Queries should surface content BY or ABOUT this specific person, not their company in general.
Respond with a JSON array of exactly 5 strings and nothing else.`

// GenerateHypotheses produces exactly five search queries targeting distinct
// evidence types. It is total: without a sender intent the LLM call is
// skipped entirely, any model or parse failure falls back to deterministic
// templates, and a low identity confidence forces the company name into
// every query (disambiguation mode).
func (p *Pipeline) GenerateHypotheses(ctx context.Context, in model.JobInput, identityConfidence float64) []string {
	var queries []string
	if in.Intent == "" {
		queries = templateHypotheses(in)
	} else {
		var err error
		queries, err = p.modelHypotheses(ctx, in)
		if err != nil {
			zap.L().Warn("hypothesis generation fell back to templates",
				zap.String("name", in.Recipient.Name),
				zap.Error(err))
			queries = templateHypotheses(in)
		}
	}

	for i, q := range queries {
		if !containsFold(q, in.Recipient.Name) {
			q = in.Recipient.Name + " " + q
		}
		if identityConfidence < p.cfg.Research.DisambiguationBelow && !containsFold(q, in.Recipient.Company) {
			q = q + " " + in.Recipient.Company
		}
		queries[i] = q
	}
	return queries
}

func (p *Pipeline) modelHypotheses(ctx context.Context, in model.JobInput) ([]string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Person: %s\nCompany: %s\n", in.Recipient.Name, in.Recipient.Company)
	if in.Recipient.Role != "" {
		fmt.Fprintf(&prompt, "Role: %s\n", in.Recipient.Role)
	}
	fmt.Fprintf(&prompt, "Outreach intent: %s\n", in.Intent)
	if in.Credibility != "" {
		fmt.Fprintf(&prompt, "Sender credibility: %s\n", in.Credibility)
	}
	prompt.WriteString("\nEvidence types:\n")
	for i, et := range evidenceTypes {
		fmt.Fprintf(&prompt, "%d. %s\n", i+1, et)
	}

	temp := 0.2
	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.cfg.Anthropic.HaikuModel,
		MaxTokens:   1024,
		System:      hypothesesSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt.String()}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	p.recordUsage(resp.Usage, p.cfg.Anthropic.HaikuModel, "hypotheses")

	raw, ok := llmjson.ExtractArray(resp.Text())
	if !ok {
		return nil, errNoArray
	}
	var queries []string
	if err := json.Unmarshal([]byte(raw), &queries); err != nil {
		return nil, err
	}

	var cleaned []string
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) != hypothesisCount {
		return nil, eris.Errorf("expected %d queries, got %d", hypothesisCount, len(cleaned))
	}
	return cleaned, nil
}

// templateHypotheses builds the deterministic fallback queries, one per
// evidence type.
func templateHypotheses(in model.JobInput) []string {
	name := in.Recipient.Name
	company := in.Recipient.Company
	return []string{
		fmt.Sprintf("%s interview podcast keynote", name),
		fmt.Sprintf("%s article blog post essay", name),
		fmt.Sprintf("%s launch initiative project", name),
		fmt.Sprintf("%s speaking panel talk", name),
		fmt.Sprintf("%s %s role announcement", name, company),
	}
}
