package research

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-research/internal/llmjson"
	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/pkg/anthropic"
	"github.com/sells-group/outreach-research/pkg/exa"
)

const topicTermsSystemPrompt = `You extract search topic terms.
Given an outreach intent, respond with a JSON array of 3 to 5 short topic terms (1-3 words each) capturing what the sender wants to talk about. No prose, only the array.`

// searchBatch is the outcome of one discovery search call.
type searchBatch struct {
	provenance string
	results    []exa.Result
}

// DiscoverContent runs one broad autoprompt search plus one search per
// hypothesis, concurrently, then scores, filters, dedupes and ranks the
// combined candidates. Individual search failures are logged and skipped;
// discovery errors only when every search came back empty-handed.
func (p *Pipeline) DiscoverContent(ctx context.Context, in model.JobInput, hypotheses []string) ([]model.Candidate, error) {
	topicTerms := p.extractTopicTerms(ctx, in.Intent)

	batches := make([]searchBatch, 1+len(hypotheses))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := p.exa.Search(gctx, exa.SearchRequest{
			Query:          autopromptQuery(in),
			NumResults:     p.cfg.Research.AutopromptResults,
			Type:           "auto",
			UseAutoprompt:  true,
			IncludeDomains: contentPlatformDomains,
			ExcludeDomains: directoryDomains,
		})
		if err != nil {
			zap.L().Warn("autoprompt search failed", zap.Error(err))
			return nil
		}
		batches[0] = searchBatch{provenance: model.ProvenanceAutoprompt, results: resp.Results}
		return nil
	})

	for i, hyp := range hypotheses {
		g.Go(func() error {
			resp, err := p.exa.Search(gctx, exa.SearchRequest{
				Query:          hyp,
				NumResults:     p.cfg.Research.HypothesisResults,
				Type:           "auto",
				ExcludeDomains: directoryDomains,
			})
			if err != nil {
				zap.L().Warn("hypothesis search failed",
					zap.String("query", hyp), zap.Error(err))
				return nil
			}
			batches[i+1] = searchBatch{provenance: model.ProvenanceHypothesis, results: resp.Results}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "research: discovery searches")
	}

	raw := 0
	var candidates []model.Candidate
	for _, batch := range batches {
		for _, r := range batch.results {
			raw++
			candidates = append(candidates, p.scoreOne(r, topicTerms, batch.provenance))
		}
	}
	if raw == 0 {
		return nil, eris.New("research: every discovery search failed or returned nothing")
	}

	kept := candidates[:0]
	dropped := 0
	for _, c := range candidates {
		if c.DropReason != "" {
			dropped++
			zap.L().Debug("candidate dropped",
				zap.String("url", c.URL),
				zap.String("reason", c.DropReason))
			continue
		}
		kept = append(kept, c)
	}

	kept = DeduplicateByURL(kept)
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > p.cfg.Research.MaxCandidates {
		kept = kept[:p.cfg.Research.MaxCandidates]
	}

	zap.L().Info("discovery ranked candidates",
		zap.Strings("topic_terms", topicTerms),
		zap.Int("raw", raw),
		zap.Int("hard_dropped", dropped),
		zap.Int("kept", len(kept)),
		zap.Float64s("top_scores", topScores(kept, 3)))
	return kept, nil
}

// topScores samples the leading scores of the ranked list for the phase log.
func topScores(candidates []model.Candidate, n int) []float64 {
	if len(candidates) < n {
		n = len(candidates)
	}
	scores := make([]float64, 0, n)
	for _, c := range candidates[:n] {
		scores = append(scores, c.Score)
	}
	return scores
}

// scoreOne turns a search result into a scored candidate. Results that are
// both bio-like and off-topic are hard-dropped; either signal alone is only a
// penalty, since a plausible artifact should survive to the fetch phase.
func (p *Pipeline) scoreOne(r exa.Result, topicTerms []string, provenance string) model.Candidate {
	c := model.Candidate{
		URL:        r.URL,
		Title:      r.Title,
		Provenance: provenance,
	}

	bioLike := LooksLikeProfileOrDirectory(r.URL)
	offTopic := IsLikelyOffTopic(r.Title, topicTerms)
	if bioLike && offTopic {
		c.DropReason = "bio-like and off-topic"
		return c
	}

	c.Score = ScoreCandidate(r.URL, r.Title, topicTerms, provenance, p.weights)
	if offTopic {
		c.Score += p.weights.OffTopic
	}
	if bioLike {
		c.Score += p.weights.BioLike
	}
	return c
}

// extractTopicTerms derives 3-5 topic terms from the sender intent via a
// small model call, degrading to naive tokenization (words longer than 3
// characters) when the model is unavailable or unparseable. An empty intent
// yields no terms, which disables the off-topic guard.
func (p *Pipeline) extractTopicTerms(ctx context.Context, intent string) []string {
	if intent == "" {
		return nil
	}

	temp := 0.1
	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.cfg.Anthropic.HaikuModel,
		MaxTokens:   256,
		System:      topicTermsSystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: intent}},
		Temperature: &temp,
	})
	if err == nil {
		p.recordUsage(resp.Usage, p.cfg.Anthropic.HaikuModel, "topic_terms")
		if raw, ok := llmjson.ExtractArray(resp.Text()); ok {
			var terms []string
			if json.Unmarshal([]byte(raw), &terms) == nil && len(terms) > 0 {
				return terms
			}
		}
	} else {
		zap.L().Warn("topic term extraction failed, tokenizing intent", zap.Error(err))
	}

	var terms []string
	for _, tok := range Tokenize(intent) {
		if len(tok) > 3 {
			terms = append(terms, tok)
		}
	}
	return terms
}

// autopromptQuery describes the content shapes worth surfacing rather than
// just naming the person; autoprompt rewrites it into a neural query.
func autopromptQuery(in model.JobInput) string {
	subject := in.Recipient.Name + " " + in.Recipient.Company
	if in.Recipient.Role != "" {
		subject += " " + in.Recipient.Role
	}
	var b strings.Builder
	fmt.Fprintf(&b, "First-person writing, interviews, talks and project announcements by or about %s", subject)
	if in.Intent != "" {
		fmt.Fprintf(&b, ", especially related to %s", in.Intent)
	}
	return b.String()
}
