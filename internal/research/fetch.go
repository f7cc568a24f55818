package research

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/pkg/anthropic"
	"github.com/sells-group/outreach-research/pkg/exa"
)

// contentsBatchSize bounds how many URLs go into one contents call.
const contentsBatchSize = 10

const highlightQuerySystemPrompt = `You compress outreach intents into highlight search queries.
Given an outreach intent, respond with a single 3-7 word phrase capturing its core topic. No quotes, no punctuation, no prose, just the phrase.`

// FetchStats summarizes what the fetch phase kept and why it dropped the rest.
type FetchStats struct {
	Requested      int `json:"requested"`
	Fetched        int `json:"fetched"`
	TooShort       int `json:"too_short"`
	GenericDropped int `json:"generic_dropped"`
}

// FetchContent retrieves text and highlights for the ranked URLs in batches,
// drops documents that are too short to quote from, classifies the rest by
// how specifically they relate to the recipient, and excludes
// industry-generic material before extraction ever sees it.
func (p *Pipeline) FetchContent(ctx context.Context, in model.JobInput, urls []string) ([]model.Document, FetchStats, error) {
	stats := FetchStats{Requested: len(urls)}
	if len(urls) == 0 {
		return nil, stats, nil
	}

	highlightQuery := p.highlightQuery(ctx, in)

	var results []exa.Result
	for start := 0; start < len(urls); start += contentsBatchSize {
		end := start + contentsBatchSize
		if end > len(urls) {
			end = len(urls)
		}
		resp, err := p.exa.Contents(ctx, exa.ContentsRequest{
			URLs: urls[start:end],
			Text: &exa.TextOptions{MaxCharacters: p.cfg.Research.FetchMaxCharacters},
			Highlights: &exa.HighlightOptions{
				Query:            highlightQuery,
				NumSentences:     3,
				HighlightsPerURL: p.cfg.Research.HighlightsPerURL,
			},
		})
		if err != nil {
			// A lost batch costs its documents, not the job.
			zap.L().Warn("contents batch failed",
				zap.Int("batch_start", start), zap.Error(err))
			continue
		}
		results = append(results, resp.Results...)
	}

	if len(results) == 0 {
		return nil, stats, eris.New("research: no content could be fetched")
	}

	var docs []model.Document
	for _, r := range results {
		if len(r.Text) < p.cfg.Research.MinDocumentLength {
			stats.TooShort++
			continue
		}
		doc := model.Document{
			URL:        r.URL,
			Title:      r.Title,
			Text:       r.Text,
			Highlights: r.Highlights,
			SourceType: classifyDocument(r, in),
		}
		if doc.SourceType == model.SourceIndustryGeneric {
			stats.GenericDropped++
			continue
		}
		docs = append(docs, doc)
		stats.Fetched++
	}

	zap.L().Info("fetch filtered documents",
		zap.Int("requested", stats.Requested),
		zap.Int("fetched", stats.Fetched),
		zap.Int("too_short", stats.TooShort),
		zap.Int("generic_dropped", stats.GenericDropped))
	return docs, stats, nil
}

// classifyDocument buckets a fetched document by specificity. Person mentions
// beat company mentions; a document mentioning neither is industry-generic
// noise the extractor must never quote from.
func classifyDocument(r exa.Result, in model.JobInput) model.SourceType {
	haystack := r.Title + " " + r.Text
	if containsFold(haystack, in.Recipient.Name) {
		return model.SourcePersonSpecific
	}
	if containsFold(haystack, in.Recipient.Company) {
		return model.SourceCompanySpecific
	}
	return model.SourceIndustryGeneric
}

// highlightQuery compresses the sender intent into a short phrase for the
// highlight engine, which rewards focused queries. Without an intent the
// recipient name stands in; a failed or rambling model answer falls back to
// the raw intent.
func (p *Pipeline) highlightQuery(ctx context.Context, in model.JobInput) string {
	if in.Intent == "" {
		return in.Recipient.Name
	}

	temp := 0.1
	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.cfg.Anthropic.HaikuModel,
		MaxTokens:   64,
		System:      highlightQuerySystemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: in.Intent}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("highlight query compression failed, using raw intent", zap.Error(err))
		return in.Intent
	}
	p.recordUsage(resp.Usage, p.cfg.Anthropic.HaikuModel, "highlight_query")

	phrase := strings.TrimSpace(resp.Text())
	if phrase == "" || len(strings.Fields(phrase)) > 10 || strings.Contains(phrase, "\n") {
		return in.Intent
	}
	return phrase
}
