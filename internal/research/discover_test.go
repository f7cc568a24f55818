package research

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/pkg/anthropic"
	"github.com/sells-group/outreach-research/pkg/exa"
)

func autopromptMatcher(req exa.SearchRequest) bool { return req.UseAutoprompt }
func hypothesisMatcher(req exa.SearchRequest) bool { return !req.UseAutoprompt }

// topicTermsLLM answers the topic term extraction call with fixed terms.
func topicTermsLLM(terms string) *mockLLM {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.System == topicTermsSystemPrompt
	})).Return(llmText(terms), nil)
	return llm
}

func TestDiscoverContent_MergesAndRanks(t *testing.T) {
	ex := new(mockExa)
	ex.On("Search", mock.Anything, mock.MatchedBy(autopromptMatcher)).Return(&exa.SearchResponse{
		Results: []exa.Result{
			{URL: "https://acme.com/blog/jane-on-scaling", Title: "Jane Smith on scaling developer tooling"},
			{URL: "https://en.wikipedia.org/wiki/Something_Else", Title: "Unrelated encyclopedia entry"},
		},
	}, nil)
	ex.On("Search", mock.Anything, mock.MatchedBy(hypothesisMatcher)).Return(&exa.SearchResponse{
		Results: []exa.Result{
			{URL: "https://pods.example.com/ep/12", Title: "Podcast: Jane Smith on tooling"},
		},
	}, nil)

	p := newTestPipeline(t, ex, topicTermsLLM(`["developer tooling", "scaling"]`), nil)
	hyps := templateHypotheses(testJobInput())
	candidates, err := p.DiscoverContent(context.Background(), testJobInput(), hyps)

	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	// The bio-like, off-topic wikipedia entry must be hard-dropped.
	for _, c := range candidates {
		assert.NotContains(t, c.URL, "wikipedia.org")
	}
	// Ranked descending.
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score)
	}
	// Hypothesis results carry their provenance.
	var sawHypothesis bool
	for _, c := range candidates {
		if c.Provenance == model.ProvenanceHypothesis {
			sawHypothesis = true
		}
	}
	assert.True(t, sawHypothesis)
}

func TestDiscoverContent_AutopromptSearchScopesDomains(t *testing.T) {
	ex := new(mockExa)
	ex.On("Search", mock.Anything, mock.MatchedBy(func(req exa.SearchRequest) bool {
		return req.UseAutoprompt &&
			len(req.IncludeDomains) > 0 &&
			len(req.ExcludeDomains) > 0
	})).Return(&exa.SearchResponse{Results: []exa.Result{
		{URL: "https://medium.com/@jane/scaling", Title: "Jane Smith on tooling"},
	}}, nil)
	ex.On("Search", mock.Anything, mock.MatchedBy(func(req exa.SearchRequest) bool {
		return !req.UseAutoprompt && len(req.ExcludeDomains) > 0 && len(req.IncludeDomains) == 0
	})).Return(&exa.SearchResponse{}, nil)

	p := newTestPipeline(t, ex, topicTermsLLM(`["tooling"]`), nil)
	_, err := p.DiscoverContent(context.Background(), testJobInput(), templateHypotheses(testJobInput()))

	require.NoError(t, err)
	ex.AssertExpectations(t)
}

func TestDiscoverContent_PartialSearchFailureIsTolerated(t *testing.T) {
	ex := new(mockExa)
	ex.On("Search", mock.Anything, mock.MatchedBy(autopromptMatcher)).
		Return(nil, eris.New("upstream 500"))
	ex.On("Search", mock.Anything, mock.MatchedBy(hypothesisMatcher)).Return(&exa.SearchResponse{
		Results: []exa.Result{
			{URL: "https://acme.com/blog/jane-post", Title: "Jane Smith on developer tooling"},
		},
	}, nil)

	p := newTestPipeline(t, ex, topicTermsLLM(`["developer tooling"]`), nil)
	candidates, err := p.DiscoverContent(context.Background(), testJobInput(), templateHypotheses(testJobInput()))

	require.NoError(t, err)
	assert.NotEmpty(t, candidates)
}

func TestDiscoverContent_AllSearchesFail(t *testing.T) {
	ex := new(mockExa)
	ex.On("Search", mock.Anything, mock.Anything).Return(nil, eris.New("upstream 500"))

	p := newTestPipeline(t, ex, topicTermsLLM(`["tooling"]`), nil)
	_, err := p.DiscoverContent(context.Background(), testJobInput(), templateHypotheses(testJobInput()))

	assert.Error(t, err)
}

func TestDiscoverContent_CapsAtMaxCandidates(t *testing.T) {
	var many []exa.Result
	for i := 0; i < 40; i++ {
		many = append(many, exa.Result{
			URL:   "https://acme.com/blog/jane-" + string(rune('a'+i%26)) + "/" + string(rune('a'+i/26)),
			Title: "Jane Smith on Acme tooling",
		})
	}
	ex := new(mockExa)
	ex.On("Search", mock.Anything, mock.MatchedBy(autopromptMatcher)).
		Return(&exa.SearchResponse{Results: many}, nil)
	ex.On("Search", mock.Anything, mock.MatchedBy(hypothesisMatcher)).
		Return(&exa.SearchResponse{Results: nil}, nil)

	p := newTestPipeline(t, ex, topicTermsLLM(`["tooling"]`), nil)
	candidates, err := p.DiscoverContent(context.Background(), testJobInput(), templateHypotheses(testJobInput()))

	require.NoError(t, err)
	assert.LessOrEqual(t, len(candidates), 25)
}

func TestDiscoverContent_LogsDroppedCandidatesWithReasons(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	ex := new(mockExa)
	ex.On("Search", mock.Anything, mock.MatchedBy(autopromptMatcher)).Return(&exa.SearchResponse{
		Results: []exa.Result{
			{URL: "https://en.wikipedia.org/wiki/Something_Else", Title: "Unrelated encyclopedia entry"},
			{URL: "https://acme.com/blog/jane-on-tooling", Title: "Jane Smith on developer tooling"},
		},
	}, nil)
	ex.On("Search", mock.Anything, mock.MatchedBy(hypothesisMatcher)).
		Return(&exa.SearchResponse{}, nil)

	p := newTestPipeline(t, ex, topicTermsLLM(`["developer tooling"]`), nil)
	_, err := p.DiscoverContent(context.Background(), testJobInput(), templateHypotheses(testJobInput()))
	require.NoError(t, err)

	drops := logs.FilterMessage("candidate dropped").All()
	require.Len(t, drops, 1)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Something_Else", drops[0].ContextMap()["url"])
	assert.Equal(t, "bio-like and off-topic", drops[0].ContextMap()["reason"])

	summary := logs.FilterMessage("discovery ranked candidates").All()
	require.Len(t, summary, 1)
	assert.NotEmpty(t, summary[0].ContextMap()["top_scores"])
}

func TestExtractTopicTerms_FromModel(t *testing.T) {
	p := newTestPipeline(t, nil, topicTermsLLM(`["developer tooling", "platform engineering", "ci"]`), nil)
	terms := p.extractTopicTerms(context.Background(), "introduce our developer tooling platform")

	assert.Equal(t, []string{"developer tooling", "platform engineering", "ci"}, terms)
}

func TestExtractTopicTerms_ModelFailureTokenizesIntent(t *testing.T) {
	llm := new(mockLLM)
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("overloaded"))

	p := newTestPipeline(t, nil, llm, nil)
	terms := p.extractTopicTerms(context.Background(), "introduce our developer tooling platform")

	// Short stopwords like "our" never survive tokenization.
	assert.Equal(t, []string{"introduce", "developer", "tooling", "platform"}, terms)
}

func TestExtractTopicTerms_EmptyIntent(t *testing.T) {
	llm := new(mockLLM)

	p := newTestPipeline(t, nil, llm, nil)
	terms := p.extractTopicTerms(context.Background(), "")

	assert.Nil(t, terms)
	llm.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}
