package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/outreach-research/internal/config"
	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/internal/store"
	"github.com/sells-group/outreach-research/pkg/anthropic"
	"github.com/sells-group/outreach-research/pkg/exa"
)

type mockExa struct {
	mock.Mock
}

func (m *mockExa) Search(ctx context.Context, req exa.SearchRequest) (*exa.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exa.SearchResponse), args.Error(1)
}

func (m *mockExa) Contents(ctx context.Context, req exa.ContentsRequest) (*exa.ContentsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exa.ContentsResponse), args.Error(1)
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateJob(ctx context.Context, input model.JobInput) (*model.ResearchJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResearchJob), args.Error(1)
}

func (m *mockStore) UpdateJob(ctx context.Context, job *model.ResearchJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockStore) GetJob(ctx context.Context, id string) (*model.ResearchJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResearchJob), args.Error(1)
}

func (m *mockStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]model.ResearchJob, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ResearchJob), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// testConfig mirrors the production defaults without going through viper.
func testConfig() *config.Config {
	return &config.Config{
		Anthropic: config.AnthropicConfig{
			HaikuModel:  "claude-haiku-4-5-20251001",
			SonnetModel: "claude-sonnet-4-5-20250929",
		},
		Research: config.ResearchConfig{
			MaxCandidates:       25,
			AutopromptResults:   20,
			HypothesisResults:   6,
			IdentityResults:     5,
			FetchMaxCharacters:  4000,
			HighlightsPerURL:    3,
			MinDocumentLength:   200,
			MinHighlightBudget:  400,
			MaxExtractDocs:      6,
			DisambiguationBelow: 0.8,
		},
	}
}

func newTestPipeline(t *testing.T, ex *mockExa, llm *mockLLM, st store.Store) *Pipeline {
	t.Helper()
	p, err := New(testConfig(), st, ex, llm)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func testJobInput() model.JobInput {
	return model.JobInput{
		Recipient: model.Recipient{Name: "Jane Smith", Company: "Acme", Role: "CTO"},
		Intent:    "introduce our developer tooling platform",
	}
}
