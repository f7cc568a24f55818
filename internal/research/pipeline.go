// Package research implements the four-phase outreach research pipeline:
// identity verification, content discovery, content fetch, and hook
// extraction. The Pipeline owns a job record for the duration of a run and
// persists the full snapshot after every phase transition, so pollers always
// see a consistent state.
package research

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-research/internal/config"
	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/internal/store"
	"github.com/sells-group/outreach-research/pkg/anthropic"
	"github.com/sells-group/outreach-research/pkg/exa"
)

const totalPhases = 4

// Pipeline runs research jobs. It is safe for concurrent use: Run clones the
// pipeline with a per-run usage counter, so shared state is read-only.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	exa     exa.Client
	llm     anthropic.Client
	weights ScoreWeights

	usage *usageCounter // set per run; nil outside Run
}

// New creates a Pipeline. Scoring weights come from the configured override
// file when present, otherwise the defaults.
func New(cfg *config.Config, st store.Store, exaClient exa.Client, llm anthropic.Client) (*Pipeline, error) {
	weights, err := LoadWeights(cfg.Research.WeightsPath)
	if err != nil {
		return nil, eris.Wrap(err, "research: load weights")
	}
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		exa:     exaClient,
		llm:     llm,
		weights: weights,
	}, nil
}

type usageCounter struct {
	mu     sync.Mutex
	input  int64
	output int64
}

func (u *usageCounter) add(t anthropic.TokenUsage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.input += t.InputTokens
	u.output += t.OutputTokens
}

// recordUsage logs per-call cost attribution and accumulates run totals.
func (p *Pipeline) recordUsage(t anthropic.TokenUsage, llmModel, phase string) {
	t.LogCost(llmModel, phase)
	if p.usage != nil {
		p.usage.add(t)
	}
}

// Run executes one job end to end. The job must not be terminal. Phase errors
// and panics land the job in the failed state with the cause recorded; a run
// that reaches extraction always completes, with the fallback mode and
// partial flag describing any degradation.
func (p *Pipeline) Run(ctx context.Context, jobID string) error {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrapf(err, "research: load job %s", jobID)
	}
	if job.Status.Terminal() {
		return eris.Errorf("research: job %s is already %s", jobID, job.Status)
	}

	run := *p
	run.usage = &usageCounter{}
	return run.run(ctx, job)
}

func (p *Pipeline) run(ctx context.Context, job *model.ResearchJob) (err error) {
	log := zap.L().With(zap.String("job_id", job.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panicked", zap.Any("panic", r))
			err = p.fail(ctx, job, eris.Errorf("pipeline panic: %v", r), true)
		}
	}()

	now := time.Now().UTC()
	job.StartedAt = &now

	// Phase 1: identity.
	if err := p.transition(ctx, job, model.JobStatusIdentity, 1, "verifying identity"); err != nil {
		return err
	}
	identity := p.VerifyIdentity(ctx, job.Input)
	job.Identity = &identity
	log.Info("identity gate",
		zap.Bool("verified", identity.Verified),
		zap.Float64("confidence", identity.Confidence))
	if !identity.Verified {
		// Researching the wrong person is worse than researching nobody, so
		// a failed gate ends the job.
		return p.fail(ctx, job, eris.Errorf(
			"research: could not verify %s at %s exists publicly",
			job.Input.Recipient.Name, job.Input.Recipient.Company), false)
	}

	// Phase 2: discovery.
	if err := p.transition(ctx, job, model.JobStatusDiscovery, 2, "discovering content"); err != nil {
		return err
	}
	job.Hypotheses = p.GenerateHypotheses(ctx, job.Input, identity.Confidence)
	candidates, err := p.DiscoverContent(ctx, job.Input, job.Hypotheses)
	if err != nil {
		return p.fail(ctx, job, err, false)
	}
	job.URLs = candidateURLs(candidates)
	if len(job.URLs) == 0 {
		// Searches returned results but filtering dropped every candidate.
		return p.fail(ctx, job, eris.New("research: no usable content URLs survived discovery"), false)
	}

	// Phase 3: fetch.
	if err := p.transition(ctx, job, model.JobStatusFetching, 3, "fetching content"); err != nil {
		return err
	}
	docs, stats, err := p.FetchContent(ctx, job.Input, job.URLs)
	if err != nil {
		return p.fail(ctx, job, err, true)
	}
	if len(docs) == 0 {
		// Discovery did find URLs, so the run got partway there.
		return p.fail(ctx, job, eris.New("research: every fetched document was filtered out"), true)
	}

	// Phase 4: extraction. Total by design: degradation is reported through
	// the fallback mode, and the job completes.
	if err := p.transition(ctx, job, model.JobStatusExtracting, 4, "extracting hooks"); err != nil {
		return err
	}
	job.Hooks, job.FallbackMode = p.ExtractHooks(ctx, job.Input, docs)
	// Any triggered fallback marks the result partial, even when it found
	// hooks: the consumer should present a lower-confidence experience.
	job.Partial = job.FallbackMode != model.FallbackNone || stats.Fetched < stats.Requested

	job.Status = model.JobStatusComplete
	job.Progress = model.Progress{Phase: totalPhases, Total: totalPhases, Label: "complete"}
	done := time.Now().UTC()
	job.CompletedAt = &done
	job.TotalInputTokens, job.TotalOutputTokens = p.usage.input, p.usage.output

	if err := p.store.UpdateJob(ctx, job); err != nil {
		return eris.Wrapf(err, "research: persist completed job %s", job.ID)
	}
	log.Info("job complete",
		zap.Int("hooks", len(job.Hooks)),
		zap.String("fallback_mode", string(job.FallbackMode)),
		zap.Bool("partial", job.Partial),
		zap.Int64("input_tokens", job.TotalInputTokens),
		zap.Int64("output_tokens", job.TotalOutputTokens))
	return nil
}

// transition moves the job to the next phase and persists the snapshot.
func (p *Pipeline) transition(ctx context.Context, job *model.ResearchJob, status model.JobStatus, phase int, label string) error {
	job.Status = status
	job.Progress = model.Progress{Phase: phase, Total: totalPhases, Label: label}
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return eris.Wrapf(err, "research: persist %s transition for job %s", status, job.ID)
	}
	return nil
}

// fail lands the job in the failed terminal state with the cause recorded.
// partial reports whether the run produced anything useful before dying.
// The returned error is the original cause.
func (p *Pipeline) fail(ctx context.Context, job *model.ResearchJob, cause error, partial bool) error {
	job.Status = model.JobStatusFailed
	job.Error = cause.Error()
	job.Partial = partial
	done := time.Now().UTC()
	job.CompletedAt = &done
	if p.usage != nil {
		job.TotalInputTokens, job.TotalOutputTokens = p.usage.input, p.usage.output
	}

	if err := p.store.UpdateJob(ctx, job); err != nil {
		zap.L().Error("could not persist failed job",
			zap.String("job_id", job.ID), zap.Error(err))
	}
	return cause
}

func candidateURLs(candidates []model.Candidate) []string {
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	return urls
}
