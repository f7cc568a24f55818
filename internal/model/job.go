package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// JobStatus represents the current state of a research job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusIdentity   JobStatus = "identity"
	JobStatusDiscovery  JobStatus = "discovery"
	JobStatusFetching   JobStatus = "fetching"
	JobStatusExtracting JobStatus = "extracting"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// FallbackMode tags the outcome of the hook-extraction phase.
type FallbackMode string

const (
	FallbackNone             FallbackMode = ""
	FallbackHooksFound       FallbackMode = "hooks_found"
	FallbackNoHooksAvailable FallbackMode = "no_hooks_available"
	FallbackExtractionFailed FallbackMode = "extraction_failed"
)

// Recipient identifies the person being researched.
type Recipient struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Role    string `json:"role,omitempty"`
}

// JobInput holds the immutable inputs of a research job.
type JobInput struct {
	Recipient   Recipient `json:"recipient"`
	Intent      string    `json:"intent,omitempty"`
	Credibility string    `json:"credibility,omitempty"`
}

// Validate checks the required fields of a job input.
func (in JobInput) Validate() error {
	if in.Recipient.Name == "" {
		return eris.New("job input: recipient name is required")
	}
	if in.Recipient.Company == "" {
		return eris.New("job input: recipient company is required")
	}
	return nil
}

// IdentityCheck is the persisted outcome of the identity gate. A failed
// check ends the job: researching an unverifiable person risks attributing
// someone else's content to them.
type IdentityCheck struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
}

// Progress describes where a job is in the phase sequence, for pollers.
type Progress struct {
	Phase int    `json:"phase"`
	Total int    `json:"total"`
	Label string `json:"label"`
}

// ResearchJob is the unit of work and its externally visible state. The
// orchestrator owns the record for the duration of a run and persists it
// after every phase transition; pollers only ever read full snapshots.
type ResearchJob struct {
	ID    string   `json:"id"`
	Input JobInput `json:"input"`

	Status       JobStatus      `json:"status"`
	Progress     Progress       `json:"progress"`
	Identity     *IdentityCheck `json:"identity,omitempty"`
	URLs         []string       `json:"urls,omitempty"`
	Hypotheses   []string       `json:"hypotheses,omitempty"`
	Hooks        []Hook         `json:"hooks,omitempty"`
	Partial      bool           `json:"partial"`
	FallbackMode FallbackMode   `json:"fallback_mode,omitempty"`
	Error        string         `json:"error,omitempty"`

	TotalInputTokens  int64 `json:"total_input_tokens,omitempty"`
	TotalOutputTokens int64 `json:"total_output_tokens,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Counts gives pollers the list sizes without walking the arrays.
type Counts struct {
	URLs  int `json:"urls"`
	Hooks int `json:"hooks"`
}

// MarshalJSON adds the derived counts object to every serialized snapshot.
func (j ResearchJob) MarshalJSON() ([]byte, error) {
	type alias ResearchJob
	return json.Marshal(struct {
		alias
		Counts Counts `json:"counts"`
	}{
		alias:  alias(j),
		Counts: Counts{URLs: len(j.URLs), Hooks: len(j.Hooks)},
	})
}

// Candidate is a discovered URL before and after scoring. Candidates live
// only within one discovery call; only the surviving ranked URL list is
// persisted on the job.
type Candidate struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Provenance string  `json:"provenance"` // "autoprompt" or "hypothesis"
	Score      float64 `json:"score"`
	DropReason string  `json:"drop_reason,omitempty"`
}

// Candidate provenance tags.
const (
	ProvenanceAutoprompt = "autoprompt"
	ProvenanceHypothesis = "hypothesis"
)

// SourceType classifies how specifically a fetched document relates to the
// recipient.
type SourceType string

const (
	SourcePersonSpecific  SourceType = "person_specific"
	SourceCompanySpecific SourceType = "company_specific"
	SourceIndustryGeneric SourceType = "industry_generic"
)

// Document is the fetched content for one surviving URL. Documents classified
// industry_generic are excluded before extraction and never persisted.
type Document struct {
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	Text       string     `json:"text"`
	Highlights []string   `json:"highlights,omitempty"`
	SourceType SourceType `json:"source_type"`
}
