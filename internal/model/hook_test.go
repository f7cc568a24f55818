package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validHook() Hook {
	return Hook{
		ID:         "hook-1",
		Title:      "Recent keynote on supply chains",
		Hook:       "Saw your keynote on resilient supply chains at LogiCon.",
		WhyItWorks: "Shows familiarity with their current public work.",
		Confidence: 0.8,
		Tier:       HookTier1,
		Sources:    []Source{{Label: "LogiCon talk", URL: "https://example.com/talk"}},
		Evidence:   []Evidence{{Label: "LogiCon talk", Quote: "supply chains need slack"}},
	}
}

func TestHookValidate(t *testing.T) {
	require.NoError(t, validHook().Validate())

	t.Run("missing title", func(t *testing.T) {
		h := validHook()
		h.Title = ""
		assert.Error(t, h.Validate())
	})

	t.Run("missing evidence", func(t *testing.T) {
		h := validHook()
		h.Evidence = nil
		assert.Error(t, h.Validate())
	})

	t.Run("missing sources", func(t *testing.T) {
		h := validHook()
		h.Sources = nil
		assert.Error(t, h.Validate())
	})

	t.Run("bad tier", func(t *testing.T) {
		h := validHook()
		h.Tier = "tier4"
		assert.Error(t, h.Validate())
	})

	t.Run("confidence out of range", func(t *testing.T) {
		h := validHook()
		h.Confidence = 1.2
		assert.Error(t, h.Validate())
	})
}

func TestHookClamp(t *testing.T) {
	h := validHook()
	h.Title = strings.Repeat("t", 200)
	h.Hook = strings.Repeat("h", 500)
	h.Evidence[0].Quote = strings.Repeat("q", 300)
	h.Confidence = 1.5

	h.Clamp()

	assert.Len(t, h.Title, MaxHookTitleLen)
	assert.Len(t, h.Hook, MaxHookTextLen)
	assert.Len(t, h.Evidence[0].Quote, MaxEvidenceLen)
	assert.Equal(t, 1.0, h.Confidence)
	require.NoError(t, h.Validate())
}

func TestTruncateRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 100) // 2 bytes per rune
	out := truncate(s, 81)
	assert.LessOrEqual(t, len(out), 81)
	assert.True(t, strings.HasPrefix(s, out))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobStatusComplete.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusExtracting.Terminal())
}

func TestJobInputValidateRequiredFields(t *testing.T) {
	ok := JobInput{Recipient: Recipient{Name: "Jane Smith", Company: "Acme"}}
	require.NoError(t, ok.Validate())

	assert.Error(t, JobInput{Recipient: Recipient{Company: "Acme"}}.Validate())
	assert.Error(t, JobInput{Recipient: Recipient{Name: "Jane Smith"}}.Validate())
}
