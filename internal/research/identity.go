package research

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/pkg/exa"
)

// Identity confidence levels. The gate is a cheap plausibility check, not a
// verification service, so confidence is coarse on purpose.
const (
	identityConfidencePass = 0.75
	identityConfidenceFail = 0.25
)

// VerifyIdentity runs one search for the recipient and passes when any
// result mentions the name or the company. It never returns an error: a
// transport failure is a failed gate with zero confidence. The orchestrator
// treats FAIL as terminal.
func (p *Pipeline) VerifyIdentity(ctx context.Context, in model.JobInput) model.IdentityCheck {
	query := fmt.Sprintf("%s %s", in.Recipient.Name, in.Recipient.Company)
	if in.Recipient.Role != "" {
		query = fmt.Sprintf("%s %s %s", in.Recipient.Name, in.Recipient.Company, in.Recipient.Role)
	}

	resp, err := p.exa.Search(ctx, exa.SearchRequest{
		Query:      query,
		NumResults: p.cfg.Research.IdentityResults,
		Type:       "auto",
	})
	if err != nil {
		zap.L().Warn("identity search failed",
			zap.String("name", in.Recipient.Name),
			zap.Error(err))
		return model.IdentityCheck{Verified: false, Confidence: 0}
	}

	for _, r := range resp.Results {
		haystack := r.Title + " " + r.Text
		if containsFold(haystack, in.Recipient.Name) || containsFold(haystack, in.Recipient.Company) {
			return model.IdentityCheck{
				Verified:   true,
				Confidence: identityConfidencePass,
				Evidence:   r.Title,
			}
		}
	}

	zap.L().Info("identity gate found no mention",
		zap.String("name", in.Recipient.Name),
		zap.String("company", in.Recipient.Company),
		zap.Int("results", len(resp.Results)))
	return model.IdentityCheck{Verified: false, Confidence: identityConfidenceFail}
}
