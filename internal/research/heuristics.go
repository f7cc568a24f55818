package research

import (
	"net/url"
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-research/internal/model"
)

// directoryDomains are company-database and encyclopedia sites whose pages
// are almost always low-signal bio listings rather than the person's own work.
var directoryDomains = []string{
	"wikipedia.org",
	"crunchbase.com",
	"zoominfo.com",
	"theorg.com",
	"rocketreach.co",
}

// directoryPathMarkers are URL path segments typical of bio and team pages.
var directoryPathMarkers = []string{
	"/bio",
	"/team",
	"/about",
	"/faculty",
	"/people",
	"/staff",
	"/leadership",
	"/profile",
}

// contentPlatformDomains are long-form platforms where first-person writing
// and interviews tend to live.
var contentPlatformDomains = []string{
	"medium.com",
	"substack.com",
	"youtube.com",
	"open.spotify.com",
	"podcasts.apple.com",
	"dev.to",
}

// strongArtifactMarkers signal high-value personalization material in a title.
var strongArtifactMarkers = []string{
	"interview", "podcast", "keynote", "fireside", "transcript",
}

// weakArtifactMarkers signal medium-value material.
var weakArtifactMarkers = []string{
	"writing", "advice", "essay", "lessons", "thoughts",
}

// ScoreWeights are the additive scoring constants for discovery candidates.
// The score is a ranking heuristic, not a probability; only relative order
// matters. Weights are injectable so they can be tuned and unit-tested
// without touching network code.
type ScoreWeights struct {
	ContentPlatform float64 `yaml:"content_platform"`
	BlogIndicator   float64 `yaml:"blog_indicator"`
	Directory       float64 `yaml:"directory"`
	TopicPerTerm    float64 `yaml:"topic_per_term"`
	TopicCap        float64 `yaml:"topic_cap"`
	StrongArtifact  float64 `yaml:"strong_artifact"`
	WeakArtifact    float64 `yaml:"weak_artifact"`
	DeepLink        float64 `yaml:"deep_link"`
	Hypothesis      float64 `yaml:"hypothesis"`
	OffTopic        float64 `yaml:"off_topic"`
	BioLike         float64 `yaml:"bio_like"`
}

// DefaultWeights returns the tuned scoring constants.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{
		ContentPlatform: 3,
		BlogIndicator:   3,
		Directory:       -4,
		TopicPerTerm:    2,
		TopicCap:        6,
		StrongArtifact:  3,
		WeakArtifact:    1,
		DeepLink:        1,
		Hypothesis:      0.5,
		OffTopic:        -6,
		BioLike:         -2,
	}
}

// LoadWeights reads a weights override file. A missing path returns the
// defaults.
func LoadWeights(path string) (ScoreWeights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return w, eris.Wrapf(err, "research: read weights %s", path)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, eris.Wrapf(err, "research: parse weights %s", path)
	}
	return w, nil
}

// Tokenize lowercases text, strips non-alphanumerics and splits on
// whitespace, dropping empty tokens.
func Tokenize(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// foldTransformer strips combining marks after NFD decomposition so that
// accented names match their unaccented spellings.
var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// foldName lowercases a name and strips diacritics for substring matching.
func foldName(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// containsFold reports whether text contains needle, case- and
// diacritic-insensitively.
func containsFold(text, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(foldName(text), foldName(needle))
}

// LooksLikeProfileOrDirectory reports whether a URL points at a low-signal
// bio or directory page.
func LooksLikeProfileOrDirectory(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range directoryDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	path := strings.ToLower(u.Path)
	for _, marker := range directoryPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

// IsLikelyOffTopic reports whether a result title shares no tokens with the
// topic terms. A cheap title-only drift guard; no content fetch needed.
func IsLikelyOffTopic(title string, topicTerms []string) bool {
	if len(topicTerms) == 0 {
		return false
	}
	titleTokens := make(map[string]bool)
	for _, tok := range Tokenize(title) {
		titleTokens[tok] = true
	}
	for _, term := range topicTerms {
		for _, tok := range Tokenize(term) {
			if titleTokens[tok] {
				return false
			}
		}
	}
	return true
}

// URLSimilarity returns the fraction of shared path segments over the longer
// path. Malformed URLs yield 0.
func URLSimilarity(a, b string) float64 {
	segsA := pathSegments(a)
	segsB := pathSegments(b)
	if len(segsA) == 0 || len(segsB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(segsA))
	for _, s := range segsA {
		setA[s] = true
	}
	shared := 0
	for _, s := range segsB {
		if setA[s] {
			shared++
		}
	}

	longer := len(segsA)
	if len(segsB) > longer {
		longer = len(segsB)
	}
	return float64(shared) / float64(longer)
}

func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var segs []string
	for _, s := range strings.Split(strings.ToLower(u.Path), "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// DeduplicateByURL collapses exact and near-duplicate candidates (same host,
// path similarity > 0.8), keeping the higher-scored item of each collision.
func DeduplicateByURL(items []model.Candidate) []model.Candidate {
	var kept []model.Candidate
	for _, item := range items {
		collided := false
		for i := range kept {
			if !sameCandidate(kept[i], item) {
				continue
			}
			collided = true
			if item.Score > kept[i].Score {
				kept[i] = item
			}
			break
		}
		if !collided {
			kept = append(kept, item)
		}
	}
	return kept
}

func sameCandidate(a, b model.Candidate) bool {
	na := normalizeURL(a.URL)
	nb := normalizeURL(b.URL)
	if na == nb {
		return true
	}
	ua, errA := url.Parse(a.URL)
	ub, errB := url.Parse(b.URL)
	if errA != nil || errB != nil {
		return false
	}
	if !strings.EqualFold(ua.Hostname(), ub.Hostname()) {
		return false
	}
	return URLSimilarity(a.URL, b.URL) > 0.8
}

func normalizeURL(rawURL string) string {
	return strings.TrimRight(strings.ToLower(rawURL), "/")
}

// ScoreCandidate computes the additive heuristic score for a discovery
// candidate. All inputs degrade gracefully: a malformed URL simply skips the
// URL-derived bonuses.
func ScoreCandidate(rawURL, title string, topicTerms []string, provenance string, w ScoreWeights) float64 {
	score := 0.0
	lowerURL := strings.ToLower(rawURL)
	lowerTitle := strings.ToLower(title)

	u, err := url.Parse(rawURL)
	if err == nil {
		host := strings.ToLower(u.Hostname())
		for _, d := range contentPlatformDomains {
			if host == d || strings.HasSuffix(host, "."+d) {
				score += w.ContentPlatform
				break
			}
		}
		if len(pathSegments(rawURL)) >= 2 {
			score += w.DeepLink
		}
	}

	if strings.Contains(lowerURL, "blog") || strings.Contains(lowerURL, "/post") {
		score += w.BlogIndicator
	}

	if LooksLikeProfileOrDirectory(rawURL) {
		score += w.Directory
	}

	// Topic overlap, capped.
	titleTokens := make(map[string]bool)
	for _, tok := range Tokenize(title) {
		titleTokens[tok] = true
	}
	overlap := 0.0
	for _, term := range topicTerms {
		for _, tok := range Tokenize(term) {
			if titleTokens[tok] {
				overlap += w.TopicPerTerm
				break
			}
		}
	}
	if overlap > w.TopicCap {
		overlap = w.TopicCap
	}
	score += overlap

	for _, marker := range strongArtifactMarkers {
		if strings.Contains(lowerTitle, marker) || strings.Contains(lowerURL, marker) {
			score += w.StrongArtifact
			break
		}
	}
	for _, marker := range weakArtifactMarkers {
		if strings.Contains(lowerTitle, marker) || strings.Contains(lowerURL, marker) {
			score += w.WeakArtifact
			break
		}
	}

	if provenance == model.ProvenanceHypothesis {
		score += w.Hypothesis
	}

	return score
}
