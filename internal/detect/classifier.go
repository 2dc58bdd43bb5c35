/**
 * Pattern classifier
 *
 * Derives a base classification for one region from its cleaned text. Rules
 * run in strict priority order and the first match wins: structural MRZ
 * evidence outranks back-side keywords, which outrank front-side keywords.
 * Document type is scored independently of side.
 */

package detect

import (
	"sort"
	"strings"
)

// Keywords holds the keyword lists for one language.
type Keywords struct {
	Front []string
	Back  []string
	Types map[DocumentType][]string
}

// ClassifierConfig is the validated keyword/threshold bundle the classifier
// runs against. Immutable after construction.
type ClassifierConfig struct {
	// Languages maps a BCP 47 base tag ("en", "fr") to its keyword lists.
	Languages map[string]Keywords
	// TypePriority breaks ties when two document types match equally well.
	TypePriority []DocumentType
	// MRZMinRun is the shortest '<' run accepted as MRZ evidence.
	MRZMinRun int
	// MRZFullLine is the nominal MRZ line length used to scale confidence.
	MRZFullLine int
}

// DefaultClassifierConfig returns the tuned thresholds without any keyword
// lists; callers supply those from the detection bundle.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MRZMinRun:   5,
		MRZFullLine: 44,
	}
}

const (
	keywordBaseConfidence = 60
	keywordPerMatch       = 8
	keywordMatchCap       = 5
	mrzBaseConfidence     = 85
	mrzConfidenceRange    = 15
)

// Classifier applies the rule chain to region text.
type Classifier struct {
	cfg   ClassifierConfig
	rules []classifierRule
}

// classifierRule is one predicate/resolver pair in the chain. apply returns
// false when the rule does not fire.
type classifierRule struct {
	method Method
	apply  func(text string, kw Keywords, c *Classification) bool
}

// NewClassifier builds the ordered rule chain for the given config. Unset
// MRZ thresholds fall back to the defaults.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.MRZMinRun <= 0 {
		cfg.MRZMinRun = DefaultClassifierConfig().MRZMinRun
	}
	if cfg.MRZFullLine <= 0 {
		cfg.MRZFullLine = DefaultClassifierConfig().MRZFullLine
	}
	c := &Classifier{cfg: cfg}
	c.rules = []classifierRule{
		{method: MethodMRZ, apply: c.applyMRZ},
		{method: MethodBackKeywords, apply: c.applyBack},
		{method: MethodFrontKeywords, apply: c.applyFront},
	}
	return c
}

// Classify returns the base classification for one region's cleaned text.
// Empty text always comes back unknown with confidence 0.
func (c *Classifier) Classify(text, lang string) Classification {
	result := Classification{
		Type:   TypeUnknown,
		Side:   SideUnknown,
		Method: MethodNone,
	}
	if strings.TrimSpace(text) == "" {
		return result
	}

	kw := c.keywordsFor(lang)
	lower := strings.ToLower(text)

	for _, rule := range c.rules {
		if rule.apply(lower, kw, &result) {
			result.Method = rule.method
			break
		}
	}

	c.classifyType(lower, kw, &result)

	if result.Method == MethodBackKeywords || result.Method == MethodFrontKeywords {
		n := len(result.Matches)
		if n > keywordMatchCap {
			n = keywordMatchCap
		}
		result.BaseConfidence = clamp(keywordBaseConfidence+float64(keywordPerMatch*n), keywordBaseConfidence, 100)
	}
	result.AdjustedConfidence = result.BaseConfidence
	return result
}

// keywordsFor resolves the lists for a language hint, falling back to
// English when the hint is unknown.
func (c *Classifier) keywordsFor(lang string) Keywords {
	if kw, ok := c.cfg.Languages[lang]; ok {
		return kw
	}
	if base, _, found := strings.Cut(lang, "-"); found {
		if kw, ok := c.cfg.Languages[base]; ok {
			return kw
		}
	}
	return c.cfg.Languages["en"]
}

func (c *Classifier) applyMRZ(text string, _ Keywords, result *Classification) bool {
	run := longestRun(text, '<')
	if run < c.cfg.MRZMinRun {
		return false
	}
	result.Side = SideBack
	frac := float64(run) / float64(c.cfg.MRZFullLine)
	if frac > 1 {
		frac = 1
	}
	result.BaseConfidence = mrzBaseConfidence + mrzConfidenceRange*frac
	return true
}

func (c *Classifier) applyBack(text string, kw Keywords, result *Classification) bool {
	matched := matchKeywords(text, kw.Back, "back")
	if len(matched) == 0 {
		return false
	}
	result.Side = SideBack
	result.Matches = append(result.Matches, matched...)
	return true
}

func (c *Classifier) applyFront(text string, kw Keywords, result *Classification) bool {
	matched := matchKeywords(text, kw.Front, "front")
	if len(matched) == 0 {
		return false
	}
	result.Side = SideFront
	result.Matches = append(result.Matches, matched...)
	return true
}

// classifyType scores every configured document type against the text and
// stores the winner. Most matches wins; equal counts fall back to total
// matched length, then to the configured priority order.
func (c *Classifier) classifyType(text string, kw Keywords, result *Classification) {
	type score struct {
		docType DocumentType
		matches []KeywordMatch
		length  int
	}
	var scores []score
	for docType, list := range kw.Types {
		matched := matchKeywords(text, list, string(docType))
		if len(matched) == 0 {
			continue
		}
		total := 0
		for _, m := range matched {
			total += len(m.Keyword)
		}
		scores = append(scores, score{docType: docType, matches: matched, length: total})
	}
	if len(scores) == 0 {
		return
	}
	priority := make(map[DocumentType]int, len(c.cfg.TypePriority))
	for i, t := range c.cfg.TypePriority {
		priority[t] = i
	}
	rank := func(t DocumentType) int {
		if p, ok := priority[t]; ok {
			return p
		}
		return len(priority)
	}
	sort.Slice(scores, func(i, j int) bool {
		if len(scores[i].matches) != len(scores[j].matches) {
			return len(scores[i].matches) > len(scores[j].matches)
		}
		if scores[i].length != scores[j].length {
			return scores[i].length > scores[j].length
		}
		if ri, rj := rank(scores[i].docType), rank(scores[j].docType); ri != rj {
			return ri < rj
		}
		// Types absent from the priority list still need a stable winner.
		return scores[i].docType < scores[j].docType
	})
	best := scores[0]
	result.Type = best.docType
	result.Matches = append(result.Matches, best.matches...)
}

// matchKeywords returns the keywords from list found in the lowercased text.
func matchKeywords(text string, list []string, category string) []KeywordMatch {
	var matched []KeywordMatch
	for _, k := range list {
		if k == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(k)) {
			matched = append(matched, KeywordMatch{Keyword: strings.ToLower(k), Category: category})
		}
	}
	return matched
}

func longestRun(text string, ch byte) int {
	best, cur := 0, 0
	for i := 0; i < len(text); i++ {
		if text[i] == ch {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
