/**
 * Shared data structures for identity-document detection
 *
 * Types flow through the page pipeline in one direction:
 * Region -> RegionEvidence -> Classification -> PageResult.
 */

package detect

// DocumentType is a configured document-type key (e.g. "national_id",
// "passport"). The set of valid keys comes from the detection bundle, not
// from code.
type DocumentType string

// TypeUnknown is returned when no type keyword matched.
const TypeUnknown DocumentType = "unknown"

// DocumentSide identifies which face of a document a region shows.
type DocumentSide string

const (
	SideFront   DocumentSide = "front"
	SideBack    DocumentSide = "back"
	SideUnknown DocumentSide = "unknown"
)

// Complement returns the opposite side, or SideUnknown when the receiver
// carries no side information.
func (s DocumentSide) Complement() DocumentSide {
	switch s {
	case SideFront:
		return SideBack
	case SideBack:
		return SideFront
	default:
		return SideUnknown
	}
}

// Method records which rule produced a classification.
type Method string

const (
	MethodMRZ           Method = "mrz_pattern"
	MethodBackKeywords  Method = "back_keywords"
	MethodFrontKeywords Method = "front_keywords"
	MethodPairing       Method = "heuristic_pairing"
	MethodNone          Method = "none"
)

// KeywordMatch is one matched keyword together with the category (side key or
// document-type key) whose list it came from.
type KeywordMatch struct {
	Keyword  string
	Category string
}

// RegionEvidence holds the text acquired for one region plus the quality
// signals the confidence adjuster consumes. Immutable once the acquirer
// returns it.
type RegionEvidence struct {
	RawText    string
	Text       string  // cleaned
	OCRQuality float64 // 0-100, comparable across regions of one page
	InkRatio   float64 // 0-1, computed by the quality collaborator
	Language   string  // language hint used during acquisition
}

// Classification is the result for one region. The pattern classifier fills
// the base values; the page-wide pass overwrites AdjustedConfidence and,
// for unresolved regions, side/type/method. Terminal after that pass.
type Classification struct {
	Type               DocumentType
	Side               DocumentSide
	BaseConfidence     float64
	AdjustedConfidence float64
	Matches            []KeywordMatch
	Method             Method
}

// MatchedKeywordSet returns the distinct matched keywords.
func (c *Classification) MatchedKeywordSet() map[string]bool {
	set := make(map[string]bool, len(c.Matches))
	for _, m := range c.Matches {
		set[m.Keyword] = true
	}
	return set
}

// RegionResult pairs a region with its evidence and final classification.
type RegionResult struct {
	Region         Region
	Evidence       RegionEvidence
	Classification Classification
}

// PageResult is the unit returned to callers: the ordered classified regions
// of a single page. The engine keeps no state across pages.
type PageResult struct {
	PageIndex int
	Regions   []RegionResult
}

// GroupByType groups the page's classified regions by document type,
// including an "unknown" bucket.
func (p *PageResult) GroupByType() map[DocumentType][]RegionResult {
	grouped := make(map[DocumentType][]RegionResult)
	for _, r := range p.Regions {
		grouped[r.Classification.Type] = append(grouped[r.Classification.Type], r)
	}
	return grouped
}
