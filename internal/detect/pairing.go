/**
 * Pairing resolver
 *
 * Last page-wide pass. A region that produced no evidence of its own can
 * still be labeled when exactly one sibling on the same page was resolved:
 * the unresolved region is assumed to be the other face of the same
 * document. With zero or several resolved siblings the resolver never
 * guesses.
 */

package detect

// DefaultPairingConfidence is the fixed confidence assigned to regions
// resolved by pairing unless the bundle overrides it. Deliberately lower than
// any direct keyword match so callers can distinguish inferred labels from
// evidenced ones.
const DefaultPairingConfidence = 65

// ResolvePairs fills in side, type, and method for regions whose
// classification method is none, in place. It must run after Adjust.
// confidence <= 0 selects the default.
func ResolvePairs(regions []RegionResult, confidence float64) {
	if confidence <= 0 {
		confidence = DefaultPairingConfidence
	}
	var resolved *Classification
	resolvedCount := 0
	unresolvedCount := 0
	for i := range regions {
		if regions[i].Classification.Method == MethodNone {
			unresolvedCount++
			continue
		}
		resolvedCount++
		resolved = &regions[i].Classification
	}
	if resolvedCount != 1 || unresolvedCount == 0 {
		return
	}

	for i := range regions {
		cls := &regions[i].Classification
		if cls.Method != MethodNone {
			continue
		}
		cls.Side = resolved.Side.Complement()
		cls.Type = resolved.Type
		cls.Method = MethodPairing
		cls.AdjustedConfidence = confidence
	}
}
