/**
 * Confidence adjuster
 *
 * Page-wide second pass over base classifications. Pure over its inputs:
 * reruns on the same page produce the same adjusted confidences. Boosts are
 * computed from keyword evidence and then dampened by each region's own
 * quality signals before being added to the base confidence.
 */

package detect

// AdjusterConfig carries the boost and dampening constants. Zero values are
// replaced by the defaults.
type AdjusterConfig struct {
	SharedBy2Boost float64 // keyword seen in exactly 2 regions
	SharedBy3Boost float64 // keyword seen in exactly 3 regions
	SharedBy4Boost float64 // keyword seen in 4 or more regions

	Specificity1Bonus float64 // per one-word keyword
	Specificity2Bonus float64 // per two-word keyword
	Specificity3Bonus float64 // per keyword of three or more words
	SpecificityCap    float64 // total specificity bonus cap per region

	Consistency2Bonus float64 // exactly 2 distinct keywords in a region
	Consistency3Bonus float64 // 3 or more distinct keywords

	LowQualityFactor float64 // OCR quality below LowQualityBelow
	MidQualityFactor float64 // OCR quality below MidQualityBelow
	LowQualityBelow  float64
	MidQualityBelow  float64
	LowInkFactor     float64 // applied when ink ratio is under MinInkRatio
	MinInkRatio      float64
}

// DefaultAdjusterConfig returns the tuned boost constants.
func DefaultAdjusterConfig() AdjusterConfig {
	return AdjusterConfig{
		SharedBy2Boost:    5,
		SharedBy3Boost:    10,
		SharedBy4Boost:    15,
		Specificity1Bonus: 1,
		Specificity2Bonus: 2,
		Specificity3Bonus: 3,
		SpecificityCap:    10,
		Consistency2Bonus: 3,
		Consistency3Bonus: 5,
		LowQualityFactor:  0.5,
		MidQualityFactor:  0.75,
		LowQualityBelow:   30,
		MidQualityBelow:   50,
		LowInkFactor:      0.8,
		MinInkRatio:       0.01,
	}
}

func (c AdjusterConfig) withDefaults() AdjusterConfig {
	d := DefaultAdjusterConfig()
	if c.SharedBy2Boost <= 0 {
		c.SharedBy2Boost = d.SharedBy2Boost
	}
	if c.SharedBy3Boost <= 0 {
		c.SharedBy3Boost = d.SharedBy3Boost
	}
	if c.SharedBy4Boost <= 0 {
		c.SharedBy4Boost = d.SharedBy4Boost
	}
	if c.Specificity1Bonus <= 0 {
		c.Specificity1Bonus = d.Specificity1Bonus
	}
	if c.Specificity2Bonus <= 0 {
		c.Specificity2Bonus = d.Specificity2Bonus
	}
	if c.Specificity3Bonus <= 0 {
		c.Specificity3Bonus = d.Specificity3Bonus
	}
	if c.SpecificityCap <= 0 {
		c.SpecificityCap = d.SpecificityCap
	}
	if c.Consistency2Bonus <= 0 {
		c.Consistency2Bonus = d.Consistency2Bonus
	}
	if c.Consistency3Bonus <= 0 {
		c.Consistency3Bonus = d.Consistency3Bonus
	}
	if c.LowQualityFactor <= 0 {
		c.LowQualityFactor = d.LowQualityFactor
	}
	if c.MidQualityFactor <= 0 {
		c.MidQualityFactor = d.MidQualityFactor
	}
	if c.LowQualityBelow <= 0 {
		c.LowQualityBelow = d.LowQualityBelow
	}
	if c.MidQualityBelow <= 0 {
		c.MidQualityBelow = d.MidQualityBelow
	}
	if c.LowInkFactor <= 0 {
		c.LowInkFactor = d.LowInkFactor
	}
	if c.MinInkRatio <= 0 {
		c.MinInkRatio = d.MinInkRatio
	}
	return c
}

// Adjuster computes adjusted confidences for all regions of one page.
type Adjuster struct {
	cfg AdjusterConfig
}

// NewAdjuster builds an adjuster, filling unset config with defaults.
func NewAdjuster(cfg AdjusterConfig) *Adjuster {
	return &Adjuster{cfg: cfg.withDefaults()}
}

// Adjust overwrites AdjustedConfidence on every region result in place. It
// must run after all regions of the page have base classifications, and it
// reads nothing outside the slice it is given.
func (a *Adjuster) Adjust(regions []RegionResult) {
	// How many regions each distinct keyword appears in. Repeated hits
	// within one region count once.
	sharedBy := make(map[string]int)
	for i := range regions {
		for kw := range regions[i].Classification.MatchedKeywordSet() {
			sharedBy[kw]++
		}
	}

	for i := range regions {
		cls := &regions[i].Classification
		boost := a.frequencyBoost(cls, sharedBy) +
			a.specificityBonus(cls) +
			a.consistencyBonus(cls)
		boost *= a.qualityFactor(regions[i].Evidence)
		cls.AdjustedConfidence = clamp(cls.BaseConfidence+boost, 0, 100)
	}
}

// frequencyBoost rewards keywords that recur across regions of the page.
func (a *Adjuster) frequencyBoost(cls *Classification, sharedBy map[string]int) float64 {
	var boost float64
	for kw := range cls.MatchedKeywordSet() {
		switch n := sharedBy[kw]; {
		case n >= 4:
			boost += a.cfg.SharedBy4Boost
		case n == 3:
			boost += a.cfg.SharedBy3Boost
		case n == 2:
			boost += a.cfg.SharedBy2Boost
		}
	}
	return boost
}

// specificityBonus rewards longer phrases, capped per region.
func (a *Adjuster) specificityBonus(cls *Classification) float64 {
	var bonus float64
	for kw := range cls.MatchedKeywordSet() {
		switch words := wordCount(kw); {
		case words >= 3:
			bonus += a.cfg.Specificity3Bonus
		case words == 2:
			bonus += a.cfg.Specificity2Bonus
		case words == 1:
			bonus += a.cfg.Specificity1Bonus
		}
	}
	if bonus > a.cfg.SpecificityCap {
		bonus = a.cfg.SpecificityCap
	}
	return bonus
}

// consistencyBonus rewards regions with several distinct matches.
func (a *Adjuster) consistencyBonus(cls *Classification) float64 {
	switch n := len(cls.MatchedKeywordSet()); {
	case n >= 3:
		return a.cfg.Consistency3Bonus
	case n == 2:
		return a.cfg.Consistency2Bonus
	}
	return 0
}

// qualityFactor dampens the boost when the region's own signals are weak.
func (a *Adjuster) qualityFactor(ev RegionEvidence) float64 {
	factor := 1.0
	switch {
	case ev.OCRQuality < a.cfg.LowQualityBelow:
		factor = a.cfg.LowQualityFactor
	case ev.OCRQuality < a.cfg.MidQualityBelow:
		factor = a.cfg.MidQualityFactor
	}
	if ev.InkRatio < a.cfg.MinInkRatio {
		factor *= a.cfg.LowInkFactor
	}
	return factor
}

func wordCount(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
