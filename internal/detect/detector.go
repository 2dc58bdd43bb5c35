/**
 * Region detector
 *
 * Finds candidate document regions on a scanned page image. The steps are
 * fixed: binarize (Otsu), close small gaps, take connected-component
 * bounding boxes, filter by area and aspect, pad, deduplicate by IoU, split
 * side-by-side scans, and fall back to the full page when nothing survives.
 * Detection never fails: the worst case is one full-page region.
 */

package detect

import (
	"image"

	"github.com/cardsight/idscan-worker/internal/imaging"
)

// DetectorConfig bounds the geometry filters. Zero values are replaced by
// the defaults below.
type DetectorConfig struct {
	MinAreaPercent float64 // reject components smaller than this % of the page
	MaxAreaPercent float64 // reject components larger than this % of the page
	MinAspect      float64 // ID-1 card band, lower bound
	MaxAspect      float64 // ID-1 card band, upper bound
	PaddingPercent float64 // padding added around each accepted box
	IoUThreshold   float64 // overlap above this collapses to the larger box
	CloseKernel    int     // morphological close kernel edge, odd
}

// DefaultDetectorConfig returns the tuned defaults for ID-1 sized cards
// scanned on A4/letter pages.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinAreaPercent: 5,
		MaxAreaPercent: 80,
		MinAspect:      1.4,
		MaxAspect:      2.0,
		PaddingPercent: 5,
		IoUThreshold:   0.3,
		CloseKernel:    5,
	}
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	d := DefaultDetectorConfig()
	if c.MinAreaPercent <= 0 {
		c.MinAreaPercent = d.MinAreaPercent
	}
	if c.MaxAreaPercent <= 0 {
		c.MaxAreaPercent = d.MaxAreaPercent
	}
	if c.MinAspect <= 0 {
		c.MinAspect = d.MinAspect
	}
	if c.MaxAspect <= 0 {
		c.MaxAspect = d.MaxAspect
	}
	if c.PaddingPercent <= 0 {
		c.PaddingPercent = d.PaddingPercent
	}
	if c.IoUThreshold <= 0 {
		c.IoUThreshold = d.IoUThreshold
	}
	if c.CloseKernel <= 0 {
		c.CloseKernel = d.CloseKernel
	}
	return c
}

// Detector locates candidate document regions on page images.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector builds a detector, filling unset config fields with defaults.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Detect returns the candidate regions for a page image, ordered
// left-to-right then top-to-bottom. It always returns at least one region.
func (d *Detector) Detect(img image.Image) []Region {
	bounds := img.Bounds()
	pageW, pageH := bounds.Dx(), bounds.Dy()
	if pageW <= 0 || pageH <= 0 {
		return []Region{FullPage(pageW, pageH)}
	}

	gray := imaging.ToGray(img)
	bin := imaging.OtsuBinarize(gray)
	closed := imaging.Close(bin, d.cfg.CloseKernel)

	boxes := imaging.ComponentBoxes(closed)

	var accepted []Region
	var splittable []Region
	for _, b := range boxes {
		r := Region{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()}
		areaPct := r.AreaFraction(pageW, pageH) * 100
		if areaPct < d.cfg.MinAreaPercent || areaPct > d.cfg.MaxAreaPercent {
			continue
		}
		aspect := r.Aspect()
		switch {
		case aspect >= d.cfg.MinAspect && aspect <= d.cfg.MaxAspect:
			accepted = append(accepted, r.Pad(d.cfg.PaddingPercent/100, pageW, pageH))
		case aspect >= 2*d.cfg.MinAspect && aspect <= 2*d.cfg.MaxAspect:
			// Roughly double-width or double-height: likely two cards
			// scanned side by side. Held for the split step.
			splittable = append(splittable, r)
		}
	}

	for _, r := range splittable {
		for _, half := range splitSideBySide(closed, r) {
			areaPct := half.AreaFraction(pageW, pageH) * 100
			if areaPct < d.cfg.MinAreaPercent || areaPct > d.cfg.MaxAreaPercent {
				continue
			}
			accepted = append(accepted, half.Pad(d.cfg.PaddingPercent/100, pageW, pageH))
		}
	}

	accepted = dedupeByIoU(accepted, d.cfg.IoUThreshold)
	if len(accepted) == 0 {
		return []Region{FullPage(pageW, pageH)}
	}
	sortReadingOrder(accepted)
	return accepted
}

// dedupeByIoU keeps the larger of any pair of regions whose IoU exceeds the
// threshold.
func dedupeByIoU(regions []Region, threshold float64) []Region {
	var kept []Region
	for _, r := range regions {
		absorbed := false
		for i, k := range kept {
			if r.IoU(k) > threshold {
				if r.Area() > k.Area() {
					kept[i] = r
				}
				absorbed = true
				break
			}
		}
		if !absorbed {
			kept = append(kept, r)
		}
	}
	return kept
}

// sortReadingOrder orders regions top-to-bottom, breaking near-ties (rows)
// left-to-right. Two regions whose vertical centers fall within half the
// smaller height of each other count as one row.
func sortReadingOrder(regions []Region) {
	for i := 1; i < len(regions); i++ {
		for j := i; j > 0 && readingLess(regions[j], regions[j-1]); j-- {
			regions[j], regions[j-1] = regions[j-1], regions[j]
		}
	}
}

func readingLess(a, b Region) bool {
	rowTol := min(a.H, b.H) / 2
	ca := a.Y + a.H/2
	cb := b.Y + b.H/2
	diff := ca - cb
	if diff < 0 {
		diff = -diff
	}
	if diff <= rowTol {
		return a.X < b.X
	}
	return ca < cb
}
