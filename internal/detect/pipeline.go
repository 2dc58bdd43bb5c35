/**
 * Page pipeline
 *
 * Ties the detection steps together for one page: detect regions, acquire
 * text for each region concurrently under a bounded worker pool, classify
 * independently, then run the two page-wide passes (confidence adjustment
 * and pairing) after the barrier. The engine holds no state between pages,
 * so callers may process pages in parallel.
 */

package detect

import (
	"context"
	"image"
	"sync"
	"unicode/utf8"

	"github.com/cardsight/idscan-worker/internal/imaging"
	"github.com/cardsight/idscan-worker/internal/logging"
)

// AcquireMode selects the speed/accuracy tradeoff of a text acquisition.
type AcquireMode int

const (
	// AcquireFast favors speed; used for the first attempt on every region.
	AcquireFast AcquireMode = iota
	// AcquireFull favors accuracy; used when the fast pass returned too
	// little text.
	AcquireFull
)

// TextAcquirer extracts text from a region image. Implementations return
// empty text and quality 0 on failure rather than an error; the pipeline
// treats every outcome as evidence. Quality is 0-100.
type TextAcquirer interface {
	Acquire(ctx context.Context, img image.Image, lang string, mode AcquireMode) (text string, quality float64)
}

// PipelineConfig bounds the per-page concurrency and the escalation policy.
type PipelineConfig struct {
	// Workers caps concurrent Acquire calls. Sized to what the OCR engine
	// tolerates, since it is the bottleneck.
	Workers int
	// MinTextChars triggers the one-time fast-to-full escalation when the
	// fast pass yields less cleaned text than this.
	MinTextChars int
	// PairingConfidence is assigned to regions resolved by pairing.
	PairingConfidence float64
}

// DefaultPipelineConfig returns conservative pool and escalation settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{Workers: 4, MinTextChars: 30, PairingConfidence: DefaultPairingConfidence}
}

// Engine runs the full per-page pipeline.
type Engine struct {
	detector   *Detector
	classifier *Classifier
	adjuster   *Adjuster
	acquirer   TextAcquirer
	clean      func(string) string
	cfg        PipelineConfig
	logger     *logging.Logger
}

// NewEngine assembles a pipeline. clean normalizes raw acquired text before
// classification; pass nil to classify raw text.
func NewEngine(det *Detector, cls *Classifier, adj *Adjuster, acq TextAcquirer, clean func(string) string, cfg PipelineConfig, logger *logging.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPipelineConfig().Workers
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultPipelineConfig().MinTextChars
	}
	if cfg.PairingConfidence <= 0 {
		cfg.PairingConfidence = DefaultPipelineConfig().PairingConfidence
	}
	if clean == nil {
		clean = func(s string) string { return s }
	}
	if logger == nil {
		logger = logging.NewLogger("detect")
	}
	return &Engine{
		detector:   det,
		classifier: cls,
		adjuster:   adj,
		acquirer:   acq,
		clean:      clean,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessPage classifies every candidate region on one page image. lang is
// the language hint forwarded to the acquirer. Never returns an error: all
// degradation shows up as low or zero confidence.
func (e *Engine) ProcessPage(ctx context.Context, pageIndex int, img image.Image, lang string) PageResult {
	regions := e.detector.Detect(img)
	e.logger.Info("candidate regions detected", "page", pageIndex, "count", len(regions))

	results := make([]RegionResult, len(regions))
	sem := make(chan struct{}, e.cfg.Workers)
	var wg sync.WaitGroup
	for i, region := range regions {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, region Region) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.processRegion(ctx, img, region, lang)
		}(i, region)
	}
	// Page-wide passes need every region's base classification.
	wg.Wait()

	e.adjuster.Adjust(results)
	ResolvePairs(results, e.cfg.PairingConfidence)

	for i := range results {
		cls := results[i].Classification
		e.logger.Debug("region classified",
			"page", pageIndex,
			"region", results[i].Region.String(),
			"type", cls.Type,
			"side", cls.Side,
			"method", cls.Method,
			"confidence", cls.AdjustedConfidence)
	}
	return PageResult{PageIndex: pageIndex, Regions: results}
}

// processRegion acquires and classifies a single region. The fast pass runs
// first; a full pass follows at most once, when the cleaned fast result is
// shorter than the configured minimum. The last non-empty result wins.
func (e *Engine) processRegion(ctx context.Context, page image.Image, region Region, lang string) RegionResult {
	crop := imaging.Crop(page, image.Rect(region.X, region.Y, region.X+region.W, region.Y+region.H))

	text, quality := e.acquirer.Acquire(ctx, crop, lang, AcquireFast)
	cleaned := e.clean(text)
	if utf8.RuneCountInString(cleaned) < e.cfg.MinTextChars {
		fullText, fullQuality := e.acquirer.Acquire(ctx, crop, lang, AcquireFull)
		if fullText != "" {
			text, quality = fullText, fullQuality
			cleaned = e.clean(text)
		}
	}

	evidence := RegionEvidence{
		RawText:    text,
		Text:       cleaned,
		OCRQuality: quality,
		InkRatio:   imaging.InkRatio(crop),
		Language:   lang,
	}
	return RegionResult{
		Region:         region,
		Evidence:       evidence,
		Classification: e.classifier.Classify(evidence.Text, lang),
	}
}
