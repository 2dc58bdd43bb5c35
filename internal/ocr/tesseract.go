/**
 * Tesseract text acquirer
 *
 * Local OCR via gosseract. A fresh client is created per call because
 * tesseract handles are not safe for concurrent use; the pipeline's worker
 * pool bounds how many run at once. Failures come back as empty text with
 * quality 0, never as errors, so detection degrades instead of aborting.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/cardsight/idscan-worker/internal/detect"
	"github.com/cardsight/idscan-worker/internal/imaging"
	"github.com/cardsight/idscan-worker/internal/logging"
)

// fastMaxEdge bounds the image size in fast mode. Downscaling trades
// recall for a large speed win on high-DPI scans.
const fastMaxEdge = 800

// TesseractEngine implements detect.TextAcquirer with local tesseract.
type TesseractEngine struct {
	languages []string
	logger    *logging.Logger
}

// NewTesseractEngine builds an engine for the given tesseract language
// codes (e.g. "eng", "fra"). An empty list uses tesseract's default.
func NewTesseractEngine(languages []string, logger *logging.Logger) *TesseractEngine {
	if logger == nil {
		logger = logging.NewLogger("ocr")
	}
	return &TesseractEngine{languages: languages, logger: logger}
}

// Acquire runs tesseract over the region image. Fast mode downscales the
// image first; full mode runs at native resolution. Quality is the mean
// word confidence reported by tesseract, 0-100.
func (t *TesseractEngine) Acquire(ctx context.Context, img image.Image, lang string, mode detect.AcquireMode) (string, float64) {
	if err := ctx.Err(); err != nil {
		return "", 0
	}

	psm := gosseract.PSM_AUTO
	if mode == detect.AcquireFast {
		img = imaging.ResizeToFit(img, fastMaxEdge, fastMaxEdge)
		// A cropped card region is a single text block; skipping page
		// segmentation saves most of the fast-pass time.
		psm = gosseract.PSM_SINGLE_BLOCK
	}

	data, err := encodePNG(img)
	if err != nil {
		t.logger.Warn("failed to encode region image", "error", err)
		return "", 0
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		t.logger.Warn("failed to set image", "error", err)
		return "", 0
	}
	if err := client.SetPageSegMode(psm); err != nil {
		t.logger.Warn("failed to set page segmentation mode", "error", err)
		return "", 0
	}
	if langs := t.resolveLanguages(lang); len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			t.logger.Warn("failed to set languages", "error", err)
			return "", 0
		}
	}

	text, err := client.Text()
	if err != nil {
		t.logger.Warn("tesseract recognition failed", "error", err, "mode", modeName(mode))
		return "", 0
	}

	return text, wordConfidence(client)
}

// resolveLanguages puts the per-job language hint, when it maps to a known
// traineddata name, ahead of the configured defaults.
func (t *TesseractEngine) resolveLanguages(hint string) []string {
	code := TesseractCode(hint)
	if code == "" {
		return t.languages
	}
	langs := []string{code}
	for _, l := range t.languages {
		if l != code {
			langs = append(langs, l)
		}
	}
	return langs
}

// wordConfidence averages tesseract's per-word confidences. When word boxes
// are unavailable the text is still usable, so a midline quality is
// reported rather than 0.
func wordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 50
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func modeName(mode detect.AcquireMode) string {
	if mode == detect.AcquireFull {
		return "full"
	}
	return "fast"
}
