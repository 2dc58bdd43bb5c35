/**
 * Annotated scan reports
 *
 * Renders detection output back onto the page image: one colored box per
 * region with a type/side/confidence caption. Written as PNG next to other
 * job artifacts so operators can eyeball what the detector saw.
 */

package report

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/cardsight/idscan-worker/internal/detect"
	"github.com/cardsight/idscan-worker/internal/imaging"
)

const boxLineWidth = 3

var (
	frontColor   = color.RGBA{R: 0, G: 180, B: 0, A: 255}
	backColor    = color.RGBA{R: 0, G: 90, B: 220, A: 255}
	unknownColor = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	captionBG    = color.RGBA{R: 0, G: 0, B: 0, A: 200}
	captionFG    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotate returns a copy of the page image with each classified region
// outlined and captioned.
func Annotate(page image.Image, result detect.PageResult) image.Image {
	bounds := page.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), page, bounds.Min, draw.Src)

	for _, rr := range result.Regions {
		c := sideColor(rr.Classification.Side)
		rect := image.Rect(rr.Region.X, rr.Region.Y, rr.Region.X+rr.Region.W, rr.Region.Y+rr.Region.H)
		imaging.FillRect(out, rect, c, boxLineWidth)

		caption := fmt.Sprintf("%s/%s %.0f%%",
			rr.Classification.Type, rr.Classification.Side, rr.Classification.AdjustedConfidence)
		drawCaption(out, rect.Min.X, rect.Min.Y, caption)
	}
	return out
}

// WritePage annotates the page and writes it as PNG under dir. The file is
// named after the job and page index.
func WritePage(dir, jobID string, page image.Image, result detect.PageResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-page-%d.png", jobID, result.PageIndex))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, Annotate(page, result)); err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return path, nil
}

func sideColor(side detect.DocumentSide) color.RGBA {
	switch side {
	case detect.SideFront:
		return frontColor
	case detect.SideBack:
		return backColor
	default:
		return unknownColor
	}
}

// drawCaption paints a small filled strip just above the box corner with
// the caption text, clamped inside the image.
func drawCaption(dst *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 8
	height := face.Metrics().Height.Ceil() + 4

	top := y - height
	if top < 0 {
		top = y
	}
	strip := image.Rect(x, top, x+width, top+height)
	strip = strip.Intersect(dst.Bounds())
	if strip.Empty() {
		return
	}
	draw.Draw(dst, strip, image.NewUniform(captionBG), image.Point{}, draw.Over)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(captionFG),
		Face: face,
		Dot:  fixed.P(x+4, top+height-4),
	}
	d.DrawString(text)
}
