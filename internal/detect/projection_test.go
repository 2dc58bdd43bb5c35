package detect

import (
	"image"
	"image/color"
	"testing"
)

// binImage builds an inverted-binary image with ink (255) inside the given
// rectangles.
func binImage(w, h int, ink ...image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for _, r := range ink {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestSplitSideBySideHorizontal(t *testing.T) {
	// One double-wide region holding two ink blocks with a clear gap.
	region := Region{X: 0, Y: 0, W: 900, H: 250}
	bin := binImage(900, 250,
		image.Rect(0, 0, 400, 250),
		image.Rect(500, 0, 900, 250))

	halves := splitSideBySide(bin, region)

	if len(halves) != 2 {
		t.Fatalf("expected 2 halves, got %d", len(halves))
	}
	cut := halves[0].W
	if cut < 400 || cut > 500 {
		t.Errorf("cut at %d, expected inside the gap [400,500]", cut)
	}
	if halves[0].W+halves[1].W != region.W {
		t.Errorf("halves do not cover the region: %d + %d != %d", halves[0].W, halves[1].W, region.W)
	}
}

func TestSplitSideBySideVertical(t *testing.T) {
	region := Region{X: 0, Y: 0, W: 250, H: 900}
	bin := binImage(250, 900,
		image.Rect(0, 0, 250, 400),
		image.Rect(0, 500, 250, 900))

	halves := splitSideBySide(bin, region)

	if len(halves) != 2 {
		t.Fatalf("expected 2 halves, got %d", len(halves))
	}
	if halves[0].H+halves[1].H != region.H {
		t.Errorf("halves do not cover the region vertically")
	}
}

func TestSplitSideBySideNoValley(t *testing.T) {
	// Solid ink block: no gap, no split.
	region := Region{X: 0, Y: 0, W: 900, H: 250}
	bin := binImage(900, 250, image.Rect(0, 0, 900, 250))

	halves := splitSideBySide(bin, region)

	if len(halves) != 1 {
		t.Errorf("solid region must not split, got %d parts", len(halves))
	}
}

func TestSplitSideBySideNarrowGapIgnored(t *testing.T) {
	// Gap of 10 columns on a 900-wide region is ~1.1%, below the minimum.
	region := Region{X: 0, Y: 0, W: 900, H: 250}
	bin := binImage(900, 250,
		image.Rect(0, 0, 445, 250),
		image.Rect(455, 0, 900, 250))

	halves := splitSideBySide(bin, region)

	if len(halves) != 1 {
		t.Errorf("narrow gap must not split, got %d parts", len(halves))
	}
}

func TestWidestValleyIgnoresEdgeRuns(t *testing.T) {
	// Empty bins only at the edges do not count as a separation.
	profile := make([]int, 100)
	for i := 20; i < 80; i++ {
		profile[i] = 5
	}
	if _, ok := widestValley(profile); ok {
		t.Error("edge-touching empty runs must not produce a cut")
	}
}
