package detect

import (
	"image"
	"image/color"
	"testing"
)

// cardPage draws dark card-shaped rectangles on a white page.
func cardPage(w, h int, cards ...image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 245})
		}
	}
	for _, c := range cards {
		for y := c.Min.Y; y < c.Max.Y; y++ {
			for x := c.Min.X; x < c.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	return img
}

func TestDetectBlankPageFallsBackToFullPage(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	page := cardPage(200, 300)

	regions := d.Detect(page)

	if len(regions) != 1 {
		t.Fatalf("expected 1 fallback region, got %d", len(regions))
	}
	if regions[0] != FullPage(200, 300) {
		t.Errorf("expected full-page region, got %s", regions[0])
	}
}

func TestDetectSingleCard(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	card := image.Rect(100, 100, 500, 350) // 400x250, aspect 1.6, 12.5% of page
	page := cardPage(1000, 800, card)

	regions := d.Detect(page)

	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d: %v", len(regions), regions)
	}
	r := regions[0]
	// The detected region must contain the card (padding only grows it).
	if r.X > card.Min.X || r.Y > card.Min.Y || r.X+r.W < card.Max.X || r.Y+r.H < card.Max.Y {
		t.Errorf("region %s does not contain card %v", r, card)
	}
}

func TestDetectTwoCards(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	left := image.Rect(50, 100, 450, 350)
	right := image.Rect(550, 100, 950, 350)
	page := cardPage(1000, 800, left, right)

	regions := d.Detect(page)

	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d: %v", len(regions), regions)
	}
	if regions[0].X >= regions[1].X {
		t.Errorf("regions not in reading order: %v", regions)
	}
}

func TestDetectRejectsWrongAspect(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	square := image.Rect(100, 100, 450, 450) // aspect 1.0, below card band
	page := cardPage(1000, 800, square)

	regions := d.Detect(page)

	if len(regions) != 1 || regions[0] != FullPage(1000, 800) {
		t.Errorf("non-card aspect should fall back to full page, got %v", regions)
	}
}

func TestDetectRejectsTinyComponent(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	speck := image.Rect(10, 10, 42, 30) // card aspect but ~0.1% of the page
	page := cardPage(1000, 800, speck)

	regions := d.Detect(page)

	if len(regions) != 1 || regions[0] != FullPage(1000, 800) {
		t.Errorf("tiny component should fall back to full page, got %v", regions)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	page := cardPage(1000, 800,
		image.Rect(50, 100, 450, 350),
		image.Rect(550, 420, 950, 670))

	first := d.Detect(page)
	second := d.Detect(page)

	if len(first) != len(second) {
		t.Fatalf("region counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("region %d differs between runs: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestDetectEmptyImage(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	regions := d.Detect(image.NewGray(image.Rect(0, 0, 0, 0)))
	if len(regions) != 1 {
		t.Fatalf("empty image should still return one region, got %d", len(regions))
	}
}
