package imaging

import (
	"image"
	"image/color"
	"testing"
)

func grayImage(w, h int, fill uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return img
}

func TestOtsuThresholdBimodal(t *testing.T) {
	img := grayImage(100, 100, 240)
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			img.SetGray(x, y, color.Gray{Y: 20})
		}
	}

	threshold := OtsuThreshold(img)
	if threshold < 20 || threshold >= 240 {
		t.Errorf("threshold %d not between the two modes", threshold)
	}
}

func TestOtsuBinarizeInvertsInk(t *testing.T) {
	img := grayImage(10, 10, 240)
	img.SetGray(5, 5, color.Gray{Y: 10})

	bin := OtsuBinarize(img)

	if bin.GrayAt(5, 5).Y != 255 {
		t.Error("dark pixel should become foreground (255)")
	}
	if bin.GrayAt(0, 0).Y != 0 {
		t.Error("light pixel should become background (0)")
	}
}

func TestInkRatio(t *testing.T) {
	// Half the image dark: ratio should be close to 0.5.
	img := grayImage(100, 100, 240)
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			img.SetGray(x, y, color.Gray{Y: 20})
		}
	}
	ratio := InkRatio(img)
	if ratio < 0.45 || ratio > 0.55 {
		t.Errorf("ink ratio = %f, want ~0.5", ratio)
	}
}

func TestCloseBridgesSmallGaps(t *testing.T) {
	// Two ink columns 3px apart merge after a close with a 5px kernel.
	bin := image.NewGray(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		bin.SetGray(5, y, color.Gray{Y: 255})
		bin.SetGray(9, y, color.Gray{Y: 255})
	}

	closed := Close(bin, 5)
	boxes := ComponentBoxes(closed)

	if len(boxes) != 1 {
		t.Errorf("expected gap bridged into 1 component, got %d", len(boxes))
	}
}

func TestComponentBoxes(t *testing.T) {
	bin := image.NewGray(image.Rect(0, 0, 100, 100))
	blockA := image.Rect(10, 10, 30, 25)
	blockB := image.Rect(60, 60, 90, 80)
	for _, b := range []image.Rectangle{blockA, blockB} {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				bin.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	boxes := ComponentBoxes(bin)
	if len(boxes) != 2 {
		t.Fatalf("expected 2 components, got %d", len(boxes))
	}
	// Largest first.
	if boxes[0] != blockB {
		t.Errorf("expected largest component first, got %v", boxes[0])
	}
	if boxes[1] != blockA {
		t.Errorf("expected %v, got %v", blockA, boxes[1])
	}
}

func TestComponentBoxesEmpty(t *testing.T) {
	bin := image.NewGray(image.Rect(0, 0, 50, 50))
	if boxes := ComponentBoxes(bin); len(boxes) != 0 {
		t.Errorf("expected no components, got %d", len(boxes))
	}
}

func TestResizeToFit(t *testing.T) {
	tests := []struct {
		name           string
		w, h           int
		wantW, wantH   int
	}{
		{"no resize needed", 400, 300, 400, 300},
		{"landscape downscale", 1600, 800, 800, 400},
		{"portrait downscale", 800, 1600, 400, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			out := ResizeToFit(img, 800, 800)
			b := out.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("resized to %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCrop(t *testing.T) {
	img := grayImage(100, 100, 200)
	img.SetGray(55, 55, color.Gray{Y: 10})

	crop := Crop(img, image.Rect(50, 50, 70, 70))

	b := crop.Bounds()
	if b.Dx() != 20 || b.Dy() != 20 {
		t.Fatalf("crop size %dx%d, want 20x20", b.Dx(), b.Dy())
	}
	r, _, _, _ := crop.At(5, 5).RGBA()
	if r>>8 > 50 {
		t.Error("expected the dark pixel at the cropped offset")
	}
}
