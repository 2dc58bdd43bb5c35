/**
 * Pixel-level helpers shared by the detector and quality collaborators
 *
 * Everything operates on *image.Gray where foreground (ink) is 255 and
 * background is 0, i.e. the inverted binary convention. Scans are documents
 * on light backgrounds, so ink is the minority class after Otsu.
 */

package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ToGray converts any image to 8-bit grayscale using the standard luminance
// weights.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// OtsuThreshold computes the Otsu threshold of a grayscale image by
// maximizing between-class variance over the 256-bin histogram.
func OtsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 128
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := gray.Pix[(y-bounds.Min.Y)*gray.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			hist[row[x]]++
		}
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var sumB, wB float64
	var best float64
	var threshold uint8
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(t)
		}
	}
	return threshold
}

// OtsuBinarize thresholds a grayscale image with Otsu's method and returns
// the inverted binary: pixels at or below the threshold (ink) become 255.
func OtsuBinarize(gray *image.Gray) *image.Gray {
	t := OtsuThreshold(gray)
	bounds := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+bounds.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+bounds.Dx()]
		for x, v := range src {
			if v <= t {
				dst[x] = 255
			}
		}
	}
	return out
}

// InkRatio returns the fraction of foreground pixels after Otsu
// binarization, a cheap proxy for how much printed content a crop carries.
func InkRatio(img image.Image) float64 {
	bin := OtsuBinarize(ToGray(img))
	bounds := bin.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}
	ink := 0
	for y := 0; y < bounds.Dy(); y++ {
		row := bin.Pix[y*bin.Stride : y*bin.Stride+bounds.Dx()]
		for _, v := range row {
			if v != 0 {
				ink++
			}
		}
	}
	return float64(ink) / float64(total)
}

// Close applies a morphological close (dilate then erode) with a square
// kernel of the given edge length. Bridges small gaps between nearby glyphs
// so a card's content forms one component.
func Close(bin *image.Gray, kernel int) *image.Gray {
	if kernel <= 1 {
		return bin
	}
	r := kernel / 2
	return erode(dilate(bin, r), r)
}

func dilate(bin *image.Gray, r int) *image.Gray {
	return sweep(bin, r, true)
}

func erode(bin *image.Gray, r int) *image.Gray {
	return sweep(bin, r, false)
}

// sweep runs a separable min/max filter of radius r. Max (set=true) is
// dilation of the 255 foreground, min is erosion.
func sweep(bin *image.Gray, r int, set bool) *image.Gray {
	bounds := bin.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	tmp := image.NewGray(image.Rect(0, 0, w, h))
	out := image.NewGray(image.Rect(0, 0, w, h))

	// Horizontal pass.
	for y := 0; y < h; y++ {
		src := bin.Pix[y*bin.Stride : y*bin.Stride+w]
		dst := tmp.Pix[y*tmp.Stride : y*tmp.Stride+w]
		for x := 0; x < w; x++ {
			v := windowValue(src, x, r, w, set)
			dst[x] = v
		}
	}
	// Vertical pass.
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			v := uint8(0)
			if !set {
				v = 255
			}
			for dy := -r; dy <= r; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					if !set {
						v = 0
					}
					continue
				}
				p := tmp.Pix[yy*tmp.Stride+x]
				if set && p > v {
					v = p
				} else if !set && p < v {
					v = p
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

func windowValue(row []uint8, x, r, w int, set bool) uint8 {
	v := uint8(0)
	if !set {
		v = 255
	}
	for dx := -r; dx <= r; dx++ {
		xx := x + dx
		if xx < 0 || xx >= w {
			if !set {
				v = 0
			}
			continue
		}
		if set && row[xx] > v {
			v = row[xx]
		} else if !set && row[xx] < v {
			v = row[xx]
		}
	}
	return v
}

// ComponentBoxes returns the bounding boxes of 8-connected foreground
// components, largest first.
func ComponentBoxes(bin *image.Gray) []image.Rectangle {
	bounds := bin.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	visited := make([]bool, w*h)
	var boxes []image.Rectangle
	var queue []image.Point

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if visited[idx] || bin.Pix[y*bin.Stride+x] == 0 {
				continue
			}
			// Flood fill one component, tracking its extent.
			minX, minY, maxX, maxY := x, y, x, y
			visited[idx] = true
			queue = append(queue[:0], image.Pt(x, y))
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				if p.X < minX {
					minX = p.X
				}
				if p.X > maxX {
					maxX = p.X
				}
				if p.Y < minY {
					minY = p.Y
				}
				if p.Y > maxY {
					maxY = p.Y
				}
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						nidx := ny*w + nx
						if visited[nidx] || bin.Pix[ny*bin.Stride+nx] == 0 {
							continue
						}
						visited[nidx] = true
						queue = append(queue, image.Pt(nx, ny))
					}
				}
			}
			boxes = append(boxes, image.Rect(minX, minY, maxX+1, maxY+1))
		}
	}

	// Largest first so downstream IoU dedup favors them naturally.
	for i := 1; i < len(boxes); i++ {
		for j := i; j > 0 && area(boxes[j]) > area(boxes[j-1]); j-- {
			boxes[j], boxes[j-1] = boxes[j-1], boxes[j]
		}
	}
	return boxes
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// Crop returns the subimage for the given rectangle as a standalone image.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min.Add(img.Bounds().Min), draw.Src)
	return out
}

// ResizeToFit scales an image down so both edges fit within maxW x maxH,
// preserving aspect. Images already within bounds are returned unchanged.
func ResizeToFit(img image.Image, maxW, maxH int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxW && h <= maxH {
		return img
	}
	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, bounds, draw.Over, nil)
	return out
}

// FillRect draws a solid rectangle outline of the given thickness, used by
// the report annotator.
func FillRect(dst draw.Image, rect image.Rectangle, c color.Color, thickness int) {
	for t := 0; t < thickness; t++ {
		r := rect.Inset(t)
		if r.Empty() {
			return
		}
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.Set(x, r.Min.Y, c)
			dst.Set(x, r.Max.Y-1, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			dst.Set(r.Min.X, y, c)
			dst.Set(r.Max.X-1, y, c)
		}
	}
}
