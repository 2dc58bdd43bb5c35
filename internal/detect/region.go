/**
 * Region geometry
 *
 * A Region is an axis-aligned box in page pixel coordinates. All geometry
 * used by the detector (area ratios, aspect, padding, IoU) lives here so the
 * detection steps stay readable.
 */

package detect

import "fmt"

// Region is an axis-aligned rectangle [X, X+W) x [Y, Y+H) on the page image.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FullPage returns a region covering the whole page image.
func FullPage(width, height int) Region {
	return Region{X: 0, Y: 0, W: width, H: height}
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// Area returns the region area in pixels.
func (r Region) Area() int {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// AreaFraction returns the region area as a fraction of the page area.
func (r Region) AreaFraction(pageW, pageH int) float64 {
	page := pageW * pageH
	if page <= 0 {
		return 0
	}
	return float64(r.Area()) / float64(page)
}

// Aspect returns width/height of the longer over the shorter edge, so a
// rotated card reports the same aspect as an upright one.
func (r Region) Aspect() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	long, short := float64(r.W), float64(r.H)
	if short > long {
		long, short = short, long
	}
	return long / short
}

// Pad grows the region by fraction on every edge and clamps the result to
// the page bounds. A padded region never extends past the image.
func (r Region) Pad(fraction float64, pageW, pageH int) Region {
	dx := int(float64(r.W) * fraction)
	dy := int(float64(r.H) * fraction)
	x0 := r.X - dx
	y0 := r.Y - dy
	x1 := r.X + r.W + dx
	y1 := r.Y + r.H + dy
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > pageW {
		x1 = pageW
	}
	if y1 > pageH {
		y1 = pageH
	}
	return Region{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// IoU returns intersection-over-union with another region, 0 when disjoint.
func (r Region) IoU(o Region) float64 {
	ix0 := max(r.X, o.X)
	iy0 := max(r.Y, o.Y)
	ix1 := min(r.X+r.W, o.X+o.W)
	iy1 := min(r.Y+r.H, o.Y+o.H)
	if ix1 <= ix0 || iy1 <= iy0 {
		return 0
	}
	inter := (ix1 - ix0) * (iy1 - iy0)
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
