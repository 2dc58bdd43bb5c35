/**
 * Side-by-side split
 *
 * A component roughly twice the expected card aspect usually holds two
 * cards scanned next to each other. The split looks for an empty valley in
 * the ink projection along the long axis and cuts there. When no convincing
 * valley exists the component is returned unsplit.
 */

package detect

import "image"

// minValleyFraction is the smallest gap, as a fraction of the long edge,
// accepted as a genuine separation between two cards.
const minValleyFraction = 0.03

// splitSideBySide tries to cut a double-width (or double-height) component
// into two card-sized regions using the ink projection of the closed binary
// image. Returns one or two regions.
func splitSideBySide(bin *image.Gray, r Region) []Region {
	horizontal := r.W >= r.H
	length := r.W
	if !horizontal {
		length = r.H
	}
	if length < 2 {
		return []Region{r}
	}

	profile := make([]int, length)
	for y := r.Y; y < r.Y+r.H; y++ {
		if y < 0 || y >= bin.Bounds().Dy() {
			continue
		}
		row := bin.Pix[y*bin.Stride:]
		for x := r.X; x < r.X+r.W; x++ {
			if x < 0 || x >= bin.Bounds().Dx() {
				continue
			}
			if row[x] != 0 {
				if horizontal {
					profile[x-r.X]++
				} else {
					profile[y-r.Y]++
				}
			}
		}
	}

	cut, ok := widestValley(profile)
	if !ok {
		return []Region{r}
	}

	if horizontal {
		left := Region{X: r.X, Y: r.Y, W: cut, H: r.H}
		right := Region{X: r.X + cut, Y: r.Y, W: r.W - cut, H: r.H}
		return []Region{left, right}
	}
	top := Region{X: r.X, Y: r.Y, W: r.W, H: cut}
	bottom := Region{X: r.X, Y: r.Y + cut, W: r.W, H: r.H - cut}
	return []Region{top, bottom}
}

// widestValley finds the longest run of empty projection bins that does not
// touch either edge and spans at least minValleyFraction of the profile.
// Returns the run's center index.
func widestValley(profile []int) (int, bool) {
	minRun := int(float64(len(profile)) * minValleyFraction)
	if minRun < 1 {
		minRun = 1
	}

	bestStart, bestLen := -1, 0
	runStart := -1
	for i, v := range profile {
		if v == 0 {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if l := i - runStart; runStart > 0 && l > bestLen {
				bestStart, bestLen = runStart, l
			}
			runStart = -1
		}
	}
	// A trailing empty run touches the edge and is not a separation.

	if bestLen < minRun {
		return 0, false
	}
	return bestStart + bestLen/2, true
}
