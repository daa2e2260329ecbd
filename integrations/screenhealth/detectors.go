// SPDX-License-Identifier: GPL-2.0-only

package screenhealth

import "github.com/efficientgo/core/errors"

// RGB is an 8-bit-per-channel color used for health-bar fill/empty samples.
type RGB struct {
	R, G, B int
}

func (c RGB) l1(r, g, b int) int {
	d := func(a, bb int) int {
		if a > bb {
			return a - bb
		}
		return bb - a
	}
	return d(c.R, r) + d(c.G, g) + d(c.B, b)
}

// rednessScore computes the mean per-pixel red-dominance over a BGRA ROI:
// (R - max(G,B)) / 255, clipped to [0,1]. Grounded on the canonical Phase A
// redness-detector algorithm: a pixel only contributes when red visibly
// dominates, so a neutral or green/blue-tinted frame scores near zero.
func rednessScore(bgra []byte, width, height int) (float64, error) {
	expected := width*height*4
	if width <= 0 || height <= 0 {
		return 0, errors.New("width and height must be > 0")
	}
	if len(bgra) < expected {
		return 0, errors.New("bgra buffer smaller than expected for frame size")
	}

	var total float64
	count := width * height
	for i := 0; i < expected; i += 4 {
		b, g, r := int(bgra[i]), int(bgra[i+1]), int(bgra[i+2])
		m := g
		if b > m {
			m = b
		}
		d := r - m
		if d <= 0 {
			continue
		}
		total += float64(d) / 255.0
	}
	return clampFloat(total/float64(count), 0, 1), nil
}

// healthBarPercent classifies each pixel as filled/empty by L1 color
// distance to the two reference swatches, then scans columns left-to-right
// for the first column whose filled-pixel ratio drops below the threshold --
// the boundary between the bar's filled and empty portions.
func healthBarPercent(bgra []byte, width, height int, filled, empty RGB, toleranceL1 int, columnThreshold float64) (float64, error) {
	expected := width*height*4
	if width <= 0 || height <= 0 {
		return 0, errors.New("width and height must be > 0")
	}
	if len(bgra) < expected {
		return 0, errors.New("bgra buffer smaller than expected for frame size")
	}

	filledCols := make([]int, width)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b, g, r := int(bgra[i]), int(bgra[i+1]), int(bgra[i+2])
			i += 4
			df := filled.l1(r, g, b)
			if df > toleranceL1 {
				continue
			}
			de := empty.l1(r, g, b)
			if df <= de {
				filledCols[x]++
			}
		}
	}

	colMin := columnThreshold * float64(height)
	for x := 0; x < width; x++ {
		if float64(filledCols[x]) < colMin {
			return clampFloat(float64(x)/float64(width), 0, 1), nil
		}
	}
	return 1.0, nil
}

// healthBarPercentFallback estimates fill percent without known swatches,
// by brightness or saturation thresholding, for bars whose colors vary
// (e.g. gradient health bars) where exact color_sampling can't be supplied.
func healthBarPercentFallback(bgra []byte, width, height int, mode string, minValue float64) (float64, error) {
	expected := width*height*4
	if len(bgra) < expected {
		return 0, errors.New("bgra buffer smaller than expected for frame size")
	}
	filledCols := make([]int, width)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b, g, r := int(bgra[i]), int(bgra[i+1]), int(bgra[i+2])
			i += 4
			mx := r
			if g > mx {
				mx = g
			}
			if b > mx {
				mx = b
			}
			mn := r
			if g < mn {
				mn = g
			}
			if b < mn {
				mn = b
			}
			switch mode {
			case "saturation":
				if mx <= 0 {
					continue
				}
				if float64(mx-mn)/float64(mx) >= minValue {
					filledCols[x]++
				}
			default: // "brightness"
				if float64(mx)/255.0 >= minValue {
					filledCols[x]++
				}
			}
		}
	}
	colMin := int(0.5 * float64(height))
	for x := 0; x < width; x++ {
		if filledCols[x] < colMin {
			return clampFloat(float64(x)/float64(width), 0, 1), nil
		}
	}
	return 1.0, nil
}

// binarizeBitmap turns a BGRA ROI into a 0/1 row-major bitmap using integer
// luma (gray ≈ 0.299R + 0.587G + 0.114B), optionally inverted and scaled up
// by nearest-neighbor replication before thresholding -- the preprocessing
// step that makes small, blurry in-game digits match fixed-size templates.
func binarizeBitmap(bgra []byte, width, height int, threshold float64, invert bool, scale int) ([]int, int, int, error) {
	expected := width*height*4
	if width <= 0 || height <= 0 {
		return nil, 0, 0, errors.New("width and height must be > 0")
	}
	if len(bgra) < expected {
		return nil, 0, 0, errors.New("bgra buffer smaller than expected for frame size")
	}
	if scale < 1 {
		return nil, 0, 0, errors.New("scale must be >= 1")
	}

	thr := round(threshold * 255.0)
	outW, outH := width*scale, height*scale
	out := make([]int, outW*outH)

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b, g, r := int(bgra[i]), int(bgra[i+1]), int(bgra[i+2])
			i += 4
			gray := (r*299 + g*587 + b*114) / 1000
			bit := 0
			if gray >= thr {
				bit = 1
			}
			if invert {
				bit = 1 - bit
			}
			if scale == 1 {
				out[y*outW+x] = bit
				continue
			}
			oy0, ox0 := y*scale, x*scale
			for yy := 0; yy < scale; yy++ {
				row := (oy0 + yy) * outW
				for xx := 0; xx < scale; xx++ {
					out[row+ox0+xx] = bit
				}
			}
		}
	}
	return out, outW, outH, nil
}

// resizeNearest nearest-neighbor resizes a row-major 0/1 bitmap, used to
// normalize a variable-width digit slice to the fixed size of the
// reference digit templates before Hamming-distance matching.
func resizeNearest(bits []int, srcW, srcH, dstW, dstH int) []int {
	out := make([]int, dstW*dstH)
	for y := 0; y < dstH; y++ {
		sy := y * srcH / dstH
		for x := 0; x < dstW; x++ {
			sx := x * srcW / dstW
			out[y*dstW+x] = bits[sy*srcW+sx]
		}
	}
	return out
}

// hammingDistance counts differing bits between two equal-length bitmaps,
// the match metric used to pick the best-fitting digit template.
func hammingDistance(a, b []int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}
