// SPDX-License-Identifier: GPL-2.0-only

// Package screenhealth is the reference screen-watcher integration from
// spec.md §4.9, grounded on the redness-ROI / health-bar / health-number OCR
// detector pipeline: a profile describes regions of a captured frame to
// sample, and each tick the detectors turn pixel data into haptic hits and
// broadcastable game events.
package screenhealth

import "github.com/efficientgo/core/errors"

// NormalizedRect is a rectangle in 0-1 normalized frame coordinates.
type NormalizedRect struct {
	X, Y, W, H float64
}

func (r NormalizedRect) validate() error {
	if r.W <= 0 || r.H <= 0 {
		return errors.New("rect.w and rect.h must be > 0")
	}
	if r.X < 0 || r.Y < 0 || r.X > 1 || r.Y > 1 {
		return errors.New("rect.x and rect.y must be in [0, 1]")
	}
	return nil
}

// pixelRect converts a normalized rect to a pixel rect (left, top, width,
// height), clamped so the result fits entirely within the frame.
func pixelRect(r NormalizedRect, frameW, frameH int) (left, top, width, height int, err error) {
	if frameW <= 0 || frameH <= 0 {
		return 0, 0, 0, 0, errors.New("frame_w and frame_h must be > 0")
	}
	if err := r.validate(); err != nil {
		return 0, 0, 0, 0, err
	}

	left = round(r.X * float64(frameW))
	top = round(r.Y * float64(frameH))
	width = round(r.W * float64(frameW))
	height = round(r.H * float64(frameH))

	width = maxInt(1, width)
	height = maxInt(1, height)

	left = maxInt(0, minInt(left, frameW-1))
	top = maxInt(0, minInt(top, frameH-1))

	width = maxInt(1, minInt(width, frameW-left))
	height = maxInt(1, minInt(height, frameH-top))
	return left, top, width, height, nil
}

func round(f float64) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
