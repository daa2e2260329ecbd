// SPDX-License-Identifier: GPL-2.0-only

package screenhealth

import "github.com/efficientgo/core/errors"

// RednessROI is one named redness-sampling region, optionally tagged with a
// direction so the resulting hit_recorded event can steer which side of the
// vest feels the impact.
type RednessROI struct {
	Name      string
	Rect      NormalizedRect
	Direction string
}

type RednessDetector struct {
	MinScore   float64
	CooldownMS int
}

type HealthBarColorSampling struct {
	Filled, Empty RGB
	ToleranceL1   int
}

type HealthBarThresholdFallback struct {
	Mode     string // "brightness" | "saturation"
	MinValue float64
}

type HealthBarHitOnDecrease struct {
	MinDrop    float64
	CooldownMS int
}

type HealthBarDetector struct {
	Name             string
	Rect             NormalizedRect
	ColorSampling    *HealthBarColorSampling
	ThresholdFallback *HealthBarThresholdFallback
	HitOnDecrease    HealthBarHitOnDecrease
}

type HealthNumberPreprocess struct {
	Invert    bool
	Threshold float64
	Scale     int
}

type HealthNumberReadout struct {
	MinValue, MaxValue, StableReads int
}

type HealthNumberHitOnDecrease struct {
	MinDrop    int
	CooldownMS int
}

type HealthNumberTemplates struct {
	HammingMax    int
	Width, Height int
	Digits        map[string][]int
}

type HealthNumberDetector struct {
	Name         string
	Rect         NormalizedRect
	Digits       int
	Preprocess   HealthNumberPreprocess
	Readout      HealthNumberReadout
	HitOnDecrease HealthNumberHitOnDecrease
	Templates    *HealthNumberTemplates
}

type CaptureConfig struct {
	MonitorIndex int
	TickMS       int
}

// Profile is a parsed detector configuration, the Go equivalent of
// ScreenHealthProfile: one capture cadence plus however many redness,
// health-bar, and health-number detectors the caller configured.
type Profile struct {
	Name           string
	Capture        CaptureConfig
	RednessROIs    []RednessROI
	Redness        *RednessDetector
	HealthBars     []HealthBarDetector
	HealthNumbers  []HealthNumberDetector
}

// ParseProfile builds a Profile from the loosely-typed JSON object a
// `screenhealth_start` command carries in its params, mirroring
// ScreenHealthManager._parse_profile's schema_version-0 detector list.
func ParseProfile(data map[string]any) (Profile, error) {
	name, _ := data["name"].(string)
	if name == "" {
		name = "Unnamed Profile"
	}

	capture := CaptureConfig{MonitorIndex: 1, TickMS: 50}
	if c, ok := data["capture"].(map[string]any); ok {
		if v, ok := toInt(c["monitor_index"]); ok {
			capture.MonitorIndex = v
		}
		if v, ok := toInt(c["tick_ms"]); ok {
			capture.TickMS = v
		}
	}
	if capture.TickMS <= 0 {
		return Profile{}, errors.New("capture.tick_ms must be > 0")
	}

	detectors, _ := data["detectors"].([]any)
	if len(detectors) == 0 {
		return Profile{}, errors.New("profile.detectors must be a non-empty list")
	}

	profile := Profile{Name: name, Capture: capture}
	for _, raw := range detectors {
		d, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch d["type"] {
		case "redness_rois":
			det, rois, err := parseRednessDetector(d)
			if err != nil {
				return Profile{}, err
			}
			profile.Redness = &det
			profile.RednessROIs = rois
		case "health_bar":
			hb, err := parseHealthBar(d)
			if err != nil {
				return Profile{}, err
			}
			profile.HealthBars = append(profile.HealthBars, hb)
		case "health_number":
			hn, err := parseHealthNumber(d)
			if err != nil {
				return Profile{}, err
			}
			profile.HealthNumbers = append(profile.HealthNumbers, hn)
		}
	}

	if profile.Redness == nil && len(profile.HealthBars) == 0 && len(profile.HealthNumbers) == 0 {
		return Profile{}, errors.New("profile.detectors must include at least one supported detector")
	}
	return profile, nil
}

func parseRect(m map[string]any) (NormalizedRect, error) {
	r := NormalizedRect{
		X: toFloat(m["x"]),
		Y: toFloat(m["y"]),
		W: toFloat(m["w"]),
		H: toFloat(m["h"]),
	}
	return r, r.validate()
}

func parseRednessDetector(d map[string]any) (RednessDetector, []RednessROI, error) {
	threshold, _ := d["threshold"].(map[string]any)
	minScore := 0.35
	if threshold != nil {
		if v, ok := threshold["min_score"]; ok {
			minScore = toFloat(v)
		}
	}
	cooldown := 200
	if v, ok := toInt(d["cooldown_ms"]); ok {
		cooldown = v
	}
	if cooldown < 0 {
		return RednessDetector{}, nil, errors.New("detector.cooldown_ms must be >= 0")
	}
	if minScore < 0 || minScore > 1 {
		return RednessDetector{}, nil, errors.New("threshold.min_score must be in [0,1]")
	}

	roisRaw, _ := d["rois"].([]any)
	if len(roisRaw) == 0 {
		return RednessDetector{}, nil, errors.New("redness_rois detector must include a non-empty rois list")
	}
	rois := make([]RednessROI, 0, len(roisRaw))
	for idx, rr := range roisRaw {
		rm, ok := rr.(map[string]any)
		if !ok {
			continue
		}
		name, _ := rm["name"].(string)
		if name == "" {
			name = nthROIName(idx)
		}
		rectData, ok := rm["rect"].(map[string]any)
		if !ok {
			return RednessDetector{}, nil, errors.New("roi missing rect")
		}
		rect, err := parseRect(rectData)
		if err != nil {
			return RednessDetector{}, nil, err
		}
		direction, _ := rm["direction"].(string)
		rois = append(rois, RednessROI{Name: name, Rect: rect, Direction: direction})
	}
	return RednessDetector{MinScore: minScore, CooldownMS: cooldown}, rois, nil
}

func nthROIName(idx int) string {
	const digits = "0123456789"
	if idx < 10 {
		return "roi_" + string(digits[idx])
	}
	return "roi_n"
}

func parseHealthBar(d map[string]any) (HealthBarDetector, error) {
	name, _ := d["name"].(string)
	if name == "" {
		name = "health_bar"
	}
	roi, ok := d["roi"].(map[string]any)
	if !ok {
		return HealthBarDetector{}, errors.New("health_bar.roi is required")
	}
	rect, err := parseRect(roi)
	if err != nil {
		return HealthBarDetector{}, err
	}

	var colorSampling *HealthBarColorSampling
	if cs, ok := d["color_sampling"].(map[string]any); ok {
		filledArr, _ := cs["filled_rgb"].([]any)
		emptyArr, _ := cs["empty_rgb"].([]any)
		if len(filledArr) == 3 && len(emptyArr) == 3 {
			tol := 120
			if v, ok := toInt(cs["tolerance_l1"]); ok {
				tol = v
			}
			colorSampling = &HealthBarColorSampling{
				Filled:      rgbFromAny(filledArr),
				Empty:       rgbFromAny(emptyArr),
				ToleranceL1: tol,
			}
		}
	}

	var fallback *HealthBarThresholdFallback
	if tf, ok := d["threshold_fallback"].(map[string]any); ok {
		mode, _ := tf["mode"].(string)
		if mode == "" {
			mode = "brightness"
		}
		minValue := 0.5
		if v, ok := tf["min"]; ok {
			minValue = toFloat(v)
		}
		fallback = &HealthBarThresholdFallback{Mode: mode, MinValue: minValue}
	}

	hod, ok := d["hit_on_decrease"].(map[string]any)
	if !ok {
		return HealthBarDetector{}, errors.New("health_bar.hit_on_decrease is required")
	}
	minDrop := 0.02
	if v, ok := hod["min_drop"]; ok {
		minDrop = toFloat(v)
	}
	cooldown := 150
	if v, ok := toInt(hod["cooldown_ms"]); ok {
		cooldown = v
	}

	return HealthBarDetector{
		Name:              name,
		Rect:              rect,
		ColorSampling:     colorSampling,
		ThresholdFallback: fallback,
		HitOnDecrease:     HealthBarHitOnDecrease{MinDrop: minDrop, CooldownMS: cooldown},
	}, nil
}

func parseHealthNumber(d map[string]any) (HealthNumberDetector, error) {
	name, _ := d["name"].(string)
	if name == "" {
		name = "health_number"
	}
	roi, ok := d["roi"].(map[string]any)
	if !ok {
		return HealthNumberDetector{}, errors.New("health_number.roi is required")
	}
	rect, err := parseRect(roi)
	if err != nil {
		return HealthNumberDetector{}, err
	}
	digits, _ := toInt(d["digits"])
	if digits < 1 {
		return HealthNumberDetector{}, errors.New("health_number.digits must be >= 1")
	}

	pp, ok := d["preprocess"].(map[string]any)
	if !ok {
		return HealthNumberDetector{}, errors.New("health_number.preprocess is required")
	}
	invert, _ := pp["invert"].(bool)
	threshold := 0.6
	if v, ok := pp["threshold"]; ok {
		threshold = toFloat(v)
	}
	scale := 1
	if v, ok := toInt(pp["scale"]); ok {
		scale = v
	}

	ro, ok := d["readout"].(map[string]any)
	if !ok {
		return HealthNumberDetector{}, errors.New("health_number.readout is required")
	}
	minV, maxV, stable := 0, 999, 1
	if v, ok := toInt(ro["min"]); ok {
		minV = v
	}
	if v, ok := toInt(ro["max"]); ok {
		maxV = v
	}
	if v, ok := toInt(ro["stable_reads"]); ok {
		stable = v
	}

	hod, ok := d["hit_on_decrease"].(map[string]any)
	if !ok {
		return HealthNumberDetector{}, errors.New("health_number.hit_on_decrease is required")
	}
	minDrop, cooldown := 1, 150
	if v, ok := toInt(hod["min_drop"]); ok {
		minDrop = v
	}
	if v, ok := toInt(hod["cooldown_ms"]); ok {
		cooldown = v
	}

	var templates *HealthNumberTemplates
	if t, ok := d["templates"].(map[string]any); ok {
		tw, _ := toInt(t["width"])
		th, _ := toInt(t["height"])
		hammingMax := 120
		if v, ok := toInt(t["hamming_max"]); ok {
			hammingMax = v
		}
		digitsMap, _ := t["digits"].(map[string]any)
		parsed := map[string][]int{}
		if digitsMap != nil && tw > 0 && th > 0 {
			expected := tw * th
			for k, v := range digitsMap {
				bits := bitsFromAny(v, expected)
				if bits != nil {
					parsed[k] = bits
				}
			}
		}
		if len(parsed) > 0 {
			templates = &HealthNumberTemplates{HammingMax: hammingMax, Width: tw, Height: th, Digits: parsed}
		}
	}

	return HealthNumberDetector{
		Name:          name,
		Rect:          rect,
		Digits:        digits,
		Preprocess:    HealthNumberPreprocess{Invert: invert, Threshold: threshold, Scale: scale},
		Readout:       HealthNumberReadout{MinValue: minV, MaxValue: maxV, StableReads: stable},
		HitOnDecrease: HealthNumberHitOnDecrease{MinDrop: minDrop, CooldownMS: cooldown},
		Templates:     templates,
	}, nil
}

func rgbFromAny(arr []any) RGB {
	v, _ := toInt(arr[0])
	g, _ := toInt(arr[1])
	b, _ := toInt(arr[2])
	return RGB{R: v, G: g, B: b}
}

func bitsFromAny(v any, expected int) []int {
	switch t := v.(type) {
	case string:
		if len(t) != expected {
			return nil
		}
		out := make([]int, expected)
		for i, ch := range t {
			if ch == '1' {
				out[i] = 1
			}
		}
		return out
	case []any:
		if len(t) != expected {
			return nil
		}
		out := make([]int, expected)
		for i, x := range t {
			n, _ := toInt(x)
			if n != 0 {
				out[i] = 1
			}
		}
		return out
	default:
		return nil
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
