// SPDX-License-Identifier: GPL-2.0-only

package vest

// EffectCategory groups effects for UI presentation.
type EffectCategory string

const (
	CategoryWeapons EffectCategory = "weapons"
	CategoryImpacts EffectCategory = "impacts"
	CategoryMelee   EffectCategory = "melee"
	CategoryDriving EffectCategory = "driving"
	CategorySpecial EffectCategory = "special"
)

// EffectStep is one beat of a predefined effect: activate cells at speed,
// hold for duration_ms, then pause delay_ms before the next step.
type EffectStep struct {
	Cells      []int `mapstructure:"cells"`
	Speed      int   `mapstructure:"speed"`
	DurationMs int   `mapstructure:"duration_ms"`
	DelayMs    int   `mapstructure:"delay_ms"`
}

// Effect is static data, loaded once at boot and never mutated at runtime.
type Effect struct {
	Name        string         `mapstructure:"name"`
	DisplayName string         `mapstructure:"display_name"`
	Category    EffectCategory `mapstructure:"category"`
	Steps       []EffectStep   `mapstructure:"steps"`
}

// DefaultEffects recreates the handful of predefined patterns the original
// vest SDK shipped, expressed with the cell-layout constants above.
func DefaultEffects() []Effect {
	return []Effect{
		{
			Name:        "heartbeat",
			DisplayName: "Heartbeat",
			Category:    CategorySpecial,
			Steps: []EffectStep{
				{Cells: LowerCells, Speed: 4, DurationMs: 150, DelayMs: 100},
				{Cells: LowerCells, Speed: 6, DurationMs: 150, DelayMs: 400},
			},
		},
		{
			Name:        "machinegun_front",
			DisplayName: "Machine Gun (Front)",
			Category:    CategoryWeapons,
			Steps: []EffectStep{
				{Cells: FrontCells, Speed: 8, DurationMs: 60, DelayMs: 40},
				{Cells: FrontCells, Speed: 8, DurationMs: 60, DelayMs: 40},
				{Cells: FrontCells, Speed: 8, DurationMs: 60, DelayMs: 40},
			},
		},
		{
			Name:        "explosion",
			DisplayName: "Explosion",
			Category:    CategoryImpacts,
			Steps: []EffectStep{
				{Cells: AllCells, Speed: 10, DurationMs: 300, DelayMs: 0},
				{Cells: AllCells, Speed: 4, DurationMs: 200, DelayMs: 0},
			},
		},
		{
			Name:        "melee_hit",
			DisplayName: "Melee Hit",
			Category:    CategoryMelee,
			Steps: []EffectStep{
				{Cells: []int{int(FrontUpperLeft), int(FrontUpperRight)}, Speed: 9, DurationMs: 120, DelayMs: 0},
			},
		},
		{
			Name:        "engine_rumble",
			DisplayName: "Engine Rumble",
			Category:    CategoryDriving,
			Steps: []EffectStep{
				{Cells: LowerCells, Speed: 3, DurationMs: 500, DelayMs: 0},
			},
		},
	}
}
