package logstore

import (
	"time"
)

// DateLayout is the wire format for log dates, both in the API and in CSV imports.
const DateLayout = "2006-01-02"

// Observation is a single daily log entry: the morning weigh-in plus
// whatever nutrition data was recorded for that day. Weight is the only
// mandatory measurement, everything else is optional.
type Observation struct {
	ID         int       `json:"id"`
	LogDate    time.Time `json:"logDate"`
	WeightKg   float64   `json:"weightKg"`
	Calories   *float64  `json:"calories,omitempty"`
	ProteinG   *float64  `json:"proteinG,omitempty"`
	FatG       *float64  `json:"fatG,omitempty"`
	CarbsG     *float64  `json:"carbsG,omitempty"`
	BodyFatPct *float64  `json:"bodyFatPct,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FoodItem is a food master record; macros are per single serving.
type FoodItem struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"proteinG"`
	FatG     float64 `json:"fatG"`
	CarbsG   float64 `json:"carbsG"`
}

// Menu is a named recipe: food item name -> number of servings.
type Menu struct {
	ID        int                `json:"id"`
	Name      string             `json:"name"`
	Recipe    map[string]float64 `json:"recipe"`
	CreatedAt time.Time          `json:"createdAt"`
}

// CartItem is one line of a meal being composed from the food master.
type CartItem struct {
	Name     string  `json:"name"`
	Servings float64 `json:"servings"`
}

// CartTotal is the summed nutrition of a composed meal.
type CartTotal struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"proteinG"`
	FatG     float64 `json:"fatG"`
	CarbsG   float64 `json:"carbsG"`
}

// Settings is the per-user goal configuration, stored as key/value rows.
type Settings struct {
	TargetDate            time.Time `json:"targetDate"`
	Phase                 string    `json:"phase"`
	TargetWeightKg        float64   `json:"targetWeightKg"`
	MonthlyTargetWeightKg float64   `json:"monthlyTargetWeightKg"`
}

// settings row keys
const (
	SettingKeyTargetDate    = "target_date"
	SettingKeyPhase         = "phase"
	SettingKeyTargetWeight  = "target_weight"
	SettingKeyMonthlyTarget = "monthly_target"
)

// DefaultSettings are used for any settings row that is missing.
func DefaultSettings() Settings {
	targetDate, _ := time.Parse(DateLayout, "2026-05-30")
	return Settings{
		TargetDate:            targetDate,
		Phase:                 "Cut",
		TargetWeightKg:        58.5,
		MonthlyTargetWeightKg: 68.0,
	}
}
