package pipeline

import "math"

// SliceMetrics holds the print metrics extracted from a slicing pass.
// The JSON field names match the stats files consumed by the BOM stage,
// so regenerating stats stays compatible with previously committed files.
type SliceMetrics struct {
	PartName        string  `json:"part_name"`
	DimensionsMM    string  `json:"dimensions_mm"`
	ObjectWeightG   float64 `json:"object_weight_g"`
	SupportWeightG  float64 `json:"supports_weight_g"`
	TotalWeightG    float64 `json:"total_weight_g"`
	PrintTime       string  `json:"print_time"`
	Price           float64 `json:"price_egp"`
	PrintSettings   string  `json:"print_settings"`
	ObjectWeightKG  float64 `json:"object_weight_kg"`
	SupportWeightKG float64 `json:"supports_weight_kg"`
	TotalWeightKG   float64 `json:"total_weight_kg"`
}

// Finalize derives the kg fields and the price from the gram weights.
// costPerKG is the configured filament cost; a non-positive cost yields a
// zero price.
func (m *SliceMetrics) Finalize(costPerKG float64) {
	m.ObjectWeightKG = m.ObjectWeightG / 1000.0
	m.SupportWeightKG = m.SupportWeightG / 1000.0
	m.TotalWeightKG = m.TotalWeightG / 1000.0

	if costPerKG > 0 {
		m.Price = roundTo(m.TotalWeightKG*costPerKG, 1)
	} else {
		m.Price = 0
	}
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
