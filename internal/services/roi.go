package services

import "math"

type ROI struct {
	CostPerHour        *float64 `json:"costPerHour"`
	ImpressionsPerHour *float64 `json:"impressionsPerHour"`
}

// ComputeROI derives per-hour ratios for a sponsorship. A ratio is nil unless
// both its numerator and the volunteer hours are positive.
func ComputeROI(amount *float64, totalHours float64, galleryViews int64) ROI {
	var roi ROI
	if totalHours <= 0 || math.IsNaN(totalHours) || math.IsInf(totalHours, 0) {
		return roi
	}
	if amount != nil && *amount > 0 {
		value := round2(*amount / totalHours)
		roi.CostPerHour = &value
	}
	if galleryViews > 0 {
		value := round2(float64(galleryViews) / totalHours)
		roi.ImpressionsPerHour = &value
	}
	return roi
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
