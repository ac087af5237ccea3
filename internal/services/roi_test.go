package services

import "testing"

func floatPtr(v float64) *float64 { return &v }

func TestComputeROI(t *testing.T) {
	roi := ComputeROI(floatPtr(500), 40, 1000)
	if roi.CostPerHour == nil || *roi.CostPerHour != 12.5 {
		t.Fatalf("cost per hour: %+v", roi.CostPerHour)
	}
	if roi.ImpressionsPerHour == nil || *roi.ImpressionsPerHour != 25 {
		t.Fatalf("impressions per hour: %+v", roi.ImpressionsPerHour)
	}
}

func TestComputeROIRounds(t *testing.T) {
	roi := ComputeROI(floatPtr(100), 3, 10)
	if *roi.CostPerHour != 33.33 || *roi.ImpressionsPerHour != 3.33 {
		t.Fatalf("unexpected rounding %v %v", *roi.CostPerHour, *roi.ImpressionsPerHour)
	}
}

func TestComputeROIUndefined(t *testing.T) {
	cases := []struct {
		name   string
		amount *float64
		hours  float64
		views  int64
	}{
		{"no hours", floatPtr(100), 0, 10},
		{"negative hours", floatPtr(100), -2, 10},
	}
	for _, tc := range cases {
		roi := ComputeROI(tc.amount, tc.hours, tc.views)
		if roi.CostPerHour != nil || roi.ImpressionsPerHour != nil {
			t.Fatalf("%s: expected nil ratios, got %+v", tc.name, roi)
		}
	}
	inKind := ComputeROI(nil, 10, 0)
	if inKind.CostPerHour != nil || inKind.ImpressionsPerHour != nil {
		t.Fatalf("in-kind with no views: %+v", inKind)
	}
}
