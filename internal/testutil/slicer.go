package testutil

import (
	"partpipe/internal/pipeline"
)

// FakeSlicer returns canned metrics for every STEP file.
type FakeSlicer struct {
	// Metrics overrides the returned metrics per STEP path.
	Metrics map[string]*pipeline.SliceMetrics

	// FailPaths maps STEP paths to injected failures.
	FailPaths map[string]error

	// ValidateErr is returned by ValidateSetup.
	ValidateErr error

	// Sliced records the STEP path of every Slice call, in order.
	Sliced []string
}

func NewFakeSlicer() *FakeSlicer {
	return &FakeSlicer{
		Metrics:   make(map[string]*pipeline.SliceMetrics),
		FailPaths: make(map[string]error),
	}
}

func (s *FakeSlicer) Slice(stepPath string) (*pipeline.SliceMetrics, error) {
	s.Sliced = append(s.Sliced, stepPath)

	if err := s.FailPaths[stepPath]; err != nil {
		return nil, err
	}
	if m, ok := s.Metrics[stepPath]; ok {
		cp := *m
		return &cp, nil
	}
	return &pipeline.SliceMetrics{
		DimensionsMM:   "10.00 x 20.00 x 30.00",
		ObjectWeightG:  22.5,
		SupportWeightG: 7.5,
		TotalWeightG:   30.0,
		PrintTime:      "1h 5m",
	}, nil
}

func (s *FakeSlicer) ValidateSetup() error { return s.ValidateErr }

var _ pipeline.Slicer = (*FakeSlicer)(nil)
