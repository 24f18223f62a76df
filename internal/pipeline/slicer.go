package pipeline

// Slicer produces print metrics for a STEP file by driving the slicer
// console. Like the exporter, implementations run one file at a time.
type Slicer interface {
	// Slice runs the slicer for the given STEP file and returns the extracted
	// metrics. The returned metrics are not yet finalized: the service owns
	// price calculation and stats file layout.
	Slice(stepPath string) (*SliceMetrics, error)

	// ValidateSetup verifies the slicer binary and profile are available.
	ValidateSetup() error
}
