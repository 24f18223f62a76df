package app

// PipelineOperation tracks a CLI operation that may mutate the run-history
// database. Operations are created in memory with ID=0. Only DB-mutating
// commands persist them (giving them an auto-increment ID from the database).
type PipelineOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewPipelineOperation creates a new in-memory pipeline operation.
func NewPipelineOperation(operation, parameters string) *PipelineOperation {
	return &PipelineOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *PipelineOperation) Persisted() bool {
	return op.ID != 0
}
