package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldRunID identifies one orchestrator run
	FieldRunID = "run_id"

	// FieldJobID is the submission index of a fetch job within its run
	FieldJobID = "job_id"

	// FieldDataset is the catalog identifier of the dataset being processed
	FieldDataset = "dataset"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the portal or document URL
	FieldSource = "source"
)

// Metric fields, used for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
