package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID   = "request_id"
	FieldJobID       = "job_id"
	FieldVideoID     = "video_id"
	FieldBuildID     = "build_id"
	FieldPrincipalID = "principal_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldAttempt   = "attempt"
	FieldExitCode  = "exit_code"

	// Media fields
	FieldLanguage  = "language"
	FieldRendition = "rendition"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Decision fields
	FieldDecisionReason = "decision_reason"

	// Storage fields
	FieldStorageKey = "storage_key"
	FieldPrefix     = "prefix"
	FieldPath       = "path"
)
