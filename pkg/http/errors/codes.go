package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeMissingField    = "missing_field"
	ErrCodeInvalidCount    = "invalid_count"
	ErrCodeInvalidChoice   = "invalid_submission"
	ErrCodeLoadFailed      = "load_failed"
	ErrCodePayloadTooLarge = "payload_too_large"

	// Resource errors
	ErrCodeUnknownDataset = "unknown_dataset"

	// Session state errors
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeNoPool            = "no_pool"
	ErrCodeNotFinished       = "not_finished"
	ErrCodeSessionBusy       = "session_busy"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeServiceClosed      = "service_closed"
)
