// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldPhone         = "phone"

	// Process / lifecycle fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldReason    = "reason"
	FieldAttempt   = "attempt"

	// State fields
	FieldOldState = "state_from"
	FieldNewState = "state_to"

	// Storage fields
	FieldBackend   = "backend"
	FieldFragments = "fragments"

	// HTTP fields
	FieldPath   = "path"
	FieldMethod = "method"
	FieldStatus = "status"
)

// MaskPhone keeps the last four digits of a phone number for log output.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	masked := make([]byte, len(phone))
	for i := range masked {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
