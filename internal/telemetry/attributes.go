// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPRequestIDKey  = "http.request_id"

	PairingSessionIDKey = "pairing.session_id"
	PairingOutcomeKey   = "pairing.outcome"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes describes a handled request.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PairingAttributes describes the result of one pairing attempt.
// An empty sessionID is omitted.
func PairingAttributes(sessionID, outcome string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(PairingOutcomeKey, outcome),
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(PairingSessionIDKey, sessionID))
	}
	return attrs
}

// ErrorAttributes marks a span as failed with a classified type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
