package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pulse/internal/event"
)

// TelemetryError represents a failure somewhere in the capture pipeline.
//
// Telemetry errors include:
//   - Configuration: mandatory setting missing or invalid (fatal at construction)
//   - Identity: the user could not be resolved (capture dropped)
//   - Metadata: team metadata lookup failed (capture continues without it)
//   - Delivery: a batch POST failed (records retried)
//   - Max retries: a record exhausted its retries (record dropped)
//   - Session: the stored session id could not be decoded (treated as absent)
//
// Only configuration errors and max-retries drops are surfaced to the host
// unconditionally; the rest reach the error sink only in debug mode.
type TelemetryError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes telemetry errors.
type ErrorCode string

const (
	// ErrCodeConfigInvalid indicates a missing or malformed setting.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// ErrCodeIdentityUnavailable indicates the identity provider failed.
	ErrCodeIdentityUnavailable ErrorCode = "IDENTITY_UNAVAILABLE"

	// ErrCodeMetadataUnavailable indicates the directory lookup failed.
	ErrCodeMetadataUnavailable ErrorCode = "METADATA_UNAVAILABLE"

	// ErrCodeDeliveryFailed indicates a batch could not be delivered.
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	// ErrCodeMaxRetriesReached indicates a record was dropped.
	ErrCodeMaxRetriesReached ErrorCode = "MAX_RETRIES_REACHED"

	// ErrCodeSessionMalformed indicates undecodable session slot content.
	ErrCodeSessionMalformed ErrorCode = "SESSION_MALFORMED"
)

// Error implements the error interface.
func (e *TelemetryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *TelemetryError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first TelemetryError in err's chain, or
// "" if there is none.
func CodeOf(err error) ErrorCode {
	var te *TelemetryError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsConfigError returns true if the error is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	return CodeOf(err) == ErrCodeConfigInvalid
}

// IsDeliveryError returns true if the error is a delivery failure.
func IsDeliveryError(err error) bool {
	return CodeOf(err) == ErrCodeDeliveryFailed
}

// IsMaxRetriesError returns true if the error reports a dropped record.
func IsMaxRetriesError(err error) bool {
	return CodeOf(err) == ErrCodeMaxRetriesReached
}

// NewConfigError creates a TelemetryError for an invalid setting.
func NewConfigError(key string, err error) *TelemetryError {
	return &TelemetryError{
		Code:    ErrCodeConfigInvalid,
		Message: fmt.Sprintf("invalid configuration %q", key),
		Err:     err,
	}
}

// NewIdentityError creates a TelemetryError for a failed identity lookup.
func NewIdentityError(err error) *TelemetryError {
	return &TelemetryError{
		Code:    ErrCodeIdentityUnavailable,
		Message: "failed to resolve user identity",
		Err:     err,
	}
}

// NewMetadataError creates a TelemetryError for a failed directory lookup.
func NewMetadataError(userRef string, err error) *TelemetryError {
	return &TelemetryError{
		Code:    ErrCodeMetadataUnavailable,
		Message: fmt.Sprintf("failed to load team metadata for %s", userRef),
		Err:     err,
	}
}

// NewDeliveryError creates a TelemetryError for a failed batch.
// status is the HTTP status code, or 0 when no response was received.
func NewDeliveryError(size, status int, err error) *TelemetryError {
	msg := fmt.Sprintf("failed to deliver batch of %d records", size)
	if status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, status)
	}
	return &TelemetryError{
		Code:    ErrCodeDeliveryFailed,
		Message: msg,
		Err:     err,
	}
}

// NewMaxRetriesError creates a TelemetryError for a dropped record. The
// message names the event so the host can tell what was lost.
func NewMaxRetriesError(r event.Record, recordKey string, attempts int) *TelemetryError {
	return &TelemetryError{
		Code: ErrCodeMaxRetriesReached,
		Message: fmt.Sprintf("max retries reached for event action=%q subject=%q timestamp=%s (record %s) after %d attempts",
			r.Event.Action, r.Event.Subject, r.Timestamp.UTC().Format(time.RFC3339Nano), recordKey, attempts),
	}
}

// NewSessionError creates a TelemetryError for undecodable session content.
func NewSessionError(err error) *TelemetryError {
	return &TelemetryError{
		Code:    ErrCodeSessionMalformed,
		Message: "stored session id is malformed",
		Err:     err,
	}
}
