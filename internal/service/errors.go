// Package service implements the reservation availability and lifecycle
// engine: the availability calculator, the basket checkout transactor, the
// lifecycle transitions, the staff checkout quota enforcer and the
// scheduled sweeper.  Services are stateless between calls; all shared
// state lives in the relational store behind repository.Store.
package service

import "fmt"

// ValidationError reports malformed input.  It is always returned before
// any transaction opens, so callers can assume storage was not touched.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictLine describes one failing basket line: how much was requested
// versus how much is still free for that model over the window.
type ConflictLine struct {
	ModelID   uint64 `json:"model_id"`
	Requested uint32 `json:"requested"`
	Free      uint32 `json:"free"`
}

// ConflictError reports a business-rule conflict: not enough free units,
// a quota exceeded during staff checkout, a blackout overlap or an
// invalid lifecycle transition.  Lines carry per-model remediation data
// so callers can render a precise message without string matching.
type ConflictError struct {
	Reason string         `json:"reason"`
	Lines  []ConflictLine `json:"lines,omitempty"`
}

func (e *ConflictError) Error() string {
	if len(e.Lines) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (%d conflicting line(s))", e.Reason, len(e.Lines))
}

// CapacityUnavailableError reports that the external asset system could
// not answer a capacity question.  It is retryable and must never be
// conflated with a genuine capacity conflict.
type CapacityUnavailableError struct {
	ModelID uint64
	Err     error
}

func (e *CapacityUnavailableError) Error() string {
	return fmt.Sprintf("capacity unavailable for model %d: %v", e.ModelID, e.Err)
}

func (e *CapacityUnavailableError) Unwrap() error { return e.Err }

// StorageError reports a failed database operation.  The transaction it
// occurred in has been rolled back; no partial writes survive.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ExternalActionError reports a failed post-commit call to the asset
// system for one specific asset.  It never rolls back the reservation;
// the outcome is surfaced per asset.
type ExternalActionError struct {
	Tag string
	Op  string
	Err error
}

func (e *ExternalActionError) Error() string {
	return fmt.Sprintf("asset %s: %s failed: %v", e.Tag, e.Op, e.Err)
}

func (e *ExternalActionError) Unwrap() error { return e.Err }
