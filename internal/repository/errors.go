// Package repository defines sentinel errors reused across the storage
// layer. These values allow higher layers to distinguish between failure
// scenarios without string matching. For example, ErrForbidden indicates
// that the current user is not authorized to act on a reservation owned
// by someone else, while ErrStaleStatus signals that a guarded status
// update found the row in a different state than expected.
package repository

import "errors"

// ErrNotFound is returned when a reservation (or related row) does not
// exist. Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// reservation they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrStaleStatus is returned by guarded status updates when the row is no
// longer in the expected source status, meaning another writer (staff
// action or sweeper) transitioned it first.
var ErrStaleStatus = errors.New("reservation status changed concurrently")
