package ledger

import "errors"

// ErrValidation is returned when a request is well-formed but violates a
// ledger rule (self-vouch, bot target, blacklist conflict, bad reason).
var ErrValidation = errors.New("validation failed")

// ErrNotFoundOrRemoved is returned when a soft-delete precondition fails.
// Missing and already-removed records are deliberately conflated so callers
// cannot probe for the existence of removed records.
var ErrNotFoundOrRemoved = errors.New("vouch not found or already removed")

// ErrForbidden is returned when the acting identity lacks the privilege or
// eligibility the operation requires.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert hits a uniqueness constraint, e.g.
// blacklisting an already-blacklisted user.
var ErrConflict = errors.New("already exists")

// ErrStore is returned for transient store faults (network, timeout,
// unexpected database errors). It is surfaced to callers as a generic
// failure and never retried by the core.
var ErrStore = errors.New("store unavailable")
