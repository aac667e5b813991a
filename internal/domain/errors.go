package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrTreeNotActive rejects triggering on a draft or archived tree.
	ErrTreeNotActive = errors.New("tree is not active")

	// ErrStaleLevel rejects a manual escalation whose from_level no longer
	// matches the notification's current level. Timer-driven escalations hit
	// the same condition but absorb it as a silent no-op.
	ErrStaleLevel = errors.New("stale escalation level")

	// ErrNotAtCurrentLevel rejects an acknowledgment from a recipient with no
	// open log at the notification's current level.
	ErrNotAtCurrentLevel = errors.New("recipient has no pending entry at current level")

	// ErrNotificationTerminal rejects mutation of a completed or failed notification.
	ErrNotificationTerminal = errors.New("notification is terminal")
)
