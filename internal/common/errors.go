// Package common defines shared constants and sentinel errors used across
// casesync components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound = errors.New("case not found")

	// Remote transport errors. Local optimistic state is retained when this
	// is returned; the caller decides whether to retry or warn the user.
	ErrUnavailable  = errors.New("remote store unavailable")
	ErrUnauthorized = errors.New("unauthorized")

	// Normalizer errors. A ghost payload carries no resolvable identity and
	// must be dropped, never inserted.
	ErrGhostPayload = errors.New("payload has no resolvable identity")

	// Lifecycle errors. Internal purge signal, not user-visible.
	ErrRetentionExpired = errors.New("retention window elapsed")
)
