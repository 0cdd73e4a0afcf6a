package domain

import "errors"

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrAlreadyClaimed     = errors.New("badge already claimed")
	ErrOrganizerNotSynced = errors.New("organizer not synced")
	ErrEventMismatch      = errors.New("piece belongs to another event")
	ErrMissionMismatch    = errors.New("piece belongs to another mission")
	ErrDecryption         = errors.New("envelope decryption failed")
	ErrMissingSessionKey  = errors.New("secure mode not configured for event")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrSocket             = errors.New("socket error")
	ErrInvalidWinProof    = errors.New("invalid win proof")
	ErrNotTeamMember      = errors.New("claimant is not part of the winning team")
)

// IsRetryable reports whether an outbox entry that failed with err should be
// kept for the next flush.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrOrganizerNotSynced)
}

// IsTerminal reports whether err means the entry can never be delivered, so
// replaying it is pointless. Authentication, server and unknown errors are
// not terminal.
func IsTerminal(err error) bool {
	for _, target := range []error{
		ErrInvalidToken,
		ErrExpiredToken,
		ErrDecryption,
		ErrInvalidWinProof,
		ErrNotTeamMember,
		ErrEventMismatch,
		ErrMissionMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsSatisfied reports whether err means the claim was already fulfilled.
func IsSatisfied(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed)
}
