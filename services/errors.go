package services

import "errors"

// Validation errors are terminal for the attempted operation and are
// returned without any state change. ErrRemoteUnavailable and
// ErrConcurrentConflict are retryable, but retries belong to the caller —
// the ledger never retries silently.
var (
	ErrInsufficientBalance = errors.New("balance too low")
	ErrItemNotFound        = errors.New("item not found")
	ErrAlreadyOwned        = errors.New("already owned")
	ErrAlreadyClaimedToday = errors.New("already claimed today")
	ErrAccountNotFound     = errors.New("account not found")
	ErrRemoteUnavailable   = errors.New("store temporarily unavailable")
	ErrConcurrentConflict  = errors.New("concurrent update conflict, retry")

	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrNotConsumable  = errors.New("item cannot be used directly")
	ErrAuctionClosed  = errors.New("auction has ended")
	ErrSelfReferral   = errors.New("cannot use your own referral code")
	ErrAlreadyInvited = errors.New("account already attributed to an inviter")
)
