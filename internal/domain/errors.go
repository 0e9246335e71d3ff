package domain

import "errors"

var (
	// Linked-account errors.
	ErrAccessCredentialMissing   = errors.New("access credential missing")
	ErrLinkedAccountNotFound     = errors.New("linked account not found")
	ErrLinkedAccountsUnavailable = errors.New("linked accounts unavailable")

	// Provider errors.
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidCredential   = errors.New("invalid access credential")
	ErrInstitutionNotFound = errors.New("institution not found")
	ErrCursorInvalid       = errors.New("sync cursor invalid")

	// Local store errors.
	ErrTransferStoreUnavailable = errors.New("transfer store unavailable")

	// ErrAccountUnavailable marks an account whose snapshot could not be built.
	ErrAccountUnavailable = errors.New("account unavailable")

	ErrRateLimited = errors.New("rate limited")
)
