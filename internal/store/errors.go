package store

import "errors"

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInstitutionBlocked is returned by the issuance debit when the
	// owning institution is blocked or revoked.
	ErrInstitutionBlocked = errors.New("institution blocked")

	// ErrNoCredits is returned by the issuance debit when the institution
	// has no remaining credit balance.
	ErrNoCredits = errors.New("no credits remaining")
)
