// Package services defines the business logic for the plate: coordinating
// saves with duplicate detection, and guarding retried operations with
// idempotency keys. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrUnauthenticated is returned when an operation requiring ownership is
	// attempted without an authenticated user id.
	ErrUnauthenticated = errors.New("no authenticated user")

	// ErrMissingItemID is returned when a save request carries no item id.
	ErrMissingItemID = errors.New("item id is required")

	// ErrInvalidItemType is returned when a save request carries an item type
	// outside the supported set.
	ErrInvalidItemType = errors.New("invalid item type")

	// ErrItemNotFound indicates that the requested saved item does not exist
	// or is not accessible to the current user.
	ErrItemNotFound = errors.New("saved item not found")
)
