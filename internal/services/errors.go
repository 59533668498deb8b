// Package services defines the business logic above the repositories: order
// submission and the dashboard use-cases. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer (or, for the conversation, in the dialogue engine).
package services

import "errors"

var (
	// ErrRestaurantNotFound indicates that a destination number or dashboard
	// token does not resolve to any restaurant.
	ErrRestaurantNotFound = errors.New("restaurant not found")

	// ErrItemNotFound indicates that an item number is not on the
	// restaurant's active menu.
	ErrItemNotFound = errors.New("menu item not found")

	// ErrOrderNotFound indicates that the requested order does not exist
	// under the authenticated restaurant.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidStatus is returned when a status value is outside the
	// recognized order status set.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrEmptyCart is returned when an order submission is attempted with no
	// cart lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrSubmissionFailed wraps a transient persistence failure during order
	// submission. The triggering session must be left intact so the customer
	// can retry; the underlying cause is logged, never shown to the customer.
	ErrSubmissionFailed = errors.New("order submission failed")
)
