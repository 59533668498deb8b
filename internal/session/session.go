// Package session holds the per-customer conversational state and the
// in-memory store that owns it. One session exists per customer phone
// identity; it carries the dialogue state, the cart under construction, and
// the delivery/address capture fields, and it expires after a configurable
// window of inactivity.
package session

import (
	"time"

	"github.com/swaadx/go-order-backend/internal/cart"
)

// State is the dialogue position of a session. The two wait states replace
// the ad hoc "awaiting" flags of earlier iterations: a session is always in
// exactly one state, so inconsistent flag combinations cannot be represented.
type State string

const (
	// StateStart is the initial state; only a greeting advances it.
	StateStart State = "start"
	// StateMenu means the menu has been shown and item-quantity tokens are
	// accepted.
	StateMenu State = "menu"
	// StateAwaitDeliveryType means the next inbound message answers the
	// delivery-or-pickup prompt.
	StateAwaitDeliveryType State = "await_delivery_type"
	// StateAwaitAddress means the next inbound message is the delivery
	// address.
	StateAwaitAddress State = "await_address"
)

// DeliveryType is the customer's chosen fulfilment method.
type DeliveryType string

const (
	// DeliveryUnset means the customer has not chosen yet.
	DeliveryUnset DeliveryType = ""
	// DeliveryDelivery means the order is delivered to an address.
	DeliveryDelivery DeliveryType = "delivery"
	// DeliveryPickup means the customer collects the order.
	DeliveryPickup DeliveryType = "pickup"
)

// Session is the conversational state for one customer identity. It is only
// ever accessed under the store's per-identity exclusion, so it carries no
// locking of its own.
type Session struct {
	// Phone is the customer identity (transport sender address) keying this
	// session.
	Phone string
	// RestaurantID is the restaurant the conversation is with, fixed at
	// session creation by resolving the destination number.
	RestaurantID string
	// State is the current dialogue position.
	State State
	// Cart is the order under construction.
	Cart cart.Cart
	// MenuShown records whether the menu has been rendered to this customer.
	MenuShown bool
	// DeliveryType is the chosen fulfilment method, DeliveryUnset until the
	// customer answers the delivery prompt.
	DeliveryType DeliveryType
	// Address is the captured delivery address, empty until provided.
	Address string
	// CreatedAt is when the session was first created.
	CreatedAt time.Time
	// LastActiveAt is refreshed on every inbound message for this identity
	// and drives expiry.
	LastActiveAt time.Time
}
