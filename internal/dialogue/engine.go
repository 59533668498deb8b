// Package dialogue implements the conversational state machine that drives
// the WhatsApp ordering flow. The Engine consumes one normalized inbound
// message plus the customer's session and produces exactly one reply,
// mutating the session under the store's per-identity exclusion.
//
// Turn structure (in order):
//  1. Resolve the destination number to a restaurant. Failure ends the turn
//     before any session is created or touched.
//  2. Global commands (restart/cancel, cart, remove <n>, confirm), honored
//     in every state.
//  3. Wait states (delivery-type answer, address capture), where the pending
//     prompt interprets the message before normal state dispatch.
//  4. State dispatch (START greeting, MENU item-quantity parsing).
//
// All business rules live here; storage is reached only through the narrow
// RestaurantResolver / MenuResolver / OrderSubmitter interfaces, and every
// storage round-trip happens inside the held session exclusion with a bounded
// timeout.
package dialogue

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/swaadx/go-order-backend/internal/cart"
	"github.com/swaadx/go-order-backend/internal/domain"
	"github.com/swaadx/go-order-backend/internal/session"
)

// ErrNotFound is the contract error for the resolver interfaces below:
// implementations return it (possibly wrapped) when a destination number or
// item number resolves to nothing. Any other error is treated as a transient
// storage failure.
var ErrNotFound = errors.New("not found")

// RestaurantResolver maps an inbound destination identity to a restaurant.
type RestaurantResolver interface {
	// ResolveRestaurant returns the restaurant owning whatsappNumber, or
	// ErrNotFound.
	ResolveRestaurant(ctx context.Context, whatsappNumber string) (*domain.Restaurant, error)
}

// MenuResolver reads the active catalog of a restaurant. The menu is fetched
// fresh on every use; the engine never caches it across turns.
type MenuResolver interface {
	// ListActiveMenu returns the active menu in display order.
	ListActiveMenu(ctx context.Context, restaurantID string) ([]domain.MenuItem, error)
	// LookupMenuItem resolves one active item by its customer-facing number,
	// or returns ErrNotFound.
	LookupMenuItem(ctx context.Context, restaurantID string, itemNo int) (*domain.MenuItem, error)
}

// OrderSubmitter persists a finalized cart. Any returned error means the
// order was not placed; the engine keeps the session intact so the customer
// can retry.
type OrderSubmitter interface {
	Submit(ctx context.Context, restaurantID, phone string, c *cart.Cart, deliveryType, address string) (string, error)
}

// Result is the outcome of one dialogue turn.
type Result struct {
	// Reply is the single outbound message for this turn. Always non-empty.
	Reply string
	// RestaurantID is the resolved restaurant, empty when the destination
	// number was unknown.
	RestaurantID string
}

// Engine is the dialogue state machine. All fields must be set; the zero
// value is not usable.
type Engine struct {
	Sessions    *session.Store
	Restaurants RestaurantResolver
	Menus       MenuResolver
	Orders      OrderSubmitter

	// TaxRate is the tax fraction used for cart total rendering (order
	// submission applies its own copy when persisting).
	TaxRate decimal.Decimal

	// StorageTimeout bounds each storage round-trip made during a turn so a
	// slow dependency cannot hold the session exclusion indefinitely.
	// Zero disables the bound.
	StorageTimeout time.Duration
}

// itemQtyRE matches the MENU ordering token: "<item>-<quantity>".
var itemQtyRE = regexp.MustCompile(`^(\d+)-(\d+)$`)

// minAddressRunes is the minimum accepted delivery address length.
const minAddressRunes = 10

// HandleMessage processes one inbound message and returns the reply. It is
// safe for concurrent use: turns for the same sender are serialized by the
// session store, turns for different senders proceed in parallel.
func (e *Engine) HandleMessage(ctx context.Context, from, to, body string) Result {
	tr := otel.Tracer("dialogue/Engine")
	ctx, span := tr.Start(ctx, "HandleMessage",
		trace.WithAttributes(attribute.String("restaurant.number", to)),
	)
	defer span.End()

	// Restaurant resolution precedes everything; an unknown destination
	// performs no session mutation at all.
	restaurant, err := e.resolveRestaurant(ctx, to)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Reply: replyUnknownRestaurant}
		}
		log.Error().Err(err).Str("to", to).Msg("resolve restaurant")
		return Result{Reply: replyTryAgain}
	}

	sess, release := e.Sessions.Acquire(from)
	destroy := false
	defer func() { release(destroy) }()

	if sess.RestaurantID == "" {
		sess.RestaurantID = restaurant.ID
	} else if sess.RestaurantID != restaurant.ID {
		// The customer switched to a different restaurant's number; the old
		// conversation does not carry over.
		*sess = session.Session{
			Phone:        sess.Phone,
			RestaurantID: restaurant.ID,
			State:        session.StateStart,
			CreatedAt:    sess.CreatedAt,
			LastActiveAt: sess.LastActiveAt,
		}
	}

	raw := strings.TrimSpace(body)
	norm := strings.ToLower(raw)

	reply, destroySession := e.step(ctx, restaurant, sess, raw, norm)
	destroy = destroySession
	return Result{Reply: reply, RestaurantID: restaurant.ID}
}

// step runs global commands, wait states, and state dispatch for one turn.
// It returns the reply and whether the session must be destroyed.
func (e *Engine) step(ctx context.Context, restaurant *domain.Restaurant, sess *session.Session, raw, norm string) (string, bool) {
	// Global commands, any state.
	switch {
	case norm == "restart" || norm == "cancel":
		return replySessionCleared, true

	case norm == "cart":
		if sess.Cart.Empty() {
			return replyCartEmpty, false
		}
		return renderCart(&sess.Cart, sess.Cart.ComputeTotals(e.TaxRate)), false

	case strings.HasPrefix(norm, "remove"):
		return e.removeLine(sess, norm), false

	case norm == "confirm":
		return e.confirm(ctx, restaurant, sess)
	}

	// Pending wait state, before normal dispatch.
	switch sess.State {
	case session.StateAwaitDeliveryType:
		return e.captureDeliveryType(sess, norm), false
	case session.StateAwaitAddress:
		return e.captureAddress(sess, raw), false
	}

	// State dispatch.
	switch sess.State {
	case session.StateStart:
		if norm == "hi" || norm == "hello" {
			return e.greet(ctx, restaurant, sess), false
		}
		return replyTypeHi, false

	case session.StateMenu:
		return e.addItem(ctx, sess, norm), false

	default:
		// Unreachable; every state is handled above.
		return replyTypeHi, false
	}
}

// greet fetches the active menu, renders it, and advances START → MENU.
// On a storage failure or an empty menu the session stays in START.
func (e *Engine) greet(ctx context.Context, restaurant *domain.Restaurant, sess *session.Session) string {
	items, err := e.listMenu(ctx, restaurant.ID)
	if err != nil {
		log.Error().Err(err).Str("restaurant_id", restaurant.ID).Msg("list menu")
		return replyTryAgain
	}
	if len(items) == 0 {
		return replyMenuUnavailable
	}
	sess.MenuShown = true
	sess.State = session.StateMenu
	return renderWelcome(restaurant.Name, items)
}

// addItem parses the "<item>-<quantity>" token and appends a cart line.
// Repeat orders of the same item append a second line; lines never merge.
func (e *Engine) addItem(ctx context.Context, sess *session.Session, norm string) string {
	m := itemQtyRE.FindStringSubmatch(norm)
	if m == nil {
		return replyFormatHint
	}
	itemNo, err1 := strconv.Atoi(m[1])
	qty, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return replyFormatHint
	}
	if qty < 1 {
		return replyInvalidQuantity
	}

	item, err := e.lookupItem(ctx, sess.RestaurantID, itemNo)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return replyInvalidItem
		}
		log.Error().Err(err).Str("restaurant_id", sess.RestaurantID).Int("item_no", itemNo).Msg("lookup item")
		return replyTryAgain
	}

	if err := sess.Cart.Add(item.ItemNo, item.Name, item.Price, qty); err != nil {
		return replyInvalidQuantity
	}
	return renderAdded(item.Name, qty)
}

// removeLine handles "remove <n>": deletes the 1-based cart line.
func (e *Engine) removeLine(sess *session.Session, norm string) string {
	fields := strings.Fields(norm)
	if len(fields) != 2 || fields[0] != "remove" {
		return replyRemoveHint
	}
	pos, err := strconv.Atoi(fields[1])
	if err != nil {
		return replyRemoveHint
	}
	line, err := sess.Cart.Remove(pos)
	if err != nil {
		return replyRemoveOutOfRange
	}
	return renderRemoved(line.Name)
}

// confirm runs the order-confirmation protocol:
//  1. empty cart → corrective reply, no state change;
//  2. delivery type unset → ask for it (the answer arrives next turn);
//  3. delivery chosen but no address → ask for the address;
//  4. otherwise submit. Success destroys the session; failure leaves it
//     intact (cart, delivery type, address preserved) so the customer can
//     re-issue confirm.
func (e *Engine) confirm(ctx context.Context, restaurant *domain.Restaurant, sess *session.Session) (string, bool) {
	if sess.Cart.Empty() {
		return replyCartEmpty, false
	}
	if sess.DeliveryType == session.DeliveryUnset {
		sess.State = session.StateAwaitDeliveryType
		return replyDeliveryPrompt, false
	}
	if sess.DeliveryType == session.DeliveryDelivery && sess.Address == "" {
		sess.State = session.StateAwaitAddress
		return replyAddressPrompt, false
	}

	totals := sess.Cart.ComputeTotals(e.TaxRate)
	_, err := e.Orders.Submit(ctx, restaurant.ID, sess.Phone, &sess.Cart, string(sess.DeliveryType), sess.Address)
	if err != nil {
		log.Warn().Err(err).Str("restaurant_id", restaurant.ID).Msg("order submission failed")
		return replySubmitFailed, false
	}
	return renderConfirmed(totals), true
}

// captureDeliveryType interprets the answer to the delivery/pickup prompt.
// "1" selects delivery and moves straight to address capture; "2" selects
// pickup; anything else re-prompts and the wait state stays.
func (e *Engine) captureDeliveryType(sess *session.Session, norm string) string {
	switch norm {
	case "1":
		sess.DeliveryType = session.DeliveryDelivery
		if sess.Address == "" {
			sess.State = session.StateAwaitAddress
			return replyAddressPrompt
		}
		sess.State = session.StateMenu
		return replyDeliverySelected
	case "2":
		sess.DeliveryType = session.DeliveryPickup
		sess.State = session.StateMenu
		return replyPickupSelected
	default:
		return replyDeliveryPrompt
	}
}

// captureAddress stores the delivery address verbatim when it is long enough
// to plausibly be complete; otherwise it re-prompts and the wait state stays.
func (e *Engine) captureAddress(sess *session.Session, raw string) string {
	if len([]rune(raw)) < minAddressRunes {
		return replyAddressTooShort
	}
	sess.Address = raw
	sess.State = session.StateMenu
	return replyAddressSaved
}

// resolveRestaurant wraps the resolver call with the storage timeout.
func (e *Engine) resolveRestaurant(ctx context.Context, to string) (*domain.Restaurant, error) {
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	return e.Restaurants.ResolveRestaurant(ctx, to)
}

// listMenu wraps the menu listing call with the storage timeout.
func (e *Engine) listMenu(ctx context.Context, restaurantID string) ([]domain.MenuItem, error) {
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	return e.Menus.ListActiveMenu(ctx, restaurantID)
}

// lookupItem wraps the item lookup call with the storage timeout.
func (e *Engine) lookupItem(ctx context.Context, restaurantID string, itemNo int) (*domain.MenuItem, error) {
	ctx, cancel := e.boundCtx(ctx)
	defer cancel()
	return e.Menus.LookupMenuItem(ctx, restaurantID, itemNo)
}

// boundCtx applies the configured storage timeout, if any.
func (e *Engine) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.StorageTimeout > 0 {
		return context.WithTimeout(ctx, e.StorageTimeout)
	}
	return ctx, func() {}
}
