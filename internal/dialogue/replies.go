// Package dialogue implements the conversational state machine that drives
// the WhatsApp ordering flow. This file holds every customer-facing reply
// text in one place, so the wording can be reviewed (and translated later)
// without touching the engine logic.
package dialogue

import (
	"fmt"
	"strings"

	"github.com/swaadx/go-order-backend/internal/cart"
	"github.com/swaadx/go-order-backend/internal/domain"
)

const (
	replyUnknownRestaurant = "This number is not linked to any restaurant yet."

	replyTypeHi = "Sorry, I didn’t understand that 🤔\nType *hi* to start ordering."

	replySessionCleared = "Your session has been cleared. Type *hi* to start again."

	replyCartEmpty = "Your cart is empty. Type *hi* to see the menu."

	replyFormatHint = "To order, send item-quantity. Example: *1-2* for two of item 1."

	replyInvalidQuantity = "Quantity must be at least 1."

	replyInvalidItem = "That item number is not on the menu. Type *hi* to see the menu again."

	replyRemoveOutOfRange = "No cart item at that number. Type *cart* to see your items."

	replyRemoveHint = "To remove an item, send *remove 1* for the first cart line."

	replyDeliveryPrompt = "How would you like to get your order?\n1️⃣ Delivery\n2️⃣ Pickup\nReply with 1 or 2."

	replyAddressPrompt = "Please send your full delivery address."

	replyAddressTooShort = "That address looks incomplete. Please send your complete address (door, street, area)."

	replyAddressSaved = "Address saved ✅\nType *confirm* to place your order."

	replyPickupSelected = "Pickup selected ✅\nType *confirm* to place your order."

	replyDeliverySelected = "Delivery selected ✅\nType *confirm* to place your order."

	replyMenuUnavailable = "Our menu is being updated right now. Please try again in a few minutes."

	replySubmitFailed = "We couldn’t place your order right now. Please type *confirm* again in a moment."

	replyTryAgain = "Something went wrong on our side. Please try again in a moment."
)

// renderWelcome builds the greeting reply: restaurant name, the active menu
// in display order, and the ordering format hint.
func renderWelcome(restaurantName string, items []domain.MenuItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to %s 🍽️\nPlease choose an item:\n", restaurantName)
	for _, it := range items {
		fmt.Fprintf(&b, "%d. %s — ₹%s\n", it.ItemNo, it.Name, it.Price.StringFixed(2))
	}
	b.WriteString("\n")
	b.WriteString(replyFormatHint)
	return b.String()
}

// renderAdded confirms a cart addition and nudges the next step.
func renderAdded(name string, qty int) string {
	return fmt.Sprintf("Added %s × %d ✅\nSend another item-quantity to add more, *cart* to review, or *confirm* to checkout.", name, qty)
}

// renderRemoved confirms a cart removal.
func renderRemoved(name string) string {
	return fmt.Sprintf("Removed %s from your cart.", name)
}

// renderCart shows the current cart with running totals and the next-step
// hints.
func renderCart(c *cart.Cart, totals cart.Totals) string {
	var b strings.Builder
	b.WriteString("Your cart:\n")
	b.WriteString(c.Render())
	fmt.Fprintf(&b, "\n\nSubtotal: ₹%s\nTax: ₹%s\nTotal: ₹%s\n",
		totals.Subtotal.StringFixed(2), totals.Tax.StringFixed(2), totals.Total.StringFixed(2))
	b.WriteString("\nType *confirm* to place the order, *remove 1* to remove item 1, or *cancel* to start over.")
	return b.String()
}

// renderConfirmed is the final reply after a successful order submission.
func renderConfirmed(totals cart.Totals) string {
	return fmt.Sprintf(
		"Order placed ✅\nSubtotal: ₹%s\nTax: ₹%s\nTotal: ₹%s\nWe’ll message you with updates. Thank you!",
		totals.Subtotal.StringFixed(2), totals.Tax.StringFixed(2), totals.Total.StringFixed(2))
}
