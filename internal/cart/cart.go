// Package cart implements the pricing model of the ordering conversation:
// cart lines, totals, and the human-readable cart rendering sent back over
// WhatsApp. It is pure (no storage, no transport) and all money is
// shopspring/decimal; floats never touch a price.
//
// Rounding policy: half-up to 2 decimal places, applied at the line subtotal
// and at the subtotal/tax/total boundaries, never on intermediate unit prices.
package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors returned by cart operations. They are matched with
// errors.Is by the dialogue engine to pick a corrective reply.
var (
	// ErrInvalidQuantity is returned when a line is added with quantity < 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrIndexOutOfRange is returned when a removal index does not refer to
	// an existing cart line.
	ErrIndexOutOfRange = errors.New("cart index out of range")
)

// moneyPlaces is the number of decimal places kept on every monetary value.
const moneyPlaces = 2

// Line is one ordered item entry: the resolved menu item, the quantity, and
// the line subtotal computed at append time. A line is immutable once
// appended; the only mutation a cart supports is removal.
type Line struct {
	ItemNo    int             `json:"item_no"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Cart is an ordered sequence of lines. Insertion order is preserved and is
// also the display order. Ordering the same item number twice appends a
// second line; lines are never merged.
type Cart struct {
	Lines []Line `json:"lines"`
}

// Totals holds the computed monetary summary of a cart.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Add appends a new line for the given item. The line subtotal is
// unitPrice × quantity rounded half-up to 2 decimal places. Returns
// ErrInvalidQuantity when quantity < 1.
func (c *Cart) Add(itemNo int, name string, unitPrice decimal.Decimal, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	sub := unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(moneyPlaces)
	c.Lines = append(c.Lines, Line{
		ItemNo:    itemNo,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  quantity,
		Subtotal:  sub,
	})
	return nil
}

// Remove deletes the line at the given 1-based position and returns it.
// Returns ErrIndexOutOfRange when the position is not within [1, len].
func (c *Cart) Remove(pos int) (Line, error) {
	if pos < 1 || pos > len(c.Lines) {
		return Line{}, ErrIndexOutOfRange
	}
	i := pos - 1
	removed := c.Lines[i]
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return removed, nil
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

// ComputeTotals sums the cart under the given tax rate (a fraction, e.g.
// 0.05). Subtotal is the sum of line subtotals; tax is subtotal × rate
// rounded half-up to 2 decimals; total is subtotal + tax.
func (c *Cart) ComputeTotals(taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	count := 0
	for _, l := range c.Lines {
		subtotal = subtotal.Add(l.Subtotal)
		count += l.Quantity
	}
	subtotal = subtotal.Round(moneyPlaces)
	tax := subtotal.Mul(taxRate).Round(moneyPlaces)
	total := subtotal.Add(tax).Round(moneyPlaces)
	return Totals{
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     total,
		ItemCount: count,
	}
}

// Render produces the customer-facing cart listing, one 1-indexed line per
// cart line:
//
//	1. Margherita Pizza × 2 = 400.00
//	2. Veg Burger × 1 = 120.00
//
// Rendering has no side effects; the same cart always renders the same text.
func (c *Cart) Render() string {
	var b strings.Builder
	for i, l := range c.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s × %d = %s", i+1, l.Name, l.Quantity, l.Subtotal.StringFixed(moneyPlaces))
	}
	return b.String()
}
