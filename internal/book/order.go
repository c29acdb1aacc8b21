package book

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice    = errors.New("price must be greater than zero")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrOverfill        = errors.New("fill quantity exceeds the unfilled remainder")
)

// AmountScale is the number of fractional digits all amounts and prices are
// carried at. The dust rule below is defined against the smallest unit at
// this scale, so conversions must never produce digits beyond it.
const AmountScale = 18

var one = decimal.New(1, 0)

// MinUnit returns the smallest representable amount (one unit at AmountScale).
func MinUnit() decimal.Decimal {
	return decimal.New(1, -AmountScale)
}

// BaseToQuote converts a base-asset quantity to its quote-asset value at the
// given price, truncating at the working scale.
func BaseToQuote(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Truncate(AmountScale)
}

// QuoteToBase converts a quote-asset quantity to its base-asset value at the
// given price, truncating at the working scale. Truncation (rather than
// rounding) guarantees the converted amount never exceeds what the input can
// actually pay for.
func QuoteToBase(qty, price decimal.Decimal) decimal.Decimal {
	q, _ := qty.QuoRem(price, AmountScale)
	return q
}

// AlmostZero reports whether amount is dust with respect to price, i.e. too
// small to buy or pay for even one smallest unit at that price. Matching
// loops use this to terminate despite the rounding residue that repeated
// conversion leaves behind.
func AlmostZero(amount, price decimal.Decimal) bool {
	eps := price
	if price.LessThan(one) {
		eps, _ = one.QuoRem(price, AmountScale)
	}
	return amount.LessThan(eps.Mul(MinUnit()))
}

// LimitOrder is a resting order in the book.
//
// Price is always the amount of the quote asset required to buy one unit of
// the base asset, irrespective of the order side. Quantity is the amount of
// the side's native asset the maker deposited: base units for an Ask, quote
// units for a Bid. Note that quantity is asymmetric with respect to price.
type LimitOrder struct {
	// Key uniquely identifies the order for its whole lifetime and doubles
	// as the handle carried by the maker's ownership token.
	Key            uuid.UUID       `json:"order_key"`
	Side           Side            `json:"side"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
	QuantityFilled decimal.Decimal `json:"quantity_filled"`

	// Seq records book insertion order so price-time priority survives a
	// restart from the order store.
	Seq uint64 `json:"seq"`
}

// NewLimitOrder creates a limit order, rejecting non-positive prices and
// quantities.
func NewLimitOrder(key uuid.UUID, side Side, price, quantity decimal.Decimal) (*LimitOrder, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if !quantity.IsPositive() {
		return nil, ErrInvalidQuantity
	}
	return &LimitOrder{
		Key:            key,
		Side:           side,
		Price:          price,
		Quantity:       quantity,
		QuantityFilled: decimal.Zero,
	}, nil
}

// Remaining returns the quantity not yet filled.
func (o *LimitOrder) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.QuantityFilled)
}

// Filled reports whether the order has been filled completely.
func (o *LimitOrder) Filled() bool {
	return o.QuantityFilled.Equal(o.Quantity)
}

// Fill marks quantity units of the order as matched. Overfilling an order is
// an invariant violation in the matching loop, never a user error.
func (o *LimitOrder) Fill(quantity decimal.Decimal) error {
	if quantity.GreaterThan(o.Remaining()) {
		return ErrOverfill
	}
	o.QuantityFilled = o.QuantityFilled.Add(quantity)
	return nil
}

// CalculateCloseAmounts returns what the maker is owed when the order is
// closed: the refund of the unfilled remainder in the order's native asset,
// and the traded amount in the other asset. This is the only place currency
// conversion happens for order closure.
func (o *LimitOrder) CalculateCloseAmounts() (refund, traded decimal.Decimal) {
	refund = o.Remaining()
	switch o.Side {
	case Ask:
		traded = BaseToQuote(o.QuantityFilled, o.Price)
	case Bid:
		traded = QuoteToBase(o.QuantityFilled, o.Price)
	}
	return refund, traded
}
