package asset

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrClassMismatch  = errors.New("asset class mismatch")
	ErrShortFunds     = errors.New("not enough funds in container")
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// Class identifies a fungible asset class (e.g. "XRD", "rUSD") or a token
// class minted by a trading pair for its orders.
type Class string

// Funds is a fungible asset container. All value movement in the exchange
// happens by splitting and merging these containers, so amounts can never be
// duplicated or silently dropped.
type Funds struct {
	class  Class
	amount decimal.Decimal
}

// NewFunds creates a container holding the given amount of the given class.
func NewFunds(class Class, amount decimal.Decimal) (Funds, error) {
	if amount.IsNegative() {
		return Funds{}, ErrNegativeAmount
	}
	return Funds{class: class, amount: amount}, nil
}

// Empty returns a zero-amount container of the given class.
func Empty(class Class) Funds {
	return Funds{class: class, amount: decimal.Zero}
}

func (f Funds) Class() Class {
	return f.class
}

func (f Funds) Amount() decimal.Decimal {
	return f.amount
}

func (f Funds) IsZero() bool {
	return f.amount.IsZero()
}

// Split takes the given amount out of this container and returns it in a new
// container of the same class.
func (f *Funds) Split(amount decimal.Decimal) (Funds, error) {
	if amount.IsNegative() {
		return Funds{}, ErrNegativeAmount
	}
	if amount.GreaterThan(f.amount) {
		return Funds{}, ErrShortFunds
	}
	f.amount = f.amount.Sub(amount)
	return Funds{class: f.class, amount: amount}, nil
}

// Merge deposits the contents of other into this container.
func (f *Funds) Merge(other Funds) error {
	if other.class != f.class {
		return ErrClassMismatch
	}
	f.amount = f.amount.Add(other.amount)
	return nil
}

// Token is a unique ownership capability handed to the creator of a limit
// order. The order record itself lives in the trading pair's arena under Key;
// the token merely proves the right to read, update and finally burn that
// record. A token is authentic if its class matches the pair's order class
// and its key still resolves to a live record.
type Token struct {
	Key   uuid.UUID
	Class Class
}
