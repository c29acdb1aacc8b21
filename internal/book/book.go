package book

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrWouldCross rejects a limit order priced so that it would match
// immediately. Such an order must be submitted as a market order instead.
var ErrWouldCross = errors.New("order would be a market order")

// OrderBook composes the two sides of the book for one trading pair.
type OrderBook struct {
	asks *OrderBookSide
	bids *OrderBookSide
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		asks: NewOrderBookSide(Ask),
		bids: NewOrderBookSide(Bid),
	}
}

func (b *OrderBook) side(side Side) *OrderBookSide {
	if side == Ask {
		return b.asks
	}
	return b.bids
}

// BestOrder returns the key of the best order on the given side.
func (b *OrderBook) BestOrder(side Side) (uuid.UUID, bool) {
	return b.side(side).BestOrder()
}

// InsertLimitOrder inserts the order into its side of the book. The book must
// never self-cross: an Ask has to be priced strictly above the best bid, a
// Bid strictly below the best ask.
func (b *OrderBook) InsertLimitOrder(order *LimitOrder) error {
	switch order.Side {
	case Ask:
		if best, ok := b.bids.BestPrice(); ok && order.Price.LessThanOrEqual(best) {
			return ErrWouldCross
		}
	case Bid:
		if best, ok := b.asks.BestPrice(); ok && order.Price.GreaterThanOrEqual(best) {
			return ErrWouldCross
		}
	}
	b.side(order.Side).Insert(order)
	return nil
}

// RemoveLimitOrder removes the order from its side of the book.
func (b *OrderBook) RemoveLimitOrder(order *LimitOrder) {
	b.side(order.Side).Remove(order)
}

// Orders returns the number of orders resting on the given side.
func (b *OrderBook) Orders(side Side) int {
	return b.side(side).Orders()
}

// Walk visits every price level on the given side, best price first.
func (b *OrderBook) Walk(side Side, visit func(price decimal.Decimal, orders []uuid.UUID) bool) {
	b.side(side).Walk(visit)
}
