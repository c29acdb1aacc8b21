package book

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// priceLevel holds the keys of all orders resting at one price, earliest
// inserted first.
type priceLevel struct {
	price  decimal.Decimal
	orders []uuid.UUID
}

// OrderBookSide is one side of an order book: an ordered map from price to
// the FIFO queue of orders at that price. The btree comparator is chosen so
// that Min() is always the best price for the side: lowest for Ask (sellers
// competing down), highest for Bid (buyers competing up).
type OrderBookSide struct {
	side   Side
	levels *btree.BTreeG[*priceLevel]
}

func NewOrderBookSide(side Side) *OrderBookSide {
	less := func(a, b *priceLevel) bool {
		return a.price.LessThan(b.price)
	}
	if side == Bid {
		less = func(a, b *priceLevel) bool {
			return a.price.GreaterThan(b.price)
		}
	}
	return &OrderBookSide{
		side:   side,
		levels: btree.NewBTreeG(less),
	}
}

func (s *OrderBookSide) Side() Side {
	return s.side
}

// BestPriceLevel returns the best price on this side and the order keys
// resting at it. ok is false if the side is empty.
func (s *OrderBookSide) BestPriceLevel() (price decimal.Decimal, orders []uuid.UUID, ok bool) {
	level, ok := s.levels.MinMut()
	if !ok {
		return decimal.Decimal{}, nil, false
	}
	return level.price, level.orders, true
}

// BestOrder returns the key of the first order at the best price level.
func (s *OrderBookSide) BestOrder() (uuid.UUID, bool) {
	_, orders, ok := s.BestPriceLevel()
	if !ok || len(orders) == 0 {
		return uuid.UUID{}, false
	}
	return orders[0], true
}

// BestPrice returns the best price on this side.
func (s *OrderBookSide) BestPrice() (decimal.Decimal, bool) {
	price, _, ok := s.BestPriceLevel()
	return price, ok
}

// Insert appends the order's key to the queue at its price, creating the
// price level if it does not exist yet.
func (s *OrderBookSide) Insert(order *LimitOrder) {
	level, ok := s.levels.GetMut(&priceLevel{price: order.Price})
	if ok {
		level.orders = append(level.orders, order.Key)
		return
	}
	s.levels.Set(&priceLevel{
		price:  order.Price,
		orders: []uuid.UUID{order.Key},
	})
}

// Remove deletes the order's key from the queue at its price, preserving the
// relative order of the remaining entries. An emptied price level is dropped
// from the map.
func (s *OrderBookSide) Remove(order *LimitOrder) {
	level, ok := s.levels.GetMut(&priceLevel{price: order.Price})
	if !ok {
		return
	}
	kept := level.orders[:0]
	for _, key := range level.orders {
		if key != order.Key {
			kept = append(kept, key)
		}
	}
	level.orders = kept
	if len(level.orders) == 0 {
		s.levels.Delete(level)
	}
}

// Orders returns the number of orders resting on this side.
func (s *OrderBookSide) Orders() int {
	n := 0
	s.levels.Scan(func(level *priceLevel) bool {
		n += len(level.orders)
		return true
	})
	return n
}

// Walk visits every price level from best to worst. The walk stops early if
// visit returns false.
func (s *OrderBookSide) Walk(visit func(price decimal.Decimal, orders []uuid.UUID) bool) {
	s.levels.Scan(func(level *priceLevel) bool {
		return visit(level.price, level.orders)
	})
}
