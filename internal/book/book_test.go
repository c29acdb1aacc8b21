package book

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOrder(t *testing.T, side Side, price, quantity string) *LimitOrder {
	t.Helper()
	order, err := NewLimitOrder(uuid.New(), side, dec(price), dec(quantity))
	require.NoError(t, err)
	return order
}

func TestBestPrice_AskIsLowest(t *testing.T) {
	side := NewOrderBookSide(Ask)
	a := mustOrder(t, Ask, "12", "1")
	b := mustOrder(t, Ask, "10", "1")
	c := mustOrder(t, Ask, "11", "1")
	side.Insert(a)
	side.Insert(b)
	side.Insert(c)

	price, ok := side.BestPrice()
	require.True(t, ok)
	assert.True(t, price.Equal(dec("10")))

	key, ok := side.BestOrder()
	require.True(t, ok)
	assert.Equal(t, b.Key, key)
}

func TestBestPrice_BidIsHighest(t *testing.T) {
	side := NewOrderBookSide(Bid)
	a := mustOrder(t, Bid, "10", "1")
	b := mustOrder(t, Bid, "12", "1")
	c := mustOrder(t, Bid, "11", "1")
	side.Insert(a)
	side.Insert(b)
	side.Insert(c)

	price, ok := side.BestPrice()
	require.True(t, ok)
	assert.True(t, price.Equal(dec("12")))

	key, ok := side.BestOrder()
	require.True(t, ok)
	assert.Equal(t, b.Key, key)
}

func TestBestOrder_EmptySide(t *testing.T) {
	side := NewOrderBookSide(Ask)
	_, ok := side.BestOrder()
	assert.False(t, ok)
	_, ok = side.BestPrice()
	assert.False(t, ok)
}

func TestInsert_SamePriceIsFIFO(t *testing.T) {
	side := NewOrderBookSide(Ask)
	first := mustOrder(t, Ask, "10", "1")
	second := mustOrder(t, Ask, "10", "2")
	third := mustOrder(t, Ask, "10", "3")
	side.Insert(first)
	side.Insert(second)
	side.Insert(third)

	_, orders, ok := side.BestPriceLevel()
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{first.Key, second.Key, third.Key}, orders)
}

func TestRemove_PreservesQueueOrder(t *testing.T) {
	side := NewOrderBookSide(Ask)
	first := mustOrder(t, Ask, "10", "1")
	second := mustOrder(t, Ask, "10", "2")
	third := mustOrder(t, Ask, "10", "3")
	side.Insert(first)
	side.Insert(second)
	side.Insert(third)

	side.Remove(second)

	_, orders, ok := side.BestPriceLevel()
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{first.Key, third.Key}, orders)
}

func TestRemove_DeletesEmptyLevel(t *testing.T) {
	side := NewOrderBookSide(Ask)
	cheap := mustOrder(t, Ask, "10", "1")
	dear := mustOrder(t, Ask, "11", "1")
	side.Insert(cheap)
	side.Insert(dear)

	side.Remove(cheap)

	price, ok := side.BestPrice()
	require.True(t, ok)
	assert.True(t, price.Equal(dec("11")))
	assert.Equal(t, 1, side.Orders())
}

func TestInsertLimitOrder_NoSelfCross(t *testing.T) {
	b := NewOrderBook()
	require.NoError(t, b.InsertLimitOrder(mustOrder(t, Bid, "9", "1")))
	require.NoError(t, b.InsertLimitOrder(mustOrder(t, Ask, "11", "1")))

	cases := []struct {
		name  string
		side  Side
		price string
	}{
		{"ask below best bid", Ask, "8"},
		{"ask at best bid", Ask, "9"},
		{"bid above best ask", Bid, "12"},
		{"bid at best ask", Bid, "11"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := b.InsertLimitOrder(mustOrder(t, tc.side, tc.price, "1"))
			assert.ErrorIs(t, err, ErrWouldCross)
		})
	}

	// The failed inserts must leave the book unchanged.
	assert.Equal(t, 1, b.Orders(Ask))
	assert.Equal(t, 1, b.Orders(Bid))

	// Inside the spread is fine.
	assert.NoError(t, b.InsertLimitOrder(mustOrder(t, Ask, "10.5", "1")))
	assert.NoError(t, b.InsertLimitOrder(mustOrder(t, Bid, "9.5", "1")))
}

func TestBestOrder_Delegates(t *testing.T) {
	b := NewOrderBook()
	ask := mustOrder(t, Ask, "11", "1")
	bid := mustOrder(t, Bid, "9", "1")
	require.NoError(t, b.InsertLimitOrder(ask))
	require.NoError(t, b.InsertLimitOrder(bid))

	key, ok := b.BestOrder(Ask)
	require.True(t, ok)
	assert.Equal(t, ask.Key, key)

	key, ok = b.BestOrder(Bid)
	require.True(t, ok)
	assert.Equal(t, bid.Key, key)

	b.RemoveLimitOrder(ask)
	_, ok = b.BestOrder(Ask)
	assert.False(t, ok)
}

func TestWalk_BestFirst(t *testing.T) {
	b := NewOrderBook()
	require.NoError(t, b.InsertLimitOrder(mustOrder(t, Ask, "12", "1")))
	require.NoError(t, b.InsertLimitOrder(mustOrder(t, Ask, "10", "1")))
	require.NoError(t, b.InsertLimitOrder(mustOrder(t, Ask, "11", "1")))

	var prices []string
	b.Walk(Ask, func(price decimal.Decimal, _ []uuid.UUID) bool {
		prices = append(prices, price.String())
		return true
	})
	assert.Equal(t, []string{"10", "11", "12"}, prices)
}
