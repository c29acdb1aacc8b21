package book

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// smallest returns n smallest representable units (n * 1e-18).
func smallest(n int64) decimal.Decimal {
	return decimal.New(n, -AmountScale)
}

func TestNewLimitOrder_Validation(t *testing.T) {
	cases := []struct {
		name     string
		price    string
		quantity string
		wantErr  error
	}{
		{"zero price", "0", "1", ErrInvalidPrice},
		{"negative price", "-1", "1", ErrInvalidPrice},
		{"zero quantity", "1", "0", ErrInvalidQuantity},
		{"negative quantity", "1", "-1", ErrInvalidQuantity},
		{"valid", "1", "1", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLimitOrder(uuid.New(), Ask, dec(tc.price), dec(tc.quantity))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestFill(t *testing.T) {
	order, err := NewLimitOrder(uuid.New(), Ask, dec("10"), dec("100"))
	require.NoError(t, err)

	require.NoError(t, order.Fill(dec("40")))
	assert.True(t, order.QuantityFilled.Equal(dec("40")))
	assert.True(t, order.Remaining().Equal(dec("60")))
	assert.False(t, order.Filled())

	require.NoError(t, order.Fill(dec("60")))
	assert.True(t, order.Filled())
}

func TestFill_Overfill(t *testing.T) {
	order, _ := NewLimitOrder(uuid.New(), Ask, dec("10"), dec("100"))
	require.NoError(t, order.Fill(dec("100")))

	err := order.Fill(smallest(1))
	assert.ErrorIs(t, err, ErrOverfill)
	// A rejected fill must not move the filled amount.
	assert.True(t, order.QuantityFilled.Equal(dec("100")))
}

func TestCalculateCloseAmounts_Ask(t *testing.T) {
	// Ask: quantity in base units, traded amount paid out in quote units.
	order, _ := NewLimitOrder(uuid.New(), Ask, dec("10"), dec("100"))
	require.NoError(t, order.Fill(dec("30")))

	refund, traded := order.CalculateCloseAmounts()
	assert.True(t, refund.Equal(dec("70")))
	assert.True(t, traded.Equal(dec("300")))
}

func TestCalculateCloseAmounts_Bid(t *testing.T) {
	// Bid: quantity in quote units, traded amount paid out in base units.
	order, _ := NewLimitOrder(uuid.New(), Bid, dec("10"), dec("100"))
	require.NoError(t, order.Fill(dec("50")))

	refund, traded := order.CalculateCloseAmounts()
	assert.True(t, refund.Equal(dec("50")))
	assert.True(t, traded.Equal(dec("5")))
}

func TestCalculateCloseAmounts_Unfilled(t *testing.T) {
	order, _ := NewLimitOrder(uuid.New(), Bid, dec("2"), dec("100"))

	refund, traded := order.CalculateCloseAmounts()
	assert.True(t, refund.Equal(dec("100")))
	assert.True(t, traded.IsZero())
}

func TestAlmostZero(t *testing.T) {
	// For each price: the largest amount that still counts as dust, and the
	// smallest that does not. Amounts are in smallest representable units.
	cases := []struct {
		price         string
		almostZero    decimal.Decimal
		notAlmostZero decimal.Decimal
	}{
		{"0.001", smallest(999), smallest(1000)},
		{"0.1", smallest(9), smallest(10)},
		{"1", smallest(0), smallest(1)},
		{"10", smallest(9), smallest(10)},
		{"1000", smallest(999), smallest(1000)},
	}
	for _, tc := range cases {
		price := dec(tc.price)
		assert.True(t, AlmostZero(tc.almostZero, price),
			"amount %s should be almost zero at price %s", tc.almostZero, price)
		assert.False(t, AlmostZero(tc.notAlmostZero, price),
			"amount %s should not be almost zero at price %s", tc.notAlmostZero, price)
	}
}

func TestConversionsTruncate(t *testing.T) {
	// A quote amount converted to base must never pay for more than the
	// quote amount covers, whatever the price does to the last digit.
	base := QuoteToBase(dec("1"), dec("6"))
	assert.True(t, BaseToQuote(base, dec("6")).LessThanOrEqual(dec("1")))

	quote := BaseToQuote(dec("1"), dec("0.000000000000000007"))
	assert.True(t, quote.Equal(smallest(7)))
}
