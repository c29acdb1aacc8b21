package pair

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"njord/internal/asset"
	"njord/internal/book"
)

// addAmount deposits a freshly derived entitlement into an escrow pool.
func addAmount(pool *asset.Funds, amount decimal.Decimal) {
	deposit, err := asset.NewFunds(pool.Class(), amount)
	if err != nil {
		panic(fmt.Sprintf("escrow restore failed: %v", err))
	}
	if err := pool.Merge(deposit); err != nil {
		panic(fmt.Sprintf("escrow restore failed: %v", err))
	}
}

// Restore rebuilds the pair's state from the attached order store. Records
// are replayed in insertion-sequence order so FIFO priority within a price
// level is preserved. Orders that are not completely filled re-enter the
// book; completely filled ones only re-enter the arena, since their tokens
// are still outstanding. Both escrow pools are re-derived from the records:
// every surviving order is owed its unfilled remainder in its native asset
// and its converted filled amount in the other, which is exactly what
// CalculateCloseAmounts computes.
func (p *TradingPair) Restore() error {
	if p.store == nil {
		return nil
	}
	orders, err := p.store.AllOrders()
	if err != nil {
		return fmt.Errorf("unable to restore trading pair: %w", err)
	}

	for _, order := range orders {
		if order.Seq >= p.seq {
			p.seq = order.Seq + 1
		}
		p.orders[order.Key] = order

		if !order.Filled() {
			if err := p.book.InsertLimitOrder(order); err != nil {
				return fmt.Errorf("unable to restore order %s: %w", order.Key, err)
			}
		}

		refund, traded := order.CalculateCloseAmounts()
		switch order.Side {
		case book.Ask:
			addAmount(&p.baseFunds, refund)
			addAmount(&p.quoteFunds, traded)
		case book.Bid:
			addAmount(&p.quoteFunds, refund)
			addAmount(&p.baseFunds, traded)
		}
	}

	log.Info().
		Int("orders", len(orders)).
		Str("base", p.baseFunds.Amount().String()).
		Str("quote", p.quoteFunds.Amount().String()).
		Msg("trading pair restored")

	return nil
}
