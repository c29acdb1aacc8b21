package pair

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"njord/internal/asset"
	"njord/internal/book"
	"njord/internal/store"
)

var (
	// ErrInvalidAsset rejects funds that are neither the base nor the quote
	// asset of this pair.
	ErrInvalidAsset = errors.New("supplied funds are not an asset of this trading pair")

	// ErrInvalidToken rejects an ownership token that was not minted by this
	// pair or whose order has already been closed.
	ErrInvalidToken = errors.New("token does not represent an open order of this trading pair")

	// ErrInsufficientLiquidity terminates a market order that still holds
	// non-dust funds while the opposing book side is empty. Whatever was
	// matched before this point is returned to the caller regardless.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity: no limit orders left to match")

	ErrSameAsset = errors.New("base and quote asset must differ")
)

// Fill describes one fill applied to a resting limit order.
type Fill struct {
	OrderKey uuid.UUID
	Side     book.Side
	Price    decimal.Decimal
	// Quantity is in the resting order's native asset: base units for an
	// Ask, quote units for a Bid.
	Quantity decimal.Decimal
}

// Reporter receives fills as the matching loop produces them.
type Reporter interface {
	ReportFill(fill Fill)
}

// TradingPair owns the order book, the order arena and the two escrow pools
// for one base/quote asset pair, and runs the whole order lifecycle. It is
// the sole writer of all of this state: callers must not interleave its
// operations (the gateway drives it from a single goroutine).
type TradingPair struct {
	base       asset.Class
	quote      asset.Class
	orderClass asset.Class

	book *book.OrderBook

	// orders is the arena of live order records, keyed by order key. A
	// record stays here for as long as its ownership token is outstanding,
	// even after the order left the book on a complete fill.
	orders map[uuid.UUID]*book.LimitOrder

	// Escrow pools. baseFunds accumulates everything deposited by ask
	// makers plus the base paid in by bid-filling takers; quoteFunds is the
	// mirror image. Per-order entitlements are derived from order records,
	// never tracked per order.
	baseFunds  asset.Funds
	quoteFunds asset.Funds

	seq      uint64
	store    *store.Store
	reporter Reporter
}

// New creates a trading pair for the given asset classes. The store may be
// nil for a purely in-memory pair; call Restore after New to resume a
// previously persisted book.
func New(base, quote asset.Class, st *store.Store) (*TradingPair, error) {
	if base == quote {
		return nil, ErrSameAsset
	}
	return &TradingPair{
		base:       base,
		quote:      quote,
		orderClass: asset.Class(fmt.Sprintf("order/%s/%s", base, quote)),
		book:       book.NewOrderBook(),
		orders:     make(map[uuid.UUID]*book.LimitOrder),
		baseFunds:  asset.Empty(base),
		quoteFunds: asset.Empty(quote),
		store:      st,
	}, nil
}

// SetReporter wires a fill reporter. May be nil.
func (p *TradingPair) SetReporter(r Reporter) {
	p.reporter = r
}

// Base returns the base asset class.
func (p *TradingPair) Base() asset.Class { return p.base }

// Quote returns the quote asset class.
func (p *TradingPair) Quote() asset.Class { return p.quote }

// OrderClass returns the class of the ownership tokens this pair mints.
func (p *TradingPair) OrderClass() asset.Class { return p.orderClass }

// Order reads the current record of a live order. ok is false once the order
// has been closed.
func (p *TradingPair) Order(key uuid.UUID) (book.LimitOrder, bool) {
	order, ok := p.orders[key]
	if !ok {
		return book.LimitOrder{}, false
	}
	return *order, true
}

// Book exposes the order book for read-only walks (depth snapshots, tests).
func (p *TradingPair) Book() *book.OrderBook {
	return p.book
}

// orderSide infers the side of an order from the asset class deposited: the
// base asset makes it an Ask, the quote asset a Bid.
func (p *TradingPair) orderSide(class asset.Class) (book.Side, error) {
	switch class {
	case p.base:
		return book.Ask, nil
	case p.quote:
		return book.Bid, nil
	default:
		return 0, ErrInvalidAsset
	}
}

// escrow returns the pool holding the given side's native asset.
func (p *TradingPair) escrow(side book.Side) *asset.Funds {
	if side == book.Ask {
		return &p.baseFunds
	}
	return &p.quoteFunds
}

// takeUpTo withdraws amount from the pool, clamped to what the pool actually
// holds. Repeated truncating conversion can leave the pool a few smallest
// units short of the ideal entitlement; the shortfall is bounded by the dust
// rule and is absorbed by the withdrawing party.
func takeUpTo(pool *asset.Funds, amount decimal.Decimal) asset.Funds {
	if amount.GreaterThan(pool.Amount()) {
		amount = pool.Amount()
	}
	taken, err := pool.Split(amount)
	if err != nil {
		// Unreachable after clamping.
		panic(fmt.Sprintf("escrow withdrawal failed: %v", err))
	}
	return taken
}

// persist writes the order record through to the store, if one is attached.
func (p *TradingPair) persist(order *book.LimitOrder) error {
	if p.store == nil {
		return nil
	}
	return p.store.SaveOrder(order)
}

// NewLimitOrder creates a resting limit order from the deposited funds. The
// side is inferred from the funds' asset class and the quantity is the full
// deposited amount. Price is always quote units per one base unit, whatever
// the side. Returns the ownership token for the new order.
//
// Fails with book.ErrWouldCross if the order is priced to match immediately;
// such an order has to be submitted as a market order instead.
func (p *TradingPair) NewLimitOrder(funds asset.Funds, price decimal.Decimal) (asset.Token, error) {
	side, err := p.orderSide(funds.Class())
	if err != nil {
		return asset.Token{}, err
	}

	order, err := book.NewLimitOrder(uuid.New(), side, price, funds.Amount())
	if err != nil {
		return asset.Token{}, err
	}
	if err := p.book.InsertLimitOrder(order); err != nil {
		return asset.Token{}, err
	}
	order.Seq = p.seq
	p.seq++

	if err := p.escrow(side).Merge(funds); err != nil {
		// Side inference guarantees the classes match.
		panic(fmt.Sprintf("escrow deposit failed: %v", err))
	}
	p.orders[order.Key] = order

	if err := p.persist(order); err != nil {
		return asset.Token{}, err
	}

	log.Info().
		Str("order", order.Key.String()).
		Str("side", side.String()).
		Str("price", price.String()).
		Str("quantity", order.Quantity.String()).
		Msg("limit order placed")

	return asset.Token{Key: order.Key, Class: p.orderClass}, nil
}

// CloseLimitOrder burns the presented ownership token and settles the order
// it refers to. An order still resting (not completely filled) is removed
// from the book first, so closing doubles as cancellation. Returns the
// refund of the unfilled remainder in the order's native asset and the
// traded proceeds in the other asset; either may be zero-valued.
func (p *TradingPair) CloseLimitOrder(token asset.Token) (refund, traded asset.Funds, err error) {
	if token.Class != p.orderClass {
		return asset.Funds{}, asset.Funds{}, ErrInvalidToken
	}
	order, ok := p.orders[token.Key]
	if !ok {
		// Either forged or already burned; the arena is the authority.
		return asset.Funds{}, asset.Funds{}, ErrInvalidToken
	}

	// A completely filled order has already left the book.
	if order.QuantityFilled.LessThan(order.Quantity) {
		p.book.RemoveLimitOrder(order)
	}

	// Burn: the record ceases to exist, so the token can never settle twice.
	delete(p.orders, token.Key)
	if p.store != nil {
		if err := p.store.DeleteOrder(token.Key); err != nil {
			return asset.Funds{}, asset.Funds{}, err
		}
	}

	refundAmount, tradedAmount := order.CalculateCloseAmounts()
	switch order.Side {
	case book.Ask:
		refund = takeUpTo(&p.baseFunds, refundAmount)
		traded = takeUpTo(&p.quoteFunds, tradedAmount)
	case book.Bid:
		refund = takeUpTo(&p.quoteFunds, refundAmount)
		traded = takeUpTo(&p.baseFunds, tradedAmount)
	}

	log.Info().
		Str("order", order.Key.String()).
		Str("refund", refund.Amount().String()).
		Str("traded", traded.Amount().String()).
		Msg("limit order closed")

	return refund, traded, nil
}

// NewMarketOrder executes the deposited funds against the opposing side of
// the book, walking price levels best-first until the remaining funds are
// dust with respect to the last price seen. Returns the unspent remainder
// and the accumulated proceeds; proceeds is nil if nothing matched at all.
//
// If the opposing side empties while the remaining funds are not yet dust,
// ErrInsufficientLiquidity is returned together with the unspent funds and
// any proceeds accrued so far; nothing already matched is rolled back.
func (p *TradingPair) NewMarketOrder(funds asset.Funds) (asset.Funds, *asset.Funds, error) {
	marketSide, err := p.orderSide(funds.Class())
	if err != nil {
		return funds, nil, err
	}
	limitSide := marketSide.Opposite()

	var proceeds *asset.Funds

	// The initial last price is one smallest unit, which makes the dust
	// threshold exactly one whole unit: a market order smaller than that
	// returns untouched rather than chasing residue it cannot spend.
	lastPrice := book.MinUnit()
	for !book.AlmostZero(funds.Amount(), lastPrice) {
		key, ok := p.book.BestOrder(limitSide)
		if !ok {
			return funds, proceeds, ErrInsufficientLiquidity
		}
		order := p.orders[key]
		lastPrice = order.Price

		// Quantity the remaining funds can pay for, in the resting order's
		// native units, capped at the order's unfilled remainder.
		var supplied decimal.Decimal
		switch limitSide {
		case book.Ask:
			supplied = book.QuoteToBase(funds.Amount(), order.Price)
		case book.Bid:
			supplied = book.BaseToQuote(funds.Amount(), order.Price)
		}
		fillQuantity := decimal.Min(supplied, order.Remaining())

		if err := order.Fill(fillQuantity); err != nil {
			// The cap above makes this unreachable; treat as a defect.
			return funds, proceeds, fmt.Errorf("matching loop invariant broken: %w", err)
		}

		// Move the taker's payment into the maker-side escrow and take the
		// matched amount out of the opposite pool.
		var got asset.Funds
		switch limitSide {
		case book.Ask:
			payment, err := funds.Split(book.BaseToQuote(fillQuantity, order.Price))
			if err != nil {
				return funds, proceeds, fmt.Errorf("matching loop invariant broken: %w", err)
			}
			if err := p.quoteFunds.Merge(payment); err != nil {
				panic(fmt.Sprintf("escrow deposit failed: %v", err))
			}
			got = takeUpTo(&p.baseFunds, fillQuantity)
		case book.Bid:
			payment, err := funds.Split(book.QuoteToBase(fillQuantity, order.Price))
			if err != nil {
				return funds, proceeds, fmt.Errorf("matching loop invariant broken: %w", err)
			}
			if err := p.baseFunds.Merge(payment); err != nil {
				panic(fmt.Sprintf("escrow deposit failed: %v", err))
			}
			got = takeUpTo(&p.quoteFunds, fillQuantity)
		}

		if proceeds == nil {
			proceeds = &got
		} else if err := proceeds.Merge(got); err != nil {
			panic(fmt.Sprintf("proceeds merge failed: %v", err))
		}

		// A completely filled order leaves the book; its record stays in
		// the arena so the maker's token can still claim the proceeds.
		if order.Filled() {
			p.book.RemoveLimitOrder(order)
		}

		if err := p.persist(order); err != nil {
			return funds, proceeds, err
		}

		if p.reporter != nil {
			p.reporter.ReportFill(Fill{
				OrderKey: order.Key,
				Side:     order.Side,
				Price:    order.Price,
				Quantity: fillQuantity,
			})
		}

		log.Debug().
			Str("order", order.Key.String()).
			Str("price", order.Price.String()).
			Str("quantity", fillQuantity.String()).
			Msg("market order fill")
	}

	return funds, proceeds, nil
}
