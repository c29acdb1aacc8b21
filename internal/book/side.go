package book

// Side is the side of the order book an order rests on. For a trading pair
// XRD/rUSD an Ask offers XRD (the base asset) and wants rUSD in return, while
// a Bid offers rUSD (the quote asset) and wants XRD.
type Side int

const (
	Ask Side = iota
	Bid
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Ask {
		return Bid
	}
	return Ask
}

func (s Side) String() string {
	switch s {
	case Ask:
		return "ask"
	case Bid:
		return "bid"
	}
	return "unknown"
}
