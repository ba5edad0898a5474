package book

import (
	"fmt"
	"math"
)

// Side is the direction of an order.
type Side int

const (
	// Buy indicates a bid order.
	Buy Side = iota
	// Sell indicates an ask order.
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Kind is the execution style of an order.
type Kind int

const (
	// Limit orders rest on the book until filled or cancelled.
	Limit Kind = iota
	// Market orders consume available liquidity immediately and never rest.
	Market
)

func (k Kind) String() string {
	if k == Limit {
		return "limit"
	}
	return "market"
}

// Status is the lifecycle state of an order.
type Status int

const (
	New Status = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case New:
		return "new"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// NoBid and NoAsk are the sentinel best-price values observable on an empty
// side: numeric zero when no buy rests, numeric +inf (represented here as
// math.MaxInt64 for a scaled-integer price) when no sell rests. Neither
// value ever crosses a real resting order.
const (
	NoBid int64 = 0
	NoAsk int64 = math.MaxInt64
)

// Order is an inbound or resting instruction against a single instrument.
// Prices are scaled integers ("ticks"); the core never interprets the scale,
// it only compares and sums them, so no tick size is carried here.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Kind      Kind
	Size      int64
	Filled    int64
	Price     int64
	Timestamp int64 // nanoseconds, assigned by the Engine at arrival
	Status    Status

	seq int64 // book-local insertion tiebreak, not part of the data model
}

// NewLimitOrder constructs a resting-eligible order at a caller-supplied price.
func NewLimitOrder(id, symbol string, side Side, size, price int64) *Order {
	return &Order{ID: id, Symbol: symbol, Side: side, Kind: Limit, Size: size, Price: price, Status: New}
}

// NewMarketOrder constructs a taker-only order. Its price is set to the
// sentinel that compares as unbounded in its own favor, per the data model;
// matching never inspects it because Kind == Market always crosses.
func NewMarketOrder(id, symbol string, side Side, size int64) *Order {
	price := NoAsk
	if side == Sell {
		price = NoBid
	}
	return &Order{ID: id, Symbol: symbol, Side: side, Kind: Market, Size: size, Price: price, Status: New}
}

// Remaining is the unfilled portion of the order.
func (o *Order) Remaining() int64 { return o.Size - o.Filled }

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool { return o.Remaining() == 0 }

// applyFill enforces the conservation invariant (filled never exceeds size)
// and transitions status atomically with the quantity change. An attempt to
// overfill is a programmer error and is fatal, not recoverable.
func (o *Order) applyFill(n int64) {
	if n > o.Remaining() {
		panic(fmt.Sprintf("book: order %s cannot fill %d, only %d remaining", o.ID, n, o.Remaining()))
	}
	o.Filled += n
	if o.IsFilled() {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
}

// Trade is a record of one execution between a buy and a sell order.
type Trade struct {
	BuyOrderID  string
	SellOrderID string
	Symbol      string
	Size        int64
	Price       int64
	Timestamp   int64
}
