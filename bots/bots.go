package bots

import (
	"context"

	"matchcore/book"
)

// Bot represents a trading agent that can be run under a supervisor.
type Bot interface {
	Start(ctx context.Context, client EngineClient)
}

// Order is the minimal request shape bots submit through an EngineClient.
type Order struct {
	ID       string
	Side     book.Side
	Kind     book.Kind
	Price    int64
	Quantity int64
}

// BookView is a top-of-book snapshot exposed to bots. Use book.NoBid/NoAsk
// to test for an empty side.
type BookView struct {
	BestBid int64
	BestAsk int64
}

// EngineClient abstracts the minimal surface bots need from the matching
// engine — a single symbol's worth of access plus bookkeeping helpers.
type EngineClient interface {
	SubmitOrder(ctx context.Context, order Order) error
	CancelOrder(ctx context.Context, orderID string) error
	Snapshot(ctx context.Context) (BookView, error)
	Trades() <-chan book.Trade
	Symbol() string
	TickSize() int64
	NextID(prefix string) string
	OwnsOrder(id string) bool
}
