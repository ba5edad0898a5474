package bots

import (
	"context"
	"fmt"
	"sync"
	"time"

	"matchcore/book"
	"matchcore/engine"
)

// ThrottledClient adapts an Engine and a single symbol to the EngineClient
// surface bots consume, applying basic rate limiting and per-bot order
// bookkeeping on top.
type ThrottledClient struct {
	eng      *engine.Engine
	symbol   string
	tickSize int64
	throttle <-chan time.Time
	trades   chan book.Trade

	mu       sync.Mutex
	orderSeq int64
	owned    map[string]struct{}
}

// NewThrottledClient wraps eng's symbol book with rate limiting and
// bookkeeping. It registers its own trade observer on eng, so constructing
// more than one ThrottledClient for the same symbol will double-count trades
// delivered via Trades().
func NewThrottledClient(eng *engine.Engine, symbol string, tickSize int64, throttle <-chan time.Time) *ThrottledClient {
	c := &ThrottledClient{
		eng:      eng,
		symbol:   symbol,
		tickSize: tickSize,
		throttle: throttle,
		trades:   make(chan book.Trade, 64),
		owned:    make(map[string]struct{}),
	}
	eng.RegisterTradeObserver(func(tr book.Trade) {
		if tr.Symbol != c.symbol {
			return
		}
		select {
		case c.trades <- tr:
		default:
		}
	})
	return c
}

func (c *ThrottledClient) waitThrottle(ctx context.Context) error {
	if c.throttle == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.throttle:
		return nil
	}
}

// SubmitOrder snaps order.Price down to the nearest tick and dispatches it to
// the engine as a Limit or Market order depending on order.Kind.
func (c *ThrottledClient) SubmitOrder(ctx context.Context, order Order) error {
	if err := c.waitThrottle(ctx); err != nil {
		return err
	}
	if order.Kind == book.Limit && order.Price > 0 && order.Price%c.tickSize != 0 {
		order.Price = (order.Price / c.tickSize) * c.tickSize
	}

	switch order.Kind {
	case book.Market:
		c.eng.PlaceMarket(c.symbol, order.ID, order.Side, order.Quantity)
	default:
		c.eng.PlaceLimit(c.symbol, order.ID, order.Side, order.Quantity, order.Price)
	}

	c.mu.Lock()
	c.owned[order.ID] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *ThrottledClient) CancelOrder(ctx context.Context, orderID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.eng.Cancel(orderID)
	return nil
}

func (c *ThrottledClient) Snapshot(ctx context.Context) (BookView, error) {
	done := make(chan BookView, 1)
	go func() {
		bk, ok := c.eng.GetBook(c.symbol)
		if !ok {
			done <- BookView{BestBid: book.NoBid, BestAsk: book.NoAsk}
			return
		}
		done <- BookView{BestBid: bk.BestBid(), BestAsk: bk.BestAsk()}
	}()

	select {
	case <-ctx.Done():
		return BookView{}, ctx.Err()
	case view := <-done:
		return view, nil
	}
}

func (c *ThrottledClient) Trades() <-chan book.Trade {
	return c.trades
}

func (c *ThrottledClient) Symbol() string {
	return c.symbol
}

func (c *ThrottledClient) TickSize() int64 {
	return c.tickSize
}

func (c *ThrottledClient) NextID(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderSeq++
	return fmt.Sprintf("%s-%d", prefix, c.orderSeq)
}

func (c *ThrottledClient) OwnsOrder(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.owned[id]
	return ok
}
