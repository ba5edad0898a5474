package bots

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"matchcore/book"
	"matchcore/engine"
)

// Supervisor orchestrates multiple bots with a shared client and PnL tracking.
type Supervisor struct {
	bots     []Bot
	client   *ThrottledClient
	pnl      *pnlTracker
	throttle *time.Ticker
}

// NewSupervisor builds a default swarm of bots and a throttled client against
// a single symbol on eng. eng must already have a book for symbol.
func NewSupervisor(eng *engine.Engine, symbol string, tickSize int64, orderInterval time.Duration) *Supervisor {
	throttle := time.NewTicker(orderInterval)
	client := NewThrottledClient(eng, symbol, tickSize, throttle.C)
	bots := []Bot{
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewSpreadCaptureBot(),
	}
	return &Supervisor{
		bots:     bots,
		client:   client,
		pnl:      &pnlTracker{},
		throttle: throttle,
	}
}

// Start launches all bots and PnL monitoring until the context is canceled.
func (s *Supervisor) Start(ctx context.Context) {
	logTicker := time.NewTicker(2 * time.Second)
	defer logTicker.Stop()
	defer s.throttle.Stop()

	for _, bot := range s.bots {
		b := bot
		go b.Start(ctx, s.client)
	}

	go s.consumeTrades(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-logTicker.C:
			pos, cash := s.pnl.Snapshot()
			log.Printf("PNL position=%d cash=%d", pos, cash)
		}
	}
}

func (s *Supervisor) consumeTrades(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trade, ok := <-s.client.Trades():
			if !ok {
				return
			}
			s.pnl.Record(trade, s.client)
		}
	}
}

type pnlTracker struct {
	mu       sync.Mutex
	position int64
	cash     int64
}

func (p *pnlTracker) Record(trade book.Trade, client EngineClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if client.OwnsOrder(trade.BuyOrderID) {
		p.position += trade.Size
		p.cash -= trade.Price * trade.Size
	}
	if client.OwnsOrder(trade.SellOrderID) {
		p.position -= trade.Size
		p.cash += trade.Price * trade.Size
	}
}

func (p *pnlTracker) Snapshot() (int64, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.cash
}

// RunExampleSupervisor demonstrates spinning up the supervisor against a
// fresh engine with a single book.
func RunExampleSupervisor() {
	eng := engine.NewEngine()
	eng.AddBook("SIM")
	sup := NewSupervisor(eng, "SIM", 1, 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sup.Start(ctx)
	eng.Close()
	fmt.Printf("final PNL position=%d cash=%d\n", sup.pnl.position, sup.pnl.cash)
}
