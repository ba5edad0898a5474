package bots

import (
	"context"
	"testing"
	"time"

	"matchcore/book"
	"matchcore/engine"
)

func newTestClient(t *testing.T, symbol string) (*engine.Engine, *ThrottledClient) {
	t.Helper()
	eng := engine.NewEngine()
	eng.AddBook(symbol)
	client := NewThrottledClient(eng, symbol, 1, nil)
	return eng, client
}

func TestThrottledClientSubmitAndCancel(t *testing.T) {
	eng, client := newTestClient(t, "T")
	defer eng.Close()
	ctx := context.Background()

	id := client.NextID("x")
	if err := client.SubmitOrder(ctx, Order{ID: id, Side: book.Buy, Kind: book.Limit, Price: 10, Quantity: 5}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !client.OwnsOrder(id) {
		t.Fatalf("expected client to own submitted order %s", id)
	}

	view, err := client.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if view.BestBid != 10 {
		t.Fatalf("expected best bid 10, got %d", view.BestBid)
	}

	if err := client.CancelOrder(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	view, _ = client.Snapshot(ctx)
	if view.BestBid != book.NoBid {
		t.Fatalf("expected empty book after cancel, got bid %d", view.BestBid)
	}
}

func TestThrottledClientTickSnapping(t *testing.T) {
	eng, client := newTestClient(t, "T")
	defer eng.Close()
	client.tickSize = 5
	ctx := context.Background()

	id := client.NextID("x")
	_ = client.SubmitOrder(ctx, Order{ID: id, Side: book.Buy, Kind: book.Limit, Price: 13, Quantity: 1})

	view, _ := client.Snapshot(ctx)
	if view.BestBid != 10 {
		t.Fatalf("expected price snapped down to 10, got %d", view.BestBid)
	}
}

func TestThrottledClientReceivesOwnTrades(t *testing.T) {
	eng, client := newTestClient(t, "T")
	defer eng.Close()
	ctx := context.Background()

	_ = client.SubmitOrder(ctx, Order{ID: "resting-sell", Side: book.Sell, Kind: book.Limit, Price: 10, Quantity: 5})
	_ = client.SubmitOrder(ctx, Order{ID: "taker-buy", Side: book.Buy, Kind: book.Limit, Price: 10, Quantity: 5})

	select {
	case tr := <-client.Trades():
		if tr.Price != 10 || tr.Size != 5 {
			t.Fatalf("unexpected trade: %+v", tr)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for trade notification")
	}
}

func TestMidPrice(t *testing.T) {
	cases := []struct {
		name string
		view BookView
		want int64
	}{
		{"both sides", BookView{BestBid: 10, BestAsk: 20}, 15},
		{"bid only", BookView{BestBid: 10, BestAsk: book.NoAsk}, 10},
		{"ask only", BookView{BestBid: book.NoBid, BestAsk: 20}, 20},
		{"empty", BookView{BestBid: book.NoBid, BestAsk: book.NoAsk}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := midPrice(c.view); got != c.want {
				t.Fatalf("midPrice(%+v) = %d, want %d", c.view, got, c.want)
			}
		})
	}
}

func TestSpreadCaptureBotPlacesAndRecenters(t *testing.T) {
	eng, client := newTestClient(t, "T")
	defer eng.Close()
	ctx := context.Background()

	_ = client.SubmitOrder(ctx, Order{ID: "seed-sell", Side: book.Sell, Kind: book.Limit, Price: 110, Quantity: 10})
	_ = client.SubmitOrder(ctx, Order{ID: "seed-buy", Side: book.Buy, Kind: book.Limit, Price: 100, Quantity: 10})

	bot := NewSpreadCaptureBot()
	view, _ := client.Snapshot(ctx)
	pair := bot.refreshPair(ctx, client, view, nil)
	if pair == nil {
		t.Fatalf("expected a pair to be placed against a two-sided book")
	}
	if !client.OwnsOrder(pair.buyID) || !client.OwnsOrder(pair.sellID) {
		t.Fatalf("expected both legs of the pair to be owned by the client")
	}

	emptyView := BookView{BestBid: book.NoBid, BestAsk: book.NoAsk}
	cleared := bot.refreshPair(ctx, client, emptyView, pair)
	if cleared != nil {
		t.Fatalf("expected pair to be cancelled once the book empties")
	}
}
