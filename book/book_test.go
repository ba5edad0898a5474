package book

import "testing"

// rest adds a Limit order directly onto the book at a caller-chosen
// timestamp, the way an Engine would after assigning one at arrival.
func rest(t *testing.T, b *Book, id string, side Side, size, price, ts int64) {
	t.Helper()
	o := NewLimitOrder(id, b.Symbol(), side, size, price)
	o.Timestamp = ts
	b.Add(o)
}

func TestS1SingleFullMatch(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "SELL1", Sell, 100, 10, 1)

	taker := NewLimitOrder("BUY1", "T", Buy, 100, 10)
	taker.Timestamp = 2
	trades := b.Match(taker)

	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.BuyOrderID != "BUY1" || tr.SellOrderID != "SELL1" || tr.Size != 100 || tr.Price != 10 {
		t.Fatalf("unexpected trade: %+v", tr)
	}
	if b.BestBid() != NoBid || b.BestAsk() != NoAsk {
		t.Fatalf("expected both sides empty, bid=%d ask=%d", b.BestBid(), b.BestAsk())
	}
}

func TestS2PricePriority(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "S1", Sell, 100, 10, 1)
	rest(t, b, "S2", Sell, 100, 10, 2)
	rest(t, b, "S3", Sell, 100, 9, 3)

	taker := NewLimitOrder("B1", "T", Buy, 200, 10)
	taker.Timestamp = 4
	trades := b.Match(taker)

	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].SellOrderID != "S3" || trades[0].Price != 9 || trades[0].Size != 100 {
		t.Fatalf("unexpected first trade: %+v", trades[0])
	}
	if trades[1].SellOrderID != "S1" || trades[1].Price != 10 || trades[1].Size != 100 {
		t.Fatalf("unexpected second trade: %+v", trades[1])
	}
	if b.BestAsk() != 10 || b.VolumeAtPrice(Sell, 10) != 100 {
		t.Fatalf("expected S2 to remain resting at 10, ask=%d vol=%d", b.BestAsk(), b.VolumeAtPrice(Sell, 10))
	}
}

func TestS3PartialFillRests(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "S1", Sell, 100, 10, 1)
	rest(t, b, "S2", Sell, 200, 11, 2)
	rest(t, b, "S3", Sell, 300, 12, 3)

	taker := NewLimitOrder("B1", "T", Buy, 1000, 15)
	taker.Timestamp = 4
	trades := b.Match(taker)

	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	wantSizes := []int64{100, 200, 300}
	wantPrices := []int64{10, 11, 12}
	for i, tr := range trades {
		if tr.Size != wantSizes[i] || tr.Price != wantPrices[i] {
			t.Fatalf("trade %d mismatch: %+v", i, tr)
		}
	}
	if taker.Remaining() != 400 {
		t.Fatalf("expected taker residual 400, got %d", taker.Remaining())
	}
	b.Add(taker)
	if b.BestBid() != 15 {
		t.Fatalf("expected resting best bid 15, got %d", b.BestBid())
	}
}

func TestS4MarketInsufficientLiquidity(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "B1", Buy, 100, 10, 1)
	rest(t, b, "B2", Buy, 100, 9, 2)

	taker := NewMarketOrder("M1", "T", Sell, 300)
	taker.Timestamp = 3
	trades := b.Match(taker)

	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Price != 10 || trades[0].Size != 100 {
		t.Fatalf("unexpected first trade: %+v", trades[0])
	}
	if trades[1].Price != 9 || trades[1].Size != 100 {
		t.Fatalf("unexpected second trade: %+v", trades[1])
	}
	if taker.Filled != 200 || taker.Remaining() != 100 {
		t.Fatalf("expected filled=200 remaining=100, got filled=%d remaining=%d", taker.Filled, taker.Remaining())
	}
}

func TestS5CancelThenCancelAgain(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "U", Buy, 100, 10, 1)

	if !b.Cancel("U") {
		t.Fatalf("expected first cancel to succeed")
	}
	if b.Cancel("U") {
		t.Fatalf("expected second cancel to fail")
	}
	if b.BestBid() != NoBid {
		t.Fatalf("expected empty book, bid=%d", b.BestBid())
	}
}

func TestS6DuplicateIDHandledFIFO(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "U", Buy, 100, 10, 1)
	rest(t, b, "U", Buy, 200, 11, 2)

	if !b.Cancel("U") {
		t.Fatalf("expected first cancel to succeed")
	}
	if b.BestBid() != 11 {
		t.Fatalf("expected best bid 11 after removing ts=1 entry, got %d", b.BestBid())
	}
	if !b.Cancel("U") {
		t.Fatalf("expected second cancel to succeed")
	}
	if b.BestBid() != NoBid {
		t.Fatalf("expected empty book, bid=%d", b.BestBid())
	}
	if b.Cancel("U") {
		t.Fatalf("expected third cancel to fail")
	}
}

func TestS7FIFOAtEqualPrice(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "A", Buy, 100, 10, 1)
	rest(t, b, "B", Buy, 100, 10, 2)
	rest(t, b, "C", Buy, 100, 11, 3)

	taker := NewLimitOrder("S", "T", Sell, 250, 9)
	taker.Timestamp = 4
	trades := b.Match(taker)

	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if trades[0].BuyOrderID != "C" || trades[0].Size != 100 || trades[0].Price != 11 {
		t.Fatalf("unexpected first trade: %+v", trades[0])
	}
	if trades[1].BuyOrderID != "A" || trades[1].Size != 100 || trades[1].Price != 10 {
		t.Fatalf("unexpected second trade: %+v", trades[1])
	}
	if trades[2].BuyOrderID != "B" || trades[2].Size != 50 || trades[2].Price != 10 {
		t.Fatalf("unexpected third trade: %+v", trades[2])
	}
	if b.BestBid() != 10 || b.VolumeAtPrice(Buy, 10) != 50 {
		t.Fatalf("expected B resting with remaining=50, bid=%d vol=%d", b.BestBid(), b.VolumeAtPrice(Buy, 10))
	}
}

func TestEmptyContraSideEdgeCases(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()

	limitTaker := NewLimitOrder("L1", "T", Buy, 50, 10)
	limitTaker.Timestamp = 1
	if trades := b.Match(limitTaker); len(trades) != 0 {
		t.Fatalf("expected no trades against empty contra side, got %d", len(trades))
	}
	b.Add(limitTaker)
	if b.BestBid() != 10 {
		t.Fatalf("expected limit taker to rest, bid=%d", b.BestBid())
	}

	marketTaker := NewMarketOrder("M1", "T", Sell, 1)
	marketTaker.Timestamp = 2
	b2 := NewBook("Z")
	defer b2.Stop()
	if trades := b2.Match(marketTaker); len(trades) != 0 {
		t.Fatalf("expected market order against empty book to produce no trades, got %d", len(trades))
	}
	if marketTaker.Filled != 0 {
		t.Fatalf("expected zero fill, got %d", marketTaker.Filled)
	}
}

func TestAlreadyFilledOrderMatchesNothing(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "S1", Sell, 100, 10, 1)

	filled := NewLimitOrder("B1", "T", Buy, 100, 10)
	filled.Timestamp = 2
	filled.Filled = 100
	filled.Status = Filled

	if trades := b.Match(filled); len(trades) != 0 {
		t.Fatalf("expected no trades for an already-filled order, got %d", len(trades))
	}
	if b.BestAsk() != 10 {
		t.Fatalf("book should be untouched, ask=%d", b.BestAsk())
	}
}

func TestAddRejectsProgrammerErrors(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()

	mustPanic := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	mustPanic("market order", func() {
		m := NewMarketOrder("M1", "T", Buy, 10)
		b.Add(m)
	})
	mustPanic("mismatched symbol", func() {
		o := NewLimitOrder("L1", "OTHER", Buy, 10, 5)
		b.Add(o)
	})
	mustPanic("no remaining quantity", func() {
		o := NewLimitOrder("L2", "T", Buy, 10, 5)
		o.Filled = 10
		b.Add(o)
	})
}

func TestCancelAdvancesLastUpdateTime(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "U", Buy, 100, 10, 1)
	before := b.LastUpdateTime()
	if !b.Cancel("U") {
		t.Fatalf("expected cancel to succeed")
	}
	if b.LastUpdateTime() == before && before != 0 {
		t.Fatalf("expected LastUpdateTime to advance on cancel")
	}
}

func TestAllOrdersReflectsBothSides(t *testing.T) {
	b := NewBook("T")
	defer b.Stop()
	rest(t, b, "bid1", Buy, 10, 5, 1)
	rest(t, b, "ask1", Sell, 20, 7, 2)

	orders := b.AllOrders()
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
}
