package book

import (
	"container/heap"
	"fmt"
)

type requestType int

const (
	requestAdd requestType = iota
	requestCancel
	requestMatch
	requestBestBid
	requestBestAsk
	requestVolumeAtPrice
	requestAllOrders
	requestLastUpdate
	requestStop
)

type bookRequest struct {
	typ   requestType
	order *Order
	id    string
	side  Side
	price int64
	resp  chan bookResult
}

type bookResult struct {
	trades []Trade
	ok     bool
	price  int64
	orders []Order

	panicked any // a panic raised while serving the request, re-raised by call
}

// Book holds the resting orders for a single instrument and matches inbound
// orders against them under price-time priority. It runs as a single
// goroutine worker loop: every operation is a request submitted over an
// unbuffered channel and processed one at a time, so a *Book is safe to call
// concurrently even outside of whatever external serialization an Engine
// layers on top.
type Book struct {
	symbol string
	bids   priceTimeQueue
	asks   priceTimeQueue
	index  map[string][]*orderEntry // FIFO per id: earliest entry at index 0
	seq    int64
	clock  int64 // local monotonic counter backing LastUpdateTime

	reqCh chan bookRequest
	done  chan struct{}
}

// NewBook creates a Book for symbol and starts its worker loop.
func NewBook(symbol string) *Book {
	b := &Book{
		symbol: symbol,
		index:  make(map[string][]*orderEntry),
		reqCh:  make(chan bookRequest),
		done:   make(chan struct{}),
	}
	heap.Init(&b.bids)
	heap.Init(&b.asks)
	go b.run()
	return b
}

// Symbol is the instrument this book matches against.
func (b *Book) Symbol() string { return b.symbol }

func (b *Book) call(req bookRequest) bookResult {
	req.resp = make(chan bookResult, 1)
	b.reqCh <- req
	res := <-req.resp
	if res.panicked != nil {
		panic(res.panicked)
	}
	return res
}

// Add inserts a Limit order into the appropriate side. Calling Add with a
// Market order, a mismatched symbol, or an order with no remaining quantity
// is a programmer error and panics — the caller (Engine) is responsible for
// deciding, post-match, whether an order is eligible to rest.
func (b *Book) Add(order *Order) {
	b.call(bookRequest{typ: requestAdd, order: order})
}

// Cancel removes the FIFO-first resting order matching id, marks it
// Cancelled, and returns true. Returns false if no resting order matches.
func (b *Book) Cancel(id string) bool {
	return b.call(bookRequest{typ: requestCancel, id: id}).ok
}

// Match runs incoming against the contra side and returns the chronologically
// ordered trades produced. It never adds the residual back onto the book —
// that decision belongs to the caller.
func (b *Book) Match(incoming *Order) []Trade {
	return b.call(bookRequest{typ: requestMatch, order: incoming}).trades
}

// BestBid is the highest resting Buy price, or NoBid if none rest.
func (b *Book) BestBid() int64 {
	return b.call(bookRequest{typ: requestBestBid}).price
}

// BestAsk is the lowest resting Sell price, or NoAsk if none rest.
func (b *Book) BestAsk() int64 {
	return b.call(bookRequest{typ: requestBestAsk}).price
}

// VolumeAtPrice sums the remaining quantity of resting orders on side at
// exactly price.
func (b *Book) VolumeAtPrice(side Side, price int64) int64 {
	return b.call(bookRequest{typ: requestVolumeAtPrice, side: side, price: price}).price
}

// AllOrders returns a snapshot copy of every resting order on both sides.
func (b *Book) AllOrders() []Order {
	return b.call(bookRequest{typ: requestAllOrders}).orders
}

// LastUpdateTime returns a monotonically non-decreasing counter bumped on
// every mutating operation (add, cancel, or a match that produces a trade).
func (b *Book) LastUpdateTime() int64 {
	return b.call(bookRequest{typ: requestLastUpdate}).price
}

// Stop terminates the worker loop. A Book must not be used after Stop.
func (b *Book) Stop() {
	b.reqCh <- bookRequest{typ: requestStop}
	<-b.done
}

func (b *Book) run() {
	var current bookRequest
	defer func() {
		// A panic raised while serving a request is handed back to that
		// request's caller, and a fresh worker loop takes over the channel.
		if rec := recover(); rec != nil {
			current.resp <- bookResult{panicked: rec}
			go b.run()
		}
	}()
	for req := range b.reqCh {
		current = req
		switch req.typ {
		case requestAdd:
			b.doAdd(req.order)
			req.resp <- bookResult{}
		case requestCancel:
			req.resp <- bookResult{ok: b.doCancel(req.id)}
		case requestMatch:
			req.resp <- bookResult{trades: b.doMatch(req.order)}
		case requestBestBid:
			req.resp <- bookResult{price: b.bestBid()}
		case requestBestAsk:
			req.resp <- bookResult{price: b.bestAsk()}
		case requestVolumeAtPrice:
			req.resp <- bookResult{price: b.volumeAtPrice(req.side, req.price)}
		case requestAllOrders:
			req.resp <- bookResult{orders: b.allOrders()}
		case requestLastUpdate:
			req.resp <- bookResult{price: b.clock}
		case requestStop:
			close(b.done)
			return
		}
	}
}

func (b *Book) doAdd(order *Order) {
	if order.Kind != Limit {
		panic(fmt.Sprintf("book %s: Add called with a non-Limit order %s", b.symbol, order.ID))
	}
	if order.Symbol != b.symbol {
		panic(fmt.Sprintf("book %s: Add called with mismatched symbol %s for order %s", b.symbol, order.Symbol, order.ID))
	}
	if order.Remaining() == 0 {
		panic(fmt.Sprintf("book %s: Add called with no remaining quantity for order %s", b.symbol, order.ID))
	}
	b.seq++
	order.seq = b.seq
	entry := &orderEntry{order: order, isBid: order.Side == Buy}
	if order.Side == Buy {
		heap.Push(&b.bids, entry)
	} else {
		heap.Push(&b.asks, entry)
	}
	b.index[order.ID] = append(b.index[order.ID], entry)
	b.bump()
}

func (b *Book) doCancel(id string) bool {
	entries := b.index[id]
	if len(entries) == 0 {
		return false
	}
	entry := entries[0]
	if entry.isBid {
		b.bids.remove(entry)
	} else {
		b.asks.remove(entry)
	}
	entry.order.Status = Cancelled
	if len(entries) == 1 {
		delete(b.index, id)
	} else {
		b.index[id] = entries[1:]
	}
	b.bump()
	return true
}

func (b *Book) doMatch(incoming *Order) []Trade {
	if incoming.Remaining() == 0 {
		return nil
	}
	var contra *priceTimeQueue
	if incoming.Side == Buy {
		contra = &b.asks
	} else {
		contra = &b.bids
	}

	var trades []Trade
	for incoming.Remaining() > 0 {
		best := contra.peek()
		if best == nil {
			break
		}
		maker := best.order
		if incoming.Kind == Limit {
			if incoming.Side == Buy && incoming.Price < maker.Price {
				break
			}
			if incoming.Side == Sell && incoming.Price > maker.Price {
				break
			}
		}

		fill := min64(incoming.Remaining(), maker.Remaining())
		price := maker.Price
		incoming.applyFill(fill)
		maker.applyFill(fill)

		trade := Trade{Symbol: incoming.Symbol, Size: fill, Price: price, Timestamp: incoming.Timestamp}
		if incoming.Side == Buy {
			trade.BuyOrderID, trade.SellOrderID = incoming.ID, maker.ID
		} else {
			trade.BuyOrderID, trade.SellOrderID = maker.ID, incoming.ID
		}
		trades = append(trades, trade)

		if maker.IsFilled() {
			heap.Pop(contra)
			b.removeFromIndex(maker.ID, best)
		} else {
			heap.Fix(contra, best.index)
		}
	}

	if len(trades) > 0 {
		b.bump()
	}
	return trades
}

func (b *Book) removeFromIndex(id string, entry *orderEntry) {
	entries := b.index[id]
	for i, e := range entries {
		if e == entry {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(b.index, id)
	} else {
		b.index[id] = entries
	}
}

func (b *Book) bestBid() int64 {
	if best := b.bids.peek(); best != nil {
		return best.order.Price
	}
	return NoBid
}

func (b *Book) bestAsk() int64 {
	if best := b.asks.peek(); best != nil {
		return best.order.Price
	}
	return NoAsk
}

func (b *Book) volumeAtPrice(side Side, price int64) int64 {
	queue := b.bids
	if side == Sell {
		queue = b.asks
	}
	var total int64
	for _, entry := range queue {
		if entry.order.Price == price {
			total += entry.order.Remaining()
		}
	}
	return total
}

func (b *Book) allOrders() []Order {
	orders := make([]Order, 0, len(b.bids)+len(b.asks))
	for _, entry := range b.bids {
		orders = append(orders, *entry.order)
	}
	for _, entry := range b.asks {
		orders = append(orders, *entry.order)
	}
	return orders
}

func (b *Book) bump() { b.clock++ }

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
