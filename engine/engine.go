// Package engine routes orders to the correct per-symbol book, serializes
// access to the whole matching subsystem, and fans out executed trades to
// registered observers.
package engine

import (
	"sync"
	"time"

	"matchcore/book"
)

// TradeObserver is invoked synchronously, in registration order, for every
// trade produced by a place_* call, while the Engine's exclusion primitive
// is held. An observer must never reentrantly call back into the Engine —
// doing so is a contract violation (deadlock), left undefined by design.
type TradeObserver func(book.Trade)

type idEntry struct {
	id     string
	symbol string
}

// Engine owns the symbol->Book mapping, a multi-valued id->symbol index,
// and the ordered observer list. A single mutex covers all of it: every
// operation runs start-to-finish, including the round trip into the target
// Book's own worker loop and every observer callback, before the mutex is
// released.
type Engine struct {
	mu sync.Mutex

	books     map[string]*book.Book
	idIndex   map[string][]idEntry
	observers []TradeObserver

	lastTimestamp int64
	now           func() int64 // nanoseconds; overridden in tests for determinism
}

// NewEngine constructs an empty Engine with no books and no observers.
func NewEngine() *Engine {
	return &Engine{
		books:   make(map[string]*book.Book),
		idIndex: make(map[string][]idEntry),
		now:     func() int64 { return time.Now().UnixNano() },
	}
}

// AddBook creates a fresh Book for symbol if none exists. Idempotent.
func (e *Engine) AddBook(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.books[symbol]; ok {
		return
	}
	e.books[symbol] = book.NewBook(symbol)
}

// PlaceLimit constructs a Limit order with a freshly-assigned timestamp,
// matches it against symbol's book, rests the residual if any remains, and
// notifies observers of every trade produced, in emission order. Returns an
// empty list, with no state change, if symbol has no book.
func (e *Engine) PlaceLimit(symbol, id string, side book.Side, size, price int64) []book.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	bk, ok := e.books[symbol]
	if !ok {
		return nil
	}

	order := book.NewLimitOrder(id, symbol, side, size, price)
	order.Timestamp = e.nextTimestamp()

	e.pushIndex(id, symbol)
	trades := bk.Match(order)
	if order.Remaining() > 0 {
		bk.Add(order)
	} else {
		e.popIndex(id)
	}

	e.notify(trades)
	return trades
}

// PlaceMarket constructs a Market order with a freshly-assigned timestamp
// and matches it against symbol's book. The order is discarded after
// matching regardless of residual — market orders never rest — so the
// transient id->symbol entry is always cleared before returning. Returns an
// empty list, with no state change, if symbol has no book.
func (e *Engine) PlaceMarket(symbol, id string, side book.Side, size int64) []book.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	bk, ok := e.books[symbol]
	if !ok {
		return nil
	}

	order := book.NewMarketOrder(id, symbol, side, size)
	order.Timestamp = e.nextTimestamp()

	e.pushIndex(id, symbol)
	trades := bk.Match(order)
	e.popIndex(id)

	e.notify(trades)
	return trades
}

// Cancel looks up id in the engine index; if absent, returns false.
// Otherwise it selects the FIFO-first entry and instructs that entry's Book
// to cancel id. On success it removes the selected entry and returns true.
// Observer callbacks are never invoked for cancellations.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.idIndex[id]
	if len(entries) == 0 {
		return false
	}
	entry := entries[0]
	bk, ok := e.books[entry.symbol]
	if !ok {
		return false
	}
	if !bk.Cancel(id) {
		return false
	}
	if len(entries) == 1 {
		delete(e.idIndex, id)
	} else {
		e.idIndex[id] = entries[1:]
	}
	return true
}

// GetBook returns the Book for symbol, if one exists.
func (e *Engine) GetBook(symbol string) (*book.Book, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bk, ok := e.books[symbol]
	return bk, ok
}

// AllBooks returns every Book currently registered, in no particular order.
func (e *Engine) AllBooks() []*book.Book {
	e.mu.Lock()
	defer e.mu.Unlock()
	books := make([]*book.Book, 0, len(e.books))
	for _, bk := range e.books {
		books = append(books, bk)
	}
	return books
}

// RegisterTradeObserver appends an observer to the ordered notification list.
func (e *Engine) RegisterTradeObserver(obs TradeObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, obs)
}

// Close stops every book's worker loop. An Engine must not be used after Close.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, bk := range e.books {
		bk.Stop()
	}
}

func (e *Engine) notify(trades []book.Trade) {
	for _, trade := range trades {
		for _, obs := range e.observers {
			obs(trade)
		}
	}
}

// nextTimestamp returns a nanosecond timestamp strictly greater than the
// last one issued, forcing the wall clock forward by one if it has not
// itself advanced (or has gone backward) since the previous call.
func (e *Engine) nextTimestamp() int64 {
	t := e.now()
	if t <= e.lastTimestamp {
		t = e.lastTimestamp + 1
	}
	e.lastTimestamp = t
	return t
}

func (e *Engine) pushIndex(id, symbol string) {
	e.idIndex[id] = append(e.idIndex[id], idEntry{id: id, symbol: symbol})
}

// popIndex removes the most recently pushed entry for id. Safe to call
// immediately after pushIndex within the same locked call: no other
// operation can interleave and push another entry for the same id first.
func (e *Engine) popIndex(id string) {
	entries := e.idIndex[id]
	if len(entries) == 0 {
		return
	}
	entries = entries[:len(entries)-1]
	if len(entries) == 0 {
		delete(e.idIndex, id)
	} else {
		e.idIndex[id] = entries
	}
}
