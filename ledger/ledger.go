// Package ledger records every executed trade to an embedded key-value
// store as a durable, queryable audit trail. This is downstream trade
// reporting only — the matching core itself holds no on-disk state and
// rebuilds empty on restart.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"matchcore/book"
)

// Recorder is a TradeObserver backed by a pebble key-value store. Keys are
// "trade/<symbol>/<timestamp>/<sequence>" with zero-padded numbers, so a
// range scan over a symbol prefix replays its trades in execution order.
type Recorder struct {
	db  *pebble.DB
	seq map[string]uint64
}

// Open opens (creating if absent) a pebble store rooted at dir.
func Open(dir string) (*Recorder, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Recorder{db: db, seq: make(map[string]uint64)}, nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}

// record encoding: [size:8][price:8][timestamp:8][buyOrderIDLen:2][buyOrderID][sellOrderID]
func encodeTrade(tr book.Trade) []byte {
	buy := []byte(tr.BuyOrderID)
	sell := []byte(tr.SellOrderID)
	buf := make([]byte, 8+8+8+2+len(buy)+len(sell))
	binary.BigEndian.PutUint64(buf[0:8], uint64(tr.Size))
	binary.BigEndian.PutUint64(buf[8:16], uint64(tr.Price))
	binary.BigEndian.PutUint64(buf[16:24], uint64(tr.Timestamp))
	binary.BigEndian.PutUint16(buf[24:26], uint16(len(buy)))
	copy(buf[26:26+len(buy)], buy)
	copy(buf[26+len(buy):], sell)
	return buf
}

func decodeTrade(symbol string, b []byte) (book.Trade, error) {
	if len(b) < 26 {
		return book.Trade{}, errors.New("ledger: record too short")
	}
	size := int64(binary.BigEndian.Uint64(b[0:8]))
	price := int64(binary.BigEndian.Uint64(b[8:16]))
	timestamp := int64(binary.BigEndian.Uint64(b[16:24]))
	buyLen := int(binary.BigEndian.Uint16(b[24:26]))
	if len(b) < 26+buyLen {
		return book.Trade{}, errors.New("ledger: truncated buy order id")
	}
	buy := string(b[26 : 26+buyLen])
	sell := string(b[26+buyLen:])
	return book.Trade{
		Symbol:      symbol,
		Size:        size,
		Price:       price,
		Timestamp:   timestamp,
		BuyOrderID:  buy,
		SellOrderID: sell,
	}, nil
}

// Record is the TradeObserver entry point: it appends tr durably, assigning
// a per-symbol sequence number to break ties between trades sharing a
// timestamp. Errors are returned to the caller, not swallowed, since
// persistence failures here are the whole point of the component.
func (r *Recorder) Record(tr book.Trade) error {
	seq := r.seq[tr.Symbol]
	r.seq[tr.Symbol] = seq + 1
	return r.db.Set(keyFor(tr.Symbol, tr.Timestamp, seq), encodeTrade(tr), pebble.Sync)
}

// ObserverFunc adapts Record to engine.TradeObserver, logging via onErr
// rather than propagating — an observer callback has no return path and
// must not block the engine's mutex waiting out a retry.
func (r *Recorder) ObserverFunc(onErr func(error)) func(book.Trade) {
	return func(tr book.Trade) {
		if err := r.Record(tr); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// ScanSymbol replays every recorded trade for symbol in execution order.
func (r *Recorder) ScanSymbol(symbol string, fn func(book.Trade) error) error {
	lower := []byte(fmt.Sprintf("trade/%s/", symbol))
	upper := append(append([]byte{}, lower...), 0xFF)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		tr, err := decodeTrade(symbol, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(tr); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(symbol string, timestamp int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("trade/%s/%020d/%020d", symbol, timestamp, seq))
}
