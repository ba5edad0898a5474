package book

import "container/heap"

// orderEntry wraps a resting order for heap operations.
type orderEntry struct {
	order *Order
	index int
	isBid bool
}

// priceTimeQueue is a price-time priority queue: the head is always the
// best-priority resting order for its side (invariant 1 of the data model).
type priceTimeQueue []*orderEntry

func (q priceTimeQueue) Len() int { return len(q) }

func (q priceTimeQueue) Less(i, j int) bool {
	// Bids: higher price has priority. Asks: lower price has priority.
	// Equal price breaks by earliest timestamp, then by insertion order.
	a, b := q[i], q[j]
	if a.order.Price != b.order.Price {
		if a.isBid {
			return a.order.Price > b.order.Price
		}
		return a.order.Price < b.order.Price
	}
	if a.order.Timestamp != b.order.Timestamp {
		return a.order.Timestamp < b.order.Timestamp
	}
	return a.order.seq < b.order.seq
}

func (q priceTimeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *priceTimeQueue) Push(x any) {
	entry := x.(*orderEntry)
	entry.index = len(*q)
	*q = append(*q, entry)
}

func (q *priceTimeQueue) Pop() any {
	old := *q
	n := len(old)
	entry := old[n-1]
	entry.index = -1
	*q = old[0 : n-1]
	return entry
}

func (q priceTimeQueue) peek() *orderEntry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *priceTimeQueue) remove(entry *orderEntry) *orderEntry {
	return heap.Remove(q, entry.index).(*orderEntry)
}
