package bots

import "matchcore/book"

func midPrice(view BookView) int64 {
	bid, ask := view.BestBid, view.BestAsk
	haveBid := bid != book.NoBid
	haveAsk := ask != book.NoAsk

	switch {
	case haveBid && haveAsk:
		return (bid + ask) / 2
	case haveBid:
		return bid
	case haveAsk:
		return ask
	default:
		return 0
	}
}
