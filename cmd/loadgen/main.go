package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"matchcore/book"
	"matchcore/engine"
)

func main() {
	totalOrders := flag.Int("orders", 500000, "number of orders to submit")
	priceLevels := flag.Int64("price-levels", 200, "unique price levels around the mid")
	tick := flag.Int64("tick", 1, "tick size for limit prices")
	basePrice := flag.Int64("base-price", 10000, "mid price used for randomization")
	symbol := flag.String("symbol", "SIM", "symbol to trade")
	cancelEvery := flag.Int("cancel-every", 0, "cancel a random previously submitted order id every N submissions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for deterministic random streams")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write heap profile to file")
	marketRatio := flag.Int("market-ratio", 5, "1 in N orders will be market instead of limit")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	eng := engine.NewEngine()
	eng.AddBook(*symbol)

	var matches int64
	eng.RegisterTradeObserver(func(book.Trade) { matches++ })

	start := time.Now()
	for i := 0; i < *totalOrders; i++ {
		id, side, kind, price, qty := nextRandomOrder(rng, i, *basePrice, *priceLevels, *tick, *marketRatio)
		if kind == book.Market {
			eng.PlaceMarket(*symbol, id, side, qty)
		} else {
			eng.PlaceLimit(*symbol, id, side, qty, price)
		}
		if *cancelEvery > 0 && i > 0 && i%*cancelEvery == 0 {
			target := rng.Intn(i)
			eng.Cancel("lg-" + strconv.Itoa(target))
		}
	}
	elapsed := time.Since(start)

	eng.Close()

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err == nil {
			defer f.Close()
			_ = pprof.WriteHeapProfile(f)
		}
	}

	ordersPerSec := float64(*totalOrders) / elapsed.Seconds()
	tradesPerSec := float64(matches) / elapsed.Seconds()

	fmt.Printf("submitted %d orders in %s (%.0f orders/s)\n", *totalOrders, elapsed.Truncate(time.Millisecond), ordersPerSec)
	fmt.Printf("matched %d trades (%.0f trades/s)\n", matches, tradesPerSec)
	fmt.Printf("config: symbol=%s tick=%d market-ratio=1/%d\n", *symbol, *tick, *marketRatio)
}

func nextRandomOrder(rng *rand.Rand, id int, mid, width, tick int64, marketRatio int) (orderID string, side book.Side, kind book.Kind, price, qty int64) {
	side = book.Side(rng.Intn(2))
	if side == book.Buy {
		price = mid + rng.Int63n(width)
	} else {
		offset := rng.Int63n(width)
		if mid > offset {
			price = mid - offset
		} else {
			price = tick
		}
	}

	kind = book.Limit
	if marketRatio > 0 && rng.Intn(marketRatio) == 0 {
		kind = book.Market
	}

	qty = rng.Int63n(5) + 1
	orderID = "lg-" + strconv.Itoa(id)
	return orderID, side, kind, price, qty
}
