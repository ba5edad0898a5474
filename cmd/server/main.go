package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"matchcore/engine"
	"matchcore/eventbus"
	"matchcore/gateway"
	"matchcore/ledger"
)

const (
	defaultListenAddr = ":8080"
	defaultSymbols    = "SIM"
)

func main() {
	listenAddr := getEnv("LISTEN_ADDR", defaultListenAddr)
	symbols := strings.Split(getEnv("SYMBOLS", defaultSymbols), ",")
	corsOrigin := getEnv("CORS_ORIGIN", "*")
	jwtSecret := os.Getenv("JWT_SECRET")
	tickSize := parseIntEnv("TICK_SIZE", 1)

	eng := engine.NewEngine()
	for _, symbol := range symbols {
		eng.AddBook(symbol)
	}
	defer eng.Close()

	if dir := os.Getenv("LEDGER_DIR"); dir != "" {
		rec, err := ledger.Open(dir)
		if err != nil {
			log.Fatalf("opening ledger at %s: %v", dir, err)
		}
		defer rec.Close()
		eng.RegisterTradeObserver(rec.ObserverFunc(func(err error) {
			log.Printf("ledger: failed to record trade: %v", err)
		}))
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := getEnv("KAFKA_TOPIC", "trades")
		pub := eventbus.NewPublisher(strings.Split(brokers, ","), topic)
		defer pub.Close()
		eng.RegisterTradeObserver(pub.PublishFunc(func(err error) {
			log.Printf("eventbus: failed to publish trade: %v", err)
		}))
	}

	srv := gateway.NewServer(eng, symbols, []byte(jwtSecret), corsOrigin, tickSize)

	log.Printf("listening on %s for symbols %s", listenAddr, symbols)
	if err := http.ListenAndServe(listenAddr, srv.Routes()); err != nil {
		log.Fatal(err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("invalid %s value %s: %v, falling back to %d", key, value, err, defaultValue)
		return defaultValue
	}
	return parsed
}
