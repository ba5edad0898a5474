// Package gateway exposes the matching engine over HTTP and WebSocket,
// validating inbound fields and mapping core errors onto status codes —
// the engine and book packages trust their callers completely, so this is
// where that trust boundary actually lives.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"matchcore/book"
	"matchcore/engine"
	"matchcore/stream"
)

// Server wires an Engine to the HTTP surface described by the v1 API.
type Server struct {
	eng        *engine.Engine
	tickSize   int64
	tradeHub   *stream.Hub[book.Trade]
	bookHubs   map[string]*stream.Hub[bookView]
	upgrader   websocket.Upgrader
	jwtSecret  []byte
	corsOrigin string
}

type bookView struct {
	Symbol  string `json:"symbol"`
	BestBid int64  `json:"bestBid"`
	BestAsk int64  `json:"bestAsk"`
}

// NewServer constructs a Server over eng. symbols lists every symbol the
// gateway should expose a book-update WebSocket for; jwtSecret verifies
// bearer tokens on every request when non-empty, and disables auth when
// empty (matching the teacher's opt-in auth behavior). tickSize is the
// gateway's own price-scale policy — the core itself is tick-size agnostic.
func NewServer(eng *engine.Engine, symbols []string, jwtSecret []byte, corsOrigin string, tickSize int64) *Server {
	if tickSize <= 0 {
		tickSize = 1
	}
	s := &Server{
		eng:        eng,
		tickSize:   tickSize,
		tradeHub:   stream.NewHub[book.Trade](),
		bookHubs:   make(map[string]*stream.Hub[bookView]),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		jwtSecret:  jwtSecret,
		corsOrigin: corsOrigin,
	}
	for _, symbol := range symbols {
		s.bookHubs[symbol] = stream.NewHub[bookView]()
	}

	eng.RegisterTradeObserver(s.onTrade)
	go s.pollBooks(symbols)
	return s
}

func (s *Server) onTrade(tr book.Trade) {
	s.tradeHub.Broadcast(tr)
}

// pollBooks periodically samples top-of-book for every symbol and
// broadcasts changes. The engine has no push notification for resting-order
// activity that produces no trade (e.g. a new best bid with no crossing
// order), so periodic sampling is the simplest correct source for this feed.
func (s *Server) pollBooks(symbols []string) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	last := make(map[string]bookView, len(symbols))

	for range ticker.C {
		for _, symbol := range symbols {
			bk, ok := s.eng.GetBook(symbol)
			if !ok {
				continue
			}
			view := bookView{Symbol: symbol, BestBid: bk.BestBid(), BestAsk: bk.BestAsk()}
			if last[symbol] == view {
				continue
			}
			last[symbol] = view
			s.bookHubs[symbol].Broadcast(view)
		}
	}
}

// Routes builds the v1 API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withCORS)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.withAuth)
		r.Post("/orders", s.handlePlaceOrder)
		r.Delete("/orders/{id}", s.handleCancel)
		r.Get("/books/{symbol}", s.handleBookSnapshot)
		r.Get("/books", s.handleAllBooks)
		r.Get("/ws/trades", s.handleTradeStream)
		r.Get("/ws/books/{symbol}", s.handleBookStream)
	})
	return r
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, errors.New("invalid or expired token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic maps a panic escaping a core contract violation (e.g. an
// over-fill) onto a 500, logging the diagnostic server-side rather than
// leaking it to the caller.
func (s *Server) recoverPanic(w http.ResponseWriter, r *http.Request) {
	if rec := recover(); rec != nil {
		log.Printf("gateway: recovered from panic handling %s %s: %v", r.Method, r.URL.Path, rec)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

type placeOrderRequest struct {
	Symbol string `json:"symbol"`
	ID     string `json:"id"`
	Side   string `json:"side"`
	Kind   string `json:"kind"`
	Size   int64  `json:"size"`
	Price  int64  `json:"price,omitempty"`
}

type tradeResponse struct {
	BuyOrderID  string `json:"buyOrderId"`
	SellOrderID string `json:"sellOrderId"`
	Symbol      string `json:"symbol"`
	Size        int64  `json:"size"`
	Price       int64  `json:"price"`
	Timestamp   int64  `json:"timestamp"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	defer s.recoverPanic(w, r)

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, errors.New("symbol is required"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Size <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("size must be positive"))
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if kind == book.Limit && req.Price <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("price must be positive for a limit order"))
		return
	}
	if kind == book.Limit {
		req.Price = (req.Price / s.tickSize) * s.tickSize
	}
	if _, ok := s.eng.GetBook(req.Symbol); !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown symbol %s", req.Symbol))
		return
	}

	var trades []book.Trade
	if kind == book.Market {
		trades = s.eng.PlaceMarket(req.Symbol, req.ID, side, req.Size)
	} else {
		trades = s.eng.PlaceLimit(req.Symbol, req.ID, side, req.Size, req.Price)
	}

	writeJSON(w, http.StatusOK, toTradeResponses(trades))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	defer s.recoverPanic(w, r)

	id := chi.URLParam(r, "id")
	if !s.eng.Cancel(id) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no resting order %s", id))
		return
	}
	w.WriteHeader(http.StatusOK)
}

type bookSnapshotResponse struct {
	Symbol  string `json:"symbol"`
	BestBid int64  `json:"bestBid"`
	BestAsk int64  `json:"bestAsk"`
	Depth   int    `json:"depth"`
}

func (s *Server) handleBookSnapshot(w http.ResponseWriter, r *http.Request) {
	defer s.recoverPanic(w, r)

	symbol := chi.URLParam(r, "symbol")
	bk, ok := s.eng.GetBook(symbol)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown symbol %s", symbol))
		return
	}
	writeJSON(w, http.StatusOK, bookSnapshotResponse{
		Symbol:  symbol,
		BestBid: bk.BestBid(),
		BestAsk: bk.BestAsk(),
		Depth:   len(bk.AllOrders()),
	})
}

func (s *Server) handleAllBooks(w http.ResponseWriter, r *http.Request) {
	defer s.recoverPanic(w, r)

	books := s.eng.AllBooks()
	symbols := make([]string, 0, len(books))
	for _, bk := range books {
		symbols = append(symbols, bk.Symbol())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"symbols": symbols})
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.tradeHub.Subscribe(32)
	defer s.tradeHub.Unsubscribe(sub)

	for trade := range s.tradeHub.Receive(sub) {
		if err := conn.WriteJSON(toTradeResponse(trade)); err != nil {
			return
		}
	}
}

func (s *Server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	hub, ok := s.bookHubs[symbol]
	if !ok {
		http.Error(w, "unknown symbol", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := hub.Subscribe(32)
	defer hub.Unsubscribe(sub)

	for view := range hub.Receive(sub) {
		if err := conn.WriteJSON(view); err != nil {
			return
		}
	}
}

func parseSide(value string) (book.Side, error) {
	switch strings.ToLower(value) {
	case "buy", "bid", "b":
		return book.Buy, nil
	case "sell", "ask", "s":
		return book.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", value)
	}
}

func parseKind(value string) (book.Kind, error) {
	switch strings.ToLower(value) {
	case "limit", "lmt", "":
		return book.Limit, nil
	case "market", "mkt":
		return book.Market, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", value)
	}
}

func toTradeResponses(trades []book.Trade) []tradeResponse {
	out := make([]tradeResponse, 0, len(trades))
	for _, tr := range trades {
		out = append(out, toTradeResponse(tr))
	}
	return out
}

func toTradeResponse(tr book.Trade) tradeResponse {
	return tradeResponse{
		BuyOrderID:  tr.BuyOrderID,
		SellOrderID: tr.SellOrderID,
		Symbol:      tr.Symbol,
		Size:        tr.Size,
		Price:       tr.Price,
		Timestamp:   tr.Timestamp,
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
