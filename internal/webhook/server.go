// Package webhook receives trade and band signals over HTTP and hands them
// to the engine worker. Handlers only authenticate, decode and enqueue;
// execution happens asynchronously and its results go to history.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joelsfoster/gizmo/internal/engine"
	"github.com/joelsfoster/gizmo/internal/exchange"
	"github.com/joelsfoster/gizmo/internal/signal"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 64 << 10

// Dispatcher queues decoded signals for execution.
type Dispatcher interface {
	Submit(t signal.Trade) bool
	SubmitBand(b signal.Band) bool
}

// StateSource exposes the engine state for /status.
type StateSource interface {
	State() engine.State
}

// OrderLister exposes recent orders for /status.
type OrderLister interface {
	RecentOrders() []exchange.OrderRecord
	OpenOrders() []exchange.OrderRecord
}

// MetricsInterface defines the metrics methods needed by the server
type MetricsInterface interface {
	WebhookInc(endpoint string, status int)
	AuthFailureInc()
}

type Config struct {
	AuthID string
	Port   int
	Symbol string
}

// Server is the inbound HTTP surface.
type Server struct {
	authID     []byte
	symbol     string
	dispatcher Dispatcher
	state      StateSource
	orders     OrderLister
	metrics    MetricsInterface
	started    time.Time
	server     *http.Server
}

// Response is the body returned by the signal endpoints.
type Response struct {
	Status string `json:"status"`
	Queued bool   `json:"queued"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse is the body of /status.
type StatusResponse struct {
	Symbol       string                 `json:"symbol"`
	State        engine.State           `json:"state"`
	GatePhase    engine.GatePhase       `json:"gatePhase"`
	RecentOrders []exchange.OrderRecord `json:"recentOrders"`
	OpenOrders   []exchange.OrderRecord `json:"openOrders"`
	Uptime       string                 `json:"uptime"`
	Timestamp    time.Time              `json:"timestamp"`
}

func NewServer(c Config, d Dispatcher, st StateSource) *Server {
	s := &Server{
		authID:     []byte(c.AuthID),
		symbol:     c.Symbol,
		dispatcher: d,
		state:      st,
		started:    time.Now(),
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// SetOrders attaches the order tracker shown on /status.
func (s *Server) SetOrders(o OrderLister) {
	s.orders = o
}

// SetMetrics sets the metrics interface for the server
func (s *Server) SetMetrics(m MetricsInterface) {
	s.metrics = m
}

// Handler returns the routing for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/placeTrade", s.handlePlaceTrade)
	mux.HandleFunc("/bbSignal", s.handleBandSignal)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting webhook server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePlaceTrade(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readAuthorized(w, r)
	if !ok {
		return
	}

	t, err := signal.DecodeTrade(body)
	if err != nil {
		log.Warn().Err(err).Msg("rejected trade signal")
		s.reply(w, r, http.StatusBadRequest, Response{Status: "invalid", Error: err.Error()})
		return
	}

	queued := s.dispatcher.Submit(t)
	log.Info().
		Str("action", t.Action).
		Str("order_type", string(t.OrderType)).
		Bool("queued", queued).
		Msg("trade signal received")
	s.reply(w, r, http.StatusOK, Response{Status: "accepted", Queued: queued})
}

func (s *Server) handleBandSignal(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readAuthorized(w, r)
	if !ok {
		return
	}

	b, err := signal.DecodeBand(body)
	if err != nil {
		log.Warn().Err(err).Msg("rejected band signal")
		s.reply(w, r, http.StatusBadRequest, Response{Status: "invalid", Error: err.Error()})
		return
	}

	queued := s.dispatcher.SubmitBand(b)
	log.Info().Str("bb_signal", b.Kind).Bool("queued", queued).Msg("band signal received")
	s.reply(w, r, http.StatusOK, Response{Status: "accepted", Queued: queued})
}

// readAuthorized reads the body and checks its auth_id before any payload
// validation runs.
func (s *Server) readAuthorized(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Method != http.MethodPost {
		s.reply(w, r, http.StatusMethodNotAllowed, Response{Status: "method not allowed"})
		return nil, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.reply(w, r, http.StatusBadRequest, Response{Status: "invalid", Error: "unreadable body"})
		return nil, false
	}

	var envelope struct {
		AuthID string `json:"auth_id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.reply(w, r, http.StatusBadRequest, Response{Status: "invalid", Error: "body is not a JSON object"})
		return nil, false
	}

	if !s.authorized(envelope.AuthID) {
		log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("webhook auth failed")
		if s.metrics != nil {
			s.metrics.AuthFailureInc()
		}
		s.reply(w, r, http.StatusUnauthorized, Response{Status: "unauthorized"})
		return nil, false
	}
	return body, true
}

func (s *Server) authorized(got string) bool {
	if len(s.authID) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), s.authID) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.state.State()
	resp := StatusResponse{
		Symbol:    s.symbol,
		State:     st,
		GatePhase: st.Gate.Phase(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
	if s.orders != nil {
		resp.RecentOrders = s.orders.RecentOrders()
		resp.OpenOrders = s.orders.OpenOrders()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, body Response) {
	if s.metrics != nil {
		s.metrics.WebhookInc(r.URL.Path, status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
