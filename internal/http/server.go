package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/delivery"
	"github.com/example/delivery-dispatch/internal/dispatch"
	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/restaurants"
	"github.com/example/delivery-dispatch/internal/stats"
)

// Deps are the collaborators the API is built from. Locator and WSReg may
// be nil; the routes that need them then answer 503.
type Deps struct {
	Delivery    *delivery.Service
	Store       *stats.Store
	Catalog     *restaurants.Catalog
	Locator     geo.Locator
	WSReg       *dispatch.WSRegistry
	MapboxToken string
	Logger      *zap.Logger
}

type Server struct {
	deps   Deps
	logger *zap.Logger
	mux    *mux.Router
}

func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, logger: logging.OrNop(deps.Logger), mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/quote", s.handleQuote).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/accept", s.handleAcceptOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/complete", s.handleCompleteOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/rating", s.handleRateOrder).Methods(http.MethodPost)
	api.HandleFunc("/drivers/nearby", s.handleNearbyDrivers).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id:[0-9]+}/location", s.handleDriverLocation).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{id:[0-9]+}/subscription", s.handleSubscribe).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{id:[0-9]+}/stats", s.handleDriverStats).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/ledger", s.handleLedger).Methods(http.MethodGet)
	api.HandleFunc("/restaurants", s.handleListRestaurants).Methods(http.MethodGet)
	api.HandleFunc("/restaurants/{slug}", s.handleRestaurant).Methods(http.MethodGet)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/drivers/{id:[0-9]+}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
