package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/delivery"
	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/pricing"
	"github.com/example/delivery-dispatch/internal/restaurants"
	"github.com/example/delivery-dispatch/internal/stats"
)

const maxBodyBytes = 1 << 20

type quoteRequest struct {
	Pickup  models.Coord `json:"pickup"`
	Dropoff models.Coord `json:"dropoff"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := s.deps.Delivery.Quote(r.Context(), req.Pickup, req.Dropoff)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var cmd delivery.PlaceOrderCommand
	if !decode(w, r, &cmd) {
		return
	}
	o, err := s.deps.Delivery.PlaceOrder(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type orderView struct {
	models.Order
	StaticMapURL  string `json:"static_map_url,omitempty"`
	NavigationURL string `json:"navigation_url,omitempty"`
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.deps.Delivery.GetOrder(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view := orderView{Order: o}
	if rest, ok := s.deps.Catalog.Lookup(o.Restaurant); ok {
		view.NavigationURL, _ = geo.NavigationURL(rest.Coord, o.Customer.Coord)
		if s.deps.MapboxToken != "" {
			view.StaticMapURL, _ = geo.StaticMapURL(s.deps.MapboxToken, rest.Coord, o.Customer.Coord, 0, 0)
		}
	}
	writeJSON(w, http.StatusOK, view)
}

type driverRequest struct {
	DriverID int64 `json:"driver_id"`
}

func (s *Server) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := s.deps.Delivery.AcceptOrder(r.Context(), mux.Vars(r)["id"], req.DriverID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := s.deps.Delivery.CompleteOrder(r.Context(), mux.Vars(r)["id"], req.DriverID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decode(w, r, &req) {
		return
	}
	o, err := s.deps.Delivery.CancelOrder(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleRateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating int `json:"rating"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Delivery.RateDriver(r.Context(), mux.Vars(r)["id"], req.Rating); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type locationRequest struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Delivery.UpdateLocation(r.Context(), id, req.Name, models.Coord{Lat: req.Lat, Lon: req.Lon}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	until, err := s.deps.Delivery.Subscribe(r.Context(), id, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"driver_id": id, "subscribed_until": until})
}

func (s *Server) handleDriverStats(w http.ResponseWriter, r *http.Request) {
	id, ok := driverID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Delivery.Profile(id))
}

func (s *Server) handleNearbyDrivers(w http.ResponseWriter, r *http.Request) {
	if s.deps.Locator == nil {
		http.Error(w, "driver locator not configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err := errors.Join(err1, err2); err != nil {
		http.Error(w, "lat and lon are required", http.StatusBadRequest)
		return
	}
	c := models.Coord{Lat: lat, Lon: lon}
	if err := geo.ValidateCoord(c); err != nil {
		s.writeError(w, r, err)
		return
	}
	radius := queryFloat(q.Get("radius_km"), 5)
	limit := queryInt(q.Get("limit"), 10)
	hits, err := s.deps.Locator.Nearby(r.Context(), c, radius, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"), 10)
	writeJSON(w, http.StatusOK, s.deps.Store.GetLeaderboard(limit))
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Store.Ledger())
}

func (s *Server) handleListRestaurants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.Slugs())
}

type restaurantView struct {
	restaurants.Restaurant
	Account models.RestaurantAccount `json:"account"`
}

func (s *Server) handleRestaurant(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	rest, ok := s.deps.Catalog.Lookup(slug)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: %q", restaurants.ErrUnknownRestaurant, slug))
		return
	}
	view := restaurantView{Restaurant: rest}
	view.Account, _ = s.deps.Store.Restaurant(slug)
	writeJSON(w, http.StatusOK, view)
}

var upgrader = websocket.Upgrader{}

// handleWS registers the driver's socket for order offers and holds it
// until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.WSReg == nil {
		http.Error(w, "dispatch not configured", http.StatusServiceUnavailable)
		return
	}
	id, ok := driverID(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", zap.Int64("driver_id", id), zap.Error(err))
		return
	}
	sess := s.deps.WSReg.Add(id, conn)
	s.logger.Info("driver connected", zap.Int64("driver_id", id))
	defer func() {
		s.deps.WSReg.Remove(id, sess)
		_ = conn.Close()
		s.logger.Info("driver disconnected", zap.Int64("driver_id", id))
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.String("request_id", requestIDFromContext(r.Context())), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var coordErr *geo.InvalidCoordinateError
	switch {
	case errors.As(err, &coordErr),
		errors.Is(err, pricing.ErrInvalidMetric),
		errors.Is(err, stats.ErrInvalidRating),
		errors.Is(err, stats.ErrInvalidDriver),
		errors.Is(err, stats.ErrInvalidSubscription),
		errors.Is(err, restaurants.ErrEmptyOrder),
		errors.Is(err, restaurants.ErrUnknownItem),
		errors.Is(err, restaurants.ErrInvalidQuantity),
		errors.Is(err, restaurants.ErrBelowMinimum):
		return http.StatusBadRequest
	case errors.Is(err, delivery.ErrOrderNotFound),
		errors.Is(err, restaurants.ErrUnknownRestaurant):
		return http.StatusNotFound
	case errors.Is(err, delivery.ErrNotSubscribed),
		errors.Is(err, delivery.ErrNotAssigned):
		return http.StatusForbidden
	case errors.Is(err, delivery.ErrInvalidTransition),
		errors.Is(err, delivery.ErrAlreadyRated):
		return http.StatusConflict
	case errors.Is(err, delivery.ErrAddressNotFound),
		errors.Is(err, delivery.ErrOutOfRange):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func driverID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid driver id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func queryFloat(v string, def float64) float64 {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
