// Package dispatch pushes order offers to drivers connected over websocket.
package dispatch

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/models"
)

const writeWait = 5 * time.Second

// Offer is what a driver's app receives for a new order.
type Offer struct {
	OrderID       string       `json:"order_id"`
	Restaurant    string       `json:"restaurant"`
	Pickup        models.Coord `json:"pickup"`
	PickupAddress string       `json:"pickup_address"`
	Dropoff       models.Coord `json:"dropoff"`
	DropoffAddr   string       `json:"dropoff_address"`
	DistanceKm    float64      `json:"distance_km"`
	DurationMin   float64      `json:"duration_min"`
	DriverPay     float64      `json:"driver_pay"`
	NavigationURL string       `json:"navigation_url,omitempty"`
	PickupETA     float64      `json:"pickup_eta_min,omitempty"`
}

// Conn is the subset of *websocket.Conn a session writes through.
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// WSSession represents a connected driver session
type WSSession struct {
	conn Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(offer Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(offer)
}

// WSRegistry holds one session per driver; a reconnect replaces the old one.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[int64]*WSSession
	log      *zap.Logger
}

func NewWSRegistry(log *zap.Logger) *WSRegistry {
	return &WSRegistry{sessions: make(map[int64]*WSSession), log: logging.OrNop(log)}
}

func (r *WSRegistry) Add(driverID int64, conn Conn) *WSSession {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	old := r.sessions[driverID]
	r.sessions[driverID] = s
	r.mu.Unlock()
	if old != nil {
		_ = old.conn.Close()
	}
	return s
}

// Remove drops the driver's session if it is still s.
func (r *WSRegistry) Remove(driverID int64, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[driverID] == s {
		delete(r.sessions, driverID)
	}
}

// Connected lists drivers with an open session, ascending.
func (r *WSRegistry) Connected() []int64 {
	r.mu.RLock()
	out := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *WSRegistry) Offer(driverID int64, offer Offer) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(offer); err != nil {
		r.log.Warn("ws send error", zap.Int64("driver_id", driverID), zap.String("order_id", offer.OrderID), zap.Error(err))
		r.Remove(driverID, s)
		return err
	}
	return nil
}

var ErrNoSession = errors.New("no ws session")
