package models

import "time"

// Coord is a WGS84 point in decimal degrees.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Driver is the dispatch-facing driver record. Drivers are keyed by the
// platform-assigned UserID; Name is display only.
type Driver struct {
	UserID          int64      `json:"user_id"`
	Name            string     `json:"name"`
	Location        *Coord     `json:"location,omitempty"`
	LastUpdate      *time.Time `json:"last_update,omitempty"`
	SubscribedUntil string     `json:"subscribed_until,omitempty"` // RFC3339, kept raw so bad values survive a reload
	OrdersThisMonth int        `json:"orders_this_month"`
}

type DriverStats struct {
	Name            string    `json:"name"`
	Completed       int       `json:"completed"`
	Earned          float64   `json:"earned"`
	Rating          float64   `json:"rating"`
	RatingsCount    int       `json:"ratings_count"`
	Distance        float64   `json:"distance"`
	OrdersThisMonth int       `json:"orders_this_month"`
	Joined          time.Time `json:"joined"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderAccepted  OrderStatus = "accepted"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Coord   Coord  `json:"coord"`
}

type OrderItem struct {
	ItemID   int     `json:"item_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Order struct {
	ID                string      `json:"id"`
	Status            OrderStatus `json:"status"`
	Restaurant        string      `json:"restaurant"`
	Customer          Customer    `json:"customer"`
	Items             []OrderItem `json:"items,omitempty"`
	DriverID          int64       `json:"driver_id,omitempty"`
	DriverName        string      `json:"driver_name,omitempty"`
	Subtotal          float64     `json:"subtotal"`
	DeliveryFee       float64     `json:"delivery_fee"`
	DriverPay         float64     `json:"driver_pay"`
	PlatformProfit    float64     `json:"platform_profit"`
	Commission        float64     `json:"commission"`
	Total             float64     `json:"total"`
	DistanceKm        float64     `json:"distance_km"`
	DurationMin       float64     `json:"duration_min"`
	DurationEstimated bool        `json:"duration_estimated,omitempty"`
	Rated             bool        `json:"rated,omitempty"`
	CancelReason      string      `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	AcceptedAt        *time.Time  `json:"accepted_at,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	CancelledAt       *time.Time  `json:"cancelled_at,omitempty"`
}

// OrderPatch is a partial update; nil fields are left untouched.
type OrderPatch struct {
	Status       *OrderStatus
	DriverID     *int64
	DriverName   *string
	Rated        *bool
	CancelReason *string
	AcceptedAt   *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
}

// Apply merges the non-nil fields of p into o.
func (p OrderPatch) Apply(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.DriverID != nil {
		o.DriverID = *p.DriverID
	}
	if p.DriverName != nil {
		o.DriverName = *p.DriverName
	}
	if p.Rated != nil {
		o.Rated = *p.Rated
	}
	if p.CancelReason != nil {
		o.CancelReason = *p.CancelReason
	}
	if p.AcceptedAt != nil {
		t := *p.AcceptedAt
		o.AcceptedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		o.CompletedAt = &t
	}
	if p.CancelledAt != nil {
		t := *p.CancelledAt
		o.CancelledAt = &t
	}
}

type RestaurantAccount struct {
	TotalOrders    int     `json:"total_orders"`
	TotalRevenue   float64 `json:"total_revenue"`
	CommissionOwed float64 `json:"commission_owed"`
}

// Ledger is the platform-wide accounting view.
type Ledger struct {
	Profit    float64 `json:"profit"`
	Completed int     `json:"completed"`
	Cancelled int     `json:"cancelled"`
}

// LeaderboardEntry is one ranked row of the earnings leaderboard.
type LeaderboardEntry struct {
	DriverID int64       `json:"driver_id"`
	Stats    DriverStats `json:"stats"`
}

// StateVersion is written into every freshly initialized document.
const StateVersion = "5.0"

// State is the single persisted document.
type State struct {
	Profit      float64                      `json:"profit"`
	Completed   int                          `json:"completed"`
	Cancelled   int                          `json:"cancelled"`
	Drivers     map[int64]Driver             `json:"drivers"`
	Stats       map[int64]DriverStats        `json:"stats"`
	Orders      []Order                      `json:"orders"`
	Restaurants map[string]RestaurantAccount `json:"restaurants"`
	Created     time.Time                    `json:"created"`
	Version     string                       `json:"version"`
}

// NewState returns an empty document stamped with now.
func NewState(now time.Time) State {
	return State{
		Drivers:     make(map[int64]Driver),
		Stats:       make(map[int64]DriverStats),
		Orders:      []Order{},
		Restaurants: make(map[string]RestaurantAccount),
		Created:     now,
		Version:     StateVersion,
	}
}

// Normalize fills in collections a hand-edited or older document may lack.
func (s *State) Normalize() {
	if s.Drivers == nil {
		s.Drivers = make(map[int64]Driver)
	}
	if s.Stats == nil {
		s.Stats = make(map[int64]DriverStats)
	}
	if s.Orders == nil {
		s.Orders = []Order{}
	}
	if s.Restaurants == nil {
		s.Restaurants = make(map[string]RestaurantAccount)
	}
}

// Clone returns a copy that shares no mutable containers with s.
func (s State) Clone() State {
	out := s
	out.Drivers = make(map[int64]Driver, len(s.Drivers))
	for k, v := range s.Drivers {
		out.Drivers[k] = v
	}
	out.Stats = make(map[int64]DriverStats, len(s.Stats))
	for k, v := range s.Stats {
		out.Stats[k] = v
	}
	out.Orders = make([]Order, len(s.Orders))
	copy(out.Orders, s.Orders)
	out.Restaurants = make(map[string]RestaurantAccount, len(s.Restaurants))
	for k, v := range s.Restaurants {
		out.Restaurants[k] = v
	}
	return out
}
