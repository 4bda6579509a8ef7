package stats

import (
	"context"
	"sort"
	"time"

	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/pricing"
)

// initialRating is what a driver shows before the first rating arrives. It
// carries no weight: the first rating replaces it.
const initialRating = 5.0

// SetDriverLocation upserts the driver and records its position. Positions
// outside WGS84 bounds are rejected with *geo.InvalidCoordinateError.
func (s *Store) SetDriverLocation(ctx context.Context, id int64, name string, loc models.Coord) error {
	if err := checkDriver(id); err != nil {
		return err
	}
	if err := geo.ValidateCoord(loc); err != nil {
		return err
	}
	return s.mutate(ctx, func(st *models.State, now time.Time) error {
		d := st.Drivers[id]
		d.UserID = id
		if name != "" {
			d.Name = name
		}
		c := loc
		d.Location = &c
		d.LastUpdate = &now
		st.Drivers[id] = d
		return nil
	})
}

func (s *Store) Driver(id int64) (models.Driver, bool) {
	var (
		d  models.Driver
		ok bool
	)
	s.view(func(st *models.State) { d, ok = st.Drivers[id] })
	return d, ok
}

// IsDriverSubscribed reports whether the driver's subscription ends strictly
// after now. Absent or malformed timestamps count as unsubscribed.
func (s *Store) IsDriverSubscribed(id int64) bool {
	var until string
	s.view(func(st *models.State) { until = st.Drivers[id].SubscribedUntil })
	if until == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, until)
	if err != nil {
		return false
	}
	return t.After(s.clock.Now())
}

// SubscribeDriver opens a subscription window of days starting now and
// resets the monthly order counter. Re-subscribing restarts the window from
// now; it does not stack on top of the previous expiry.
func (s *Store) SubscribeDriver(ctx context.Context, id int64, name string, days int) (time.Time, error) {
	if err := checkDriver(id); err != nil {
		return time.Time{}, err
	}
	if days <= 0 {
		return time.Time{}, ErrInvalidSubscription
	}
	var until time.Time
	err := s.mutate(ctx, func(st *models.State, now time.Time) error {
		until = now.AddDate(0, 0, days)
		d := st.Drivers[id]
		d.UserID = id
		if name != "" {
			d.Name = name
		}
		d.SubscribedUntil = until.Format(time.RFC3339Nano)
		d.OrdersThisMonth = 0
		st.Drivers[id] = d
		if ds, ok := st.Stats[id]; ok {
			ds.OrdersThisMonth = 0
			st.Stats[id] = ds
		}
		return nil
	})
	return until, err
}

// CompleteDriverOrder books one delivered order for the driver and the
// platform ledger. Sums are rounded to cents after adding.
func (s *Store) CompleteDriverOrder(ctx context.Context, id int64, name string, driverPay, distanceKm, platformProfit float64) error {
	if err := checkDriver(id); err != nil {
		return err
	}
	if err := checkBooking(driverPay, distanceKm, platformProfit); err != nil {
		return err
	}
	return s.mutate(ctx, func(st *models.State, now time.Time) error {
		bookDriverOrder(st, id, name, driverPay, distanceKm, platformProfit, now)
		return nil
	})
}

func checkBooking(driverPay, distanceKm, platformProfit float64) error {
	if err := checkAmount("driver_pay", driverPay); err != nil {
		return err
	}
	if err := checkAmount("distance_km", distanceKm); err != nil {
		return err
	}
	return checkAmount("platform_profit", platformProfit)
}

func bookDriverOrder(st *models.State, id int64, name string, driverPay, distanceKm, platformProfit float64, now time.Time) {
	ds := statsFor(st, id, name, now)
	ds.Completed++
	ds.Earned = pricing.Round2(ds.Earned + driverPay)
	ds.Distance = pricing.Round2(ds.Distance + distanceKm)
	ds.OrdersThisMonth++
	st.Stats[id] = ds

	if d, ok := st.Drivers[id]; ok {
		d.OrdersThisMonth++
		st.Drivers[id] = d
	}

	st.Profit = pricing.Round2(st.Profit + platformProfit)
	st.Completed++
}

// AddDriverRating folds one 1..5 rating into the driver's running mean.
func (s *Store) AddDriverRating(ctx context.Context, id int64, rating int) error {
	if err := checkDriver(id); err != nil {
		return err
	}
	if rating < 1 || rating > 5 {
		return &InvalidRatingError{Rating: rating}
	}
	return s.mutate(ctx, func(st *models.State, now time.Time) error {
		ds := statsFor(st, id, "", now)
		n := float64(ds.RatingsCount)
		ds.Rating = (ds.Rating*n + float64(rating)) / (n + 1)
		ds.RatingsCount++
		st.Stats[id] = ds
		return nil
	})
}

func (s *Store) DriverStats(id int64) (models.DriverStats, bool) {
	var (
		ds models.DriverStats
		ok bool
	)
	s.view(func(st *models.State) { ds, ok = st.Stats[id] })
	return ds, ok
}

// GetLeaderboard ranks drivers by earnings, highest first, ties broken by
// driver id ascending. limit <= 0 returns every driver.
func (s *Store) GetLeaderboard(limit int) []models.LeaderboardEntry {
	var board []models.LeaderboardEntry
	s.view(func(st *models.State) { board = leaderboard(st) })
	if limit > 0 && limit < len(board) {
		board = board[:limit]
	}
	return board
}

// GetDriverRank returns the driver's 1-based leaderboard position, or
// len(leaderboard)+1 when the driver has no stats yet.
func (s *Store) GetDriverRank(id int64) int {
	board := s.GetLeaderboard(0)
	for i, e := range board {
		if e.DriverID == id {
			return i + 1
		}
	}
	return len(board) + 1
}

func leaderboard(st *models.State) []models.LeaderboardEntry {
	board := make([]models.LeaderboardEntry, 0, len(st.Stats))
	for id, ds := range st.Stats {
		board = append(board, models.LeaderboardEntry{DriverID: id, Stats: ds})
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].Stats.Earned != board[j].Stats.Earned {
			return board[i].Stats.Earned > board[j].Stats.Earned
		}
		return board[i].DriverID < board[j].DriverID
	})
	return board
}

// statsFor returns the driver's stats, initializing them on first use.
func statsFor(st *models.State, id int64, name string, now time.Time) models.DriverStats {
	ds, ok := st.Stats[id]
	if !ok {
		ds = models.DriverStats{Rating: initialRating, Joined: now}
	}
	if name == "" {
		name = st.Drivers[id].Name
	}
	if name != "" {
		ds.Name = name
	}
	return ds
}
