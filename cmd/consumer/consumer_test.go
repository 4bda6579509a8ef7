package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/models"
)

// fakeUpserter fails the first n calls, then succeeds.
type fakeUpserter struct {
	fail  int
	calls int
	last  models.Coord
}

func (f *fakeUpserter) Upsert(ctx context.Context, driverID int64, c models.Coord) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("geoadd fail")
	}
	f.last = c
	return nil
}

func TestUpsertWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpserter{fail: 2}
	start := time.Now()
	err := upsertWithRetry(context.Background(), f, 7, models.Coord{Lat: 40.7, Lon: -74}, 3, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, models.Coord{Lat: 40.7, Lon: -74}, f.last)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestUpsertWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpserter{fail: 5}
	err := upsertWithRetry(context.Background(), f, 7, models.Coord{Lat: 1, Lon: 2}, 3, 5*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 3, f.calls)
}

func TestUpsertWithRetry_InvalidCoordNotRetried(t *testing.T) {
	l := geo.NewIndex()
	err := upsertWithRetry(context.Background(), l, 7, models.Coord{Lat: 120, Lon: 0}, 3, time.Second)
	var coordErr *geo.InvalidCoordinateError
	require.ErrorAs(t, err, &coordErr)
	assert.Equal(t, 0, l.Len())
}

func TestUpsertWithRetry_StopsOnCancel(t *testing.T) {
	f := &fakeUpserter{fail: 5}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := upsertWithRetry(ctx, f, 7, models.Coord{Lat: 1, Lon: 2}, 3, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.calls)
}
