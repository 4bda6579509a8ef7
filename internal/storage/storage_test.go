package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/delivery-dispatch/internal/models"
)

func sampleState() models.State {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := models.NewState(now)
	s.Profit = 12.34
	s.Completed = 3
	s.Drivers[42] = models.Driver{UserID: 42, Name: "Sam", Location: &models.Coord{Lat: 40.71, Lon: -74.0}, LastUpdate: &now}
	s.Stats[42] = models.DriverStats{Name: "Sam", Completed: 3, Earned: 21.3, Rating: 4.5, RatingsCount: 2, Joined: now}
	s.Orders = append(s.Orders, models.Order{ID: "01HX", Status: models.OrderPending, Restaurant: "demo", CreatedAt: now, UpdatedAt: now})
	s.Restaurants["demo"] = models.RestaurantAccount{TotalOrders: 1, TotalRevenue: 18, CommissionOwed: 2.7}
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc, err := Encode(sampleState())
	require.NoError(t, err)

	got, err := Decode(doc)
	require.NoError(t, err)

	again, err := Encode(got)
	require.NoError(t, err)
	assert.Equal(t, string(doc), string(again))
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = Decode([]byte(`{"profit": 1}`))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeNormalizesMissingCollections(t *testing.T) {
	s, err := Decode([]byte(`{"version":"5.0"}`))
	require.NoError(t, err)
	assert.NotNil(t, s.Drivers)
	assert.NotNil(t, s.Stats)
	assert.NotNil(t, s.Restaurants)
	assert.NotNil(t, s.Orders)
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "delivery_db.json")
	b := NewFileBackend(path)

	_, err := b.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Save(ctx, []byte(`{"version":"5.0"}`)))
	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"version":"5.0"}`, string(got))

	require.NoError(t, b.Save(ctx, []byte(`{"version":"5.1"}`)))
	got, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"version":"5.1"}`, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
}

func TestMemoryBackendCopies(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	_, err := b.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	doc := []byte("abc")
	require.NoError(t, b.Save(ctx, doc))
	doc[0] = 'x'
	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
