// Package stats owns the persisted dispatch document: driver records, driver
// statistics, orders, restaurant accounts and the platform ledger.
//
// Every mutation runs load-modify-store under one mutex against the
// in-memory document and is then flushed to the Backend outside the lock.
// The design assumes a single writer process.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/delivery-dispatch/internal/clock"
	"github.com/example/delivery-dispatch/internal/logging"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/observability"
	"github.com/example/delivery-dispatch/internal/storage"
)

var (
	ErrInvalidDriver       = errors.New("driver id must be positive")
	ErrInvalidSubscription = errors.New("subscription days must be positive")
	ErrInvalidOrder        = errors.New("order id is required")
	ErrDuplicateOrder      = errors.New("order already exists")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidRestaurant   = errors.New("restaurant slug is required")
)

type Options struct {
	Clock  clock.Clock
	Logger *zap.Logger
	// OnRecover is called whenever an unreadable document is replaced by a
	// fresh one.
	OnRecover func(err error)
}

type Store struct {
	backend   storage.Backend
	clock     clock.Clock
	log       *zap.Logger
	onRecover func(error)

	mu    sync.Mutex
	state models.State
	seq   uint64

	flushMu sync.Mutex
	flushed uint64
}

// Open loads the document from backend. It never fails: a missing document
// is initialized, an unreadable one is replaced by an empty document and
// reported through the logger, the store_recoveries_total metric and
// Options.OnRecover.
func Open(ctx context.Context, backend storage.Backend, opts Options) *Store {
	s := &Store{
		backend:   backend,
		clock:     opts.Clock,
		log:       logging.OrNop(opts.Logger),
		onRecover: opts.OnRecover,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	s.Reload(ctx)
	return s
}

// Reload replaces the in-memory document with the backend's copy, applying
// the same fallback rules as Open.
func (s *Store) Reload(ctx context.Context) {
	st, fresh := s.read(ctx)
	s.mu.Lock()
	s.state = st
	s.seq++
	seq := s.seq
	doc, err := storage.Encode(st)
	s.mu.Unlock()
	if fresh && err == nil {
		s.flush(ctx, seq, doc)
	}
}

func (s *Store) read(ctx context.Context) (models.State, bool) {
	doc, err := s.backend.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Info("state document missing, initializing")
		return models.NewState(s.clock.Now()), true
	}
	if err == nil {
		var st models.State
		st, err = storage.Decode(doc)
		if err == nil {
			return st, false
		}
	}
	s.log.Warn("state document unreadable, starting from empty state", zap.Error(err))
	observability.StoreRecoveries.Inc()
	if s.onRecover != nil {
		s.onRecover(err)
	}
	return models.NewState(s.clock.Now()), true
}

// mutate applies fn to the document under the lock and flushes the result.
// fn must validate before it changes anything: a non-nil error means the
// document was left untouched.
func (s *Store) mutate(ctx context.Context, fn func(st *models.State, now time.Time) error) error {
	s.mu.Lock()
	if err := fn(&s.state, s.clock.Now()); err != nil {
		s.mu.Unlock()
		return err
	}
	s.seq++
	seq := s.seq
	doc, err := storage.Encode(s.state)
	s.mu.Unlock()

	if err != nil {
		s.log.Error("encode state document", zap.Error(err))
		observability.StoreFlushErrs.Inc()
		return nil
	}
	s.flush(ctx, seq, doc)
	return nil
}

// flush writes doc unless a newer snapshot already reached the backend.
// Write failures are logged and absorbed; the in-memory document stays
// authoritative and the next successful flush catches up.
func (s *Store) flush(ctx context.Context, seq uint64, doc []byte) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if seq <= s.flushed {
		return
	}
	if err := s.backend.Save(ctx, doc); err != nil {
		s.log.Error("flush state document", zap.Error(err), zap.Uint64("seq", seq))
		observability.StoreFlushErrs.Inc()
		return
	}
	s.flushed = seq
}

func (s *Store) view(fn func(st *models.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Snapshot returns a deep copy of the whole document.
func (s *Store) Snapshot() models.State {
	var out models.State
	s.view(func(st *models.State) { out = st.Clone() })
	return out
}

func (s *Store) Ledger() models.Ledger {
	var l models.Ledger
	s.view(func(st *models.State) {
		l = models.Ledger{Profit: st.Profit, Completed: st.Completed, Cancelled: st.Cancelled}
	})
	return l
}

func checkDriver(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDriver, id)
	}
	return nil
}
