package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/delivery-dispatch/internal/models"
)

// ErrNotFound means the backend holds no document yet.
var ErrNotFound = errors.New("state document not found")

var ErrCorrupt = errors.New("state document corrupt")

// PersistenceCorruptionError wraps a document that could not be decoded.
type PersistenceCorruptionError struct {
	Err error
}

func (e *PersistenceCorruptionError) Error() string {
	return fmt.Sprintf("state document corrupt: %v", e.Err)
}

func (e *PersistenceCorruptionError) Unwrap() error { return e.Err }

func (e *PersistenceCorruptionError) Is(target error) bool { return target == ErrCorrupt }

// Backend persists the encoded state document. Implementations only move
// bytes; encoding lives in Encode/Decode.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, doc []byte) error
}

// Encode renders the document as indented JSON.
func Encode(s models.State) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Decode parses a document. Any parse problem is a PersistenceCorruptionError.
func Decode(doc []byte) (models.State, error) {
	var s models.State
	if err := json.Unmarshal(doc, &s); err != nil {
		return models.State{}, &PersistenceCorruptionError{Err: err}
	}
	if s.Version == "" {
		return models.State{}, &PersistenceCorruptionError{Err: errors.New("missing version")}
	}
	s.Normalize()
	return s, nil
}

type MemoryBackend struct {
	mu  sync.RWMutex
	doc []byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc == nil {
		return nil, ErrNotFound
	}
	out := make([]byte, len(m.doc))
	copy(out, m.doc)
	return out, nil
}

func (m *MemoryBackend) Save(ctx context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = append(m.doc[:0:0], doc...)
	return nil
}
