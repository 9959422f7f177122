// Package credential holds the bearer credential used by the transport.
//
// The in-memory value is authoritative for the running process. It is
// mirrored into the durable store so a restarted client picks up where it
// left off, but mirror reads and writes are best-effort: a broken or missing
// mirror never fails a Get, Set or Clear.
//
// Expiry is not tracked here. The server rejecting a request is the only
// signal that a credential has expired.
package credential

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/JonMunkholm/LeadSync/internal/storage"
	"github.com/awnumar/memguard"
)

const accessKey = "credential/access"

// Store is the contract the transport depends on.
type Store interface {
	// Get returns the current credential, or "" when none is held.
	Get() string
	// Set replaces the current credential.
	Set(token string)
	// Clear drops the current credential.
	Clear()
}

// Mirror is the durable key-value surface the store writes through to.
// *storage.KV satisfies it.
type Mirror interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// MemoryStore is a Store with no durable mirror. Intended for tests and
// ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns a MemoryStore seeded with token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryStore) Clear() {
	s.Set("")
}

// MirroredStore keeps the credential sealed in a memguard enclave and
// writes it through to a Mirror.
type MirroredStore struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
	mirror  Mirror
	logger  *slog.Logger
}

// NewMirroredStore builds a store and seeds it from the mirror, if the mirror
// holds a credential. A nil mirror is allowed.
func NewMirroredStore(mirror Mirror, logger *slog.Logger) *MirroredStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MirroredStore{mirror: mirror, logger: logger}

	if mirror == nil {
		return s
	}
	b, err := mirror.Get(accessKey)
	switch {
	case err == nil && len(b) > 0:
		s.enclave = memguard.NewEnclave(b)
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		logger.Debug("credential mirror read failed", "error", err)
	}
	return s
}

func (s *MirroredStore) Get() string {
	s.mu.RLock()
	enclave := s.enclave
	s.mu.RUnlock()

	if enclave == nil {
		return ""
	}
	buf, err := enclave.Open()
	if err != nil {
		s.logger.Warn("credential enclave open failed", "error", err)
		return ""
	}
	defer buf.Destroy()
	return string(buf.Bytes())
}

func (s *MirroredStore) Set(token string) {
	if token == "" {
		s.Clear()
		return
	}

	// NewEnclave wipes its input, so seal a copy.
	sealed := memguard.NewEnclave([]byte(token))

	s.mu.Lock()
	s.enclave = sealed
	s.mu.Unlock()

	if s.mirror == nil {
		return
	}
	if err := s.mirror.Put(accessKey, []byte(token)); err != nil {
		s.logger.Debug("credential mirror write failed", "error", err)
	}
}

func (s *MirroredStore) Clear() {
	s.mu.Lock()
	s.enclave = nil
	s.mu.Unlock()

	if s.mirror == nil {
		return
	}
	if err := s.mirror.Delete(accessKey); err != nil {
		s.logger.Debug("credential mirror delete failed", "error", err)
	}
}
