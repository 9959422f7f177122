// Package history records finished import runs in the local state store.
package history

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/JonMunkholm/LeadSync/internal/core"
	"github.com/JonMunkholm/LeadSync/internal/storage"
)

const prefix = "imports/"

// KV is the storage surface history needs. *storage.KV satisfies it.
type KV interface {
	Put(key string, value []byte) error
	Scan(prefix string) ([]storage.Entry, error)
}

// Store reads and writes import summaries.
type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Record saves a summary. Keys sort by start time, so List can return the
// newest first without decoding timestamps.
func (s *Store) Record(sum *core.Summary) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	key := fmt.Sprintf("%s%s/%s", prefix, sum.StartedAt.UTC().Format("20060102T150405.000000000"), sum.JobID)
	if err := s.kv.Put(key, b); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// List returns up to limit summaries, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]core.Summary, error) {
	entries, err := s.kv.Scan(prefix)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	slices.Reverse(entries)

	out := make([]core.Summary, 0, len(entries))
	for _, e := range entries {
		if limit > 0 && len(out) == limit {
			break
		}
		var sum core.Summary
		if err := json.Unmarshal(e.Value, &sum); err != nil {
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

// Since returns the summaries that started at or after t, newest first.
func (s *Store) Since(t time.Time) ([]core.Summary, error) {
	all, err := s.List(0)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, sum := range all {
		if !sum.StartedAt.Before(t) {
			out = append(out, sum)
		}
	}
	return out, nil
}
