// Package watermark stores the single text fragment appended to every
// broadcast.
package watermark

import (
	"context"
	"errors"
	"fmt"

	"wavebot/internal/storage"
)

const storageKey = "watermark"

// Store persists the watermark as one plain-text value.
type Store struct {
	kv storage.KV
}

// NewStore creates a Store backed by the given key-value store.
func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Get returns the current watermark. An unset watermark is ("", false), not
// an error.
func (s *Store) Get(ctx context.Context) (string, bool, error) {
	val, err := s.kv.Get(ctx, storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load watermark: %w", err)
	}
	return val, true, nil
}

// Set stores the watermark text.
func (s *Store) Set(ctx context.Context, text string) error {
	if err := s.kv.Set(ctx, storageKey, text, 0); err != nil {
		return fmt.Errorf("failed to persist watermark: %w", err)
	}
	return nil
}

// Clear removes the watermark. It reports whether one was set.
func (s *Store) Clear(ctx context.Context) (bool, error) {
	existed, err := s.kv.Exists(ctx, storageKey)
	if err != nil {
		return false, fmt.Errorf("failed to check watermark: %w", err)
	}
	if err := s.kv.Delete(ctx, storageKey); err != nil {
		return false, fmt.Errorf("failed to clear watermark: %w", err)
	}
	return existed, nil
}
