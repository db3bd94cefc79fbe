package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"wavebot/internal/storage"
)

// storageKey is the single value holding the whole registry as a JSON array.
const storageKey = "channels"

var (
	// ErrAlreadyRegistered is returned when adding a channel that is present.
	ErrAlreadyRegistered = errors.New("channel already registered")
	// ErrNotFound is returned when removing a channel that is absent.
	ErrNotFound = errors.New("channel not found")
	// ErrInvalidHandle is returned for identifiers missing the '@' sigil.
	ErrInvalidHandle = errors.New("channel handle must start with '@'")
)

// Registry is the ordered, duplicate-free set of broadcast destinations,
// persisted as one JSON array in the key-value store.
//
// Every mutation is a read-modify-write of the whole array. The mutex
// serializes writers within this process; running more than one bot instance
// against the same store is not supported.
type Registry struct {
	kv storage.KV
	mu sync.Mutex
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(kv storage.KV) *Registry {
	return &Registry{kv: kv}
}

// List returns all registered channels in insertion order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	return r.load(ctx)
}

// Add validates and appends a channel handle.
func (r *Registry) Add(ctx context.Context, channel string) error {
	channel = strings.TrimSpace(channel)
	if !strings.HasPrefix(channel, "@") || len(channel) < 2 {
		return ErrInvalidHandle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, c := range list {
		if c == channel {
			return ErrAlreadyRegistered
		}
	}
	return r.save(ctx, append(list, channel))
}

// Remove deletes a channel handle from the registry.
func (r *Registry) Remove(ctx context.Context, channel string) error {
	channel = strings.TrimSpace(channel)

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i, c := range list {
		if c == channel {
			return r.save(ctx, append(list[:i], list[i+1:]...))
		}
	}
	return ErrNotFound
}

func (r *Registry) load(ctx context.Context) ([]string, error) {
	raw, err := r.kv.Get(ctx, storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load channel registry: %w", err)
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("failed to decode channel registry: %w", err)
	}
	return list, nil
}

func (r *Registry) save(ctx context.Context, list []string) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode channel registry: %w", err)
	}
	if err := r.kv.Set(ctx, storageKey, string(raw), 0); err != nil {
		return fmt.Errorf("failed to persist channel registry: %w", err)
	}
	return nil
}
