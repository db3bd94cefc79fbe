// Package testutil provides shared fakes for unit tests.
package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"wavebot/internal/storage"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// FakeKV is an in-memory storage.KV with TTL support driven by an adjustable
// clock, so tests can fast-forward past session and record expiries.
type FakeKV struct {
	mu   sync.Mutex
	data map[string]entry
	now  time.Time

	// FailSet, when set, makes every Set call return this error.
	FailSet error
}

// NewFakeKV returns an empty fake store whose clock starts at the real time.
func NewFakeKV() *FakeKV {
	return &FakeKV{data: make(map[string]entry), now: time.Now()}
}

// Advance moves the fake clock forward, expiring entries along the way.
func (f *FakeKV) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *FakeKV) get(key string) (entry, bool) {
	e, ok := f.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !f.now.Before(e.expiresAt) {
		delete(f.data, key)
		return entry{}, false
	}
	return e, true
}

func (f *FakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.get(key)
	if !ok {
		return "", storage.ErrNotFound
	}
	return e.value, nil
}

func (f *FakeKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSet != nil {
		return f.FailSet
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = f.now.Add(ttl)
	}
	f.data[key] = e
	return nil
}

func (f *FakeKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *FakeKV) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	if e, ok := f.get(key); ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	f.data[key] = entry{value: strconv.FormatInt(n, 10)}
	return n, nil
}

func (f *FakeKV) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.get(key)
	return ok, nil
}
