// Package session tracks the admin's multi-step conversation state. State is
// persisted with a short TTL so an abandoned flow quietly resets to idle.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wavebot/internal/broadcast"
	"wavebot/internal/storage"
)

// Action names the step a conversation is waiting on.
type Action string

const (
	// ActionAwaitingScheduleTime waits for a time expression after /schedule.
	ActionAwaitingScheduleTime Action = "awaiting_schedule_time"
	// ActionAwaitingScheduleMessage waits for the message to enqueue.
	ActionAwaitingScheduleMessage Action = "awaiting_schedule_message"
	// ActionConfirmBroadcast waits for the send-now/schedule/cancel choice.
	ActionConfirmBroadcast Action = "confirm_broadcast"
)

// IdleTimeout is how long an unfinished flow survives before expiring.
const IdleTimeout = 10 * time.Minute

const keyPrefix = "state:"

// State is one in-progress flow. Which fields are set depends on Action.
type State struct {
	Action     Action             `json:"action"`
	ScheduleAt time.Time          `json:"schedule_at,omitempty"`
	Message    *broadcast.Payload `json:"message,omitempty"`
}

// Store persists per-user conversation state.
type Store struct {
	kv storage.KV
}

// NewStore creates a session store backed by the given key-value store.
func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Get returns the user's current state, or nil when the user is idle or the
// previous flow has expired.
func (s *Store) Get(ctx context.Context, userID int64) (*State, error) {
	raw, err := s.kv.Get(ctx, key(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	return &st, nil
}

// Set replaces the user's state and restarts the idle timer.
func (s *Store) Set(ctx context.Context, userID int64, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := s.kv.Set(ctx, key(userID), string(raw), IdleTimeout); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// Clear returns the user to idle. Clearing an idle user is not an error.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	if err := s.kv.Delete(ctx, key(userID)); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}

func key(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}
