package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"wavebot/internal/broadcast"
	"wavebot/internal/storage"
)

// storageKey is the single value holding the whole queue as a JSON array.
const storageKey = "scheduled_posts"

// ErrPostNotFound is returned when cancelling a post that is not queued.
var ErrPostNotFound = errors.New("scheduled post not found")

// Post is one queued delayed broadcast.
type Post struct {
	ID        string            `json:"id"`
	SendAt    time.Time         `json:"send_at"`
	Payload   broadcast.Payload `json:"payload"`
	CreatedAt time.Time         `json:"created_at"`
}

// Queue is the persistent list of pending posts, kept in enqueue order.
//
// Like the channel registry, every mutation rewrites the whole array; the
// mutex serializes writers within this process.
type Queue struct {
	kv storage.KV
	mu sync.Mutex
}

// NewQueue creates a Queue backed by the given store.
func NewQueue(kv storage.KV) *Queue {
	return &Queue{kv: kv}
}

// Enqueue appends a post, assigning an ID when the caller did not.
func (q *Queue) Enqueue(ctx context.Context, post Post) (Post, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	posts, err := q.load(ctx)
	if err != nil {
		return Post{}, err
	}
	if err := q.save(ctx, append(posts, post)); err != nil {
		return Post{}, err
	}
	return post, nil
}

// List returns all pending posts in enqueue order.
func (q *Queue) List(ctx context.Context) ([]Post, error) {
	return q.load(ctx)
}

// Cancel removes one post by ID.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	posts, err := q.load(ctx)
	if err != nil {
		return err
	}
	for i, p := range posts {
		if p.ID == id {
			return q.save(ctx, append(posts[:i], posts[i+1:]...))
		}
	}
	return ErrPostNotFound
}

// ConsumeDue removes and returns every post whose time has come. The
// remaining queue is persisted before the due posts are handed to the
// caller, so a crash mid-dispatch re-sends at most the batch in flight.
func (q *Queue) ConsumeDue(ctx context.Context, now time.Time) ([]Post, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	posts, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	due, remaining := drainDue(posts, now)
	if len(due) == 0 {
		return nil, nil
	}
	if err := q.save(ctx, remaining); err != nil {
		return nil, err
	}
	return due, nil
}

// drainDue partitions posts into due and remaining, both in original order.
func drainDue(posts []Post, now time.Time) (due, remaining []Post) {
	for _, p := range posts {
		if !p.SendAt.After(now) {
			due = append(due, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	return due, remaining
}

func (q *Queue) load(ctx context.Context) ([]Post, error) {
	raw, err := q.kv.Get(ctx, storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled posts: %w", err)
	}

	var posts []Post
	if err := json.Unmarshal([]byte(raw), &posts); err != nil {
		return nil, fmt.Errorf("failed to decode scheduled posts: %w", err)
	}
	return posts, nil
}

func (q *Queue) save(ctx context.Context, posts []Post) error {
	if posts == nil {
		posts = []Post{}
	}
	raw, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("failed to encode scheduled posts: %w", err)
	}
	if err := q.kv.Set(ctx, storageKey, string(raw), 0); err != nil {
		return fmt.Errorf("failed to persist scheduled posts: %w", err)
	}
	return nil
}
