package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wavebot/internal/audit"
	"wavebot/internal/broadcast"
	"wavebot/internal/channels"
	"wavebot/internal/testutil"
	"wavebot/internal/watermark"
)

type recordingReporter struct {
	posts    []Post
	outcomes []*broadcast.Outcome
}

func (r *recordingReporter) ReportDispatch(_ context.Context, post Post, outcome *broadcast.Outcome, _ error) {
	r.posts = append(r.posts, post)
	r.outcomes = append(r.outcomes, outcome)
}

func TestReconcilerRun(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewFakeKV()
	bot := new(testutil.MockBot)
	registry := channels.NewRegistry(kv)
	require.NoError(t, registry.Add(ctx, "@news"))

	engine := broadcast.NewEngine(bot, registry, watermark.NewStore(kv), kv, audit.NopLogger{})
	queue := NewQueue(kv)
	reporter := &recordingReporter{}
	rec := NewReconciler(queue, engine, reporter)

	now := time.Date(2025, 9, 28, 12, 0, 0, 0, time.UTC)
	due, err := queue.Enqueue(ctx, Post{SendAt: now.Add(-time.Minute), Payload: broadcast.Payload{Text: "due"}})
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, Post{SendAt: now.Add(time.Hour), Payload: broadcast.Payload{Text: "later"}})
	require.NoError(t, err)

	bot.On("SendMessage", mock.Anything, mock.Anything).
		Return(&telego.Message{MessageID: 5}, nil)

	processed, err := rec.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	require.Len(t, reporter.posts, 1)
	assert.Equal(t, due.ID, reporter.posts[0].ID)
	require.NotNil(t, reporter.outcomes[0])
	assert.Len(t, reporter.outcomes[0].Sent, 1)

	remaining, err := queue.List(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "future posts stay queued")

	// Nothing else due yet.
	processed, err = rec.Run(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestReconcilerRunConsumesFailedDispatch(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewFakeKV()
	bot := new(testutil.MockBot)
	// Empty registry makes every dispatch fail with ErrNoChannels.
	engine := broadcast.NewEngine(bot, channels.NewRegistry(kv), watermark.NewStore(kv), kv, audit.NopLogger{})
	queue := NewQueue(kv)
	rec := NewReconciler(queue, engine, nil)

	now := time.Now().UTC()
	_, err := queue.Enqueue(ctx, Post{SendAt: now.Add(-time.Minute), Payload: broadcast.Payload{Text: "due"}})
	require.NoError(t, err)

	processed, err := rec.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	remaining, err := queue.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining, "a failed dispatch is not retried")
}
