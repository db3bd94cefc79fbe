package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wavebot/internal/audit"
	"wavebot/internal/channels"
	"wavebot/internal/testutil"
	"wavebot/internal/watermark"
)

type engineSuite struct {
	engine     *Engine
	bot        *testutil.MockBot
	kv         *testutil.FakeKV
	registry   *channels.Registry
	watermarks *watermark.Store
}

func setupEngineSuite(t *testing.T, chans ...string) *engineSuite {
	t.Helper()
	kv := testutil.NewFakeKV()
	bot := new(testutil.MockBot)
	registry := channels.NewRegistry(kv)
	watermarks := watermark.NewStore(kv)
	for _, c := range chans {
		require.NoError(t, registry.Add(context.Background(), c))
	}
	return &engineSuite{
		engine:     NewEngine(bot, registry, watermarks, kv, audit.NopLogger{}),
		bot:        bot,
		kv:         kv,
		registry:   registry,
		watermarks: watermarks,
	}
}

func toChannel(name string) func(*telego.SendMessageParams) bool {
	return func(p *telego.SendMessageParams) bool {
		return p.ChatID.Username == name
	}
}

func TestBroadcastPartialFailure(t *testing.T) {
	ctx := context.Background()
	s := setupEngineSuite(t, "@one", "@two", "@three")

	s.bot.On("SendMessage", mock.Anything, mock.MatchedBy(toChannel("@two"))).
		Return(nil, errors.New("forbidden: bot was kicked"))
	s.bot.On("SendMessage", mock.Anything, mock.Anything).
		Return(&telego.Message{MessageID: 42}, nil)

	out, err := s.engine.Broadcast(ctx, Payload{Text: "hello"}, false)
	require.NoError(t, err)

	assert.Len(t, out.Sent, 2)
	assert.Equal(t, []string{"@two"}, out.Failed)
	require.NotEmpty(t, out.BroadcastID)

	raw, err := s.kv.Get(ctx, recordKeyPrefix+out.BroadcastID)
	require.NoError(t, err)
	var rec record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Len(t, rec.Sent, 2, "record holds only successful deliveries")

	count, err := s.engine.SentCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestBroadcastNoChannels(t *testing.T) {
	s := setupEngineSuite(t)

	out, err := s.engine.Broadcast(context.Background(), Payload{Text: "hello"}, false)
	assert.ErrorIs(t, err, ErrNoChannels)
	assert.Nil(t, out)
	s.bot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestBroadcastAllFailed(t *testing.T) {
	ctx := context.Background()
	s := setupEngineSuite(t, "@one", "@two")

	s.bot.On("SendMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("forbidden"))

	out, err := s.engine.Broadcast(ctx, Payload{Text: "hello"}, false)
	require.NoError(t, err)

	assert.Empty(t, out.Sent)
	assert.Len(t, out.Failed, 2)
	assert.Empty(t, out.BroadcastID, "no record without a single success")

	count, err := s.engine.SentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBroadcastCopiesWithoutWatermark(t *testing.T) {
	ctx := context.Background()
	s := setupEngineSuite(t, "@one", "@two")

	s.bot.On("CopyMessage", mock.Anything, mock.Anything).
		Return(&telego.MessageID{MessageID: 7}, nil)

	p := Payload{
		Ref:  &MessageRef{ChatID: 100, MessageID: 55},
		Text: "formatted *text*",
	}
	out, err := s.engine.Broadcast(ctx, p, false)
	require.NoError(t, err)

	assert.Len(t, out.Sent, 2)
	s.bot.AssertNumberOfCalls(t, "CopyMessage", 2)
	s.bot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestBroadcastWatermarkOnText(t *testing.T) {
	ctx := context.Background()
	s := setupEngineSuite(t, "@one")
	require.NoError(t, s.watermarks.Set(ctx, "t.me/wave"))

	var sent *telego.SendMessageParams
	s.bot.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*telego.SendMessageParams)
		}).
		Return(&telego.Message{MessageID: 9}, nil)

	p := Payload{
		Ref:  &MessageRef{ChatID: 100, MessageID: 55},
		Text: "hello",
	}
	_, err := s.engine.Broadcast(ctx, p, false)
	require.NoError(t, err)

	require.NotNil(t, sent, "watermarked payload is re-sent by value, not copied")
	assert.Equal(t, "hello\n\nt\\.me/wave", sent.Text)
	assert.Equal(t, telego.ModeMarkdownV2, sent.ParseMode)
	s.bot.AssertNotCalled(t, "CopyMessage", mock.Anything, mock.Anything)
}

func TestBroadcastWatermarkOnCaption(t *testing.T) {
	ctx := context.Background()
	s := setupEngineSuite(t, "@one")
	require.NoError(t, s.watermarks.Set(ctx, "t.me/wave"))

	var sent *telego.SendPhotoParams
	s.bot.On("SendPhoto", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*telego.SendPhotoParams)
		}).
		Return(&telego.Message{MessageID: 9}, nil)

	p := Payload{PhotoID: "photo-file-id", Caption: "look!"}
	_, err := s.engine.Broadcast(ctx, p, false)
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "look\\!\n\nt\\.me/wave", sent.Caption)
}

func TestBroadcastWatermarkBecomesCaption(t *testing.T) {
	ctx := context.Background()
	s := setupEngineSuite(t, "@one")
	require.NoError(t, s.watermarks.Set(ctx, "t.me/wave"))

	var sent *telego.SendPhotoParams
	s.bot.On("SendPhoto", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*telego.SendPhotoParams)
		}).
		Return(&telego.Message{MessageID: 9}, nil)

	p := Payload{PhotoID: "photo-file-id"}
	_, err := s.engine.Broadcast(ctx, p, false)
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "t\\.me/wave", sent.Caption, "caption-less media gets the watermark as caption")
}

func TestRetract(t *testing.T) {
	ctx := context.Background()
	s := setupEngineSuite(t, "@one", "@two")

	s.bot.On("SendMessage", mock.Anything, mock.Anything).
		Return(&telego.Message{MessageID: 42}, nil)
	out, err := s.engine.Broadcast(ctx, Payload{Text: "hello"}, false)
	require.NoError(t, err)
	require.NotEmpty(t, out.BroadcastID)

	s.bot.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(p *telego.DeleteMessageParams) bool {
		return p.ChatID.Username == "@two"
	})).Return(errors.New("message to delete not found"))
	s.bot.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil)

	res, err := s.engine.Retract(ctx, out.BroadcastID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Deleted, "failed deletions are skipped, not fatal")

	// One-shot: the record is gone even though one deletion failed.
	_, err = s.engine.Retract(ctx, out.BroadcastID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRetractUnknownID(t *testing.T) {
	s := setupEngineSuite(t, "@one")
	_, err := s.engine.Retract(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	s.bot.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestSentCountEmpty(t *testing.T) {
	s := setupEngineSuite(t)
	count, err := s.engine.SentCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
