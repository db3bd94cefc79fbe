package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wavebot/internal/audit"
	"wavebot/internal/broadcast"
	"wavebot/internal/channels"
	"wavebot/internal/schedule"
	"wavebot/internal/testutil"
	"wavebot/internal/watermark"
)

type fakeDispatcher struct {
	updates []telego.Update
}

func (d *fakeDispatcher) ProcessUpdate(_ context.Context, update telego.Update) {
	d.updates = append(d.updates, update)
}

func setupServer(t *testing.T) (*Server, *fakeDispatcher, *schedule.Queue, *testutil.MockBot) {
	t.Helper()
	kv := testutil.NewFakeKV()
	bot := new(testutil.MockBot)
	registry := channels.NewRegistry(kv)
	require.NoError(t, registry.Add(context.Background(), "@news"))
	engine := broadcast.NewEngine(bot, registry, watermark.NewStore(kv), kv, audit.NopLogger{})
	queue := schedule.NewQueue(kv)
	rec := schedule.NewReconciler(queue, engine, nil)
	dispatcher := &fakeDispatcher{}
	return New(":0", "hunter2", dispatcher, rec), dispatcher, queue, bot
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	srv, dispatcher, _, _ := setupServer(t)

	body := `{"update_id":7,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/stats"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	require.Len(t, dispatcher.updates, 1)
	assert.Equal(t, 7, dispatcher.updates[0].UpdateID)
}

func TestWebhookRejectsBadBody(t *testing.T) {
	srv, dispatcher, _, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, dispatcher.updates)
}

func TestWebhookRejectsGet(t *testing.T) {
	srv, _, _, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCronRequiresSecret(t *testing.T) {
	srv, _, _, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/cron", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/cron", nil)
	req.Header.Set(CronSecretHeader, "wrong")
	w = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCronDispatchesDuePosts(t *testing.T) {
	srv, _, queue, bot := setupServer(t)

	_, err := queue.Enqueue(context.Background(), schedule.Post{
		SendAt:  time.Now().Add(-time.Minute),
		Payload: broadcast.Payload{Text: "due"},
	})
	require.NoError(t, err)
	bot.On("SendMessage", mock.Anything, mock.Anything).
		Return(&telego.Message{MessageID: 3}, nil)

	req := httptest.NewRequest(http.MethodGet, "/cron", nil)
	req.Header.Set(CronSecretHeader, "hunter2")
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp["processed"])
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	w = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
