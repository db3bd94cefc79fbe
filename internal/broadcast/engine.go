// Package broadcast fans a message out to every registered channel and keeps
// short-lived delivery records so a broadcast can be retracted.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"

	"wavebot/internal/audit"
	"wavebot/internal/channels"
	"wavebot/internal/storage"
	"wavebot/internal/watermark"
	"wavebot/pkg/telegoapi"
	"wavebot/pkg/utils"
)

const (
	recordKeyPrefix = "broadcast:"
	counterKey      = "broadcasts:count"
	recordTTL       = 7 * 24 * time.Hour
)

var (
	// ErrNoChannels is returned when a broadcast is requested with an empty
	// channel registry.
	ErrNoChannels = errors.New("no channels registered")
	// ErrRecordNotFound is returned when retracting an unknown or expired
	// broadcast.
	ErrRecordNotFound = errors.New("broadcast record not found")
)

// Receipt is one successful delivery.
type Receipt struct {
	Channel   string `json:"channel"`
	MessageID int    `json:"message_id"`
}

// Outcome summarizes one fan-out.
type Outcome struct {
	// BroadcastID is set only when at least one delivery succeeded and the
	// record was persisted; it is the handle for Retract.
	BroadcastID string
	Sent        []Receipt
	Failed      []string
}

// RetractOutcome summarizes one retraction.
type RetractOutcome struct {
	Deleted int
	Total   int
}

type record struct {
	Sent []Receipt `json:"sent"`
}

// Engine delivers payloads to every registered channel, applying the stored
// watermark and pacing sends through a rate limiter.
type Engine struct {
	bot        telegoapi.BotAPI
	registry   *channels.Registry
	watermarks *watermark.Store
	kv         storage.KV
	audit      audit.Logger
	limiter    ratelimit.Limiter
}

// NewEngine creates a broadcast engine. Sends are limited to 2 per second to
// stay clear of Telegram's flood limits.
func NewEngine(bot telegoapi.BotAPI, registry *channels.Registry, watermarks *watermark.Store, kv storage.KV, auditLog audit.Logger) *Engine {
	return &Engine{
		bot:        bot,
		registry:   registry,
		watermarks: watermarks,
		kv:         kv,
		audit:      auditLog,
		limiter:    ratelimit.New(2),
	}
}

// Broadcast sends the payload to every registered channel. Per-channel send
// failures do not abort the fan-out; they are reported in the outcome. A
// broadcast record is persisted, and the lifetime counter incremented, only
// when at least one delivery succeeded.
func (e *Engine) Broadcast(ctx context.Context, p Payload, scheduled bool) (*Outcome, error) {
	list, err := e.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNoChannels
	}

	wm, _, err := e.watermarks.Get(ctx)
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	for _, channel := range list {
		e.limiter.Take()
		messageID, err := e.deliver(ctx, channel, p, wm)
		if err != nil {
			log.Printf("[Broadcast] Failed to send to %s: %v", channel, err)
			out.Failed = append(out.Failed, channel)
			continue
		}
		out.Sent = append(out.Sent, Receipt{Channel: channel, MessageID: messageID})
	}

	if len(out.Sent) > 0 {
		id := uuid.NewString()
		raw, err := json.Marshal(record{Sent: out.Sent})
		if err != nil {
			return nil, fmt.Errorf("failed to encode broadcast record: %w", err)
		}
		if err := e.kv.Set(ctx, recordKeyPrefix+id, string(raw), recordTTL); err != nil {
			// Messages are already out; report the fan-out but leave the
			// broadcast unretractable.
			log.Printf("[Broadcast:%s] Failed to persist record: %v", id, err)
		} else {
			out.BroadcastID = id
			if _, err := e.kv.Incr(ctx, counterKey); err != nil {
				log.Printf("[Broadcast:%s] Failed to increment counter: %v", id, err)
			}
		}

		if err := e.audit.LogBroadcast(ctx, audit.BroadcastLog{
			BroadcastID:    out.BroadcastID,
			Sent:           len(out.Sent),
			Failed:         len(out.Failed),
			FailedChannels: out.Failed,
			Scheduled:      scheduled,
			At:             time.Now().UTC(),
		}); err != nil {
			log.Printf("[Broadcast:%s] Failed to write audit log: %v", out.BroadcastID, err)
		}
	}
	return out, nil
}

// deliver sends the payload to one channel and returns the posted message ID.
//
// When a watermark is set and the payload has a self-contained form, the
// message is re-sent by value so the watermark can be appended. Otherwise the
// original message is copied, which preserves its formatting exactly.
func (e *Engine) deliver(ctx context.Context, channel string, p Payload, wm string) (int, error) {
	if wm == "" || !p.HasValue() {
		if p.Ref != nil {
			msgID, err := e.bot.CopyMessage(ctx, &telego.CopyMessageParams{
				ChatID:     tu.Username(channel),
				FromChatID: tu.ID(p.Ref.ChatID),
				MessageID:  p.Ref.MessageID,
			})
			if err != nil {
				return 0, err
			}
			return msgID.MessageID, nil
		}
		if !p.HasValue() {
			return 0, errors.New("payload has neither reference nor value")
		}
	}
	return e.sendValue(ctx, channel, p, wm)
}

// sendValue re-sends the payload from its extracted form with MarkdownV2
// formatting. The watermark, when set, lands on the caption if the payload
// has one, on the text otherwise, and becomes the caption of caption-less
// media.
func (e *Engine) sendValue(ctx context.Context, channel string, p Payload, wm string) (int, error) {
	text := utils.EscapeMarkdownV2(p.Text)
	caption := utils.EscapeMarkdownV2(p.Caption)
	if wm != "" {
		escaped := utils.EscapeMarkdownV2(wm)
		switch {
		case caption != "":
			caption += "\n\n" + escaped
		case text != "":
			text += "\n\n" + escaped
		default:
			caption = escaped
		}
	}

	chatID := tu.Username(channel)
	var (
		msg *telego.Message
		err error
	)
	switch {
	case p.PhotoID != "":
		msg, err = e.bot.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID:    chatID,
			Photo:     telego.InputFile{FileID: p.PhotoID},
			Caption:   caption,
			ParseMode: telego.ModeMarkdownV2,
		})
	case p.VideoID != "":
		msg, err = e.bot.SendVideo(ctx, &telego.SendVideoParams{
			ChatID:    chatID,
			Video:     telego.InputFile{FileID: p.VideoID},
			Caption:   caption,
			ParseMode: telego.ModeMarkdownV2,
		})
	case p.DocumentID != "":
		msg, err = e.bot.SendDocument(ctx, &telego.SendDocumentParams{
			ChatID:    chatID,
			Document:  telego.InputFile{FileID: p.DocumentID},
			Caption:   caption,
			ParseMode: telego.ModeMarkdownV2,
		})
	default:
		msg, err = e.bot.SendMessage(ctx, &telego.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: telego.ModeMarkdownV2,
		})
	}
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// Retract deletes every message recorded for the broadcast. It is one-shot:
// the record is removed even when some deletions fail, so a second call
// returns ErrRecordNotFound.
func (e *Engine) Retract(ctx context.Context, broadcastID string) (*RetractOutcome, error) {
	key := recordKeyPrefix + broadcastID
	raw, err := e.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load broadcast record: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode broadcast record: %w", err)
	}

	out := &RetractOutcome{Total: len(rec.Sent)}
	for _, r := range rec.Sent {
		e.limiter.Take()
		err := e.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
			ChatID:    tu.Username(r.Channel),
			MessageID: r.MessageID,
		})
		if err != nil {
			log.Printf("[Retract:%s] Failed to delete message %d in %s: %v", broadcastID, r.MessageID, r.Channel, err)
			continue
		}
		out.Deleted++
	}

	if err := e.kv.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to remove broadcast record: %w", err)
	}

	if err := e.audit.LogRetraction(ctx, audit.RetractionLog{
		BroadcastID: broadcastID,
		Deleted:     out.Deleted,
		Total:       out.Total,
		At:          time.Now().UTC(),
	}); err != nil {
		log.Printf("[Retract:%s] Failed to write audit log: %v", broadcastID, err)
	}
	return out, nil
}

// SentCount returns the lifetime number of successful broadcasts.
func (e *Engine) SentCount(ctx context.Context) (int64, error) {
	raw, err := e.kv.Get(ctx, counterKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}
