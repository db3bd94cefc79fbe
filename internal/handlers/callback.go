package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mymmrac/telego"

	"wavebot/internal/broadcast"
	"wavebot/internal/locales"
	"wavebot/internal/schedule"
	"wavebot/internal/session"
	"wavebot/pkg/telegoapi"
)

// HandleCallbackQuery routes inline keyboard presses. The data format is
// colon-separated: the first segment selects the flow, the rest carry its
// arguments.
func (h *MessageHandler) HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error {
	// Acknowledge immediately to stop the loading spinner on the button.
	if err := bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); err != nil {
		log.Printf("Error answering callback query %s: %v", query.ID, err)
	}

	parts := strings.Split(query.Data, ":")
	switch parts[0] {
	case "bcast":
		if len(parts) != 2 {
			break
		}
		return h.handleBroadcastChoice(ctx, bot, query, parts[1])
	case "sched":
		if len(parts) != 3 || parts[1] != "cancel" {
			break
		}
		return h.handleScheduledCancel(ctx, bot, query, parts[2])
	case "retract":
		if len(parts) != 2 {
			break
		}
		return h.handleRetract(ctx, bot, query, parts[1])
	}

	log.Printf("Callback query %s not recognized. Data: %s", query.ID, query.Data)
	return nil
}

// handleBroadcastChoice resolves the send-now / schedule / cancel prompt.
func (h *MessageHandler) handleBroadcastChoice(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery, choice string) error {
	localizer := h.getLocalizer(&query.From)
	userID := query.From.ID

	msg, ok := callbackMessage(query)
	if !ok {
		log.Printf("[Callback User:%d] Broadcast choice without accessible message", userID)
		return nil
	}
	chatID := msg.Chat.ID

	st, err := h.sessions.Get(ctx, userID)
	if err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}
	if st == nil || st.Action != session.ActionConfirmBroadcast || st.Message == nil {
		// The flow expired or was already resolved; drop the stale prompt.
		return h.editStatus(ctx, bot, chatID, msg.MessageID, locales.GetMessage(localizer, "MsgBroadcastCancelled", nil, nil), nil)
	}

	switch choice {
	case "now":
		if err := h.sessions.Clear(ctx, userID); err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		// Replace the prompt, then report progress via a fresh status message.
		h.editStatus(ctx, bot, chatID, msg.MessageID, locales.GetMessage(localizer, "MsgBroadcastInProgress", nil, nil), nil)
		outcome, err := h.engine.Broadcast(ctx, *st.Message, false)
		if errors.Is(err, broadcast.ErrNoChannels) {
			return h.editStatus(ctx, bot, chatID, msg.MessageID, locales.GetMessage(localizer, "MsgBroadcastNoChannels", nil, nil), nil)
		}
		if err != nil {
			h.editStatus(ctx, bot, chatID, msg.MessageID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), nil)
			return err
		}
		text, keyboard := h.formatOutcome(localizer, outcome)
		return h.editStatus(ctx, bot, chatID, msg.MessageID, text, keyboard)

	case "schedule":
		err := h.sessions.Set(ctx, userID, session.State{
			Action:  session.ActionAwaitingScheduleTime,
			Message: st.Message,
		})
		if err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		return h.editStatus(ctx, bot, chatID, msg.MessageID, locales.GetMessage(localizer, "MsgScheduleAskTime", nil, nil), nil)

	case "cancel":
		if err := h.sessions.Clear(ctx, userID); err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		return h.editStatus(ctx, bot, chatID, msg.MessageID, locales.GetMessage(localizer, "MsgBroadcastCancelled", nil, nil), nil)

	default:
		log.Printf("[Callback User:%d] Unknown broadcast choice %q", userID, choice)
		return nil
	}
}

// handleScheduledCancel removes one queued post from the /scheduled list.
func (h *MessageHandler) handleScheduledCancel(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery, postID string) error {
	localizer := h.getLocalizer(&query.From)

	msg, ok := callbackMessage(query)
	if !ok {
		log.Printf("[Callback User:%d] Scheduled cancel without accessible message", query.From.ID)
		return nil
	}

	err := h.queue.Cancel(ctx, postID)
	if errors.Is(err, schedule.ErrPostNotFound) {
		return h.sendSuccess(ctx, bot, msg.Chat.ID, locales.GetMessage(localizer, "MsgScheduledCancelNotFound", nil, nil))
	}
	if err != nil {
		return h.sendError(ctx, bot, msg.Chat.ID, err)
	}

	log.Printf("[Callback User:%d] Cancelled scheduled post %s", query.From.ID, postID)
	return h.sendSuccess(ctx, bot, msg.Chat.ID, locales.GetMessage(localizer, "MsgScheduledCancelled", nil, nil))
}

// handleRetract deletes every message of a finished broadcast.
func (h *MessageHandler) handleRetract(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery, broadcastID string) error {
	localizer := h.getLocalizer(&query.From)

	msg, ok := callbackMessage(query)
	if !ok {
		log.Printf("[Callback User:%d] Retract without accessible message", query.From.ID)
		return nil
	}

	outcome, err := h.engine.Retract(ctx, broadcastID)
	if errors.Is(err, broadcast.ErrRecordNotFound) {
		return h.editStatus(ctx, bot, msg.Chat.ID, msg.MessageID, locales.GetMessage(localizer, "MsgRetractUnavailable", nil, nil), nil)
	}
	if err != nil {
		return h.sendError(ctx, bot, msg.Chat.ID, fmt.Errorf("retract %s: %w", broadcastID, err))
	}

	log.Printf("[Callback User:%d] Retracted broadcast %s (%d/%d)", query.From.ID, broadcastID, outcome.Deleted, outcome.Total)
	// Editing the summary also drops the retract button.
	return h.editStatus(ctx, bot, msg.Chat.ID, msg.MessageID, locales.GetMessage(localizer, "MsgRetractDone", map[string]interface{}{
		"Deleted": outcome.Deleted,
		"Total":   outcome.Total,
	}, nil), nil)
}
