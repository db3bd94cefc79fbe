package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"wavebot/internal/broadcast"
	"wavebot/internal/locales"
	"wavebot/internal/schedule"
	"wavebot/internal/session"
	"wavebot/pkg/telegoapi"
)

// HandleMessage processes a non-command message according to the admin's
// conversation state. Idle messages become broadcast candidates; messages
// inside the schedule flow advance it.
func (h *MessageHandler) HandleMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	userID := message.From.ID
	st, err := h.sessions.Get(ctx, userID)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}

	if st == nil {
		return h.offerBroadcast(ctx, bot, message)
	}

	switch st.Action {
	case session.ActionAwaitingScheduleTime:
		return h.handleScheduleTime(ctx, bot, message, st)
	case session.ActionAwaitingScheduleMessage:
		return h.handleScheduleMessage(ctx, bot, message, st)
	case session.ActionConfirmBroadcast:
		// A fresh message while a confirmation is pending replaces the
		// pending one.
		return h.offerBroadcast(ctx, bot, message)
	default:
		log.Printf("[Message User:%d] Unknown session action %q, resetting to idle", userID, st.Action)
		if err := h.sessions.Clear(ctx, userID); err != nil {
			return h.sendError(ctx, bot, message.Chat.ID, err)
		}
		return h.offerBroadcast(ctx, bot, message)
	}
}

// offerBroadcast captures the message and asks what to do with it.
func (h *MessageHandler) offerBroadcast(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	payload := broadcast.FromMessage(message)
	err := h.sessions.Set(ctx, message.From.ID, session.State{
		Action:  session.ActionConfirmBroadcast,
		Message: &payload,
	})
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}

	prompt := locales.GetMessage(localizer, "MsgBroadcastConfirmPrompt", nil, nil)
	_, err = bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), prompt).
		WithReplyMarkup(confirmKeyboard(localizer)))
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	return nil
}

// handleScheduleTime consumes the time expression of the schedule flow.
func (h *MessageHandler) handleScheduleTime(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, st *session.State) error {
	localizer := h.getLocalizer(message.From)

	at, err := schedule.ParseTime(message.Text, time.Now())
	if err != nil {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgScheduleInvalidTime", map[string]interface{}{
			"Reason": err.Error(),
		}, nil))
	}

	// When the flow started from a captured message ("Schedule" button),
	// the message is already known and the post can be queued right away.
	if st.Message != nil {
		return h.enqueuePost(ctx, bot, message.Chat.ID, message.From.ID, localizer, at, *st.Message)
	}

	err = h.sessions.Set(ctx, message.From.ID, session.State{
		Action:     session.ActionAwaitingScheduleMessage,
		ScheduleAt: at,
	})
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgScheduleAskMessage", map[string]interface{}{
		"Time": schedule.FormatLocal(at),
	}, nil))
}

// handleScheduleMessage consumes the message of the schedule flow.
func (h *MessageHandler) handleScheduleMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, st *session.State) error {
	localizer := h.getLocalizer(message.From)
	payload := broadcast.FromMessage(message)
	return h.enqueuePost(ctx, bot, message.Chat.ID, message.From.ID, localizer, st.ScheduleAt, payload)
}

func (h *MessageHandler) enqueuePost(ctx context.Context, bot telegoapi.BotAPI, chatID, userID int64, localizer *i18n.Localizer, at time.Time, payload broadcast.Payload) error {
	post, err := h.queue.Enqueue(ctx, schedule.Post{SendAt: at, Payload: payload})
	if err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}
	if err := h.sessions.Clear(ctx, userID); err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}

	log.Printf("[Schedule User:%d] Enqueued post %s for %s", userID, post.ID, post.SendAt.Format(time.RFC3339))
	return h.sendSuccess(ctx, bot, chatID, locales.GetMessage(localizer, "MsgScheduleEnqueued", map[string]interface{}{
		"Time": schedule.FormatLocal(at),
	}, nil))
}

// formatOutcome renders a fan-out summary and, when the broadcast is
// retractable, a retract button.
func (h *MessageHandler) formatOutcome(localizer *i18n.Localizer, outcome *broadcast.Outcome) (string, *telego.InlineKeyboardMarkup) {
	if len(outcome.Sent) == 0 {
		return locales.GetMessage(localizer, "MsgBroadcastAllFailed", map[string]interface{}{
			"Failed": len(outcome.Failed),
		}, nil), nil
	}

	var text strings.Builder
	text.WriteString(locales.GetMessage(localizer, "MsgBroadcastSummary", map[string]interface{}{
		"Sent":   len(outcome.Sent),
		"Failed": len(outcome.Failed),
	}, nil))
	if len(outcome.Failed) > 0 {
		text.WriteString("\n" + locales.GetMessage(localizer, "MsgBroadcastFailedChannels", map[string]interface{}{
			"Channels": strings.Join(outcome.Failed, ", "),
		}, nil))
	}

	var keyboard *telego.InlineKeyboardMarkup
	if outcome.BroadcastID != "" {
		keyboard = retractKeyboard(localizer, outcome.BroadcastID)
	}
	return text.String(), keyboard
}

func (h *MessageHandler) editStatus(ctx context.Context, bot telegoapi.BotAPI, chatID int64, messageID int, text string, keyboard *telego.InlineKeyboardMarkup) error {
	params := &telego.EditMessageTextParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Text:      text,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := bot.EditMessageText(ctx, params); err != nil {
		log.Printf("Error editing status message %d in chat %d: %v", messageID, chatID, err)
	}
	return nil
}

// ReportDispatch tells the admin how a scheduled post went out. It satisfies
// the reconciler's Reporter interface.
func (h *MessageHandler) ReportDispatch(ctx context.Context, post schedule.Post, outcome *broadcast.Outcome, dispatchErr error) {
	localizer := locales.NewLocalizer(locales.DefaultLanguage)

	if dispatchErr != nil {
		var text string
		if errors.Is(dispatchErr, broadcast.ErrNoChannels) {
			text = locales.GetMessage(localizer, "MsgBroadcastNoChannels", nil, nil)
		} else {
			text = locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil)
		}
		if err := h.sendSuccess(ctx, h.bot, h.adminChatID, text); err != nil {
			log.Printf("[Report] Failed to notify admin about post %s: %v", post.ID, err)
		}
		return
	}

	text, keyboard := h.formatOutcome(localizer, outcome)
	params := tu.Message(tu.ID(h.adminChatID), text)
	if keyboard != nil {
		params = params.WithReplyMarkup(keyboard)
	}
	if _, err := h.bot.SendMessage(ctx, params); err != nil {
		log.Printf("[Report] Failed to notify admin about post %s: %v", post.ID, err)
	}
}
