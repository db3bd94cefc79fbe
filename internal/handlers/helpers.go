package handlers

import (
	"context"
	"log"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"wavebot/internal/locales"
	"wavebot/pkg/telegoapi"
)

// sendSuccess sends a plain text message to the user.
func (h *MessageHandler) sendSuccess(ctx context.Context, bot telegoapi.BotAPI, chatID int64, text string) error {
	_, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.Printf("Error sending message to chat %d: %v", chatID, err)
		// Don't return error to user, just log it.
	}
	return nil
}

// sendError sends a generic error message to the user and logs the original
// error. The original error is returned so the dispatch loop can report it.
func (h *MessageHandler) sendError(ctx context.Context, bot telegoapi.BotAPI, chatID int64, originalErr error) error {
	log.Printf("Error for user in chat %d: %v", chatID, originalErr)

	localizer := locales.NewLocalizer(locales.DefaultLanguage)
	errMsg := locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil)

	_, sendErr := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), errMsg))
	if sendErr != nil {
		log.Printf("Error sending generic error message to chat %d: %v", chatID, sendErr)
	}

	return originalErr
}

// getLocalizer determines the best localizer for a given user.
func (h *MessageHandler) getLocalizer(user *telego.User) *i18n.Localizer {
	lang := locales.DefaultLanguage
	if user != nil && user.LanguageCode != "" {
		lang = user.LanguageCode
	}
	return locales.NewLocalizer(lang)
}

// confirmKeyboard is the send-now / schedule / cancel choice offered for an
// incoming message.
func confirmKeyboard(localizer *i18n.Localizer) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnSendNow", nil, nil)).WithCallbackData(callbackBroadcastNow),
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnSchedule", nil, nil)).WithCallbackData(callbackBroadcastSchedule),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnCancel", nil, nil)).WithCallbackData(callbackBroadcastCancel),
		),
	)
}

// retractKeyboard offers one-tap retraction of a finished broadcast.
func retractKeyboard(localizer *i18n.Localizer, broadcastID string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnRetract", nil, nil)).WithCallbackData(callbackRetract + ":" + broadcastID),
		),
	)
}

// callbackMessage unwraps the message a callback query originated from.
// Telegram may report it as inaccessible, in which case ok is false.
func callbackMessage(query telego.CallbackQuery) (*telego.Message, bool) {
	if query.Message == nil {
		return nil, false
	}
	msg, ok := query.Message.(*telego.Message)
	return msg, ok && msg != nil
}
