package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"wavebot/internal/channels"
	"wavebot/internal/locales"
	"wavebot/internal/schedule"
	"wavebot/internal/session"
	"wavebot/pkg/telegoapi"
)

// HandleStart handles the /start command. It registers the command menu with
// Telegram and sends a welcome message.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if err := h.SetupCommands(ctx, bot); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, fmt.Errorf("failed to set up commands: %w", err))
	}

	localizer := h.getLocalizer(message.From)
	startMsg := locales.GetMessage(localizer, "MsgStart", nil, nil)
	return h.sendSuccess(ctx, bot, message.Chat.ID, startMsg)
}

// HandleHelp handles the /help command, listing every command with its
// localized description.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	var helpText strings.Builder
	helpText.WriteString(locales.GetMessage(localizer, "MsgHelpHeader", nil, nil) + "\n")
	for _, cmd := range h.commands {
		localizedDesc := locales.GetMessage(localizer, cmd.Description, nil, nil)
		helpText.WriteString(fmt.Sprintf("/%s - %s\n", cmd.Command, localizedDesc))
	}
	helpText.WriteString("\n" + locales.GetMessage(localizer, "MsgHelpFooter", nil, nil))

	return h.sendSuccess(ctx, bot, message.Chat.ID, helpText.String())
}

// HandleAddChannel handles /addchannel @channelname.
func (h *MessageHandler) HandleAddChannel(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	args := commandArgs(message.Text)
	if len(args) != 1 {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgChannelAddUsage", nil, nil))
	}
	channel := args[0]

	err := h.registry.Add(ctx, channel)
	switch {
	case errors.Is(err, channels.ErrInvalidHandle):
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgChannelInvalidHandle", nil, nil))
	case errors.Is(err, channels.ErrAlreadyRegistered):
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgChannelAlreadyRegistered", map[string]interface{}{"Channel": channel}, nil))
	case err != nil:
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}

	log.Printf("[Cmd:addchannel User:%d] Registered channel %s", message.From.ID, channel)
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgChannelAdded", map[string]interface{}{"Channel": channel}, nil))
}

// HandleRemoveChannel handles /removechannel @channelname.
func (h *MessageHandler) HandleRemoveChannel(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	args := commandArgs(message.Text)
	if len(args) != 1 {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgChannelRemoveUsage", nil, nil))
	}
	channel := args[0]

	err := h.registry.Remove(ctx, channel)
	switch {
	case errors.Is(err, channels.ErrNotFound):
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgChannelNotFound", map[string]interface{}{"Channel": channel}, nil))
	case err != nil:
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}

	log.Printf("[Cmd:removechannel User:%d] Removed channel %s", message.From.ID, channel)
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgChannelRemoved", map[string]interface{}{"Channel": channel}, nil))
}

// HandleListChannels handles /listchannels.
func (h *MessageHandler) HandleListChannels(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	list, err := h.registry.List(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	if len(list) == 0 {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgChannelListEmpty", nil, nil))
	}

	var text strings.Builder
	text.WriteString(locales.GetMessage(localizer, "MsgChannelListHeader", nil, nil))
	for i, channel := range list {
		text.WriteString(fmt.Sprintf("\n%d. %s", i+1, channel))
	}
	return h.sendSuccess(ctx, bot, message.Chat.ID, text.String())
}

// HandleStats handles /stats.
func (h *MessageHandler) HandleStats(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	broadcasts, err := h.engine.SentCount(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	list, err := h.registry.List(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	pending, err := h.queue.List(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}

	statsText := locales.GetMessage(localizer, "MsgStats", map[string]interface{}{
		"Broadcasts": broadcasts,
		"Channels":   len(list),
		"Pending":    len(pending),
	}, nil)
	return h.sendSuccess(ctx, bot, message.Chat.ID, statsText)
}

// HandleSchedule handles /schedule, starting the two-step scheduling flow.
func (h *MessageHandler) HandleSchedule(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	err := h.sessions.Set(ctx, message.From.ID, session.State{Action: session.ActionAwaitingScheduleTime})
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgScheduleAskTime", nil, nil))
}

// HandleScheduled handles /scheduled, listing pending posts with per-post
// cancel buttons.
func (h *MessageHandler) HandleScheduled(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	posts, err := h.queue.List(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	if len(posts) == 0 {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgScheduledListEmpty", nil, nil))
	}

	var text strings.Builder
	text.WriteString(locales.GetMessage(localizer, "MsgScheduledListHeader", nil, nil))
	rows := make([][]telego.InlineKeyboardButton, 0, len(posts))
	btnText := locales.GetMessage(localizer, "BtnCancelScheduled", nil, nil)
	for i, p := range posts {
		when := schedule.FormatLocal(p.SendAt)
		entry := locales.GetMessage(localizer, "MsgScheduledEntry", map[string]interface{}{
			"Time":    when,
			"Preview": p.Payload.Preview(),
		}, nil)
		text.WriteString(fmt.Sprintf("\n%d. %s", i+1, entry))
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(fmt.Sprintf("%s #%d (%s)", btnText, i+1, when)).
				WithCallbackData(callbackScheduledCancel+":"+p.ID),
		))
	}

	_, err = bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), text.String()).
		WithReplyMarkup(tu.InlineKeyboard(rows...)))
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	return nil
}

// HandleWatermark handles /watermark <text>.
func (h *MessageHandler) HandleWatermark(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	args := commandArgs(message.Text)
	if len(args) == 0 {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgWatermarkUsage", nil, nil))
	}
	text := strings.Join(args, " ")

	if err := h.watermarks.Set(ctx, text); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgWatermarkSet", map[string]interface{}{"Watermark": text}, nil))
}

// HandleShowWatermark handles /showwatermark.
func (h *MessageHandler) HandleShowWatermark(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	text, ok, err := h.watermarks.Get(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	if !ok {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgWatermarkShowEmpty", nil, nil))
	}
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgWatermarkShowCurrent", map[string]interface{}{"Watermark": text}, nil))
}

// HandleClearWatermark handles /clearwatermark.
func (h *MessageHandler) HandleClearWatermark(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	existed, err := h.watermarks.Clear(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	if !existed {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgWatermarkNoneToClear", nil, nil))
	}
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgWatermarkCleared", nil, nil))
}

// HandleCancel handles /cancel, aborting whatever flow is in progress.
func (h *MessageHandler) HandleCancel(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	st, err := h.sessions.Get(ctx, message.From.ID)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	if st == nil {
		return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgCancelNothing", nil, nil))
	}
	if err := h.sessions.Clear(ctx, message.From.ID); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgCancelDone", nil, nil))
}

// SetupCommands registers the bot's command menu with Telegram.
func (h *MessageHandler) SetupCommands(ctx context.Context, bot telegoapi.BotAPI) error {
	if len(h.commands) == 0 {
		log.Println("No commands defined in handler, skipping SetMyCommands.")
		return nil
	}

	localizer := locales.NewLocalizer(locales.DefaultLanguage)
	commands := make([]telego.BotCommand, 0, len(h.commands))
	for _, cmd := range h.commands {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: locales.GetMessage(localizer, cmd.Description, nil, nil),
		})
	}

	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	log.Printf("Successfully set %d bot commands.", len(commands))
	return nil
}

// commandArgs returns the arguments following the command token.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}
