// Package handlers maps incoming commands, messages and callback queries to
// the registry, queue, watermark and broadcast components.
package handlers

import (
	"context"
	"log"

	"github.com/mymmrac/telego"

	"wavebot/internal/auth"
	"wavebot/internal/broadcast"
	"wavebot/internal/channels"
	"wavebot/internal/schedule"
	"wavebot/internal/session"
	"wavebot/internal/watermark"
	"wavebot/pkg/telegoapi"
)

// Callback data tags, colon-separated. The first segment routes the query.
const (
	callbackBroadcastNow      = "bcast:now"
	callbackBroadcastSchedule = "bcast:schedule"
	callbackBroadcastCancel   = "bcast:cancel"
	callbackScheduledCancel   = "sched:cancel" // + ":<post id>"
	callbackRetract           = "retract"      // + ":<broadcast id>"
)

// Command represents a bot command, mapping the command string to its description and handler function.
type Command struct {
	Command     string                                                         // The command string (e.g., "start").
	Description string                                                         // Localization key of the description for /help.
	Handler     func(context.Context, telegoapi.BotAPI, telego.Message) error // The function to execute when the command is received.
}

// MessageHandler handles incoming Telegram messages and callbacks.
// It orchestrates command handling, the multi-step schedule conversation,
// channel registry management and broadcast dispatch.
type MessageHandler struct {
	// bot is kept for flows the bot initiates itself, i.e. reporting
	// scheduled dispatches back to the admin. Update-driven handlers
	// receive the bot per call.
	bot telegoapi.BotAPI

	// adminChatID is the admin's private chat, the destination for
	// dispatch reports.
	adminChatID int64

	version string

	// commands holds the list of available bot commands.
	commands []Command

	engine       *broadcast.Engine
	registry     *channels.Registry
	queue        *schedule.Queue
	sessions     *session.Store
	watermarks   *watermark.Store
	adminChecker *auth.AdminChecker
}

// NewMessageHandler creates and initializes a new MessageHandler instance.
// It sets up dependencies and defines the available bot commands.
func NewMessageHandler(
	bot telegoapi.BotAPI,
	adminChatID int64,
	version string,
	engine *broadcast.Engine,
	registry *channels.Registry,
	queue *schedule.Queue,
	sessions *session.Store,
	watermarks *watermark.Store,
	adminChecker *auth.AdminChecker,
) *MessageHandler {
	if adminChecker == nil {
		log.Fatal("MessageHandler: Admin checker dependency is nil")
	}
	h := &MessageHandler{
		bot:          bot,
		adminChatID:  adminChatID,
		version:      version,
		engine:       engine,
		registry:     registry,
		queue:        queue,
		sessions:     sessions,
		watermarks:   watermarks,
		adminChecker: adminChecker,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDesc", Handler: h.HandleStart},
		{Command: "help", Description: "CmdHelpDesc", Handler: h.HandleHelp},
		{Command: "addchannel", Description: "CmdAddChannelDesc", Handler: h.HandleAddChannel},
		{Command: "removechannel", Description: "CmdRemoveChannelDesc", Handler: h.HandleRemoveChannel},
		{Command: "listchannels", Description: "CmdListChannelsDesc", Handler: h.HandleListChannels},
		{Command: "stats", Description: "CmdStatsDesc", Handler: h.HandleStats},
		{Command: "schedule", Description: "CmdScheduleDesc", Handler: h.HandleSchedule},
		{Command: "scheduled", Description: "CmdScheduledDesc", Handler: h.HandleScheduled},
		{Command: "watermark", Description: "CmdWatermarkDesc", Handler: h.HandleWatermark},
		{Command: "showwatermark", Description: "CmdShowWatermarkDesc", Handler: h.HandleShowWatermark},
		{Command: "clearwatermark", Description: "CmdClearWatermarkDesc", Handler: h.HandleClearWatermark},
		{Command: "cancel", Description: "CmdCancelDesc", Handler: h.HandleCancel},
	}
	return h
}

// IsAdmin reports whether the user may operate the bot.
func (h *MessageHandler) IsAdmin(userID int64) bool {
	return h.adminChecker.IsAdmin(userID)
}

// GetCommandHandler retrieves the handler function associated with a specific command string (e.g., "start").
// It returns nil if the command is not found.
func (h *MessageHandler) GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error {
	for _, cmd := range h.commands {
		if cmd.Command == command {
			return cmd.Handler
		}
	}
	return nil
}
