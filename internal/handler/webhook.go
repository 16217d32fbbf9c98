package handler

import (
	"net/http" // HTTP status codes
	"strconv"  // chat ids arrive as numbers and are keyed as strings
	"strings"  // trimming update text

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/hyeonwoo/railbot/internal/conversation"
	"github.com/hyeonwoo/railbot/internal/messages"
	"github.com/hyeonwoo/railbot/internal/telegram"
)

// telegramUpdate mirrors the subset of the Bot API update payload the bot
// cares about.  Edited messages and chat membership changes carry their
// own keys and leave Message nil, which is how they get filtered out.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64  `json:"message_id"`
		Text      string `json:"text"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// WebhookHandler receives Telegram updates and feeds message text into the
// conversation engine.  It always answers 200 for well formed requests:
// Telegram re-delivers updates on any other status, and an update the bot
// cannot act on should be dropped, not retried.
type WebhookHandler struct {
	Engine    *conversation.Engine
	Messenger telegram.Messenger
}

// NewWebhookHandler constructs a WebhookHandler.  Both dependencies must
// be non-nil.
func NewWebhookHandler(engine *conversation.Engine, messenger telegram.Messenger) *WebhookHandler {
	if engine == nil || messenger == nil {
		panic("nil dependency passed to NewWebhookHandler")
	}
	return &WebhookHandler{Engine: engine, Messenger: messenger}
}

// Receive handles POST /webhook.  The engine runs inline rather than in a
// goroutine so per-chat ordering matches Telegram's delivery order.
func (h *WebhookHandler) Receive(c echo.Context) error {
	var upd telegramUpdate
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid update payload"})
	}
	if upd.Message == nil || upd.Message.Chat.ID == 0 {
		return c.NoContent(http.StatusOK)
	}

	chatID := strconv.FormatInt(upd.Message.Chat.ID, 10)
	text := strings.TrimSpace(upd.Message.Text)
	if text == "" {
		// Stickers, photos and the like have no text to parse.
		_ = h.Messenger.SendText(c.Request().Context(), chatID, messages.Intro)
		return c.NoContent(http.StatusOK)
	}

	h.Engine.HandleText(c.Request().Context(), chatID, text)
	return c.NoContent(http.StatusOK)
}
