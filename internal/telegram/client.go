// Package telegram implements the messaging channel collaborator: outbound
// text delivery to the Telegram Bot API.  Inbound updates arrive through the
// webhook handler; this package only sends.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Messenger is the outbound side of the messaging channel.  Delivery is
// best-effort: callers that fan out to many recipients must not stop on a
// single failed send.
type Messenger interface {
	SendText(ctx context.Context, chatID, text string) error
}

// Client sends messages through the Telegram Bot API over HTTPS.
type Client struct {
	httpc   *http.Client
	baseURL string
}

// NewClient returns a Messenger bound to the given bot token.
func NewClient(token string) *Client {
	return &Client{
		httpc:   &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://api.telegram.org/bot" + token,
	}
}

// sendMessageResponse is the subset of the Bot API envelope we care about.
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendText delivers one text message to a chat.  The Bot API answers with an
// ok flag even on HTTP 200, so both layers are checked.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send failed: %w", err)
	}
	defer res.Body.Close()

	var body sendMessageResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("telegram: decode failed: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("telegram: api rejected send: %s", body.Description)
	}
	return nil
}
