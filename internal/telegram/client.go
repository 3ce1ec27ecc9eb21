package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sender is the outbound messaging surface the bot logic needs.
type Sender interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (Message, error)
	EditMessageText(ctx context.Context, req EditMessageTextRequest) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// ClientOptions parameterise the Bot API client.
type ClientOptions struct {
	Token       string
	BaseURL     string
	PollTimeout time.Duration
	UpdateLimit int
}

// Client talks to the Telegram Bot API over HTTPS.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a Bot API client. The HTTP timeout leaves headroom
// above the long-poll window so getUpdates is not cut off by the transport.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.UpdateLimit <= 0 || opts.UpdateLimit > 100 {
		opts.UpdateLimit = 100
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "telegram_client").Logger(),
		client:  &http.Client{Timeout: opts.PollTimeout + 10*time.Second},
		baseURL: baseURL,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.opts.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", method, err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(payloadBytes, &api); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("telegram %s: unexpected status %d", method, resp.StatusCode)
		}
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if !api.OK {
		if api.Description != "" {
			return fmt.Errorf("telegram %s: %s (code %d)", method, api.Description, api.ErrorCode)
		}
		return fmt.Errorf("telegram %s: ok=false", method)
	}

	if result != nil && len(api.Result) > 0 {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe fetches the bot's own account, used as a startup connectivity probe.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return User{}, err
	}
	return me, nil
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	req := getUpdatesRequest{
		Offset:         offset,
		Limit:          c.opts.UpdateLimit,
		Timeout:        int(c.opts.PollTimeout / time.Second),
		AllowedUpdates: []string{"message", "callback_query"},
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage posts a new message and returns the created message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (Message, error) {
	var msg Message
	if err := c.call(ctx, "sendMessage", req, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// EditMessageText replaces the text of an existing message.
func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	return c.call(ctx, "editMessageText", req, nil)
}

// AnswerCallbackQuery acknowledges a button press so the client stops the
// loading spinner. Text is optional.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	payload := map[string]string{"callback_query_id": callbackQueryID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// SendChatAction shows a typing indicator while a reply is prepared.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"action":  action,
	}
	return c.call(ctx, "sendChatAction", payload, nil)
}

var _ Sender = (*Client)(nil)
