// Package telegram is a thin client for the Telegram Bot HTTP API: long-poll
// updates, messages with inline keyboards, deletes and callback answers.
// Only the endpoints the questionnaire needs are covered.
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
)

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func New(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      *Chat  `json:"chat,omitempty"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from,omitempty"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName renders the best human-readable name for a user.
func DisplayName(u *User) string {
	if u == nil {
		return ""
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	username := strings.TrimSpace(u.Username)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case username != "":
		return "@" + username
	default:
		return ""
	}
}

type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Keyboard is an inline keyboard: rows of buttons.
type Keyboard [][]Button

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	raw, err := c.call(ctx, http.MethodGet, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var out User
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("telegram getMe decode: %w", err)
	}
	return &out, nil
}

// GetUpdates long-polls for updates and returns them with the next offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	body := map[string]any{
		"timeout":         secs,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if offset != 0 {
		body["offset"] = offset
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	raw, err := c.call(reqCtx, http.MethodPost, "getUpdates", body)
	if err != nil {
		return nil, offset, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, offset, fmt.Errorf("telegram getUpdates decode: %w", err)
	}
	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

// SkipPending fast-forwards past updates accumulated while the process was
// down, so a restart does not replay stale button presses.
func (c *Client) SkipPending(ctx context.Context) (int64, error) {
	body := map[string]any{
		"offset":  -1,
		"timeout": 0,
	}
	raw, err := c.call(ctx, http.MethodPost, "getUpdates", body)
	if err != nil {
		return 0, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return 0, fmt.Errorf("telegram getUpdates decode: %w", err)
	}
	var next int64
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return next, nil
}

// SendMessage sends HTML-formatted text, optionally with an inline keyboard,
// and returns the new message id so the caller can retract it later.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int64, error) {
	body := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if len(kb) > 0 {
		body["reply_markup"] = inlineKeyboardMarkup{InlineKeyboard: kb}
	}
	raw, err := c.call(ctx, http.MethodPost, "sendMessage", body)
	if err != nil {
		return 0, err
	}
	var out Message
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("telegram sendMessage decode: %w", err)
	}
	return out.MessageID, nil
}

// DeleteMessage removes a message. The message may already be gone; callers
// treat failures as non-fatal.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	_, err := c.call(ctx, http.MethodPost, "deleteMessage", body)
	return err
}

// AnswerCallbackQuery acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	body := map[string]any{
		"callback_query_id": callbackID,
	}
	if strings.TrimSpace(text) != "" {
		body["text"] = text
	}
	_, err := c.call(ctx, http.MethodPost, "answerCallbackQuery", body)
	return err
}

// SetMyCommands registers the bot command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	_, err := c.call(ctx, http.MethodPost, "setMyCommands", map[string]any{
		"commands": commands,
	})
	return err
}

func (c *Client) call(ctx context.Context, method, apiMethod string, body any) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, apiMethod)
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("telegram %s encode: %w", apiMethod, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("telegram %s decode: %w", apiMethod, err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram %s: ok=false: %s", apiMethod, out.Description)
	}
	return out.Result, nil
}
