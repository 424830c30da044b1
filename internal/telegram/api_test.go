package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.Client(), srv.URL, "TOKEN")
}

func TestSendMessageReturnsMessageID(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/botTOKEN/sendMessage") {
			t.Errorf("path = %q", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":555}}`))
	}))

	kb := Keyboard{{{Text: "1", CallbackData: "q0:1"}, {Text: "2", CallbackData: "q0:2"}}}
	id, err := client.SendMessage(context.Background(), 42, "Вопрос?", kb)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if id != 555 {
		t.Fatalf("SendMessage() id = %d, want 555", id)
	}
	if gotBody["parse_mode"] != "HTML" {
		t.Fatalf("parse_mode = %v, want HTML", gotBody["parse_mode"])
	}
	if _, ok := gotBody["reply_markup"]; !ok {
		t.Fatalf("reply_markup missing: %v", gotBody)
	}
}

func TestSendMessageOKFalse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	_, err := client.SendMessage(context.Background(), 42, "hi", nil)
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("SendMessage() error = %v, want ok=false description", err)
	}
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"/start"}},
			{"update_id":11,"callback_query":{"id":"cb1","data":"dep:7","message":{"message_id":2,"chat":{"id":42}}}}
		]}`))
	}))

	updates, next, err := client.GetUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("GetUpdates() = %d updates, want 2", len(updates))
	}
	if next != 12 {
		t.Fatalf("next offset = %d, want 12", next)
	}
	if updates[0].Message == nil || updates[0].Message.Text != "/start" {
		t.Fatalf("message update = %+v", updates[0])
	}
	if updates[1].CallbackQuery == nil || updates[1].CallbackQuery.Data != "dep:7" {
		t.Fatalf("callback update = %+v", updates[1])
	}
}

func TestDeleteMessage(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	if err := client.DeleteMessage(context.Background(), 42, 555); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if gotBody["message_id"].(float64) != 555 {
		t.Fatalf("message_id = %v, want 555", gotBody["message_id"])
	}
}

func TestAnswerCallbackQuery(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	if err := client.AnswerCallbackQuery(context.Background(), "cb1", "Опрос уже завершён"); err != nil {
		t.Fatalf("AnswerCallbackQuery() error = %v", err)
	}
	if gotBody["callback_query_id"] != "cb1" {
		t.Fatalf("callback_query_id = %v", gotBody["callback_query_id"])
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		user *User
		want string
	}{
		{user: nil, want: ""},
		{user: &User{FirstName: "Ivan", LastName: "Petrov"}, want: "Ivan Petrov"},
		{user: &User{FirstName: "Ivan"}, want: "Ivan"},
		{user: &User{Username: "ivan42"}, want: "@ivan42"},
		{user: &User{}, want: ""},
	}
	for _, tc := range cases {
		if got := DisplayName(tc.user); got != tc.want {
			t.Fatalf("DisplayName(%+v) = %q, want %q", tc.user, got, tc.want)
		}
	}
}

func TestHTTPErrorSurfaced(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	_, err := client.GetMe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("GetMe() error = %v, want http 429", err)
	}
}
