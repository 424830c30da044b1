package main

import (
	"context"

	"github.com/tak4da/lemanaMP2/internal/presenter"
	"github.com/tak4da/lemanaMP2/internal/telegram"
)

// botTransport adapts the Telegram client to the presenter's outbound
// interface: choice rows become inline keyboard rows.
type botTransport struct {
	api *telegram.Client
}

func (t *botTransport) SendPrompt(ctx context.Context, chatID int64, text string, choices [][]presenter.Choice) (int64, error) {
	var kb telegram.Keyboard
	for _, row := range choices {
		buttons := make([]telegram.Button, 0, len(row))
		for _, c := range row {
			buttons = append(buttons, telegram.Button{Text: c.Label, CallbackData: c.Data})
		}
		kb = append(kb, buttons)
	}
	return t.api.SendMessage(ctx, chatID, text, kb)
}

func (t *botTransport) SendPlain(ctx context.Context, chatID int64, text string) error {
	_, err := t.api.SendMessage(ctx, chatID, text, nil)
	return err
}

func (t *botTransport) Retract(ctx context.Context, chatID, messageID int64) error {
	return t.api.DeleteMessage(ctx, chatID, messageID)
}

func (t *botTransport) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return t.api.AnswerCallbackQuery(ctx, callbackID, text)
}
