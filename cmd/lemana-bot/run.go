package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tak4da/lemanaMP2/internal/logutil"
	"github.com/tak4da/lemanaMP2/internal/presenter"
	"github.com/tak4da/lemanaMP2/internal/sessionstore"
	"github.com/tak4da/lemanaMP2/internal/summary"
	"github.com/tak4da/lemanaMP2/internal/survey"
	"github.com/tak4da/lemanaMP2/internal/tabular"
	"github.com/tak4da/lemanaMP2/internal/tabular/sheets"
	"github.com/tak4da/lemanaMP2/internal/telegram"
)

const (
	// unknownCommandText is sent for slash commands the bot does not know.
	unknownCommandText = "Я собираю ежедневные показатели отдела и записываю их в общую таблицу.\n\n" +
		"/start — начать заполнение\n" +
		"/cancel — сбросить текущий опрос\n" +
		"/today — сводка за сегодня\n" +
		"/period ДД.ММ.ГГГГ ДД.ММ.ГГГГ — сводка за период"

	periodUsage = "Формат: /period ДД.ММ.ГГГГ ДД.ММ.ГГГГ\nНапример: /period 01.08.2026 31.08.2026"

	busyText = "Слишком много сообщений подряд. Попробуй ещё раз через пару секунд."
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the questionnaire bot (long polling)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}

			token := strings.TrimSpace(viper.GetString("telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or %s_TELEGRAM_BOT_TOKEN)", envPrefix)
			}
			spreadsheetID := strings.TrimSpace(viper.GetString("sheets.spreadsheet_id"))
			if spreadsheetID == "" {
				return fmt.Errorf("missing sheets.spreadsheet_id (set via --spreadsheet-id or %s_SHEETS_SPREADSHEET_ID)", envPrefix)
			}

			loc, err := time.LoadLocation(viper.GetString("timezone"))
			if err != nil {
				return fmt.Errorf("load timezone: %w", err)
			}

			catalog := survey.DefaultCatalog()
			if path := strings.TrimSpace(viper.GetString("questions.file")); path != "" {
				catalog, err = survey.LoadCatalog(path)
				if err != nil {
					return fmt.Errorf("load questions: %w", err)
				}
			}

			sessions, err := sessionstore.Open(viper.GetString("sessions.file"), logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sheet, err := sheets.New(ctx, sheets.Config{
				CredentialsFile: viper.GetString("sheets.credentials_file"),
				SpreadsheetID:   spreadsheetID,
				Worksheet:       viper.GetString("sheets.worksheet"),
				Header:          tabular.Header(catalog.Fields()),
				Logger:          logger,
			})
			if err != nil {
				return err
			}
			if err := sheet.EnsureHeader(ctx); err != nil {
				return fmt.Errorf("prepare worksheet: %w", err)
			}

			api := telegram.New(&http.Client{Timeout: viper.GetDuration("telegram.poll_timeout") + 15*time.Second},
				viper.GetString("telegram.base_url"), token)

			me, err := api.GetMe(ctx)
			if err != nil {
				return fmt.Errorf("telegram get_me: %w", err)
			}
			if err := api.SetMyCommands(ctx, []telegram.BotCommand{
				{Command: "start", Description: "Начать заполнение"},
				{Command: "cancel", Description: "Сбросить опрос"},
				{Command: "today", Description: "Сводка за сегодня"},
				{Command: "period", Description: "Сводка за период"},
			}); err != nil {
				logger.Warn("set_my_commands_failed", "error", err.Error())
			}

			adapter, err := presenter.New(presenter.Options{
				Catalog:         catalog,
				Sessions:        sessions,
				Tabular:         sheet,
				Transport:       &botTransport{api: api},
				Location:        loc,
				Logger:          logger,
				AppendAttempts:  viper.GetInt("retry.append_attempts"),
				AppendBaseDelay: viper.GetDuration("retry.append_base_delay"),
				SendAttempts:    viper.GetInt("retry.send_attempts"),
				SendBaseDelay:   viper.GetDuration("retry.send_base_delay"),
			})
			if err != nil {
				return err
			}

			var offset int64
			if viper.GetBool("telegram.skip_pending") {
				offset, err = api.SkipPending(ctx)
				if err != nil {
					logger.Warn("skip_pending_failed", "error", err.Error())
				}
			}

			pollTimeout := viper.GetDuration("telegram.poll_timeout")
			logger.Info("telegram_start",
				"bot_username", me.Username,
				"bot_id", me.ID,
				"poll_timeout", pollTimeout.String(),
				"timezone", loc.String(),
				"sessions", sessions.Len(),
				"worksheet", viper.GetString("sheets.worksheet"),
			)

			dispatch := newDispatcher(logger,
				func(ctx context.Context, in presenter.Inbound) {
					if err := adapter.Handle(ctx, in); err != nil {
						logger.Warn("handle_failed",
							"chat_id", in.ChatID,
							"subject", in.SubjectID,
							"event", fmt.Sprintf("%T", in.Event),
							"error", err.Error(),
						)
					}
				},
				func(ctx context.Context, in presenter.Inbound) {
					if in.CallbackID != "" {
						_ = api.AnswerCallbackQuery(ctx, in.CallbackID, busyText)
						return
					}
					_, _ = api.SendMessage(ctx, in.ChatID, busyText, nil)
				})

			for {
				updates, nextOffset, err := api.GetUpdates(ctx, offset, pollTimeout)
				if err != nil {
					if ctx.Err() != nil {
						break
					}
					logger.Warn("telegram_get_updates_error", "error", err.Error())
					time.Sleep(1 * time.Second)
					continue
				}
				offset = nextOffset

				for _, u := range updates {
					in, ok := decodeUpdate(ctx, logger, api, u)
					if !ok {
						continue
					}
					dispatch.Dispatch(ctx, in)
				}
				if ctx.Err() != nil {
					break
				}
			}

			logger.Info("telegram_stop", "sessions", sessions.Len())
			dispatch.Close()
			return nil
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().String("spreadsheet-id", "", "Google Sheets spreadsheet id.")
	cmd.Flags().String("worksheet", "", "Worksheet (tab) name.")
	cmd.Flags().String("credentials-file", "", "Service-account credentials JSON path.")
	cmd.Flags().String("sessions-file", "", "Path of the persisted sessions file.")
	cmd.Flags().String("questions-file", "", "Optional YAML file overriding the built-in questions.")
	cmd.Flags().String("timezone", "", "IANA timezone for dates and times.")

	_ = viper.BindPFlag("telegram.bot_token", cmd.Flags().Lookup("telegram-bot-token"))
	_ = viper.BindPFlag("sheets.spreadsheet_id", cmd.Flags().Lookup("spreadsheet-id"))
	_ = viper.BindPFlag("sheets.worksheet", cmd.Flags().Lookup("worksheet"))
	_ = viper.BindPFlag("sheets.credentials_file", cmd.Flags().Lookup("credentials-file"))
	_ = viper.BindPFlag("sessions.file", cmd.Flags().Lookup("sessions-file"))
	_ = viper.BindPFlag("questions.file", cmd.Flags().Lookup("questions-file"))
	_ = viper.BindPFlag("timezone", cmd.Flags().Lookup("timezone"))

	return cmd
}

// decodeUpdate turns one Telegram update into a presenter inbound. Unusable
// updates (bots, empty payloads, unknown callbacks) are acknowledged where
// needed and dropped.
func decodeUpdate(ctx context.Context, logger *slog.Logger, api *telegram.Client, u telegram.Update) (presenter.Inbound, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
			return presenter.Inbound{}, false
		}
		ev, err := survey.DecodeCallback(cq.Data)
		if err != nil {
			logger.Debug("callback_decode_failed", "data", cq.Data, "error", err.Error())
			_ = api.AnswerCallbackQuery(ctx, cq.ID, "")
			return presenter.Inbound{}, false
		}
		return presenter.Inbound{
			SubjectID:   strconv.FormatInt(cq.From.ID, 10),
			ChatID:      cq.Message.Chat.ID,
			DisplayName: telegram.DisplayName(cq.From),
			CallbackID:  cq.ID,
			Event:       ev,
		}, true
	}

	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
		return presenter.Inbound{}, false
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return presenter.Inbound{}, false
	}

	in := presenter.Inbound{
		SubjectID:   strconv.FormatInt(msg.From.ID, 10),
		ChatID:      msg.Chat.ID,
		DisplayName: telegram.DisplayName(msg.From),
	}

	word, rest := splitCommand(text)
	switch word {
	case "/start", "/help":
		in.Event = survey.StartEvent{}
	case "/cancel":
		in.Event = survey.CancelEvent{}
	case "/today":
		in.Event = survey.TodaySummaryEvent{}
	case "/period":
		from, to, err := parsePeriodArgs(rest)
		if err != nil {
			_, _ = api.SendMessage(ctx, msg.Chat.ID, periodUsage, nil)
			return presenter.Inbound{}, false
		}
		in.Event = survey.PeriodSummaryEvent{From: from, To: to}
	default:
		if strings.HasPrefix(word, "/") {
			_, _ = api.SendMessage(ctx, msg.Chat.ID, unknownCommandText, nil)
			return presenter.Inbound{}, false
		}
		in.Event = survey.ManualTextEvent{Text: text}
	}
	return in, true
}

// splitCommand separates the leading slash command (bot suffix stripped) from
// its arguments. Non-command text returns word unchanged.
func splitCommand(text string) (word, rest string) {
	word = text
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		word, rest = text[:i], strings.TrimSpace(text[i:])
	}
	if strings.HasPrefix(word, "/") {
		if at := strings.Index(word, "@"); at > 0 {
			word = word[:at]
		}
		word = strings.ToLower(word)
	}
	return word, rest
}

func parsePeriodArgs(rest string) (from, to time.Time, err error) {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, errors.New("expected two dates")
	}
	from, err = summary.ParseHumanDate(parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err = summary.ParseHumanDate(parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		from, to = to, from
	}
	return from, to, nil
}
