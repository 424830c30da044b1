// Package presenter translates state-machine transitions into chat UI
// actions: it shows exactly one interactive prompt per state, retracts the
// previous one best-effort, and finalizes completed passes into the tabular
// store.
package presenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tak4da/lemanaMP2/internal/retryutil"
	"github.com/tak4da/lemanaMP2/internal/sessionstore"
	"github.com/tak4da/lemanaMP2/internal/summary"
	"github.com/tak4da/lemanaMP2/internal/survey"
	"github.com/tak4da/lemanaMP2/internal/tabular"
)

// Choice is one inline button: a label and the callback payload it carries.
type Choice struct {
	Label string
	Data  string
}

// Transport is the outbound side of the messaging gateway.
type Transport interface {
	// SendPrompt sends text with button rows and returns a reference to
	// the new message.
	SendPrompt(ctx context.Context, chatID int64, text string, choices [][]Choice) (int64, error)
	// SendPlain sends text without buttons.
	SendPlain(ctx context.Context, chatID int64, text string) error
	// Retract removes a previously sent prompt. Failures are expected
	// (the message may already be gone) and are swallowed by callers.
	Retract(ctx context.Context, chatID, messageID int64) error
	// AnswerCallback acknowledges a button press, optionally with a toast.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Inbound is one decoded event with its origin.
type Inbound struct {
	SubjectID   string
	ChatID      int64
	DisplayName string
	// CallbackID is set when the event came from a button press and must
	// be acknowledged.
	CallbackID string
	Event      survey.Event
}

type Options struct {
	Catalog   *survey.Catalog
	Sessions  *sessionstore.Store
	Tabular   tabular.Store
	Transport Transport
	Location  *time.Location
	Logger    *slog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time

	AppendAttempts  int
	AppendBaseDelay time.Duration
	SendAttempts    int
	SendBaseDelay   time.Duration
}

type Adapter struct {
	catalog   *survey.Catalog
	machine   *survey.Machine
	fields    []string
	titles    map[string]string
	sessions  *sessionstore.Store
	tabular   tabular.Store
	transport Transport
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time

	appendAttempts  int
	appendBaseDelay time.Duration
	sendAttempts    int
	sendBaseDelay   time.Duration
}

func New(opts Options) (*Adapter, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("presenter: catalog is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("presenter: session store is required")
	}
	if opts.Tabular == nil {
		return nil, fmt.Errorf("presenter: tabular store is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("presenter: transport is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	appendAttempts := opts.AppendAttempts
	if appendAttempts <= 0 {
		appendAttempts = 3
	}
	sendAttempts := opts.SendAttempts
	if sendAttempts <= 0 {
		sendAttempts = 2
	}

	return &Adapter{
		catalog:         opts.Catalog,
		machine:         survey.NewMachine(opts.Catalog),
		fields:          opts.Catalog.Fields(),
		titles:          opts.Catalog.Titles(),
		sessions:        opts.Sessions,
		tabular:         opts.Tabular,
		transport:       opts.Transport,
		loc:             loc,
		logger:          logger,
		now:             now,
		appendAttempts:  appendAttempts,
		appendBaseDelay: opts.AppendBaseDelay,
		sendAttempts:    sendAttempts,
		sendBaseDelay:   opts.SendBaseDelay,
	}, nil
}

// Handle applies one inbound event end to end: load session, run the state
// machine, persist, emit UI actions. Events for the same subject must be
// handled serially by the caller.
func (a *Adapter) Handle(ctx context.Context, in Inbound) error {
	toast := ""
	defer func() {
		if in.CallbackID == "" {
			return
		}
		if err := a.transport.AnswerCallback(ctx, in.CallbackID, toast); err != nil {
			a.logger.Debug("callback_answer_failed", "error", err.Error())
		}
	}()

	switch ev := in.Event.(type) {
	case survey.StartEvent:
		return a.handleStart(ctx, in)
	case survey.CancelEvent:
		return a.handleCancel(ctx, in)
	case survey.DepartmentEvent:
		return a.handleDepartment(ctx, in, ev, &toast)
	case survey.AnswerEvent:
		return a.handleAnswer(ctx, in, ev, &toast)
	case survey.ManualRequestEvent:
		return a.handleManualRequest(ctx, in, ev, &toast)
	case survey.ManualTextEvent:
		return a.handleManualText(ctx, in, ev)
	case survey.RetrySaveEvent:
		return a.handleRetrySave(ctx, in, &toast)
	case survey.TodaySummaryEvent:
		day := a.now().In(a.loc)
		return a.handleSummary(ctx, in, day, day)
	case survey.PeriodSummaryEvent:
		return a.handleSummary(ctx, in, ev.From, ev.To)
	default:
		return fmt.Errorf("presenter: unhandled event %T", in.Event)
	}
}

func (a *Adapter) handleStart(ctx context.Context, in Inbound) error {
	prev, hadPrev, err := a.sessions.Get(ctx, in.SubjectID)
	if err != nil {
		return err
	}

	sess := survey.NewSession(in.SubjectID, in.ChatID, a.now().In(a.loc))
	if hadPrev {
		sess.LastMessageID = prev.LastMessageID
	}
	if err := a.sessions.Put(ctx, *sess); err != nil {
		return err
	}
	return a.showPrompt(ctx, sess, msgGreeting, departmentKeyboard())
}

func (a *Adapter) handleCancel(ctx context.Context, in Inbound) error {
	sess, ok, err := a.sessions.Get(ctx, in.SubjectID)
	if err != nil {
		return err
	}
	if ok {
		a.retract(ctx, sess.ChatID, sess.LastMessageID)
		if err := a.sessions.Delete(ctx, in.SubjectID); err != nil {
			return err
		}
	}
	return a.sendPlain(ctx, in.ChatID, msgCanceled)
}

func (a *Adapter) handleDepartment(ctx context.Context, in Inbound, ev survey.DepartmentEvent, toast *string) error {
	sess, ok, err := a.sessions.Get(ctx, in.SubjectID)
	if err != nil {
		return err
	}
	if !ok {
		// A department press with no session (lost state): start fresh
		// with the pressed department applied.
		sess = *survey.NewSession(in.SubjectID, in.ChatID, a.now().In(a.loc))
	}

	res, err := a.machine.ChooseDepartment(&sess, ev.Department)
	switch {
	case errors.Is(err, survey.ErrInvalidDepartment):
		*toast = msgBadDepartment
		return nil
	case errors.Is(err, survey.ErrUnexpectedEvent):
		*toast = msgStaleButton
		return nil
	case err != nil:
		return err
	}

	if err := a.sessions.Put(ctx, sess); err != nil {
		return err
	}
	if res.Kind == survey.Complete {
		return a.finalize(ctx, in, &sess)
	}
	text := fmt.Sprintf(msgDepartmentChosen, ev.Department, res.Metric.Prompt)
	return a.showPrompt(ctx, &sess, text, answerKeyboard(res.Step, res.Metric))
}

func (a *Adapter) handleAnswer(ctx context.Context, in Inbound, ev survey.AnswerEvent, toast *string) error {
	sess, ok, err := a.sessions.Get(ctx, in.SubjectID)
	if err != nil {
		return err
	}
	if !ok {
		*toast = msgStaleButton
		return a.sendPlain(ctx, in.ChatID, msgSessionLost)
	}

	res, err := a.machine.Answer(&sess, ev)
	switch {
	case errors.Is(err, survey.ErrNoDepartment):
		return a.restartForDepartment(ctx, in, &sess)
	case errors.Is(err, survey.ErrStaleStep):
		*toast = msgStaleButton
		return nil
	case errors.Is(err, survey.ErrInvalidAnswer):
		*toast = msgBadAnswer
		return nil
	case errors.Is(err, survey.ErrUnexpectedEvent):
		*toast = msgStaleButton
		return nil
	case err != nil:
		return err
	}

	if err := a.sessions.Put(ctx, sess); err != nil {
		return err
	}
	if res.Kind == survey.Complete {
		return a.finalize(ctx, in, &sess)
	}
	return a.showPrompt(ctx, &sess, res.Metric.Prompt, answerKeyboard(res.Step, res.Metric))
}

func (a *Adapter) handleManualRequest(ctx context.Context, in Inbound, ev survey.ManualRequestEvent, toast *string) error {
	sess, ok, err := a.sessions.Get(ctx, in.SubjectID)
	if err != nil {
		return err
	}
	if !ok {
		*toast = msgStaleButton
		return a.sendPlain(ctx, in.ChatID, msgSessionLost)
	}

	metric, err := a.machine.RequestManual(&sess, ev)
	switch {
	case errors.Is(err, survey.ErrNoDepartment):
		return a.restartForDepartment(ctx, in, &sess)
	case errors.Is(err, survey.ErrStaleStep), errors.Is(err, survey.ErrUnexpectedEvent):
		*toast = msgStaleButton
		return nil
	case err != nil:
		return err
	}

	if err := a.sessions.Put(ctx, sess); err != nil {
		return err
	}
	text := fmt.Sprintf(msgManualPrompt, survey.ManualValueMax, metric.Prompt)
	return a.showPrompt(ctx, &sess, text, nil)
}

func (a *Adapter) handleManualText(ctx context.Context, in Inbound, ev survey.ManualTextEvent) error {
	sess, ok, err := a.sessions.Get(ctx, in.SubjectID)
	if err != nil {
		return err
	}
	if !ok {
		// Free text with no session is guided, never silently dropped.
		return a.sendPlain(ctx, in.ChatID, msgUseButtons)
	}
	if !sess.AwaitingManual {
		// Stray text mid-survey re-issues the current prompt, so a lost
		// keyboard (send failure, deleted message) is recoverable without
		// discarding answered questions.
		return a.repromptCurrent(ctx, &sess)
	}

	value, convErr := strconv.Atoi(strings.TrimSpace(ev.Text))
	if convErr != nil {
		return a.sendPlain(ctx, in.ChatID, msgBadManualValue)
	}

	res, err := a.machine.ManualAnswer(&sess, value)
	switch {
	case errors.Is(err, survey.ErrInvalidAnswer):
		return a.sendPlain(ctx, in.ChatID, msgBadManualValue)
	case errors.Is(err, survey.ErrNoDepartment):
		return a.restartForDepartment(ctx, in, &sess)
	case err != nil:
		return err
	}

	if err := a.sessions.Put(ctx, sess); err != nil {
		return err
	}
	if res.Kind == survey.Complete {
		return a.finalize(ctx, in, &sess)
	}
	return a.showPrompt(ctx, &sess, res.Metric.Prompt, answerKeyboard(res.Step, res.Metric))
}

func (a *Adapter) handleRetrySave(ctx context.Context, in Inbound, toast *string) error {
	sess, ok, err := a.sessions.Get(ctx, in.SubjectID)
	if err != nil {
		return err
	}
	if !ok || sess.Pending == nil {
		*toast = msgStaleButton
		return nil
	}
	return a.finalize(ctx, in, &sess)
}

// repromptCurrent re-sends the prompt for the session's current state without
// changing it.
func (a *Adapter) repromptCurrent(ctx context.Context, sess *survey.Session) error {
	if sess.Pending != nil {
		return a.showPrompt(ctx, sess, msgSaveFailed, retryKeyboard())
	}
	if sess.Step == survey.StepAwaitingDepartment {
		return a.showPrompt(ctx, sess, msgGreeting, departmentKeyboard())
	}
	metric, ok := a.catalog.Metric(sess.Step)
	if !ok {
		return a.sendPlain(ctx, sess.ChatID, msgUseButtons)
	}
	return a.showPrompt(ctx, sess, metric.Prompt, answerKeyboard(sess.Step, metric))
}

// restartForDepartment resolves an answer arriving with no department set:
// never guess, always re-ask the department from scratch.
func (a *Adapter) restartForDepartment(ctx context.Context, in Inbound, sess *survey.Session) error {
	fresh := survey.NewSession(in.SubjectID, in.ChatID, a.now().In(a.loc))
	fresh.LastMessageID = sess.LastMessageID
	if err := a.sessions.Put(ctx, *fresh); err != nil {
		return err
	}
	return a.showPrompt(ctx, fresh, msgSessionLost+"\n\n"+msgGreeting, departmentKeyboard())
}

// finalize turns the completed session into an immutable record and appends
// it. On append failure the session (with its pending record) is kept so the
// subject can retry without re-answering.
func (a *Adapter) finalize(ctx context.Context, in Inbound, sess *survey.Session) error {
	if sess.Pending == nil {
		now := a.now().In(a.loc)
		subject := strings.TrimSpace(in.DisplayName)
		if subject == "" {
			subject = in.SubjectID
		}
		values := make(map[string]survey.Answer, len(sess.Answers))
		for k, v := range sess.Answers {
			values[k] = v
		}
		sess.Pending = &survey.Record{
			ID:         uuid.NewString(),
			Date:       now.Format("2006-01-02"),
			Time:       now.Format("15:04"),
			Subject:    subject,
			Department: sess.Department,
			Values:     values,
		}
		if err := a.sessions.Put(ctx, *sess); err != nil {
			return err
		}
	}

	rec := sess.Pending
	appendErr := retryutil.Do(ctx, a.logger, "sheet_append", a.appendAttempts, a.appendBaseDelay, func(ctx context.Context) error {
		return a.tabular.AppendRow(ctx, rec.Row(a.fields))
	})

	a.retract(ctx, sess.ChatID, sess.LastMessageID)

	if appendErr != nil {
		a.logger.Warn("record_append_failed", "record_id", rec.ID, "subject", sess.SubjectID, "error", appendErr.Error())
		text := msgSaveFailed
		id, sendErr := a.sendPrompt(ctx, sess.ChatID, text, retryKeyboard())
		if sendErr == nil {
			sess.LastMessageID = id
		}
		if err := a.sessions.Put(ctx, *sess); err != nil {
			return err
		}
		return appendErr
	}

	a.logger.Info("record_appended", "record_id", rec.ID, "subject", sess.SubjectID, "department", rec.Department)
	if err := a.sessions.Delete(ctx, sess.SubjectID); err != nil {
		return err
	}
	text := fmt.Sprintf(msgSaved, rec.Department, rec.Date, rec.Time)
	// The completion summary is never retracted later; no reference kept.
	_, err := a.sendPrompt(ctx, sess.ChatID, text, restartKeyboard())
	return err
}

func (a *Adapter) handleSummary(ctx context.Context, in Inbound, from, to time.Time) error {
	var rows []map[string]string
	err := retryutil.Do(ctx, a.logger, "sheet_read", a.appendAttempts, a.appendBaseDelay, func(ctx context.Context) error {
		var readErr error
		rows, readErr = a.tabular.ReadAllRows(ctx)
		return readErr
	})
	if err != nil {
		a.logger.Warn("summary_read_failed", "error", err.Error())
		return a.sendPlain(ctx, in.ChatID, msgSummaryFailed)
	}

	byDept := summary.Aggregate(rows, a.fields, from, to, summary.GroupByDepartment)
	byMetric := summary.Aggregate(rows, a.fields, from, to, summary.GroupByMetric)
	return a.sendPlain(ctx, in.ChatID, renderSummary(byDept, byMetric, a.titles, from, to))
}

// showPrompt retracts the previous interactive prompt, sends the new one and
// records its reference on the session. A failed retraction is logged and
// ignored; a failed send leaves the already-advanced state intact so the same
// prompt can be re-issued.
func (a *Adapter) showPrompt(ctx context.Context, sess *survey.Session, text string, choices [][]Choice) error {
	a.retract(ctx, sess.ChatID, sess.LastMessageID)

	id, err := a.sendPrompt(ctx, sess.ChatID, text, choices)
	if err != nil {
		a.logger.Warn("prompt_send_failed", "subject", sess.SubjectID, "error", err.Error())
		if plainErr := a.transport.SendPlain(ctx, sess.ChatID, msgSendFailed); plainErr != nil {
			a.logger.Debug("fallback_send_failed", "error", plainErr.Error())
		}
		return err
	}
	sess.LastMessageID = id
	return a.sessions.Put(ctx, *sess)
}

func (a *Adapter) sendPrompt(ctx context.Context, chatID int64, text string, choices [][]Choice) (int64, error) {
	var id int64
	err := retryutil.Do(ctx, a.logger, "prompt_send", a.sendAttempts, a.sendBaseDelay, func(ctx context.Context) error {
		var sendErr error
		id, sendErr = a.transport.SendPrompt(ctx, chatID, text, choices)
		return sendErr
	})
	return id, err
}

func (a *Adapter) sendPlain(ctx context.Context, chatID int64, text string) error {
	return retryutil.Do(ctx, a.logger, "plain_send", a.sendAttempts, a.sendBaseDelay, func(ctx context.Context) error {
		return a.transport.SendPlain(ctx, chatID, text)
	})
}

func (a *Adapter) retract(ctx context.Context, chatID, messageID int64) {
	if messageID == 0 {
		return
	}
	if err := a.transport.Retract(ctx, chatID, messageID); err != nil {
		a.logger.Debug("retract_failed", "chat_id", chatID, "message_id", messageID, "error", err.Error())
	}
}
