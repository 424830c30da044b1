package survey

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is an inbound dialog event, decoded once at the transport boundary.
// The state machine never sees raw callback strings.
type Event interface {
	isEvent()
}

// StartEvent begins a fresh questionnaire pass, discarding any previous one.
type StartEvent struct{}

// CancelEvent destroys the subject's session unconditionally.
type CancelEvent struct{}

// DepartmentEvent carries the chosen department code.
type DepartmentEvent struct {
	Department int
}

// AnswerEvent carries a button answer for the step it was rendered for. Step
// lets stale payloads (from an already-retracted prompt) be detected.
type AnswerEvent struct {
	Step          int
	Value         int
	NotApplicable bool
}

// ManualRequestEvent switches the current step to typed-number entry.
type ManualRequestEvent struct {
	Step int
}

// ManualTextEvent carries the typed text while manual entry is expected.
type ManualTextEvent struct {
	Text string
}

// RetrySaveEvent re-attempts appending an already finalized record.
type RetrySaveEvent struct{}

// TodaySummaryEvent requests per-department sums for the current date.
type TodaySummaryEvent struct{}

// PeriodSummaryEvent requests per-department sums over a closed date range.
type PeriodSummaryEvent struct {
	From time.Time
	To   time.Time
}

func (StartEvent) isEvent()         {}
func (CancelEvent) isEvent()        {}
func (DepartmentEvent) isEvent()    {}
func (AnswerEvent) isEvent()        {}
func (ManualRequestEvent) isEvent() {}
func (ManualTextEvent) isEvent()    {}
func (RetrySaveEvent) isEvent()     {}
func (TodaySummaryEvent) isEvent()  {}
func (PeriodSummaryEvent) isEvent() {}

// Callback payload grammar:
//
//	dep:<n>        department selection
//	q<step>:<v>    numeric answer for step
//	q<step>:na     not-applicable answer for step
//	q<step>:manual switch step to manual entry
//	start_new      restart after completion
//	retry_save     retry a failed append
const (
	callbackDepartmentPrefix = "dep:"
	callbackQuestionPrefix   = "q"
	callbackStartNew         = "start_new"
	callbackRetrySave        = "retry_save"
	callbackValueNA          = "na"
	callbackValueManual      = "manual"
)

// DepartmentCallback renders the callback payload for a department button.
func DepartmentCallback(department int) string {
	return callbackDepartmentPrefix + strconv.Itoa(department)
}

// AnswerCallback renders the callback payload for a numeric answer button.
func AnswerCallback(step, value int) string {
	return fmt.Sprintf("%s%d:%d", callbackQuestionPrefix, step, value)
}

// AnswerNACallback renders the callback payload for the not-applicable button.
func AnswerNACallback(step int) string {
	return fmt.Sprintf("%s%d:%s", callbackQuestionPrefix, step, callbackValueNA)
}

// ManualCallback renders the callback payload for the manual-entry button.
func ManualCallback(step int) string {
	return fmt.Sprintf("%s%d:%s", callbackQuestionPrefix, step, callbackValueManual)
}

// StartNewCallback renders the restart button payload.
func StartNewCallback() string { return callbackStartNew }

// RetrySaveCallback renders the retry-append button payload.
func RetrySaveCallback() string { return callbackRetrySave }

// DecodeCallback parses a callback payload into a tagged event.
func DecodeCallback(data string) (Event, error) {
	data = strings.TrimSpace(data)
	switch {
	case data == "":
		return nil, fmt.Errorf("empty callback payload")
	case data == callbackStartNew:
		return StartEvent{}, nil
	case data == callbackRetrySave:
		return RetrySaveEvent{}, nil
	case strings.HasPrefix(data, callbackDepartmentPrefix):
		raw := strings.TrimPrefix(data, callbackDepartmentPrefix)
		department, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("callback %q: bad department: %w", data, err)
		}
		return DepartmentEvent{Department: department}, nil
	case strings.HasPrefix(data, callbackQuestionPrefix):
		rest := strings.TrimPrefix(data, callbackQuestionPrefix)
		left, right, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("callback %q: missing value", data)
		}
		step, err := strconv.Atoi(left)
		if err != nil || step < 0 {
			return nil, fmt.Errorf("callback %q: bad step", data)
		}
		switch right {
		case callbackValueNA:
			return AnswerEvent{Step: step, NotApplicable: true}, nil
		case callbackValueManual:
			return ManualRequestEvent{Step: step}, nil
		default:
			value, err := strconv.Atoi(right)
			if err != nil {
				return nil, fmt.Errorf("callback %q: bad value: %w", data, err)
			}
			return AnswerEvent{Step: step, Value: value}, nil
		}
	default:
		return nil, fmt.Errorf("unknown callback payload %q", data)
	}
}
