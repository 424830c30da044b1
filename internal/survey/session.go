package survey

import (
	"strconv"
	"time"
)

// StepAwaitingDepartment is the step sentinel before a department is chosen.
const StepAwaitingDepartment = -1

// Answer is one recorded metric value. NotApplicable wins over Value.
type Answer struct {
	Value         int  `json:"value"`
	NotApplicable bool `json:"not_applicable,omitempty"`
}

// Session is the in-progress state of one subject's questionnaire pass. A
// session exists only while a pass is in progress: created on first
// interaction, destroyed on completion or cancel.
type Session struct {
	SubjectID  string `json:"subject_id"`
	ChatID     int64  `json:"chat_id"`
	Department int    `json:"department"` // 0 until chosen
	Step       int    `json:"step"`       // StepAwaitingDepartment before department

	Answers map[string]Answer `json:"answers"`

	// AwaitingManual is set between a manual-entry request and the typed
	// number for the current step.
	AwaitingManual bool `json:"awaiting_manual,omitempty"`

	// Pending holds a finalized record whose append to the tabular store
	// failed; it allows retrying completion without re-asking anything.
	Pending *Record `json:"pending,omitempty"`

	// LastMessageID references the most recent interactive prompt so the
	// next prompt can retract it first.
	LastMessageID int64 `json:"last_message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewSession returns a fresh session awaiting department selection.
func NewSession(subjectID string, chatID int64, now time.Time) *Session {
	return &Session{
		SubjectID: subjectID,
		ChatID:    chatID,
		Step:      StepAwaitingDepartment,
		Answers:   make(map[string]Answer),
		CreatedAt: now,
	}
}

// Record is the finalized, immutable output of one completed session.
type Record struct {
	ID         string            `json:"id"`
	Date       string            `json:"date"` // 2006-01-02
	Time       string            `json:"time"` // 15:04
	Subject    string            `json:"subject"`
	Department int               `json:"department"`
	Values     map[string]Answer `json:"values"`
}

// Row flattens the record into cells in the fixed column order:
// date, time, user, department, then one cell per metric field.
// Not-applicable values become empty cells.
func (r Record) Row(fields []string) []string {
	cells := make([]string, 0, 4+len(fields))
	cells = append(cells, r.Date, r.Time, r.Subject, strconv.Itoa(r.Department))
	for _, field := range fields {
		ans, ok := r.Values[field]
		if !ok || ans.NotApplicable {
			cells = append(cells, "")
			continue
		}
		cells = append(cells, strconv.Itoa(ans.Value))
	}
	return cells
}
