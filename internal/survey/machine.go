package survey

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAnswer marks a value outside the step's declared domain.
	// The session is left unchanged.
	ErrInvalidAnswer = errors.New("survey: invalid answer")

	// ErrInvalidDepartment marks an out-of-range department code.
	ErrInvalidDepartment = errors.New("survey: invalid department")

	// ErrNoDepartment marks an answer event arriving with no department
	// set (for example after a restart lost partial state). Recovery is
	// always a fresh department prompt, never a guessed default.
	ErrNoDepartment = errors.New("survey: department not chosen")

	// ErrStaleStep marks an answer payload rendered for a step the session
	// has already moved past.
	ErrStaleStep = errors.New("survey: stale step")

	// ErrUnexpectedEvent marks an event the current state does not accept.
	ErrUnexpectedEvent = errors.New("survey: unexpected event")
)

// ResultKind tags what the dialog should do after a transition.
type ResultKind int

const (
	// AskDepartment prompts for department selection.
	AskDepartment ResultKind = iota
	// AskMetric prompts the metric at Result.Step.
	AskMetric
	// Complete means every metric is answered or skipped; the session is
	// ready to be finalized.
	Complete
)

// Result describes the state just entered by a transition.
type Result struct {
	Kind   ResultKind
	Step   int
	Metric Metric
}

// Machine applies dialog events to sessions. It is pure logic over the metric
// catalog: no I/O, no clock, no transport.
type Machine struct {
	catalog *Catalog
}

func NewMachine(catalog *Catalog) *Machine {
	return &Machine{catalog: catalog}
}

// ChooseDepartment handles department selection. Valid only before any metric
// has been asked.
func (m *Machine) ChooseDepartment(s *Session, department int) (Result, error) {
	if s.Step != StepAwaitingDepartment {
		return Result{}, fmt.Errorf("%w: department already chosen", ErrUnexpectedEvent)
	}
	if department < DepartmentMin || department > DepartmentMax {
		return Result{}, fmt.Errorf("%w: %d not in %d..%d", ErrInvalidDepartment, department, DepartmentMin, DepartmentMax)
	}
	s.Department = department
	s.Step = 0
	m.skipAdvance(s)
	return m.resultForStep(s), nil
}

// Answer handles a button answer for the given step. A step mismatch means
// the payload came from an already-replaced prompt and is rejected without a
// state change.
func (m *Machine) Answer(s *Session, ev AnswerEvent) (Result, error) {
	metric, err := m.currentMetric(s)
	if err != nil {
		return Result{}, err
	}
	if ev.Step != s.Step {
		return Result{}, fmt.Errorf("%w: got step %d, session at %d", ErrStaleStep, ev.Step, s.Step)
	}
	if ev.NotApplicable {
		if !metric.AllowNA {
			return Result{}, fmt.Errorf("%w: %s does not allow not-applicable", ErrInvalidAnswer, metric.Field)
		}
		return m.record(s, metric, Answer{NotApplicable: true}), nil
	}
	if !metric.Accepts(ev.Value) {
		return Result{}, fmt.Errorf("%w: %d not in %v for %s", ErrInvalidAnswer, ev.Value, metric.Choices, metric.Field)
	}
	return m.record(s, metric, Answer{Value: ev.Value}), nil
}

// RequestManual marks the current step as expecting a typed number.
func (m *Machine) RequestManual(s *Session, ev ManualRequestEvent) (Metric, error) {
	metric, err := m.currentMetric(s)
	if err != nil {
		return Metric{}, err
	}
	if ev.Step != s.Step {
		return Metric{}, fmt.Errorf("%w: got step %d, session at %d", ErrStaleStep, ev.Step, s.Step)
	}
	s.AwaitingManual = true
	return metric, nil
}

// ManualAnswer records a typed value for the current step. The manual domain
// is 0..ManualValueMax regardless of the button choices.
func (m *Machine) ManualAnswer(s *Session, value int) (Result, error) {
	metric, err := m.currentMetric(s)
	if err != nil {
		return Result{}, err
	}
	if !s.AwaitingManual {
		return Result{}, fmt.Errorf("%w: manual entry not requested", ErrUnexpectedEvent)
	}
	if value < 0 || value > ManualValueMax {
		return Result{}, fmt.Errorf("%w: %d not in 0..%d for %s", ErrInvalidAnswer, value, ManualValueMax, metric.Field)
	}
	s.AwaitingManual = false
	return m.record(s, metric, Answer{Value: value}), nil
}

func (m *Machine) currentMetric(s *Session) (Metric, error) {
	if s.Department == 0 || s.Step == StepAwaitingDepartment {
		return Metric{}, ErrNoDepartment
	}
	metric, ok := m.catalog.Metric(s.Step)
	if !ok {
		return Metric{}, fmt.Errorf("%w: questionnaire already complete", ErrUnexpectedEvent)
	}
	return metric, nil
}

func (m *Machine) record(s *Session, metric Metric, ans Answer) Result {
	s.Answers[metric.Field] = ans
	s.Step++
	m.skipAdvance(s)
	return m.resultForStep(s)
}

// skipAdvance force-zeroes every consecutive metric whose skip predicate fires
// for the session's department. Re-run after every advancing event; multiple
// consecutive metrics may be skippable. Idempotent: once pointed at a
// non-skipped metric it does nothing.
func (m *Machine) skipAdvance(s *Session) {
	for s.Step < m.catalog.Len() {
		metric, _ := m.catalog.Metric(s.Step)
		if !metric.SkippedFor(s.Department) {
			return
		}
		s.Answers[metric.Field] = Answer{Value: 0}
		s.Step++
	}
}

func (m *Machine) resultForStep(s *Session) Result {
	if s.Step >= m.catalog.Len() {
		return Result{Kind: Complete, Step: s.Step}
	}
	metric, _ := m.catalog.Metric(s.Step)
	return Result{Kind: AskMetric, Step: s.Step, Metric: metric}
}
