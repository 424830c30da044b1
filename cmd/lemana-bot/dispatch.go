package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tak4da/lemanaMP2/internal/presenter"
)

// dispatcher fans inbound events out to one worker goroutine per subject:
// events for the same subject are handled serially, different subjects in
// parallel. Workers are keyed by subject rather than chat so the same person
// pressing buttons in two chats still mutates their session one event at a
// time; replies go to each event's own chat.
type dispatcher struct {
	handle   func(context.Context, presenter.Inbound)
	overflow func(context.Context, presenter.Inbound)
	logger   *slog.Logger

	mu      sync.Mutex
	workers map[string]*subjectWorker
	wg      sync.WaitGroup
}

type subjectWorker struct {
	Jobs chan subjectJob
}

type subjectJob struct {
	In presenter.Inbound
}

func newDispatcher(logger *slog.Logger, handle, overflow func(context.Context, presenter.Inbound)) *dispatcher {
	return &dispatcher{
		handle:   handle,
		overflow: overflow,
		logger:   logger,
		workers:  make(map[string]*subjectWorker),
	}
}

// Dispatch enqueues one event for its subject's worker, starting the worker
// on first use. A full queue never blocks the poll loop: the event is handed
// to the overflow callback so the subject still gets feedback.
func (d *dispatcher) Dispatch(ctx context.Context, in presenter.Inbound) {
	d.mu.Lock()
	w := d.workers[in.SubjectID]
	if w == nil {
		w = &subjectWorker{Jobs: make(chan subjectJob, 16)}
		d.workers[in.SubjectID] = w

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range w.Jobs {
				d.handle(ctx, job.In)
			}
		}()
	}
	d.mu.Unlock()

	select {
	case w.Jobs <- subjectJob{In: in}:
	default:
		d.logger.Warn("subject_queue_full", "subject", in.SubjectID, "chat_id", in.ChatID)
		if d.overflow != nil {
			d.overflow(ctx, in)
		}
	}
}

// Close drains every worker queue and waits for the workers to finish.
func (d *dispatcher) Close() {
	d.mu.Lock()
	for _, w := range d.workers {
		close(w.Jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
