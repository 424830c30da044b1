// Package sessionstore owns the persisted subject→session table. The whole
// table is loaded once at startup and rewritten in full after every mutation;
// the table is small (tens to low hundreds of sessions), so full rewrites buy
// crash consistency cheaply.
package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tak4da/lemanaMP2/internal/fsstore"
	"github.com/tak4da/lemanaMP2/internal/survey"
)

const sessionsFileVersion = 1

type sessionsFile struct {
	Version  int                        `json:"version"`
	Sessions map[string]*survey.Session `json:"sessions"`
}

// Store is the only shared mutable resource in the core. A single mutex
// serializes every load-mutate-save cycle; callers must not hold the store
// open across transport I/O (the methods below return before any network
// call a caller makes).
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*survey.Session
}

// Open loads the session table from path. A missing or corrupt file yields an
// empty table, never a startup failure.
func Open(path string, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sessionstore: path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:     path,
		logger:   logger,
		sessions: make(map[string]*survey.Session),
	}

	var file sessionsFile
	ok, err := fsstore.ReadJSON(path, &file)
	if err != nil {
		logger.Warn("sessions_load_failed", "path", path, "error", err.Error())
		return s, nil
	}
	if ok && file.Sessions != nil {
		for id, sess := range file.Sessions {
			if sess == nil {
				continue
			}
			if sess.Answers == nil {
				sess.Answers = make(map[string]survey.Answer)
			}
			s.sessions[id] = sess
		}
	}
	logger.Info("sessions_loaded", "path", path, "count", len(s.sessions))
	return s, nil
}

// Get returns a copy of the subject's session, if any.
func (s *Store) Get(ctx context.Context, subjectID string) (survey.Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return survey.Session{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[subjectID]
	if !ok {
		return survey.Session{}, false, nil
	}
	return copySession(sess), true, nil
}

// Put stores the session and rewrites the backing file.
func (s *Store) Put(ctx context.Context, sess survey.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(sess.SubjectID) == "" {
		return fmt.Errorf("sessionstore: subject id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copySession(&sess)
	s.sessions[sess.SubjectID] = &stored
	return s.saveLocked()
}

// Delete removes the subject's session and rewrites the backing file. Deleting
// an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, subjectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[subjectID]; !ok {
		return nil
	}
	delete(s.sessions, subjectID)
	return s.saveLocked()
}

// Len reports the number of active sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) saveLocked() error {
	file := sessionsFile{
		Version:  sessionsFileVersion,
		Sessions: s.sessions,
	}
	if err := fsstore.WriteJSONAtomic(s.path, file); err != nil {
		return fmt.Errorf("sessionstore: save %s: %w", s.path, err)
	}
	return nil
}

func copySession(sess *survey.Session) survey.Session {
	out := *sess
	out.Answers = make(map[string]survey.Answer, len(sess.Answers))
	for k, v := range sess.Answers {
		out.Answers[k] = v
	}
	if sess.Pending != nil {
		pending := *sess.Pending
		pending.Values = make(map[string]survey.Answer, len(sess.Pending.Values))
		for k, v := range sess.Pending.Values {
			pending.Values[k] = v
		}
		out.Pending = &pending
	}
	return out
}
