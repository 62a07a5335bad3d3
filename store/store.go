// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/podium-foundation/podium/lib/clock"
)

// ErrNotFound is returned when no session matches the given id or room.
var ErrNotFound = errors.New("store: session not found")

// PersistenceError wraps a failed durable write. The synchronizer
// treats these as non-fatal: the live UI keeps its local state and the
// outbound publish still happens.
type PersistenceError struct {
	// Op is the failed operation (e.g., "update_slide_index").
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store owns the durable TeachingSession records and notifies watchers
// after every mutation. Safe for concurrent use.
type Store struct {
	pool   *pool
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string][]*Watcher // keyed by session id
}

// Open opens (creating if necessary) the session store at path.
// ":memory:" is accepted for tests. A nil logger discards output.
func Open(path string, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clk == nil {
		clk = clock.Real()
	}
	p, err := openPool(path, logger)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:     p,
		clock:    clk,
		logger:   logger,
		watchers: make(map[string][]*Watcher),
	}, nil
}

// Close stops all watchers and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, list := range s.watchers {
		for _, w := range list {
			w.closeLocked()
		}
	}
	s.watchers = make(map[string][]*Watcher)
	s.mu.Unlock()
	return s.pool.close()
}

// CreateOptions configures a new session record.
type CreateOptions struct {
	TargetDurationMinutes int
	WrapUpBufferMinutes   int
	PresentationID        string
	LessonID              string
}

// CreateSession provisions the record for a new room. The room id must
// not already have a live record.
func (s *Store) CreateSession(ctx context.Context, roomID string, opts CreateOptions) (*TeachingSession, error) {
	if roomID == "" {
		return nil, &PersistenceError{Op: "create_session", Err: errors.New("empty room id")}
	}
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "create_session", Err: err}
	}
	defer s.pool.put(conn)

	record := &TeachingSession{
		ID:                    uuid.NewString(),
		RoomID:                roomID,
		CreatedAt:             s.clock.Now().UTC(),
		TargetDurationMinutes: opts.TargetDurationMinutes,
		WrapUpBufferMinutes:   opts.WrapUpBufferMinutes,
		PresentationID:        opts.PresentationID,
		LessonID:              opts.LessonID,
		Presentation:          PresentationMode{ControlledBy: ControllerShared},
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO teaching_sessions
			(id, room_id, created_at_ms, target_minutes, wrap_up_minutes,
			 presentation_id, lesson_id)
		VALUES (:id, :room_id, :created_at_ms, :target, :wrap_up, :pres_id, :lesson_id)`,
		&sqlitex.ExecOptions{Named: map[string]any{
			":id":            record.ID,
			":room_id":       roomID,
			":created_at_ms": record.CreatedAt.UnixMilli(),
			":target":        opts.TargetDurationMinutes,
			":wrap_up":       opts.WrapUpBufferMinutes,
			":pres_id":       opts.PresentationID,
			":lesson_id":     opts.LessonID,
		}})
	if err != nil {
		return nil, &PersistenceError{Op: "create_session", Err: err}
	}

	s.logger.Info("session created", "session", record.ID, "room", roomID)
	return record, nil
}

// Session returns the record for a session id.
func (s *Store) Session(ctx context.Context, sessionID string) (*TeachingSession, error) {
	return s.loadWhere(ctx, "id = :key", sessionID)
}

// SessionForRoom returns the record for a room id.
func (s *Store) SessionForRoom(ctx context.Context, roomID string) (*TeachingSession, error) {
	return s.loadWhere(ctx, "room_id = :key", roomID)
}

// StartPresentationMode marks a presentation active at slide zero.
// This is an authoritative mode transition: it also records who
// controls navigation.
func (s *Store) StartPresentationMode(ctx context.Context, sessionID, presentationID string, controlledBy Controller) error {
	if !controlledBy.Valid() {
		return &PersistenceError{Op: "start_presentation", Err: fmt.Errorf("invalid controller %q", controlledBy)}
	}
	return s.mutate(ctx, "start_presentation", sessionID, `
		UPDATE teaching_sessions
		SET pres_active = 1,
		    pres_presentation_id = :pres_id,
		    pres_slide_index = 0,
		    pres_controlled_by = :controller
		WHERE id = :id`,
		map[string]any{
			":id":         sessionID,
			":pres_id":    presentationID,
			":controller": string(controlledBy),
		})
}

// UpdateSlideIndex writes the authoritative slide position.
// triggeredBy records which participant made the change.
func (s *Store) UpdateSlideIndex(ctx context.Context, sessionID string, slideIndex int, triggeredBy string) error {
	if slideIndex < 0 {
		return &PersistenceError{Op: "update_slide_index", Err: fmt.Errorf("negative slide index %d", slideIndex)}
	}
	return s.mutate(ctx, "update_slide_index", sessionID, `
		UPDATE teaching_sessions
		SET pres_slide_index = :index,
		    pres_updated_by = :by
		WHERE id = :id`,
		map[string]any{
			":id":    sessionID,
			":index": slideIndex,
			":by":    triggeredBy,
		})
}

// EndPresentationMode deactivates the presentation. The slide index is
// preserved so reactivating resumes in place.
func (s *Store) EndPresentationMode(ctx context.Context, sessionID string) error {
	return s.mutate(ctx, "end_presentation", sessionID, `
		UPDATE teaching_sessions
		SET pres_active = 0
		WHERE id = :id`,
		map[string]any{":id": sessionID})
}

// EndSession marks the room's session ended. Idempotent: ending an
// already-ended session keeps the original reason and timestamp.
func (s *Store) EndSession(ctx context.Context, roomID, reason string) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return &PersistenceError{Op: "end_session", Err: err}
	}

	err = sqlitex.Execute(conn, `
		UPDATE teaching_sessions
		SET ended_at_ms = :now, end_reason = :reason
		WHERE room_id = :room AND ended_at_ms = 0`,
		&sqlitex.ExecOptions{Named: map[string]any{
			":room":   roomID,
			":now":    s.clock.Now().UTC().UnixMilli(),
			":reason": reason,
		}})
	changed := conn.Changes()
	s.pool.put(conn)
	if err != nil {
		return &PersistenceError{Op: "end_session", Err: err}
	}
	if changed > 0 {
		s.logger.Info("session ended", "room", roomID, "reason", reason)
		if record, loadErr := s.SessionForRoom(context.WithoutCancel(ctx), roomID); loadErr == nil {
			s.notify(record)
		}
	}
	return nil
}

// Watch subscribes to the session record. The returned watcher yields
// the current record after every change, coalescing bursts to the most
// recent state. Call [Watcher.Close] when done.
func (s *Store) Watch(sessionID string) *Watcher {
	w := &Watcher{
		store:     s,
		sessionID: sessionID,
		updates:   make(chan *TeachingSession, 1),
	}
	s.mu.Lock()
	s.watchers[sessionID] = append(s.watchers[sessionID], w)
	s.mu.Unlock()
	return w
}

// mutate runs one UPDATE scoped to a session id, then notifies
// watchers with the fresh record.
func (s *Store) mutate(ctx context.Context, op, sessionID, query string, named map[string]any) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}

	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Named: named})
	changed := conn.Changes()
	s.pool.put(conn)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	if changed == 0 {
		return &PersistenceError{Op: op, Err: ErrNotFound}
	}

	record, err := s.Session(context.WithoutCancel(ctx), sessionID)
	if err != nil {
		// The write landed; watcher refresh failing is log-worthy only.
		s.logger.Warn("watcher refresh failed", "op", op, "session", sessionID, "error", err)
		return nil
	}
	s.notify(record)
	return nil
}

// notify fans the record out to its watchers. Delivery coalesces: a
// watcher that has not drained the previous record gets only the
// newest one.
func (s *Store) notify(record *TeachingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watchers[record.ID] {
		if w.closed {
			continue
		}
		select {
		case w.updates <- record:
		default:
			select {
			case <-w.updates:
			default:
			}
			w.updates <- record
		}
	}
}

// removeWatcher detaches w from the fan-out list.
func (s *Store) removeWatcher(w *Watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.watchers[w.sessionID]
	for i, candidate := range list {
		if candidate == w {
			s.watchers[w.sessionID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	w.closeLocked()
}

// loadWhere reads one session row by an indexed key.
func (s *Store) loadWhere(ctx context.Context, where, key string) (*TeachingSession, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.put(conn)

	var record *TeachingSession
	err = sqlitex.Execute(conn, `
		SELECT id, room_id, created_at_ms, target_minutes, wrap_up_minutes,
		       presentation_id, lesson_id, pres_active, pres_presentation_id,
		       pres_slide_index, pres_controlled_by, pres_updated_by,
		       ended_at_ms, end_reason
		FROM teaching_sessions WHERE `+where,
		&sqlitex.ExecOptions{
			Named: map[string]any{":key": key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = scanSession(stmt)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("store: loading session: %w", err)
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// scanSession builds a TeachingSession from a full row.
func scanSession(stmt *sqlite.Stmt) *TeachingSession {
	record := &TeachingSession{
		ID:                    stmt.ColumnText(0),
		RoomID:                stmt.ColumnText(1),
		CreatedAt:             time.UnixMilli(stmt.ColumnInt64(2)).UTC(),
		TargetDurationMinutes: stmt.ColumnInt(3),
		WrapUpBufferMinutes:   stmt.ColumnInt(4),
		PresentationID:        stmt.ColumnText(5),
		LessonID:              stmt.ColumnText(6),
		Presentation: PresentationMode{
			Active:            stmt.ColumnInt(7) != 0,
			PresentationID:    stmt.ColumnText(8),
			CurrentSlideIndex: stmt.ColumnInt(9),
			ControlledBy:      Controller(stmt.ColumnText(10)),
			UpdatedBy:         stmt.ColumnText(11),
		},
		EndReason: stmt.ColumnText(13),
	}
	if ms := stmt.ColumnInt64(12); ms != 0 {
		record.EndedAt = time.UnixMilli(ms).UTC()
	}
	return record
}

// Watcher yields session records as they change. Not safe for
// concurrent use by multiple goroutines.
type Watcher struct {
	store     *Store
	sessionID string
	updates   chan *TeachingSession
	closed    bool
}

// Updates returns the channel of record snapshots. The channel is
// never closed while the watcher is open; after Close it stops
// receiving.
func (w *Watcher) Updates() <-chan *TeachingSession { return w.updates }

// Close detaches the watcher from the store.
func (w *Watcher) Close() { w.store.removeWatcher(w) }

// closeLocked marks the watcher closed. Caller holds store.mu.
func (w *Watcher) closeLocked() { w.closed = true }
