// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/podium-foundation/podium/lib/clock"
	"github.com/podium-foundation/podium/protocol"
	"github.com/podium-foundation/podium/store"
)

// gameCompletionDelay is how long the final score stays on screen
// before the game clears and the presentation (if any) resumes.
const gameCompletionDelay = 3 * time.Second

// ErrSessionEnded is returned by local operations after teardown.
var ErrSessionEnded = errors.New("session: already ended")

// ErrNotController is returned when a local navigation is rejected
// because the other participant holds navigation control.
var ErrNotController = errors.New("session: navigation controlled by peer")

// DataChannel is the transport surface the synchronizer needs.
// *transport.Channel satisfies it.
type DataChannel interface {
	Send(data []byte) error
	OnMessage(handler func(data []byte))
	OnDisconnect(handler func(reason string))
	Close() error
}

// CapturePipeline relays rendered slide content to the peer.
// *capture.Pipeline satisfies it.
type CapturePipeline interface {
	CaptureMount(unit protocol.SlideInfo)
	CaptureChange(unit protocol.SlideInfo)
	Close()
}

// ContentProvider resolves a stored presentation id into an inline
// slide deck, for load_presentation requests.
type ContentProvider interface {
	Presentation(ctx context.Context, presentationID string) (*protocol.LoadSlides, error)
}

// GameCatalog resolves known game ids to their item counts, for
// load_game requests that carry no inline game data.
type GameCatalog interface {
	ItemCount(gameID string) (int, bool)
}

// MediaState tracks which local media the participant has enabled.
// Flags are only ever raised by explicit local action; teardown
// releases all of them.
type MediaState struct {
	Microphone  bool
	Camera      bool
	ScreenShare bool
}

// Options configures a Synchronizer.
type Options struct {
	// Channel is the connected (or connecting) data channel to the
	// peer. Required.
	Channel DataChannel

	// Store persists the authoritative session record. Required.
	Store *store.Store

	// RoomID identifies the room; one session record per room.
	// Required.
	RoomID string

	// Participant is this side's name, recorded as triggeredBy on
	// persisted changes. Required.
	Participant string

	// Peer is the other side's name, recorded as triggeredBy when a
	// remote command drives a persisted change.
	Peer string

	// Role is which seat this process occupies, checked against the
	// record's navigation controller. Defaults to ControllerStudent.
	Role store.Controller

	// Capture relays rendered slides to the peer. Optional.
	Capture CapturePipeline

	// Content resolves load_presentation requests. Optional; without
	// it such requests are logged and skipped.
	Content ContentProvider

	// Catalog resolves load_game requests without inline data.
	// Optional; without it such requests are logged and skipped.
	Catalog GameCatalog

	// Beacon notifies the backend when the session ends. Optional.
	Beacon *Beacon

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to discard.
	Logger *slog.Logger

	// Session record parameters used when this room has no record yet.
	TargetDurationMinutes int
	WrapUpBufferMinutes   int
	PresentationID        string
	LessonID              string
}

// Synchronizer keeps the local content state, the persisted session
// record, and the remote participant agreed. All mutation paths
// (inbound messages, local operations, watcher snapshots, timers)
// serialize on one dispatch lock.
type Synchronizer struct {
	channel     DataChannel
	store       *store.Store
	roomID      string
	participant string
	peer        string
	role        store.Controller
	pipeline    CapturePipeline
	content     ContentProvider
	catalog     GameCatalog
	beacon      *Beacon
	clock       clock.Clock
	logger      *slog.Logger
	opts        Options

	mu         sync.Mutex
	machine    *Machine
	reconciler *Reconciler
	lifecycle  *Lifecycle
	record     *store.TeachingSession
	watcher    *store.Watcher
	watchDone  chan struct{}
	media      MediaState
	resetTimer *clock.Timer
	started    bool
	ended      bool
	onTimer    func(TimerStatus)
	onEnded    func(reason string)
}

// New builds a Synchronizer. The session does not start until Start.
func New(opts Options) (*Synchronizer, error) {
	if opts.Channel == nil {
		return nil, fmt.Errorf("session: channel is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	if opts.RoomID == "" {
		return nil, fmt.Errorf("session: room id is required")
	}
	if opts.Participant == "" {
		return nil, fmt.Errorf("session: participant name is required")
	}
	if opts.Role == "" {
		opts.Role = store.ControllerStudent
	}
	if !opts.Role.Valid() {
		return nil, fmt.Errorf("session: invalid role %q", opts.Role)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synchronizer{
		channel:     opts.Channel,
		store:       opts.Store,
		roomID:      opts.RoomID,
		participant: opts.Participant,
		peer:        opts.Peer,
		role:        opts.Role,
		pipeline:    opts.Capture,
		content:     opts.Content,
		catalog:     opts.Catalog,
		beacon:      opts.Beacon,
		clock:       clk,
		logger:      logger,
		opts:        opts,
		machine:     NewMachine(),
		reconciler:  NewReconciler(clk),
	}, nil
}

// OnTimer registers the lesson-timer callback, invoked once per second
// while the session runs. Must be set before Start.
func (s *Synchronizer) OnTimer(fn func(TimerStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTimer = fn
}

// OnEnded registers the teardown callback, invoked exactly once with
// the end reason. Must be set before Start.
func (s *Synchronizer) OnEnded(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = fn
}

// Start loads (or creates) the room's session record, registers the
// inbound dispatcher, subscribes to record changes, and starts the
// lesson timer. Starting twice is an error.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("session: already started")
	}
	if s.ended {
		return ErrSessionEnded
	}

	record, err := s.store.SessionForRoom(ctx, s.roomID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		record, err = s.store.CreateSession(ctx, s.roomID, store.CreateOptions{
			TargetDurationMinutes: s.opts.TargetDurationMinutes,
			WrapUpBufferMinutes:   s.opts.WrapUpBufferMinutes,
			PresentationID:        s.opts.PresentationID,
			LessonID:              s.opts.LessonID,
		})
		if err != nil {
			return fmt.Errorf("session: creating record: %w", err)
		}
	case err != nil:
		return fmt.Errorf("session: loading record: %w", err)
	case record.Ended():
		return fmt.Errorf("session: room %s %w (reason %q)", s.roomID, ErrSessionEnded, record.EndReason)
	}
	s.record = record
	if record.Presentation.ControlledBy.Valid() {
		s.machine.controller = record.Presentation.ControlledBy
	}

	s.watcher = s.store.Watch(record.ID)
	s.watchDone = make(chan struct{})
	go s.consumeWatcher(s.watcher, s.watchDone)

	s.lifecycle = NewLifecycle(s.clock, record.CreatedAt,
		record.TargetDurationMinutes, record.WrapUpBufferMinutes)
	s.lifecycle.Start(s.handleTick)

	// One dispatcher for the channel's whole life. Re-registering
	// replaces, so a reconnect cannot stack handlers.
	s.channel.OnMessage(s.handleMessage)
	s.channel.OnDisconnect(s.handleDisconnect)

	s.started = true
	s.logger.Info("session started",
		"session", record.ID, "room", s.roomID, "participant", s.participant)
	return nil
}

// Timer returns the current lesson-timer reading.
func (s *Synchronizer) Timer() (TimerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle == nil {
		return TimerStatus{}, fmt.Errorf("session: not started")
	}
	return s.lifecycle.Status(), nil
}

// Media returns the current local media flags.
func (s *Synchronizer) Media() MediaState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

// SetMicrophone raises or lowers the local microphone flag.
func (s *Synchronizer) SetMicrophone(on bool) { s.setMedia(func(m *MediaState) { m.Microphone = on }) }

// SetCamera raises or lowers the local camera flag.
func (s *Synchronizer) SetCamera(on bool) { s.setMedia(func(m *MediaState) { m.Camera = on }) }

// SetScreenShare raises or lowers the local screen-share flag.
func (s *Synchronizer) SetScreenShare(on bool) {
	s.setMedia(func(m *MediaState) { m.ScreenShare = on })
}

func (s *Synchronizer) setMedia(apply func(*MediaState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	apply(&s.media)
}

// SlideIndex reports the current local slide index.
func (s *Synchronizer) SlideIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.SlideIndex()
}

// Mode reports the current activity mode.
func (s *Synchronizer) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Mode()
}

// LoadSlides installs a locally sourced deck, forwards it to the peer,
// and announces readiness.
func (s *Synchronizer) LoadSlides(ctx context.Context, msg *protocol.LoadSlides) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if err := s.applySlidesLocked(ctx, msg); err != nil {
		return err
	}
	s.publishLocked(msg)
	return nil
}

// Navigate applies a local navigation verb. index matters only for
// goto. Rejected when the record assigns navigation control to the
// other seat.
func (s *Synchronizer) Navigate(ctx context.Context, action protocol.NavAction, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if c := s.machine.Controller(); c != store.ControllerShared && c != s.role {
		return fmt.Errorf("%w (%s)", ErrNotController, c)
	}
	newIndex, changed, err := s.machine.Navigate(action, index)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	s.commitIndexLocked(ctx, newIndex, s.participant)
	return nil
}

// StartPresentation re-activates the loaded deck locally and tells the
// peer.
func (s *Synchronizer) StartPresentation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if err := s.activatePresentationLocked(ctx); err != nil {
		return err
	}
	s.publishLocked(&protocol.StartPresentation{})
	return nil
}

// StopPresentation deactivates the deck locally and tells the peer.
// The index is preserved for a later resume.
func (s *Synchronizer) StopPresentation(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	s.machine.EndPresentation()
	if err := s.store.EndPresentationMode(ctx, s.record.ID); err != nil {
		s.logger.Warn("persisting presentation end failed", "error", err)
	}
	s.publishLocked(&protocol.EndPresentation{})
	return nil
}

// LoadGame activates a game locally and forwards the request to the
// peer.
func (s *Synchronizer) LoadGame(ctx context.Context, msg *protocol.LoadGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if !s.applyGameLocked(msg) {
		return fmt.Errorf("session: unknown game %q with no inline data", msg.GameID)
	}
	s.publishLocked(msg)
	return nil
}

// NavigateGame applies a local game navigation verb.
func (s *Synchronizer) NavigateGame(action protocol.NavAction, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	_, changed, err := s.machine.NavigateGame(action, index)
	if err != nil {
		return err
	}
	if changed {
		s.publishGameStateLocked()
	}
	return nil
}

// AnswerItem records the outcome of the current game item and
// announces it. The answer that finishes the game also announces the
// final score, then clears the game after a short celebratory delay,
// resuming the presentation if one was on screen.
func (s *Synchronizer) AnswerItem(correct bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	finished, err := s.machine.RecordAnswer(correct)
	if err != nil {
		return err
	}
	result := s.machine.Result()
	s.publishLocked(&protocol.ItemChecked{
		ItemIndex:      s.machine.ItemIndex(),
		Correct:        correct,
		CorrectCount:   result.CorrectCount,
		IncorrectCount: s.answeredIncorrectLocked(),
	})
	if !finished {
		return nil
	}
	s.publishLocked(&protocol.GameComplete{
		GameID:         result.GameID,
		CorrectCount:   result.CorrectCount,
		IncorrectCount: result.TotalItems - result.CorrectCount,
		ScorePercent:   result.ScorePercent,
		Band:           result.Band,
	})
	s.resetTimer = s.clock.AfterFunc(gameCompletionDelay, s.finishGame)
	return nil
}

func (s *Synchronizer) answeredIncorrectLocked() int {
	return s.machine.answered - s.machine.correct
}

// finishGame runs after the celebratory delay: clear the game and
// resume the presentation view if one was hidden behind it.
func (s *Synchronizer) finishGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.resetTimer = nil
	s.machine.EndGame()
	if s.machine.Mode() == ModePresenting && s.pipeline != nil {
		if slide, ok := s.machine.CurrentSlide(); ok {
			s.pipeline.CaptureMount(slide)
		}
	}
}

// ProcessSpeech strips silent navigation markers from an utterance,
// applies the embedded commands in order, and returns the cleaned text
// for speech synthesis. Markers for the wrong mode (a slide marker
// during a game with no deck loaded, say) are logged and skipped, so
// one bad marker never loses the rest of the utterance.
func (s *Synchronizer) ProcessSpeech(ctx context.Context, text string) (string, error) {
	cleaned, commands := protocol.ExtractCommands(text)
	if len(commands) == 0 {
		return cleaned, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return cleaned, ErrSessionEnded
	}
	for _, cmd := range commands {
		switch cmd.Target {
		case protocol.TargetSlide:
			newIndex, changed, err := s.machine.Navigate(cmd.Action, cmd.Index)
			if err != nil {
				s.logger.Warn("speech slide marker ignored", "action", cmd.Action, "error", err)
				continue
			}
			if changed {
				s.commitIndexLocked(ctx, newIndex, s.participant)
			}
		case protocol.TargetGame:
			if cmd.Action == protocol.ActionHint {
				s.logger.Info("hint requested", "item", s.machine.ItemIndex())
				continue
			}
			_, changed, err := s.machine.NavigateGame(cmd.Action, cmd.Index)
			if err != nil {
				s.logger.Warn("speech game marker ignored", "action", cmd.Action, "error", err)
				continue
			}
			if changed {
				s.publishGameStateLocked()
			}
		}
	}
	return cleaned, nil
}

// SetController reassigns navigation control and persists it.
func (s *Synchronizer) SetController(ctx context.Context, c store.Controller) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if err := s.machine.SetController(c); err != nil {
		return err
	}
	if s.record != nil && s.machine.TotalSlides() > 0 {
		err := s.store.StartPresentationMode(ctx, s.record.ID, s.machine.PresentationID(), c)
		if err != nil {
			s.logger.Warn("persisting controller failed", "error", err)
		}
		if idx := s.machine.SlideIndex(); idx != 0 {
			if err := s.store.UpdateSlideIndex(ctx, s.record.ID, idx, s.participant); err != nil {
				s.logger.Warn("persisting slide index failed", "error", err)
			}
		}
	}
	return nil
}

// End ends the session deliberately (lesson complete, page unload).
// Idempotent; the cleanup beacon fires with the given reason.
func (s *Synchronizer) End(ctx context.Context, reason string) {
	if err := s.store.EndSession(ctx, s.roomID, reason); err != nil {
		s.logger.Warn("persisting session end failed", "reason", reason, "error", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(reason)
}

// handleDisconnect runs when the data channel drops: the peer left or
// the transport failed. The session ends; a fresh one needs a fresh
// room.
func (s *Synchronizer) handleDisconnect(reason string) {
	s.logger.Info("peer disconnected", "reason", reason)
	err := s.store.EndSession(context.Background(), s.roomID, store.EndReasonParticipantLeft)
	if err != nil {
		s.logger.Warn("persisting session end failed", "error", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(store.EndReasonParticipantLeft)
}

// handleMessage is the single inbound dispatcher.
func (s *Synchronizer) handleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("dropping undecodable message", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}

	switch m := msg.(type) {
	case *protocol.SlideCommand:
		s.handleSlideCommand(m)
	case *protocol.StartPresentation:
		if err := s.activatePresentationLocked(context.Background()); err != nil {
			s.logger.Warn("start presentation ignored", "error", err)
		}
	case *protocol.EndPresentation:
		s.machine.EndPresentation()
		if err := s.store.EndPresentationMode(context.Background(), s.record.ID); err != nil {
			s.logger.Warn("persisting presentation end failed", "error", err)
		}
	case *protocol.LoadPresentation:
		s.handleLoadPresentation(m)
	case *protocol.LoadSlides:
		if err := s.applySlidesLocked(context.Background(), m); err != nil {
			s.logger.Warn("load slides failed", "content", m.ContentID, "error", err)
		}
	case *protocol.LoadGame:
		if !s.applyGameLocked(m) {
			s.logger.Warn("ignoring unknown game with no inline data", "game", m.GameID)
		}
	case *protocol.GameCommand:
		s.handleGameCommand(m)
	case *protocol.SlideChanged:
		s.handleRemoteIndex(m.SlideIndex)
	case *protocol.Unhandled:
		s.logger.Warn("ignoring unknown message type", "type", m.Type)
	default:
		// Peer status traffic (screenshots, game progress, context)
		// needs no state change on this side.
		s.logger.Debug("ignoring peer status message", "type", protocol.MessageType(msg))
	}
}

// handleSlideCommand applies a remote navigation command, persists the
// result, and confirms it back to the sender.
func (s *Synchronizer) handleSlideCommand(m *protocol.SlideCommand) {
	index := 0
	if m.SlideIndex != nil {
		index = *m.SlideIndex
	}
	newIndex, changed, err := s.machine.Navigate(m.Action, index)
	if err != nil {
		s.logger.Warn("slide command rejected", "action", m.Action, "error", err)
		return
	}
	if !changed {
		return
	}
	triggeredBy := s.peer
	if triggeredBy == "" {
		triggeredBy = "remote"
	}
	s.commitIndexLocked(context.Background(), newIndex, triggeredBy)
}

// commitIndexLocked runs the index-change sequence shared by local and
// remote navigation: the machine has already moved, so stamp the
// change, persist it (failure is non-fatal), confirm it to the peer,
// and request a capture. Confirmation is skipped when the index was
// already announced.
func (s *Synchronizer) commitIndexLocked(ctx context.Context, newIndex int, triggeredBy string) {
	s.reconciler.StampLocalChange()
	if err := s.store.UpdateSlideIndex(ctx, s.record.ID, newIndex, triggeredBy); err != nil {
		// Durable state is behind but the room must stay live: the
		// publish below still happens.
		s.logger.Warn("persisting slide index failed", "index", newIndex, "error", err)
	}
	if s.reconciler.ShouldPublish(newIndex) {
		s.publishLocked(&protocol.SlideChanged{
			SlideIndex:  newIndex,
			TotalSlides: s.machine.TotalSlides(),
		})
		s.reconciler.NotePublished(newIndex)
	}
	// While a game overlays the deck the slide is not on screen, so a
	// capture now would relay stale content.
	if s.pipeline != nil && s.machine.Mode() == ModePresenting {
		if slide, ok := s.machine.CurrentSlide(); ok {
			s.pipeline.CaptureChange(slide)
		}
	}
}

// handleRemoteIndex reconciles an index announced by the peer against
// the local one. A recent local change wins for the grace window;
// otherwise the remote value is adopted without re-announcing it.
func (s *Synchronizer) handleRemoteIndex(remoteIndex int) {
	if !s.reconciler.ShouldApplyRemote(remoteIndex, s.machine.SlideIndex()) {
		return
	}
	newIndex, changed := s.machine.SetSlideIndex(remoteIndex)
	if !changed {
		return
	}
	s.reconciler.NotePublished(newIndex)
	if err := s.store.UpdateSlideIndex(context.Background(), s.record.ID, newIndex, s.peer); err != nil {
		s.logger.Warn("persisting slide index failed", "index", newIndex, "error", err)
	}
	if s.pipeline != nil && s.machine.Mode() == ModePresenting {
		if slide, ok := s.machine.CurrentSlide(); ok {
			s.pipeline.CaptureChange(slide)
		}
	}
}

// handleLoadPresentation resolves a stored presentation id through the
// content provider and loads the result.
func (s *Synchronizer) handleLoadPresentation(m *protocol.LoadPresentation) {
	if s.content == nil {
		s.logger.Warn("no content provider; ignoring load request", "presentation", m.PresentationID)
		return
	}
	deck, err := s.content.Presentation(context.Background(), m.PresentationID)
	if err != nil {
		s.logger.Warn("loading presentation failed", "presentation", m.PresentationID, "error", err)
		return
	}
	if err := s.applySlidesLocked(context.Background(), deck); err != nil {
		s.logger.Warn("load slides failed", "presentation", m.PresentationID, "error", err)
	}
}

// handleGameCommand applies a remote game navigation verb. Hints carry
// no state change here; the presentation layer surfaces them.
func (s *Synchronizer) handleGameCommand(m *protocol.GameCommand) {
	if m.Command == protocol.ActionHint {
		s.logger.Info("hint requested", "item", s.machine.ItemIndex())
		return
	}
	index := 0
	if m.ItemIndex != nil {
		index = *m.ItemIndex
	}
	_, changed, err := s.machine.NavigateGame(m.Command, index)
	if err != nil {
		s.logger.Warn("game command rejected", "command", m.Command, "error", err)
		return
	}
	if changed {
		s.publishGameStateLocked()
	}
}

// applySlidesLocked installs a deck, persists presentation mode, and
// announces readiness plus the lesson overview to the peer.
func (s *Synchronizer) applySlidesLocked(ctx context.Context, msg *protocol.LoadSlides) error {
	if err := s.machine.LoadSlides(msg.ContentID, msg.Slides); err != nil {
		return err
	}
	err := s.store.StartPresentationMode(ctx, s.record.ID, msg.ContentID, s.machine.Controller())
	if err != nil {
		s.logger.Warn("persisting presentation start failed", "error", err)
	}
	s.reconciler.NotePublished(0)

	s.publishLocked(&protocol.PresentationReady{
		PresentationID: msg.ContentID,
		TotalSlides:    len(msg.Slides),
		SlideContent:   msg.Slides,
	})
	s.publishLocked(slidesContext(msg.Slides, s.machine.SlideIndex()))

	if s.pipeline != nil && s.machine.Mode() == ModePresenting {
		if slide, ok := s.machine.CurrentSlide(); ok {
			s.pipeline.CaptureMount(slide)
		}
	}
	return nil
}

// activatePresentationLocked re-enters presenting mode on the loaded
// deck, preserving the resume index, and persists the transition.
func (s *Synchronizer) activatePresentationLocked(ctx context.Context) error {
	if err := s.machine.StartPresentation(); err != nil {
		return err
	}
	err := s.store.StartPresentationMode(ctx, s.record.ID, s.machine.PresentationID(), s.machine.Controller())
	if err != nil {
		s.logger.Warn("persisting presentation start failed", "error", err)
	}
	// StartPresentationMode resets the stored index; rewrite the
	// resume position when it is not zero.
	if idx := s.machine.SlideIndex(); idx != 0 {
		if err := s.store.UpdateSlideIndex(ctx, s.record.ID, idx, s.participant); err != nil {
			s.logger.Warn("persisting slide index failed", "index", idx, "error", err)
		}
	}
	if s.pipeline != nil {
		if slide, ok := s.machine.CurrentSlide(); ok {
			s.pipeline.CaptureMount(slide)
		}
	}
	return nil
}

// applyGameLocked activates a game, sizing it from inline data or the
// catalog. Returns false for an unknown game with no data, which the
// callers treat as a logged no-op.
func (s *Synchronizer) applyGameLocked(msg *protocol.LoadGame) bool {
	count := inlineItemCount(msg.GameData)
	if count == 0 && s.catalog != nil {
		if n, ok := s.catalog.ItemCount(msg.GameID); ok {
			count = n
		}
	}
	if count == 0 {
		return false
	}
	if err := s.machine.StartGame(msg.GameID, count); err != nil {
		s.logger.Warn("start game failed", "game", msg.GameID, "error", err)
		return false
	}
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	s.publishLocked(&protocol.GameLoaded{GameID: msg.GameID, TotalItems: count})
	s.publishGameStateLocked()
	return true
}

func (s *Synchronizer) publishGameStateLocked() {
	s.publishLocked(&protocol.GameState{
		ItemIndex:      s.machine.ItemIndex(),
		TotalItems:     s.machine.TotalItems(),
		CorrectCount:   s.machine.correct,
		IncorrectCount: s.answeredIncorrectLocked(),
	})
}

// publishLocked encodes and sends one message. Transport failures are
// non-fatal: the session continues on local state and the next
// persisted-state snapshot reconverges the peers.
func (s *Synchronizer) publishLocked(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("encoding message failed", "type", protocol.MessageType(msg), "error", err)
		return
	}
	if err := s.channel.Send(data); err != nil {
		s.logger.Warn("publish failed", "type", protocol.MessageType(msg), "error", err)
	}
}

// consumeWatcher feeds persisted-record snapshots into reconciliation
// until teardown.
func (s *Synchronizer) consumeWatcher(w *store.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case record, ok := <-w.Updates():
			if !ok {
				return
			}
			s.applySnapshot(record)
		}
	}
}

// applySnapshot reconciles one persisted-record snapshot: a session
// end tears down, a controller change is adopted immediately, and the
// stored slide index goes through the grace-window rule.
func (s *Synchronizer) applySnapshot(record *store.TeachingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if record.Ended() {
		s.teardownLocked(record.EndReason)
		return
	}
	s.record = record
	if c := record.Presentation.ControlledBy; c.Valid() {
		s.machine.controller = c
	}
	if !record.Presentation.Active {
		s.machine.EndPresentation()
		return
	}
	if record.Presentation.UpdatedBy == s.participant {
		// Own write reflected back; nothing to reconcile.
		return
	}
	remote := record.Presentation.CurrentSlideIndex
	if !s.reconciler.ShouldApplyRemote(remote, s.machine.SlideIndex()) {
		return
	}
	newIndex, changed := s.machine.SetSlideIndex(remote)
	if !changed {
		return
	}
	s.reconciler.NotePublished(newIndex)
	if s.pipeline != nil {
		if slide, ok := s.machine.CurrentSlide(); ok {
			s.pipeline.CaptureChange(slide)
		}
	}
}

// handleTick relays a fresh timer reading to the registered callback.
func (s *Synchronizer) handleTick(status TimerStatus) {
	s.mu.Lock()
	fn := s.onTimer
	ended := s.ended
	s.mu.Unlock()
	if fn != nil && !ended {
		fn(status)
	}
}

// teardownLocked releases everything exactly once: timer, watcher,
// captures, media flags, reconciliation sentinels, and the channel.
// The cleanup beacon and the OnEnded callback fire with the reason.
func (s *Synchronizer) teardownLocked(reason string) {
	if s.ended {
		return
	}
	s.ended = true

	if s.lifecycle != nil {
		s.lifecycle.Stop()
	}
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	if s.watchDone != nil {
		close(s.watchDone)
		s.watchDone = nil
	}
	if s.watcher != nil {
		watcher := s.watcher
		s.watcher = nil
		// Detaching takes the store lock; do it off the dispatch path
		// since teardown may run on the watcher goroutine itself.
		go watcher.Close()
	}
	if s.pipeline != nil {
		s.pipeline.Close()
	}
	s.media = MediaState{}
	s.reconciler.Reset()
	if err := s.channel.Close(); err != nil {
		s.logger.Warn("closing channel failed", "error", err)
	}
	s.beacon.Fire(s.roomID, reason)

	s.logger.Info("session torn down", "room", s.roomID, "reason", reason)
	if fn := s.onEnded; fn != nil {
		go fn(reason)
	}
}

// slidesContext condenses a deck into the peer-facing lesson overview.
func slidesContext(slides []protocol.SlideInfo, current int) *protocol.SlidesContext {
	entries := make([]protocol.SlideContextEntry, len(slides))
	for i, slide := range slides {
		entries[i] = protocol.SlideContextEntry{
			Index:         slide.Index,
			Type:          slide.Type,
			Title:         slide.Title,
			TeachingHints: slide.Notes,
		}
	}
	return &protocol.SlidesContext{
		TotalSlides:  len(slides),
		CurrentIndex: current,
		Slides:       entries,
	}
}

// inlineItemCount sizes a game from its inline data payload. Both
// "items" and "questions" are accepted as the item array key.
func inlineItemCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var data struct {
		Items     []json.RawMessage `json:"items"`
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0
	}
	if len(data.Items) > 0 {
		return len(data.Items)
	}
	return len(data.Questions)
}
