package app

import (
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Timer is the cancellable handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler plants a callback after a delay. time.AfterFunc satisfies it;
// tests substitute a manual implementation for deterministic countdowns.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Session is the authoritative state machine for one live run of a game.
// It owns a frozen snapshot of the game's questions, the joined players and
// their answers, and a free-running countdown that closes each answer window
// without any client involvement. Mutations are serialized per session by the
// mutex; reads are snapshot reads and may be served concurrently.
type Session struct {
	id        string
	gameID    string
	hostID    string
	questions []domain.Question
	createdAt time.Time

	now      func() time.Time
	schedule Scheduler

	mu                sync.RWMutex
	phase             domain.Phase
	position          int
	questionStartedAt time.Time
	endedAt           time.Time
	timer             Timer
	epoch             uint64

	players  []*player
	byPlayer map[string]*player

	subscribers map[chan domain.Status]struct{}
}

// player holds a joined participant and one answer slot per question index.
type player struct {
	id       string
	name     string
	joinedAt time.Time
	answers  []*domain.Answer
}

// NewSession builds a session in the lobby phase with position -1.
func NewSession(id, gameID, hostID string, questions []domain.Question) *Session {
	return NewSessionWithClock(id, gameID, hostID, questions, time.Now, afterFunc)
}

// NewSessionWithClock injects the clock and scheduler for deterministic tests.
func NewSessionWithClock(id, gameID, hostID string, questions []domain.Question, now func() time.Time, schedule Scheduler) *Session {
	return &Session{
		id:          id,
		gameID:      gameID,
		hostID:      hostID,
		questions:   questions,
		createdAt:   now(),
		now:         now,
		schedule:    schedule,
		phase:       domain.PhaseLobby,
		position:    -1,
		byPlayer:    make(map[string]*player),
		subscribers: make(map[chan domain.Status]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// GameID returns the identifier of the game this session runs.
func (s *Session) GameID() string { return s.gameID }

// HostID returns the host that started the session.
func (s *Session) HostID() string { return s.hostID }

// IsActive reports whether the session has not ended yet.
func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase != domain.PhaseEnded
}

// Start moves the session out of the lobby into the first question.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case domain.PhaseLobby:
	case domain.PhaseEnded:
		return domain.ErrSessionClosed
	default:
		return domain.ErrInvalidTransition
	}
	if len(s.questions) == 0 {
		return domain.ErrEmptyGame
	}
	s.beginQuestionLocked(0)
	s.broadcastLocked()
	return nil
}

// Advance applies the host-driven transition: it force-closes an open answer
// window, or moves a revealed question to the next one (or to the end).
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case domain.PhaseQuestionActive:
		s.cancelTimerLocked()
		s.phase = domain.PhaseRevealing
	case domain.PhaseRevealing:
		if s.position+1 < len(s.questions) {
			s.beginQuestionLocked(s.position + 1)
		} else {
			s.endLocked()
		}
	case domain.PhaseEnded:
		return domain.ErrSessionClosed
	default:
		return domain.ErrInvalidTransition
	}
	s.broadcastLocked()
	return nil
}

// End terminates the session from any live phase and cancels the countdown.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == domain.PhaseEnded {
		return domain.ErrSessionClosed
	}
	s.endLocked()
	s.broadcastLocked()
	return nil
}

// Join registers a player. Late joins are accepted in any phase before the
// session ends; joining again with the same ID is a no-op.
func (s *Session) Join(playerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == domain.PhaseEnded {
		return domain.ErrSessionClosed
	}
	if _, ok := s.byPlayer[playerID]; ok {
		return nil
	}
	p := &player{
		id:       playerID,
		name:     name,
		joinedAt: s.now(),
		answers:  make([]*domain.Answer, len(s.questions)),
	}
	s.players = append(s.players, p)
	s.byPlayer[playerID] = p
	s.broadcastLocked()
	return nil
}

// Status returns the pollable snapshot of the session.
func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

// CurrentQuestion returns the player-facing view of the question at the
// current position. It is well-defined for every phase after the lobby, so
// clients never have to retry a transiently-empty read.
func (s *Session) CurrentQuestion() (domain.QuestionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.position < 0 {
		return domain.QuestionView{}, domain.ErrQuestionNotStarted
	}
	q := s.questions[s.position]
	opts := make([]domain.OptionView, len(q.Options))
	for i, opt := range q.Options {
		opts[i] = domain.OptionView{Text: opt.Text}
	}
	return domain.QuestionView{
		Position:    s.position,
		Type:        q.Type,
		Prompt:      q.Prompt,
		Options:     opts,
		DurationSec: int(q.Duration() / time.Second),
		StartedAt:   s.questionStartedAt,
		MediaURL:    q.MediaURL,
		MediaType:   q.MediaType,
	}, nil
}

// CorrectAnswer returns the correct option texts for the current question,
// only once its answer window has closed.
func (s *Session) CorrectAnswer() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.position < 0 {
		return nil, domain.ErrQuestionNotStarted
	}
	if s.phase == domain.PhaseQuestionActive {
		return nil, domain.ErrAnswerNotReady
	}
	return s.questions[s.position].CorrectTexts(), nil
}

// Subscribe returns a channel receiving a status snapshot on every phase
// transition, primed with the current one. The caller must invoke cancel.
func (s *Session) Subscribe() (<-chan domain.Status, func()) {
	ch := make(chan domain.Status, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.statusLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// beginQuestionLocked opens the answer window for the given index and plants
// the countdown that will close it.
func (s *Session) beginQuestionLocked(index int) {
	s.cancelTimerLocked()
	s.position = index
	s.phase = domain.PhaseQuestionActive
	s.questionStartedAt = s.now()
	epoch := s.epoch
	s.timer = s.schedule(s.questions[index].Duration(), func() {
		s.closeWindow(epoch)
	})
}

// closeWindow is the countdown callback. The session advances itself to the
// reveal phase when the timer expires, so phase never depends on a client
// request arriving. A stale callback that lost the race against a host
// mutation observes a bumped epoch and does nothing.
func (s *Session) closeWindow(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch || s.phase != domain.PhaseQuestionActive {
		return
	}
	s.timer = nil
	s.phase = domain.PhaseRevealing
	s.broadcastLocked()
}

func (s *Session) endLocked() {
	s.cancelTimerLocked()
	s.phase = domain.PhaseEnded
	s.endedAt = s.now()
}

func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.epoch++
}

func (s *Session) statusLocked() domain.Status {
	remaining := 0
	if s.phase == domain.PhaseQuestionActive {
		deadline := s.questionStartedAt.Add(s.questions[s.position].Duration())
		if d := deadline.Sub(s.now()); d > 0 {
			remaining = int((d + time.Second - 1) / time.Second)
		}
	}
	return domain.Status{
		SessionID:        s.id,
		Phase:            s.phase,
		Position:         s.position,
		SecondsRemaining: remaining,
		TotalQuestions:   len(s.questions),
		Players:          len(s.players),
		Started:          s.phase != domain.PhaseLobby,
		Active:           s.phase != domain.PhaseEnded,
	}
}

func (s *Session) broadcastLocked() {
	st := s.statusLocked()
	for ch := range s.subscribers {
		select {
		case ch <- st:
		default:
			// Drop the stale snapshot so a slow reader never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}
