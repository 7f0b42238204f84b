package app

import (
	"errors"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

// testClock is a manually advanced clock for deterministic countdowns.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// manualScheduler records planted countdowns so tests can fire them.
type manualScheduler struct {
	timers []*manualTimer
}

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.stopped = true
	return true
}

func (m *manualScheduler) schedule(d time.Duration, f func()) Timer {
	t := &manualTimer{delay: d, fn: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualScheduler) fire(i int) {
	m.timers[i].fn()
}

func twoQuestionSet() []domain.Question {
	return []domain.Question{
		{
			Type:   domain.QuestionSingle,
			Prompt: "First?",
			Options: []domain.Option{
				{Text: "A", Correct: true},
				{Text: "B"},
				{Text: "C"},
			},
			TimeLimitSec: 10,
		},
		{
			Type:   domain.QuestionJudgement,
			Prompt: "Second?",
			Options: []domain.Option{
				{Text: "True", Correct: true},
				{Text: "False"},
			},
			TimeLimitSec: 15,
		},
	}
}

func newClockedSession(questions []domain.Question) (*Session, *testClock, *manualScheduler) {
	clock := newTestClock()
	sched := &manualScheduler{}
	s := NewSessionWithClock("s1", "g1", "h1", questions, clock.now, sched.schedule)
	return s, clock, sched
}

func TestTimedRunThroughTwoQuestions(t *testing.T) {
	s, clock, sched := newClockedSession(twoQuestionSet())

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := s.Status()
	if st.Phase != domain.PhaseQuestionActive || st.Position != 0 {
		t.Fatalf("expected QUESTION_ACTIVE index 0, got %s index %d", st.Phase, st.Position)
	}
	if st.SecondsRemaining != 10 {
		t.Fatalf("expected 10s remaining, got %d", st.SecondsRemaining)
	}
	if got := sched.timers[0].delay; got != 10*time.Second {
		t.Fatalf("expected 10s countdown, got %v", got)
	}

	// Timer expiry with no host action closes the window by itself.
	clock.advance(10 * time.Second)
	sched.fire(0)
	st = s.Status()
	if st.Phase != domain.PhaseRevealing || st.Position != 0 {
		t.Fatalf("expected REVEALING index 0, got %s index %d", st.Phase, st.Position)
	}
	if st.SecondsRemaining != 0 {
		t.Fatalf("expected 0s remaining while revealing, got %d", st.SecondsRemaining)
	}

	if err := s.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	st = s.Status()
	if st.Phase != domain.PhaseQuestionActive || st.Position != 1 {
		t.Fatalf("expected QUESTION_ACTIVE index 1, got %s index %d", st.Phase, st.Position)
	}
	if got := sched.timers[1].delay; got != 15*time.Second {
		t.Fatalf("expected 15s countdown, got %v", got)
	}

	clock.advance(15 * time.Second)
	sched.fire(1)
	if st := s.Status(); st.Phase != domain.PhaseRevealing || st.Position != 1 {
		t.Fatalf("expected REVEALING index 1, got %s index %d", st.Phase, st.Position)
	}

	if err := s.Advance(); err != nil {
		t.Fatalf("final advance: %v", err)
	}
	st = s.Status()
	if st.Phase != domain.PhaseEnded || st.Active {
		t.Fatalf("expected ENDED, got %+v", st)
	}
}

func TestHostAdvanceWinsRaceAgainstTimer(t *testing.T) {
	s, _, sched := newClockedSession(twoQuestionSet())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Host closes the window before expiry; the planted countdown becomes stale.
	if err := s.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if st := s.Status(); st.Phase != domain.PhaseRevealing {
		t.Fatalf("expected REVEALING, got %s", st.Phase)
	}
	if !sched.timers[0].stopped {
		t.Fatalf("expected countdown cancelled on early advance")
	}

	// A stale callback that still fires must not touch the session.
	if err := s.Advance(); err != nil {
		t.Fatalf("advance to next question: %v", err)
	}
	sched.fire(0)
	if st := s.Status(); st.Phase != domain.PhaseQuestionActive || st.Position != 1 {
		t.Fatalf("stale timer corrupted state: %+v", st)
	}
}

func TestEndCancelsCountdownAndRejectsMutations(t *testing.T) {
	s, _, sched := newClockedSession(twoQuestionSet())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if !sched.timers[0].stopped {
		t.Fatalf("expected countdown cancelled on end")
	}

	sched.fire(0)
	if st := s.Status(); st.Phase != domain.PhaseEnded {
		t.Fatalf("timer resurrected an ended session: %s", st.Phase)
	}

	if err := s.Advance(); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on advance, got %v", err)
	}
	if err := s.End(); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on repeated end, got %v", err)
	}
	if err := s.Join("p1", "Alice"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on join, got %v", err)
	}
}

func TestStartValidation(t *testing.T) {
	s, _, _ := newClockedSession(nil)
	if err := s.Start(); !errors.Is(err, domain.ErrEmptyGame) {
		t.Fatalf("expected ErrEmptyGame, got %v", err)
	}

	s, _, _ = newClockedSession(twoQuestionSet())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double start, got %v", err)
	}
}

func TestAdvanceFromLobbyRejected(t *testing.T) {
	s, _, _ := newClockedSession(twoQuestionSet())
	if err := s.Advance(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPositionMonotonicallyNonDecreasing(t *testing.T) {
	s, clock, sched := newClockedSession(twoQuestionSet())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	last := -1
	observe := func() {
		st := s.Status()
		if st.Position < last {
			t.Fatalf("position decreased from %d to %d", last, st.Position)
		}
		last = st.Position
	}

	observe()
	clock.advance(10 * time.Second)
	sched.fire(0)
	observe()
	_ = s.Advance()
	observe()
	_ = s.Advance()
	observe()
	_ = s.End()
	observe()
}

func TestSecondsRemainingNeverNegative(t *testing.T) {
	s, clock, _ := newClockedSession(twoQuestionSet())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Clock runs past the deadline before the callback lands.
	clock.advance(30 * time.Second)
	if st := s.Status(); st.SecondsRemaining != 0 {
		t.Fatalf("expected floor at 0, got %d", st.SecondsRemaining)
	}
}

func TestSubscribeObservesTransitions(t *testing.T) {
	s, _, _ := newClockedSession(twoQuestionSet())
	ch, cancel := s.Subscribe()
	defer cancel()

	if st := <-ch; st.Phase != domain.PhaseLobby {
		t.Fatalf("expected initial LOBBY snapshot, got %s", st.Phase)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := <-ch; st.Phase != domain.PhaseQuestionActive {
		t.Fatalf("expected QUESTION_ACTIVE push, got %s", st.Phase)
	}
	if err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if st := <-ch; st.Phase != domain.PhaseEnded {
		t.Fatalf("expected ENDED push, got %s", st.Phase)
	}
}

func TestCurrentQuestionHidesCorrectness(t *testing.T) {
	s, _, _ := newClockedSession(twoQuestionSet())
	if _, err := s.CurrentQuestion(); !errors.Is(err, domain.ErrQuestionNotStarted) {
		t.Fatalf("expected ErrQuestionNotStarted in lobby, got %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	q, err := s.CurrentQuestion()
	if err != nil {
		t.Fatalf("current question: %v", err)
	}
	if q.Position != 0 || q.Prompt != "First?" || len(q.Options) != 3 {
		t.Fatalf("unexpected question view: %+v", q)
	}
	if q.DurationSec != 10 {
		t.Fatalf("expected duration 10, got %d", q.DurationSec)
	}

	// Remains well-defined after the window closes.
	if err := s.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := s.CurrentQuestion(); err != nil {
		t.Fatalf("question unavailable while revealing: %v", err)
	}
}
