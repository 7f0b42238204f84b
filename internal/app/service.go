package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

// SessionRegistry is the process-wide table of sessions. Register enforces
// at most one live session per game and returns the session that won, so
// START stays idempotent under concurrent retries. Ended sessions remain
// retrievable for their results.
type SessionRegistry interface {
	Register(s *Session) (*Session, bool)
	Get(sessionID string) (*Session, bool)
	ByPlayer(playerID string) (*Session, bool)
	BindPlayer(playerID, sessionID string)
	ActiveForGame(gameID string) (*Session, bool)
}

// GameCatalog is the read/write boundary to the game catalog collaborator.
type GameCatalog interface {
	GetGame(ctx context.Context, gameID string) (domain.Game, error)
	// SetActiveSession marks a game as live; an empty sessionID clears it.
	SetActiveSession(ctx context.Context, gameID, sessionID string) error
}

// SessionService contains the session engine use cases.
type SessionService struct {
	registry SessionRegistry
	catalog  GameCatalog
	log      *logrus.Logger

	now      func() time.Time
	newID    func() string
	schedule Scheduler
}

func NewSessionService(registry SessionRegistry, catalog GameCatalog, log *logrus.Logger) *SessionService {
	if log == nil {
		log = logrus.New()
	}
	return &SessionService{
		registry: registry,
		catalog:  catalog,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
		schedule: afterFunc,
	}
}

// NewSessionServiceWithClock is test-only: it injects the clock, the ID
// generator, and the scheduler for deterministic runs.
func NewSessionServiceWithClock(registry SessionRegistry, catalog GameCatalog, log *logrus.Logger, now func() time.Time, newID func() string, schedule Scheduler) *SessionService {
	svc := NewSessionService(registry, catalog, log)
	svc.now = now
	svc.newID = newID
	svc.schedule = schedule
	return svc
}

// Start launches a session for a game and begins its first question. If the
// game already has a live session, that session is returned instead of
// creating a duplicate; the boolean reports whether a new one was created.
func (s *SessionService) Start(ctx context.Context, hostID, gameID string) (*Session, bool, error) {
	game, err := s.catalog.GetGame(ctx, gameID)
	if err != nil {
		return nil, false, err
	}
	if game.Owner != "" && hostID != "" && game.Owner != hostID {
		return nil, false, domain.ErrNotOwner
	}
	if len(game.Questions) == 0 {
		return nil, false, domain.ErrEmptyGame
	}
	for i, q := range game.Questions {
		if err := q.Validate(); err != nil {
			return nil, false, fmt.Errorf("question %d: %w", i, err)
		}
	}

	// The question snapshot is frozen here; later catalog edits never
	// reach a running session.
	session := NewSessionWithClock(s.newID(), gameID, hostID, game.Questions, s.now, s.schedule)
	winner, created := s.registry.Register(session)
	if !created {
		return winner, false, nil
	}

	if err := s.catalog.SetActiveSession(ctx, gameID, winner.ID()); err != nil {
		s.log.WithError(err).WithField("gameId", gameID).Warn("could not mark game active")
	}
	if err := winner.Start(); err != nil {
		return nil, false, err
	}
	s.log.WithFields(logrus.Fields{
		"sessionId": winner.ID(),
		"gameId":    gameID,
		"questions": len(game.Questions),
	}).Info("session started")
	return winner, true, nil
}

// Advance applies the host ADVANCE mutation to a session.
func (s *SessionService) Advance(ctx context.Context, hostID, sessionID string) (domain.Status, error) {
	session, err := s.hostSession(hostID, sessionID)
	if err != nil {
		return domain.Status{}, err
	}
	if err := session.Advance(); err != nil {
		return domain.Status{}, err
	}
	st := session.Status()
	if st.Phase == domain.PhaseEnded {
		s.finish(ctx, session)
	}
	return st, nil
}

// End terminates a session early.
func (s *SessionService) End(ctx context.Context, hostID, sessionID string) (domain.Status, error) {
	session, err := s.hostSession(hostID, sessionID)
	if err != nil {
		return domain.Status{}, err
	}
	if err := session.End(); err != nil {
		return domain.Status{}, err
	}
	s.finish(ctx, session)
	return session.Status(), nil
}

// ActiveSession resolves the live session for a game, for host dashboards
// that address sessions through the game they run.
func (s *SessionService) ActiveSession(gameID string) (*Session, error) {
	session, ok := s.registry.ActiveForGame(gameID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Join registers a new player in a session and returns the issued player ID.
func (s *SessionService) Join(sessionID, name string) (string, domain.Status, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return "", domain.Status{}, domain.ErrSessionNotFound
	}
	playerID := s.newID()
	if err := session.Join(playerID, name); err != nil {
		return "", domain.Status{}, err
	}
	s.registry.BindPlayer(playerID, session.ID())
	s.log.WithFields(logrus.Fields{
		"sessionId": session.ID(),
		"playerId":  playerID,
	}).Info("player joined")
	return playerID, session.Status(), nil
}

// Status returns the session snapshot by session ID.
func (s *SessionService) Status(sessionID string) (domain.Status, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return domain.Status{}, domain.ErrSessionNotFound
	}
	return session.Status(), nil
}

// StatusByPlayer returns the session snapshot for a joined player.
func (s *SessionService) StatusByPlayer(playerID string) (domain.Status, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.Status{}, err
	}
	return session.Status(), nil
}

// Question returns the current question for a joined player, with the
// correctness flags stripped.
func (s *SessionService) Question(playerID string) (domain.QuestionView, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	return session.CurrentQuestion()
}

// SubmitAnswer records a player's answer for the current question.
func (s *SessionService) SubmitAnswer(playerID string, selections []int) error {
	session, err := s.playerSession(playerID)
	if err != nil {
		return err
	}
	return session.SubmitAnswer(playerID, selections)
}

// CorrectAnswer returns the correct option texts once the window has closed.
func (s *SessionService) CorrectAnswer(playerID string) ([]string, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return nil, err
	}
	return session.CorrectAnswer()
}

// Results returns the aggregated results of an ended session.
func (s *SessionService) Results(sessionID string) (domain.SessionResults, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return domain.SessionResults{}, domain.ErrSessionNotFound
	}
	return session.Results()
}

// ResultsByPlayer returns the aggregated results for a joined player.
func (s *SessionService) ResultsByPlayer(playerID string) (domain.SessionResults, error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return domain.SessionResults{}, err
	}
	return session.Results()
}

// Subscribe streams status snapshots to a joined player. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(playerID string) (<-chan domain.Status, func(), error) {
	session, err := s.playerSession(playerID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

func (s *SessionService) hostSession(hostID, sessionID string) (*Session, error) {
	session, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if hostID != "" && session.HostID() != "" && session.HostID() != hostID {
		return nil, domain.ErrNotOwner
	}
	return session, nil
}

func (s *SessionService) playerSession(playerID string) (*Session, error) {
	session, ok := s.registry.ByPlayer(playerID)
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return session, nil
}

// finish unmarks the game as live once its session has ended.
func (s *SessionService) finish(ctx context.Context, session *Session) {
	if err := s.catalog.SetActiveSession(ctx, session.GameID(), ""); err != nil {
		s.log.WithError(err).WithField("gameId", session.GameID()).Warn("could not clear active session")
	}
	s.log.WithField("sessionId", session.ID()).Info("session ended")
}
