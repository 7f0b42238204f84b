package domain

import "errors"

var (
	// ErrGameNotFound indicates the game definition could not be loaded.
	ErrGameNotFound = errors.New("game not found")
	// ErrSessionNotFound is returned for an unknown session identifier.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPlayerNotFound is returned for an unknown player identifier.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrEmptyGame rejects starting a session for a game without questions.
	ErrEmptyGame = errors.New("game has no questions")
	// ErrInvalidTransition rejects a mutation that is illegal for the
	// session's current phase; the caller may re-query status and retry.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionClosed rejects any mutation on an ended session.
	ErrSessionClosed = errors.New("session has ended")
	// ErrWindowClosed rejects an answer that arrived outside the active
	// answer window; only that submission is dropped.
	ErrWindowClosed = errors.New("answer window is closed")
	// ErrInvalidQuestion indicates a malformed question definition.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidAnswer indicates a submission whose shape does not match
	// the question type or option bounds.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrQuestionNotStarted is returned when the current question is
	// requested before the session has left the lobby.
	ErrQuestionNotStarted = errors.New("no question started yet")
	// ErrAnswerNotReady guards the correct answer while its window is open.
	ErrAnswerNotReady = errors.New("correct answer not available yet")
	// ErrResultsNotReady guards aggregated results until the session ends.
	ErrResultsNotReady = errors.New("results not available until session ends")
	// ErrNotOwner rejects host mutations from someone other than the
	// game's owner.
	ErrNotOwner = errors.New("caller does not own this game")
)
