package domain

import (
	"fmt"
	"time"
)

// QuestionType selects how many options a submission may carry.
type QuestionType string

const (
	QuestionSingle    QuestionType = "single"
	QuestionMultiple  QuestionType = "multiple"
	QuestionJudgement QuestionType = "judgement"
)

// Time limits are clamped to this range; DefaultPoints applies when a
// question carries no explicit point value.
const (
	MinTimeLimitSec = 5
	MaxTimeLimitSec = 120
	DefaultPoints   = 100
)

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models one timed question of a game.
type Question struct {
	Type         QuestionType `json:"type"`
	Prompt       string       `json:"prompt"`
	Options      []Option     `json:"options"`
	TimeLimitSec int          `json:"timeLimitSec"`
	Points       int          `json:"points"`
	MediaURL     string       `json:"media,omitempty"`
	MediaType    string       `json:"mediaType,omitempty"` // "image" or "youtube"
}

// Validate checks the structural invariants of a question definition.
func (q Question) Validate() error {
	switch q.Type {
	case QuestionSingle, QuestionMultiple, QuestionJudgement:
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, q.Type)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: question needs at least 2 options, got %d", ErrInvalidQuestion, len(q.Options))
	}
	correct := 0
	for _, opt := range q.Options {
		if opt.Correct {
			correct++
		}
	}
	if correct == 0 {
		return fmt.Errorf("%w: question has no correct option", ErrInvalidQuestion)
	}
	if q.Type != QuestionMultiple && correct != 1 {
		return fmt.Errorf("%w: %s question must have exactly one correct option, got %d", ErrInvalidQuestion, q.Type, correct)
	}
	return nil
}

// Duration returns the answer window length, clamped to the allowed range.
func (q Question) Duration() time.Duration {
	limit := q.TimeLimitSec
	if limit < MinTimeLimitSec {
		limit = MinTimeLimitSec
	}
	if limit > MaxTimeLimitSec {
		limit = MaxTimeLimitSec
	}
	return time.Duration(limit) * time.Second
}

// PointValue returns the configured points, defaulting when unset.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return DefaultPoints
	}
	return q.Points
}

// CorrectIndexes lists the positions of the correct options, in option order.
func (q Question) CorrectIndexes() []int {
	var out []int
	for i, opt := range q.Options {
		if opt.Correct {
			out = append(out, i)
		}
	}
	return out
}

// CorrectTexts lists the texts of the correct options, in option order.
func (q Question) CorrectTexts() []string {
	var out []string
	for _, opt := range q.Options {
		if opt.Correct {
			out = append(out, opt.Text)
		}
	}
	return out
}

// Game is a catalog entry: an owned, ordered list of questions.
type Game struct {
	ID              string     `json:"id"`
	Owner           string     `json:"owner"`
	Questions       []Question `json:"questions"`
	ActiveSessionID string     `json:"activeSessionId,omitempty"`
}

// Phase is the stage a live session is currently in.
type Phase string

const (
	PhaseLobby          Phase = "LOBBY"
	PhaseQuestionActive Phase = "QUESTION_ACTIVE"
	PhaseRevealing      Phase = "REVEALING"
	PhaseEnded          Phase = "ENDED"
)

// Answer is one player's current submission for a question slot.
// Selections are option indexes; correctness is derived at scoring time.
type Answer struct {
	QuestionIndex     int       `json:"questionIndex"`
	Selections        []int     `json:"selections"`
	QuestionStartedAt time.Time `json:"questionStartedAt"`
	AnsweredAt        time.Time `json:"answeredAt"`
}

// Status is the pollable snapshot of a session. A client reconstructs its
// entire view from this plus the question/answer reads; there is no
// per-client subscription state to reconcile.
type Status struct {
	SessionID        string `json:"sessionId"`
	Phase            Phase  `json:"phase"`
	Position         int    `json:"position"`
	SecondsRemaining int    `json:"secondsRemaining"`
	TotalQuestions   int    `json:"totalQuestions"`
	Players          int    `json:"players"`
	Started          bool   `json:"started"`
	Active           bool   `json:"active"`
}

// OptionView is an option as shown to players: no correctness flag.
type OptionView struct {
	Text string `json:"text"`
}

// QuestionView is the player-facing form of the current question.
type QuestionView struct {
	Position    int          `json:"position"`
	Type        QuestionType `json:"type"`
	Prompt      string       `json:"prompt"`
	Options     []OptionView `json:"options"`
	DurationSec int          `json:"duration"`
	StartedAt   time.Time    `json:"startedAt"`
	MediaURL    string       `json:"media,omitempty"`
	MediaType   string       `json:"mediaType,omitempty"`
}

// AnswerRecord is a player's outcome for one question slot in the results.
type AnswerRecord struct {
	Answered          bool      `json:"answered"`
	Selections        []int     `json:"selections,omitempty"`
	Correct           bool      `json:"correct"`
	QuestionStartedAt time.Time `json:"questionStartedAt,omitempty"`
	AnsweredAt        time.Time `json:"answeredAt,omitempty"`
}

// PlayerResult is one leaderboard row with the per-question breakdown.
type PlayerResult struct {
	PlayerID string         `json:"playerId"`
	Name     string         `json:"name"`
	Score    int            `json:"score"`
	Answers  []AnswerRecord `json:"answers"`
}

// QuestionStats aggregates one question across all players.
// Accuracy and average response time are computed over responders only.
type QuestionStats struct {
	Position       int     `json:"position"`
	Responders     int     `json:"responders"`
	CorrectCount   int     `json:"correctCount"`
	AccuracyRate   float64 `json:"accuracyRate"`
	AvgResponseSec float64 `json:"avgResponseSec"`
}

// SessionResults is the final aggregation, available once a session ends.
type SessionResults struct {
	SessionID string          `json:"sessionId"`
	GameID    string          `json:"gameId"`
	Players   []PlayerResult  `json:"players"`
	Questions []QuestionStats `json:"questions"`
	EndedAt   time.Time       `json:"endedAt"`
}
