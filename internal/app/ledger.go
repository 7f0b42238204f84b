package app

import (
	"fmt"

	"live-quiz-service/internal/domain"
)

// SubmitAnswer records or overwrites the player's answer for the current
// question. Accepted only while the answer window is open; a late submission
// returns ErrWindowClosed and leaves the ledger untouched.
func (s *Session) SubmitAnswer(playerID string, selections []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byPlayer[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	switch s.phase {
	case domain.PhaseQuestionActive:
	case domain.PhaseEnded:
		return domain.ErrSessionClosed
	default:
		return domain.ErrWindowClosed
	}
	q := s.questions[s.position]
	if err := validateSelections(q, selections); err != nil {
		return err
	}
	p.answers[s.position] = &domain.Answer{
		QuestionIndex:     s.position,
		Selections:        append([]int(nil), selections...),
		QuestionStartedAt: s.questionStartedAt,
		AnsweredAt:        s.now(),
	}
	return nil
}

// validateSelections enforces the submission shape for a question type:
// exactly one index for single/judgement, one or more for multiple, all
// within option bounds and free of duplicates.
func validateSelections(q domain.Question, selections []int) error {
	if len(selections) == 0 {
		return fmt.Errorf("%w: no option selected", domain.ErrInvalidAnswer)
	}
	if q.Type != domain.QuestionMultiple && len(selections) != 1 {
		return fmt.Errorf("%w: %s question takes exactly one option", domain.ErrInvalidAnswer, q.Type)
	}
	seen := make(map[int]struct{}, len(selections))
	for _, idx := range selections {
		if idx < 0 || idx >= len(q.Options) {
			return fmt.Errorf("%w: option index %d out of range", domain.ErrInvalidAnswer, idx)
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: duplicate option index %d", domain.ErrInvalidAnswer, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// isCorrect compares a selection set against the question's correct-option
// set. Exact set equality; the client's own notion of correctness is never
// trusted.
func isCorrect(q domain.Question, selections []int) bool {
	correct := make(map[int]struct{})
	for i, opt := range q.Options {
		if opt.Correct {
			correct[i] = struct{}{}
		}
	}
	if len(selections) != len(correct) {
		return false
	}
	for _, idx := range selections {
		if _, ok := correct[idx]; !ok {
			return false
		}
	}
	return true
}
