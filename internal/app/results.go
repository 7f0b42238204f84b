package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// Results aggregates the final standings once the session has ended.
func (s *Session) Results() (domain.SessionResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase != domain.PhaseEnded {
		return domain.SessionResults{}, domain.ErrResultsNotReady
	}
	return s.resultsLocked(), nil
}

func (s *Session) resultsLocked() domain.SessionResults {
	players := make([]domain.PlayerResult, 0, len(s.players))
	for _, p := range s.players {
		pr := domain.PlayerResult{
			PlayerID: p.id,
			Name:     p.name,
			Answers:  make([]domain.AnswerRecord, len(s.questions)),
		}
		for i, ans := range p.answers {
			if ans == nil {
				continue
			}
			rec := domain.AnswerRecord{
				Answered:          true,
				Selections:        ans.Selections,
				QuestionStartedAt: ans.QuestionStartedAt,
				AnsweredAt:        ans.AnsweredAt,
			}
			if isCorrect(s.questions[i], ans.Selections) {
				rec.Correct = true
				pr.Score += s.questions[i].PointValue()
			}
			pr.Answers[i] = rec
		}
		players = append(players, pr)
	}
	// Stable sort keeps join order as the tie-break.
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})

	stats := make([]domain.QuestionStats, len(s.questions))
	for i, q := range s.questions {
		st := domain.QuestionStats{Position: i}
		var totalSec float64
		for _, p := range s.players {
			ans := p.answers[i]
			if ans == nil {
				// Non-responses stay out of both accuracy and the average.
				continue
			}
			st.Responders++
			totalSec += ans.AnsweredAt.Sub(ans.QuestionStartedAt).Seconds()
			if isCorrect(q, ans.Selections) {
				st.CorrectCount++
			}
		}
		if st.Responders > 0 {
			st.AccuracyRate = float64(st.CorrectCount) / float64(st.Responders)
			st.AvgResponseSec = totalSec / float64(st.Responders)
		}
		stats[i] = st
	}

	return domain.SessionResults{
		SessionID: s.id,
		GameID:    s.gameID,
		Players:   players,
		Questions: stats,
		EndedAt:   s.endedAt,
	}
}
