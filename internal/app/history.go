package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"quizz-service/internal/domain"
	"quizz-service/internal/grading"
)

// QuizTotalLabel labels the synthesized total row of a sending's history.
const QuizTotalLabel = "Quiz total"

// HistoryEntry is one line of a student's history: a question score, or the
// quiz total when Total is set.
type HistoryEntry struct {
	QuestionID string `json:"questionId,omitempty"`
	Label      string `json:"label"`
	Total      bool   `json:"total"`
	Invalid    bool   `json:"invalid,omitempty"`
	Stat
}

type SendingHistory struct {
	Sending string         `json:"sending"`
	Hash    string         `json:"hash"`
	Quiz    string         `json:"quiz"`
	Date    time.Time      `json:"date"`
	Entries []HistoryEntry `json:"entries"`
}

// BuildHistory scores one person's answers to a sending. The first entry is
// the quiz total; question entries follow in quiz order.
func BuildHistory(sending domain.Sending, quiz domain.Quiz, answers []domain.Answer) (SendingHistory, error) {
	byQuestion := make(map[string]domain.Answer, len(answers))
	for _, a := range answers {
		if _, ok := byQuestion[a.QuestionID]; !ok {
			byQuestion[a.QuestionID] = a
		}
	}

	total := HistoryEntry{Label: QuizTotalLabel, Total: true, Stat: Stat{Max: float64(len(quiz.Questions))}}
	entries := []HistoryEntry{total}
	for _, q := range quiz.Questions {
		a, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		entry := HistoryEntry{QuestionID: q.ID, Label: q.Statement, Stat: Stat{Max: 1}}
		score, err := grading.Score(q, a)
		switch {
		case errors.Is(err, domain.ErrInvalidAnswer):
			entry.Invalid = true
		case err != nil:
			return SendingHistory{}, err
		default:
			entry.Value = score
			entries[0].Value += score
		}
		entries = append(entries, entry)
	}
	return SendingHistory{
		Sending: sending.DateToken(),
		Hash:    sending.Hash(),
		Quiz:    quiz.Name,
		Date:    sending.Date,
		Entries: entries,
	}, nil
}

// StudentHistory lists, newest first, every started sending the person
// answered with their per-question scores.
func (s *QuizService) StudentHistory(ctx context.Context, email string) ([]SendingHistory, error) {
	person, err := s.store.PersonByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.Answers(ctx, AnswerFilter{PersonID: person.ID})
	if err != nil {
		return nil, err
	}

	bySending := make(map[string][]domain.Answer)
	for _, a := range answers {
		bySending[a.SendingID] = append(bySending[a.SendingID], a)
	}

	history := make([]SendingHistory, 0, len(bySending))
	for id, own := range bySending {
		sending, err := s.store.SendingByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !sending.Started {
			continue
		}
		quiz, err := s.quizOf(ctx, sending)
		if err != nil {
			return nil, err
		}
		h, err := BuildHistory(sending, quiz, own)
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	sort.Slice(history, func(i, j int) bool {
		if !history[i].Date.Equal(history[j].Date) {
			return history[i].Date.After(history[j].Date)
		}
		return history[i].Sending < history[j].Sending
	})
	return history, nil
}
