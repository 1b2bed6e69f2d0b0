// Package grading scores single answers. Every statistic of the service is
// built on Score; there is no other scoring path.
package grading

import (
	"fmt"

	"quizz-service/internal/domain"
)

const (
	// selfEvaluationCap is the scale level worth full credit ("acquired").
	selfEvaluationCap = 2
	mismatchPenalty   = 0.5
)

// Score grades a stored answer against its question. A malformed stored list
// yields domain.ErrMalformedIndexList; an index outside the displayed options
// yields domain.ErrInvalidAnswer.
func Score(q domain.Question, a domain.Answer) (float64, error) {
	chosen, err := a.Chosen()
	if err != nil {
		return 0, fmt.Errorf("answer %s: %w", a.ID, err)
	}
	return ScoreChoices(q, chosen)
}

// ScoreChoices grades a decoded set of chosen options. The result is in [0, 1].
func ScoreChoices(q domain.Question, chosen domain.IndexSet) (float64, error) {
	displayed := len(q.PossibleAnswers())
	for _, i := range chosen.Indices() {
		if i >= displayed {
			return 0, fmt.Errorf("%w: option %d of question %q (%d options)", domain.ErrInvalidAnswer, i, q.Slug, displayed)
		}
	}
	if chosen.Empty() {
		return 0, nil
	}
	if q.AutoEvaluation {
		return selfEvaluation(chosen), nil
	}
	return multipleChoice(q.CorrectAnswers, chosen), nil
}

// selfEvaluation caps the highest chosen level at "acquired" before halving,
// so the score is one of 0, 0.5 or 1.
func selfEvaluation(chosen domain.IndexSet) float64 {
	level := chosen.Max()
	if level > selfEvaluationCap {
		level = selfEvaluationCap
	}
	return float64(level) / selfEvaluationCap
}

// multipleChoice starts from full credit and loses half a point per missed
// correct option and per wrongly chosen option. Clamped at 0 once, at the end.
func multipleChoice(correct, chosen domain.IndexSet) float64 {
	score := 1.0
	for _, i := range correct.Indices() {
		if !chosen.Contains(i) {
			score -= mismatchPenalty
		}
	}
	for _, i := range chosen.Indices() {
		if !correct.Contains(i) {
			score -= mismatchPenalty
		}
	}
	if score < 0 {
		return 0
	}
	return score
}
