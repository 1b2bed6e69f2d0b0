package app

import (
	"context"

	"quizz-service/internal/domain"
)

// NextQuestion is what a respondent should see next in a sending.
type NextQuestion struct {
	Completed bool            `json:"completed"`
	Question  domain.Question `json:"question"`
	Options   []string        `json:"options,omitempty"`
	Answered  int             `json:"answered"`
	Total     int             `json:"total"`
	Dyslexic  bool            `json:"dyslexic"`
}

// SelectNext picks the next unanswered question. It returns false once every
// question of the quiz has been answered. Random-order quizzes draw uniformly
// among the pending questions on every call; fixed-order quizzes return the
// first pending question in canonical order.
func SelectNext(questions []domain.Question, answered map[string]struct{}, random bool, intn func(n int) int) (domain.Question, bool) {
	pending := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if _, ok := answered[q.ID]; !ok {
			pending = append(pending, q)
		}
	}
	if len(pending) == 0 {
		return domain.Question{}, false
	}
	if !random {
		return pending[0], true
	}
	return pending[intn(len(pending))], true
}

// NextQuestion resolves the respondent and the sending, then selects the next
// question to present. It never writes.
func (s *QuizService) NextQuestion(ctx context.Context, token, email string) (NextQuestion, error) {
	person, sending, err := s.respondent(ctx, email, token)
	if err != nil {
		return NextQuestion{}, err
	}
	quiz, err := s.quizOf(ctx, sending)
	if err != nil {
		return NextQuestion{}, err
	}
	answers, err := s.store.Answers(ctx, AnswerFilter{SendingID: sending.ID, PersonID: person.ID})
	if err != nil {
		return NextQuestion{}, err
	}
	profile, err := s.store.Profile(ctx, person.ID)
	if err != nil {
		return NextQuestion{}, err
	}

	answered := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if _, ok := quiz.Question(a.QuestionID); ok {
			answered[a.QuestionID] = struct{}{}
		}
	}

	next := NextQuestion{
		Answered: len(answered),
		Total:    len(quiz.Questions),
		Dyslexic: profile.Dyslexic,
	}
	question, ok := SelectNext(quiz.Questions, answered, quiz.RandomQuestionOrder, s.intn)
	if !ok {
		next.Completed = true
		return next, nil
	}
	next.Options = question.PossibleAnswers()
	// respondents never see the answer key
	question.CorrectAnswers = domain.IndexSet{}
	next.Question = question
	return next, nil
}
