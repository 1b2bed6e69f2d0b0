package app

import (
	"context"
	"errors"

	"github.com/golang/glog"

	"quizz-service/internal/domain"
)

// Submission is one respondent's answer to one question of a sending.
type Submission struct {
	Email        string
	SendingToken string
	QuestionID   string
	Options      []int
}

// SubmitAnswer validates and persists an answer. Rejections are the domain
// sentinel errors, checked in this order: unknown identity, sending not found,
// not in the sending's group, question not in the quiz, no option chosen,
// option out of range, duplicate answer, sending closed. Nothing is written
// when a check fails.
func (s *QuizService) SubmitAnswer(ctx context.Context, sub Submission) (domain.Answer, error) {
	answer, err := s.submit(ctx, sub)
	if err != nil {
		if domain.IsRejection(err) {
			glog.V(1).Infof("answer of %s to %s/%s rejected: %v", sub.Email, sub.SendingToken, sub.QuestionID, err)
		}
		return domain.Answer{}, err
	}
	glog.V(2).Infof("answer %s recorded for %s on %s", answer.ID, sub.Email, sub.SendingToken)
	return answer, nil
}

func (s *QuizService) submit(ctx context.Context, sub Submission) (domain.Answer, error) {
	person, sending, err := s.respondent(ctx, sub.Email, sub.SendingToken)
	if err != nil {
		return domain.Answer{}, err
	}
	quiz, err := s.quizOf(ctx, sending)
	if err != nil {
		return domain.Answer{}, err
	}
	question, ok := quiz.Question(sub.QuestionID)
	if !ok {
		return domain.Answer{}, domain.ErrQuestionNotFound
	}

	chosen, err := validateOptions(question, sub.Options)
	if err != nil {
		return domain.Answer{}, err
	}

	previous, err := s.store.Answers(ctx, AnswerFilter{
		SendingID:  sending.ID,
		PersonID:   person.ID,
		QuestionID: question.ID,
	})
	if err != nil {
		return domain.Answer{}, err
	}
	if len(previous) > 0 {
		return domain.Answer{}, domain.ErrDuplicateAnswer
	}
	if sending.ClosedAt(s.now()) {
		return domain.Answer{}, domain.ErrSendingClosed
	}

	// the insert re-checks uniqueness atomically; a concurrent twin loses here
	answer, err := s.store.InsertAnswer(ctx, domain.Answer{
		SendingID:  sending.ID,
		PersonID:   person.ID,
		QuestionID: question.ID,
		Choices:    chosen.String(),
	})
	if err != nil {
		return domain.Answer{}, err
	}

	s.publishProgress(ctx, sending, quiz)
	return answer, nil
}

func validateOptions(q domain.Question, options []int) (domain.IndexSet, error) {
	if len(options) == 0 {
		return domain.IndexSet{}, domain.ErrNoAnswerProvided
	}
	displayed := len(q.PossibleAnswers())
	for _, i := range options {
		if i < 0 || i >= displayed || i >= domain.MaxOptions {
			return domain.IndexSet{}, domain.ErrInvalidOption
		}
	}
	return domain.NewIndexSet(options...), nil
}

func (s *QuizService) publishProgress(ctx context.Context, sending domain.Sending, quiz domain.Quiz) {
	if !s.progress.watched(sending.DateToken()) {
		return
	}
	answers, err := s.store.Answers(ctx, AnswerFilter{SendingID: sending.ID})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			glog.Errorf("progress of %s: %v", sending.DateToken(), err)
		}
		return
	}
	s.progress.Publish(ProgressUpdate{
		Sending:   sending.DateToken(),
		Progress:  overallProgress(quiz, answers),
		UpdatedAt: s.now(),
	})
}
