package app_test

import (
	"context"
	"testing"
	"time"

	"quizz-service/internal/app"
	"quizz-service/internal/domain"
	"quizz-service/internal/infra/memory"
)

var (
	sendingDate = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	sendingEnd  = time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
)

const token = "2024-01-01--10-00"

type fixture struct {
	store   *memory.Store
	service *app.QuizService
	quiz    domain.Quiz
	sending domain.Sending
	a, b    domain.Person
	now     time.Time
}

// newFixture sends quiz "Q1" to group "G1" (a and b) on 2024-01-01 10:00
// until 11:00. The quiz holds the given questions.
func newFixture(t *testing.T, random bool, questions ...domain.Question) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewStore(), now: sendingDate.Add(5 * time.Minute)}

	quiz, err := f.store.CreateQuiz(ctx, domain.NewQuiz("Q1", random, questions...))
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	group, persons, err := app.Enroll(ctx, f.store, "G1", "a@example.com", "b@example.com")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	sending := domain.NewSending(quiz.ID, group.ID, sendingDate)
	sending.EndDate = sendingEnd
	sending.Started = true
	sending, err = f.store.CreateSending(ctx, sending)
	if err != nil {
		t.Fatalf("create sending: %v", err)
	}

	f.quiz, f.sending, f.a, f.b = quiz, sending, persons[0], persons[1]
	f.service = app.NewQuizService(f.store, memory.NewQuizRepository(f.store, time.Minute),
		app.WithClock(func() time.Time { return f.now }))
	return f
}

func mcQuestion(t *testing.T, statement string, correct ...int) domain.Question {
	t.Helper()
	q, err := domain.NewQuestion(statement, []string{"w", "x", "y", "z"}, correct...)
	if err != nil {
		t.Fatalf("new question: %v", err)
	}
	return q
}

func (f *fixture) submit(t *testing.T, p domain.Person, q domain.Question, options ...int) {
	t.Helper()
	_, err := f.service.SubmitAnswer(context.Background(), app.Submission{
		Email:        p.Email,
		SendingToken: token,
		QuestionID:   q.ID,
		Options:      options,
	})
	if err != nil {
		t.Fatalf("submit %v for %s: %v", options, p.Email, err)
	}
}
