package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizz-service/internal/app"
	"quizz-service/internal/domain"
)

func TestStudentHistory(t *testing.T) {
	f := newFixture(t, false, mcQuestion(t, "one", 0), domain.NewSelfEvaluationQuestion("two"), mcQuestion(t, "three", 1))
	ctx := context.Background()
	f.submit(t, f.a, f.quiz.Questions[0], 0)
	f.submit(t, f.a, f.quiz.Questions[1], 1)

	// a second sending that has not started yet is left out
	hidden := domain.NewSending(f.quiz.ID, f.sending.GroupID, sendingDate.Add(time.Hour))
	hidden, err := f.store.CreateSending(ctx, hidden)
	if err != nil {
		t.Fatalf("create sending: %v", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, app.Submission{
		Email: f.a.Email, SendingToken: hidden.DateToken(), QuestionID: f.quiz.Questions[0].ID, Options: []int{0},
	}); err != nil {
		t.Fatalf("submit to unstarted sending: %v", err)
	}

	history, err := f.service.StudentHistory(ctx, f.a.Email)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Sending != token {
		t.Fatalf("expected only the started sending, got %+v", history)
	}
	entries := history[0].Entries
	if len(entries) != 3 {
		t.Fatalf("expected total plus two questions, got %+v", entries)
	}
	total := entries[0]
	if !total.Total || total.Label != app.QuizTotalLabel || total.Value != 1.5 || total.Max != 3 {
		t.Fatalf("unexpected total row %+v", total)
	}
	if entries[1].QuestionID != f.quiz.Questions[0].ID || entries[1].Value != 1 || entries[1].Total {
		t.Fatalf("unexpected first question row %+v", entries[1])
	}
	if entries[2].Value != 0.5 || entries[2].Max != 1 {
		t.Fatalf("unexpected second question row %+v", entries[2])
	}

	if _, err := f.service.StudentHistory(ctx, "ghost@example.com"); !errors.Is(err, domain.ErrUnknownIdentity) {
		t.Fatalf("expected unknown identity, got %v", err)
	}
}

func TestBuildHistoryMarksInvalidAnswers(t *testing.T) {
	q := mcQuestion(t, "one", 0)
	q.ID = "q1"
	quiz := domain.Quiz{Name: "Q", Questions: []domain.Question{q}}
	h, err := app.BuildHistory(domain.NewSending("quiz", "group", sendingDate), quiz, []domain.Answer{
		{ID: "1", QuestionID: "q1", Choices: "9"},
	})
	if err != nil {
		t.Fatalf("build history: %v", err)
	}
	if !h.Entries[1].Invalid || h.Entries[0].Value != 0 {
		t.Fatalf("expected invalid entry excluded from total, got %+v", h.Entries)
	}
}
