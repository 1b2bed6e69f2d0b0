package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizz-service/internal/app"
	"quizz-service/internal/domain"
)

func TestInsertAnswerIsUniquePerTriple(t *testing.T) {
	store := NewStore()
	answer := domain.Answer{SendingID: "s1", PersonID: "p1", QuestionID: "q1", Choices: "0"}

	var wg sync.WaitGroup
	results := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.InsertAnswer(context.Background(), answer)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, dup := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateAnswer):
			dup++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || dup != 15 {
		t.Fatalf("expected 1 success and 15 duplicates, got %d and %d", ok, dup)
	}

	stored, _ := store.Answers(context.Background(), app.AnswerFilter{SendingID: "s1", PersonID: "p1", QuestionID: "q1"})
	if len(stored) != 1 {
		t.Fatalf("expected exactly one stored answer, got %d", len(stored))
	}
}

func TestCreatePersonStoresProfile(t *testing.T) {
	store := NewStore()
	p, profile := domain.NewPerson("ada@example.com", "Ada", "Lovelace")
	created, err := store.CreatePerson(context.Background(), p, profile)
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if _, err := store.CreatePerson(context.Background(), p, profile); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	got, err := store.Profile(context.Background(), created.ID)
	if err != nil || got.PersonID != created.ID || got.Dyslexic {
		t.Fatalf("unexpected profile %+v (%v)", got, err)
	}
	if err := store.SetProfile(context.Background(), domain.Profile{PersonID: created.ID, Dyslexic: true}); err != nil {
		t.Fatalf("set profile: %v", err)
	}
	got, _ = store.Profile(context.Background(), created.ID)
	if !got.Dyslexic {
		t.Fatalf("expected dyslexic profile")
	}
}

func TestSendingLookupAndCascade(t *testing.T) {
	ctx := context.Background()
	store, quiz := storeWithQuiz(t)
	group, persons, err := app.Enroll(ctx, store, "G1", "a@example.com")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	date := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	sending, err := store.CreateSending(ctx, domain.NewSending(quiz.ID, group.ID, date))
	if err != nil {
		t.Fatalf("create sending: %v", err)
	}
	if _, err := store.CreateSending(ctx, domain.NewSending(quiz.ID, group.ID, date)); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected unique date violation, got %v", err)
	}

	found, err := store.SendingByDate(ctx, date.Add(30*time.Second))
	if err != nil || found.ID != sending.ID {
		t.Fatalf("expected lookup at minute precision, got %+v (%v)", found, err)
	}
	if found.EndDate != domain.DefaultEndDate {
		t.Fatalf("expected default end date, got %v", found.EndDate)
	}

	if _, err := store.InsertAnswer(ctx, domain.Answer{SendingID: sending.ID, PersonID: persons[0].ID, QuestionID: quiz.Questions[0].ID, Choices: "1"}); err != nil {
		t.Fatalf("insert answer: %v", err)
	}
	if err := store.DeleteSending(ctx, sending.ID); err != nil {
		t.Fatalf("delete sending: %v", err)
	}
	left, _ := store.Answers(ctx, app.AnswerFilter{SendingID: sending.ID})
	if len(left) != 0 {
		t.Fatalf("expected answers deleted with their sending, %d left", len(left))
	}
	if _, err := store.SendingByID(ctx, sending.ID); !errors.Is(err, domain.ErrSendingNotFound) {
		t.Fatalf("expected sending gone, got %v", err)
	}
}

func TestGroupMembersOrderedByEmail(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	group, _, err := app.Enroll(ctx, store, "G1", "zoe@example.com", "ada@example.com")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	members, err := store.GroupMembers(ctx, group.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 || members[0].Email != "ada@example.com" {
		t.Fatalf("unexpected members %+v", members)
	}
	if _, err := store.GroupMembers(ctx, "missing"); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Fatalf("expected group not found, got %v", err)
	}
}
