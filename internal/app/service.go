package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"quizz-service/internal/domain"
)

// Store is the persistent entity store the quiz core reads from. Lookups of
// missing persons and sendings return domain.ErrUnknownIdentity and
// domain.ErrSendingNotFound respectively.
type Store interface {
	PersonByEmail(ctx context.Context, email string) (domain.Person, error)
	PersonsByIDs(ctx context.Context, ids []string) ([]domain.Person, error)
	// Profile returns the zero profile when none was stored.
	Profile(ctx context.Context, personID string) (domain.Profile, error)
	// SendingByDate matches the sending date at minute precision.
	SendingByDate(ctx context.Context, date time.Time) (domain.Sending, error)
	SendingByID(ctx context.Context, id string) (domain.Sending, error)
	GroupMembers(ctx context.Context, groupID string) ([]domain.Person, error)
	Answers(ctx context.Context, filter AnswerFilter) ([]domain.Answer, error)
	// InsertAnswer atomically enforces uniqueness of (sending, person,
	// question) and returns domain.ErrDuplicateAnswer on conflict.
	InsertAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error)
	InsertReview(ctx context.Context, review domain.ReviewAnswer) (domain.ReviewAnswer, error)
}

// AnswerFilter narrows Store.Answers; empty fields match everything.
type AnswerFilter struct {
	SendingID  string
	PersonID   string
	QuestionID string
}

// QuizRepository loads quiz content (from cache/backing store). Questions come
// back in their canonical order.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizService contains the quiz use cases exposed to the presentation layer.
type QuizService struct {
	store    Store
	quizzes  QuizRepository
	progress *ProgressHub
	now      func() time.Time
	intn     func(n int) int
}

type Option func(*QuizService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(s *QuizService) { s.now = now } }

// WithRandom replaces the source used to pick questions of random-order quizzes.
func WithRandom(intn func(n int) int) Option { return func(s *QuizService) { s.intn = intn } }

// WithProgressHub shares a hub between services.
func WithProgressHub(h *ProgressHub) Option { return func(s *QuizService) { s.progress = h } }

func NewQuizService(store Store, quizzes QuizRepository, opts ...Option) *QuizService {
	s := &QuizService{
		store:    store,
		quizzes:  quizzes,
		progress: NewProgressHub(),
		now:      time.Now,
		intn:     rand.Intn,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *QuizService) sendingByToken(ctx context.Context, token string) (domain.Sending, error) {
	date, err := domain.ParseDateToken(token)
	if err != nil {
		return domain.Sending{}, domain.ErrSendingNotFound
	}
	return s.store.SendingByDate(ctx, date)
}

// respondent resolves the email and checks it belongs to the sending's group.
func (s *QuizService) respondent(ctx context.Context, email, token string) (domain.Person, domain.Sending, error) {
	person, err := s.store.PersonByEmail(ctx, email)
	if err != nil {
		return domain.Person{}, domain.Sending{}, err
	}
	sending, err := s.sendingByToken(ctx, token)
	if err != nil {
		return domain.Person{}, domain.Sending{}, err
	}
	members, err := s.store.GroupMembers(ctx, sending.GroupID)
	if err != nil {
		return domain.Person{}, domain.Sending{}, fmt.Errorf("sending %s: %w", token, err)
	}
	for _, m := range members {
		if m.ID == person.ID {
			return person, sending, nil
		}
	}
	return domain.Person{}, domain.Sending{}, domain.ErrNotAuthorizedForSending
}

func (s *QuizService) quizOf(ctx context.Context, sending domain.Sending) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, sending.QuizID)
	if err != nil {
		// a sending pointing at a missing quiz is a data-integrity fault
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.Quiz{}, fmt.Errorf("sending %s references quiz %s: %w", sending.DateToken(), sending.QuizID, err)
		}
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// SubmitReview stores free-text feedback. The email is optional.
func (s *QuizService) SubmitReview(ctx context.Context, review, email, text string) (domain.ReviewAnswer, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ReviewAnswer{}, domain.ErrEmptyReview
	}
	return s.store.InsertReview(ctx, domain.ReviewAnswer{
		Review: review,
		Email:  email,
		Text:   text,
		At:     s.now(),
	})
}
