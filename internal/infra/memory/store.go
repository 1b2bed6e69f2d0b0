package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizz-service/internal/app"
	"quizz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store and app.Catalog.
type Store struct {
	mu sync.RWMutex

	persons   map[string]domain.Person
	emails    map[string]string
	profiles  map[string]domain.Profile
	groups    map[string]domain.Group
	questions map[string]domain.Question
	quizzes   map[string]storedQuiz
	sendings  map[string]domain.Sending
	answers   map[answerKey]domain.Answer
	reviews   []domain.ReviewAnswer
}

type storedQuiz struct {
	quiz        domain.Quiz
	questionIDs []string
}

type answerKey struct {
	sending, person, question string
}

func NewStore() *Store {
	return &Store{
		persons:   make(map[string]domain.Person),
		emails:    make(map[string]string),
		profiles:  make(map[string]domain.Profile),
		groups:    make(map[string]domain.Group),
		questions: make(map[string]domain.Question),
		quizzes:   make(map[string]storedQuiz),
		sendings:  make(map[string]domain.Sending),
		answers:   make(map[answerKey]domain.Answer),
	}
}

func (s *Store) PersonByEmail(_ context.Context, email string) (domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return domain.Person{}, domain.ErrUnknownIdentity
	}
	return s.persons[id], nil
}

func (s *Store) PersonsByIDs(_ context.Context, ids []string) ([]domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Person, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.persons[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) Profile(_ context.Context, personID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[personID]; ok {
		return p, nil
	}
	return domain.Profile{PersonID: personID}, nil
}

// SetProfile replaces the profile of an existing person.
func (s *Store) SetProfile(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[profile.PersonID]; !ok {
		return domain.ErrUnknownIdentity
	}
	s.profiles[profile.PersonID] = profile
	return nil
}

func (s *Store) SendingByDate(_ context.Context, date time.Time) (domain.Sending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	date = date.Truncate(time.Minute)
	for _, sending := range s.sendings {
		if sending.Date.Truncate(time.Minute).Equal(date) {
			return sending.WithMemo(), nil
		}
	}
	return domain.Sending{}, domain.ErrSendingNotFound
}

func (s *Store) SendingByID(_ context.Context, id string) (domain.Sending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sending, ok := s.sendings[id]
	if !ok {
		return domain.Sending{}, domain.ErrSendingNotFound
	}
	return sending.WithMemo(), nil
}

// GroupMembers returns the persons of a group ordered by email.
func (s *Store) GroupMembers(_ context.Context, groupID string) ([]domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[groupID]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	out := make([]domain.Person, 0, len(group.PersonIDs))
	for _, id := range group.PersonIDs {
		if p, ok := s.persons[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// Answers returns matching answers ordered by sending, person and question.
func (s *Store) Answers(_ context.Context, filter app.AnswerFilter) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for k, a := range s.answers {
		if filter.SendingID != "" && k.sending != filter.SendingID {
			continue
		}
		if filter.PersonID != "" && k.person != filter.PersonID {
			continue
		}
		if filter.QuestionID != "" && k.question != filter.QuestionID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SendingID != b.SendingID {
			return a.SendingID < b.SendingID
		}
		if a.PersonID != b.PersonID {
			return a.PersonID < b.PersonID
		}
		return a.QuestionID < b.QuestionID
	})
	return out, nil
}

// InsertAnswer checks and inserts under a single write lock.
func (s *Store) InsertAnswer(_ context.Context, answer domain.Answer) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := answerKey{answer.SendingID, answer.PersonID, answer.QuestionID}
	if _, exists := s.answers[k]; exists {
		return domain.Answer{}, domain.ErrDuplicateAnswer
	}
	answer.ID = uuid.NewString()
	s.answers[k] = answer
	return answer, nil
}

func (s *Store) InsertReview(_ context.Context, review domain.ReviewAnswer) (domain.ReviewAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	review.ID = uuid.NewString()
	s.reviews = append(s.reviews, review)
	return review, nil
}

// Reviews lists the stored feedback for a review identifier.
func (s *Store) Reviews(_ context.Context, review string) ([]domain.ReviewAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReviewAnswer
	for _, r := range s.reviews {
		if r.Review == review {
			out = append(out, r)
		}
	}
	return out, nil
}

// LoadQuiz implements QuizLoader.
func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	quiz := stored.quiz
	quiz.Questions = make([]domain.Question, 0, len(stored.questionIDs))
	for _, id := range stored.questionIDs {
		quiz.Questions = append(quiz.Questions, s.questions[id])
	}
	return quiz, nil
}

func (s *Store) CreatePerson(_ context.Context, person domain.Person, profile domain.Profile) (domain.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.emails[person.Email]; exists {
		return domain.Person{}, domain.ErrAlreadyExists
	}
	person.ID = uuid.NewString()
	profile.PersonID = person.ID
	s.persons[person.ID] = person
	s.emails[person.Email] = person.ID
	s.profiles[person.ID] = profile
	return person, nil
}

func (s *Store) CreateGroup(_ context.Context, group domain.Group) (domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Name == group.Name || g.Slug == group.Slug {
			return domain.Group{}, domain.ErrAlreadyExists
		}
	}
	for _, id := range group.PersonIDs {
		if _, ok := s.persons[id]; !ok {
			return domain.Group{}, domain.ErrUnknownIdentity
		}
	}
	group.ID = uuid.NewString()
	group.PersonIDs = append([]string(nil), group.PersonIDs...)
	s.groups[group.ID] = group
	return group, nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.quizzes {
		if stored.quiz.Name == quiz.Name || stored.quiz.Slug == quiz.Slug {
			return domain.Quiz{}, domain.ErrAlreadyExists
		}
	}

	questions := make([]domain.Question, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		if q.ID != "" {
			existing, ok := s.questions[q.ID]
			if !ok {
				return domain.Quiz{}, domain.ErrQuestionNotFound
			}
			questions = append(questions, existing)
			continue
		}
		if err := q.Validate(); err != nil {
			return domain.Quiz{}, err
		}
		for _, existing := range s.questions {
			if existing.Statement == q.Statement || existing.Slug == q.Slug {
				return domain.Quiz{}, domain.ErrAlreadyExists
			}
		}
		q.ID = uuid.NewString()
		questions = append(questions, q)
	}

	quiz.ID = uuid.NewString()
	ids := make([]string, len(questions))
	for i, q := range questions {
		s.questions[q.ID] = q
		ids[i] = q.ID
	}
	quiz.Questions = questions
	s.quizzes[quiz.ID] = storedQuiz{quiz: domain.Quiz{
		ID:                  quiz.ID,
		Name:                quiz.Name,
		Slug:                quiz.Slug,
		RandomQuestionOrder: quiz.RandomQuestionOrder,
	}, questionIDs: ids}
	return quiz, nil
}

func (s *Store) CreateSending(_ context.Context, sending domain.Sending) (domain.Sending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[sending.QuizID]; !ok {
		return domain.Sending{}, domain.ErrQuizNotFound
	}
	if _, ok := s.groups[sending.GroupID]; !ok {
		return domain.Sending{}, domain.ErrGroupNotFound
	}
	for _, existing := range s.sendings {
		if existing.Date.Equal(sending.Date) {
			return domain.Sending{}, domain.ErrAlreadyExists
		}
	}
	if sending.EndDate.IsZero() {
		sending.EndDate = domain.DefaultEndDate
	}
	sending.ID = uuid.NewString()
	s.sendings[sending.ID] = sending
	return sending.WithMemo(), nil
}

func (s *Store) DeleteSending(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sendings[id]; !ok {
		return domain.ErrSendingNotFound
	}
	delete(s.sendings, id)
	for k := range s.answers {
		if k.sending == id {
			delete(s.answers, k)
		}
	}
	return nil
}
