package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"quizz-service/internal/domain"
	"quizz-service/internal/grading"
)

// Stat is a value out of a maximum, e.g. 3 answers out of 4 expected.
type Stat struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
}

type PersonStat struct {
	PersonID string `json:"personId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Stat
}

type OptionStat struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Stat
}

type QuestionStat struct {
	QuestionID  string       `json:"questionId"`
	Statement   string       `json:"statement"`
	Answers     int          `json:"answers"`
	Correctness Stat         `json:"correctness"`
	Histogram   []OptionStat `json:"histogram,omitempty"`
}

// InvalidAnswer flags a stored answer left out of every score.
type InvalidAnswer struct {
	AnswerID   string `json:"answerId"`
	PersonID   string `json:"personId"`
	QuestionID string `json:"questionId"`
	Reason     string `json:"reason"`
}

// Statistics bundles every derived view of one sending.
type Statistics struct {
	Sending          string          `json:"sending"`
	Hash             string          `json:"hash"`
	Quiz             string          `json:"quiz"`
	Closed           bool            `json:"closed"`
	NbQuestions      int             `json:"nbQuestions"`
	NbPersons        int             `json:"nbPersons"`
	Progress         Stat            `json:"progress"`
	Completion       []PersonStat    `json:"completion"`
	Scores           []PersonStat    `json:"scores"`
	Questions        []QuestionStat  `json:"questions"`
	HistogramVisible bool            `json:"histogramVisible"`
	InvalidAnswers   []InvalidAnswer `json:"invalidAnswers,omitempty"`
}

// SendingData is everything the aggregation reads for one sending. Persons
// should hold the group members and every respondent.
type SendingData struct {
	Sending domain.Sending
	Quiz    domain.Quiz
	Persons []domain.Person
	Answers []domain.Answer
}

// graded memoizes the decoding and the score of one answer.
type graded struct {
	answer domain.Answer
	chosen domain.IndexSet
	score  float64
	valid  bool
}

// Aggregate computes all statistics of a sending. Answers to questions outside
// the quiz are ignored. An answer with an out-of-range option is flagged and
// scores nothing; a malformed stored list aborts with an error.
func Aggregate(data SendingData, now time.Time) (Statistics, error) {
	answers, err := gradeAnswers(data.Quiz, data.Answers)
	if err != nil {
		return Statistics{}, err
	}

	nbQuestions := len(data.Quiz.Questions)
	nbPersons := respondentCount(answers)
	closed := data.Sending.ClosedAt(now)

	stats := Statistics{
		Sending:          data.Sending.DateToken(),
		Hash:             data.Sending.Hash(),
		Quiz:             data.Quiz.Name,
		Closed:           closed,
		NbQuestions:      nbQuestions,
		NbPersons:        nbPersons,
		Progress:         Stat{Value: float64(len(answers)), Max: float64(nbQuestions * nbPersons)},
		HistogramVisible: closed,
	}

	byPerson := make(map[string][]graded)
	byQuestion := make(map[string][]graded)
	for _, g := range answers {
		byPerson[g.answer.PersonID] = append(byPerson[g.answer.PersonID], g)
		byQuestion[g.answer.QuestionID] = append(byQuestion[g.answer.QuestionID], g)
		if !g.valid {
			stats.InvalidAnswers = append(stats.InvalidAnswers, InvalidAnswer{
				AnswerID:   g.answer.ID,
				PersonID:   g.answer.PersonID,
				QuestionID: g.answer.QuestionID,
				Reason:     domain.ErrInvalidAnswer.Error(),
			})
		}
	}

	for _, p := range withRespondents(data.Persons, answers) {
		own := byPerson[p.ID]
		sum := 0.0
		for _, g := range own {
			sum += g.score
		}
		base := PersonStat{PersonID: p.ID, Email: p.Email, Name: p.DisplayName()}
		completion, score := base, base
		completion.Stat = Stat{Value: float64(len(own)), Max: float64(nbQuestions)}
		score.Stat = Stat{Value: sum, Max: float64(nbQuestions)}
		stats.Completion = append(stats.Completion, completion)
		stats.Scores = append(stats.Scores, score)
	}
	sort.Slice(stats.Completion, func(i, j int) bool {
		a, b := stats.Completion[i], stats.Completion[j]
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return byName(a, b)
	})
	sort.Slice(stats.Scores, func(i, j int) bool {
		return byName(stats.Scores[i], stats.Scores[j])
	})

	for _, q := range data.Quiz.Questions {
		received := byQuestion[q.ID]
		sum := 0.0
		for _, g := range received {
			sum += g.score
		}
		qs := QuestionStat{
			QuestionID:  q.ID,
			Statement:   q.Statement,
			Answers:     len(received),
			Correctness: Stat{Value: sum, Max: float64(nbPersons)},
		}
		if closed {
			qs.Histogram = histogram(q, received)
		}
		stats.Questions = append(stats.Questions, qs)
	}
	return stats, nil
}

func byName(a, b PersonStat) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Email != b.Email {
		return a.Email < b.Email
	}
	return a.PersonID < b.PersonID
}

// gradeAnswers keeps one answer per (person, question) of the quiz and scores
// each exactly once.
func gradeAnswers(quiz domain.Quiz, answers []domain.Answer) ([]graded, error) {
	type key struct{ person, question string }
	seen := make(map[key]struct{}, len(answers))
	out := make([]graded, 0, len(answers))
	for _, a := range answers {
		q, ok := quiz.Question(a.QuestionID)
		if !ok {
			continue
		}
		k := key{a.PersonID, a.QuestionID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		chosen, err := a.Chosen()
		if err != nil {
			return nil, fmt.Errorf("answer %s: %w", a.ID, err)
		}
		score, err := grading.ScoreChoices(q, chosen)
		switch {
		case errors.Is(err, domain.ErrInvalidAnswer):
			out = append(out, graded{answer: a, chosen: chosen})
		case err != nil:
			return nil, err
		default:
			out = append(out, graded{answer: a, chosen: chosen, score: score, valid: true})
		}
	}
	return out, nil
}

// respondentCount is the number of distinct persons with at least one answer,
// never less than 1.
func respondentCount(answers []graded) int {
	persons := make(map[string]struct{})
	for _, g := range answers {
		persons[g.answer.PersonID] = struct{}{}
	}
	if len(persons) == 0 {
		return 1
	}
	return len(persons)
}

// withRespondents deduplicates persons and adds a placeholder for any
// respondent missing from them, so that every answer is attributed.
func withRespondents(persons []domain.Person, answers []graded) []domain.Person {
	seen := make(map[string]struct{}, len(persons))
	out := make([]domain.Person, 0, len(persons))
	for _, p := range persons {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	for _, g := range answers {
		id := g.answer.PersonID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, domain.Person{ID: id, Username: id})
	}
	return out
}

func histogram(q domain.Question, received []graded) []OptionStat {
	options := q.PossibleAnswers()
	out := make([]OptionStat, len(options))
	for i, text := range options {
		out[i] = OptionStat{Index: i, Text: text, Stat: Stat{Max: float64(len(received))}}
	}
	for _, g := range received {
		for _, i := range g.chosen.Indices() {
			if i < len(out) {
				out[i].Value++
			}
		}
	}
	return out
}

// overallProgress is the progress view alone, used by the live feed.
func overallProgress(quiz domain.Quiz, answers []domain.Answer) Stat {
	persons := make(map[string]struct{})
	n := 0
	for _, a := range answers {
		if _, ok := quiz.Question(a.QuestionID); ok {
			persons[a.PersonID] = struct{}{}
			n++
		}
	}
	nbPersons := len(persons)
	if nbPersons == 0 {
		nbPersons = 1
	}
	return Stat{Value: float64(n), Max: float64(len(quiz.Questions) * nbPersons)}
}

// Statistics loads a sending and aggregates its answers.
func (s *QuizService) Statistics(ctx context.Context, token string) (Statistics, error) {
	sending, err := s.sendingByToken(ctx, token)
	if err != nil {
		return Statistics{}, err
	}
	data, err := s.sendingData(ctx, sending)
	if err != nil {
		return Statistics{}, err
	}
	return Aggregate(data, s.now())
}

func (s *QuizService) sendingData(ctx context.Context, sending domain.Sending) (SendingData, error) {
	quiz, err := s.quizOf(ctx, sending)
	if err != nil {
		return SendingData{}, err
	}
	members, err := s.store.GroupMembers(ctx, sending.GroupID)
	if err != nil {
		return SendingData{}, fmt.Errorf("sending %s: %w", sending.DateToken(), err)
	}
	answers, err := s.store.Answers(ctx, AnswerFilter{SendingID: sending.ID})
	if err != nil {
		return SendingData{}, err
	}

	known := make(map[string]struct{}, len(members))
	for _, m := range members {
		known[m.ID] = struct{}{}
	}
	var missing []string
	for _, a := range answers {
		if _, ok := known[a.PersonID]; !ok {
			known[a.PersonID] = struct{}{}
			missing = append(missing, a.PersonID)
		}
	}
	persons := append([]domain.Person(nil), members...)
	if len(missing) > 0 {
		// respondents who left the group still count
		others, err := s.store.PersonsByIDs(ctx, missing)
		if err != nil {
			return SendingData{}, err
		}
		persons = append(persons, others...)
	}
	return SendingData{Sending: sending, Quiz: quiz, Persons: persons, Answers: answers}, nil
}
