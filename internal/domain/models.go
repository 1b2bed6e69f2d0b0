package domain

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

const (
	// AnswerDelimiter separates possible-answer texts in Question.Answers.
	AnswerDelimiter = "----"
	// NoOpinion is appended to the displayed options of non self-evaluation questions.
	NoOpinion = "No opinion"
	// MaxOptions is the largest number of options a respondent can pick from.
	MaxOptions = 10

	GroupSlugMaxLen    = 50
	QuizSlugMaxLen     = 150
	QuestionSlugMaxLen = 256

	dateTokenLayout = "2006-01-02--15-04"
)

// DefaultEndDate keeps a sending open until someone closes it explicitly.
var DefaultEndDate = time.Date(3000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Person is a respondent, identified by email.
type Person struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// DisplayName is the name shown in listings and exports.
func (p Person) DisplayName() string {
	full := strings.TrimSpace(p.FirstName + " " + p.LastName)
	switch {
	case full != "":
		return full
	case p.Username != "":
		return p.Username
	default:
		return p.Email
	}
}

// Profile holds per-person presentation preferences.
type Profile struct {
	PersonID string `json:"personId"`
	Dyslexic bool   `json:"dyslexic"`
}

// NewPerson builds a person and its companion profile. Whoever creates a
// person must persist both.
func NewPerson(email, firstName, lastName string) (Person, Profile) {
	email = strings.TrimSpace(email)
	username := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		username = email[:at]
	}
	p := Person{
		Email:     email,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	}
	return p, Profile{}
}

// Group is a named set of persons a quiz can be sent to.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	PersonIDs []string `json:"personIds"`
}

func NewGroup(name string) Group {
	return Group{Name: name, Slug: Slugify(name, GroupSlugMaxLen)}
}

// Question is either a multiple-choice question or a self-evaluation scale.
type Question struct {
	ID             string   `json:"id"`
	Statement      string   `json:"statement"`
	Slug           string   `json:"slug"`
	Answers        string   `json:"answers"`
	CorrectAnswers IndexSet `json:"correctAnswers"`
	AutoEvaluation bool     `json:"autoEvaluation"`
}

// NewQuestion builds a multiple-choice question from its option texts.
func NewQuestion(statement string, answers []string, correct ...int) (Question, error) {
	q := Question{
		Statement:      statement,
		Slug:           Slugify(statement, QuestionSlugMaxLen),
		Answers:        strings.Join(answers, AnswerDelimiter+"\n"),
		CorrectAnswers: NewIndexSet(correct...),
	}
	return q, q.Validate()
}

// NewSelfEvaluationQuestion builds a question graded on the four-level scale.
func NewSelfEvaluationQuestion(statement string) Question {
	return Question{
		Statement: statement,
		Slug:      Slugify(statement, QuestionSlugMaxLen),
		Answers: strings.Join([]string{
			"Not acquired", "Being acquired", "Acquired", "Exceeded",
		}, AnswerDelimiter+"\n"),
		CorrectAnswers: NewIndexSet(3),
		AutoEvaluation: true,
	}
}

// options returns the trimmed option texts, without the implicit no-opinion entry.
func (q Question) options() []string {
	parts := strings.Split(q.Answers, AnswerDelimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// PossibleAnswers lists the options as displayed to the respondent.
func (q Question) PossibleAnswers() []string {
	answers := q.options()
	if !q.AutoEvaluation {
		answers = append(answers, NoOpinion)
	}
	return answers
}

// CorrectAnswersText resolves the correct indices to their option texts.
func (q Question) CorrectAnswersText() ([]string, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	opts := q.options()
	out := make([]string, 0, q.CorrectAnswers.Len())
	for _, i := range q.CorrectAnswers.Indices() {
		out = append(out, opts[i])
	}
	return out, nil
}

// Validate checks that every correct index points at a real option. The
// no-opinion entry is never a valid correct answer.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Statement) == "" {
		return fmt.Errorf("question: empty statement")
	}
	n := len(q.options())
	if n > MaxOptions {
		return fmt.Errorf("question %q: %d options, at most %d", q.Slug, n, MaxOptions)
	}
	for _, i := range q.CorrectAnswers.Indices() {
		if i >= n {
			return fmt.Errorf("question %q: correct answer %d out of range [0,%d)", q.Slug, i, n)
		}
	}
	return nil
}

// Quiz is a set of questions with an ordering policy.
type Quiz struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Slug                string     `json:"slug"`
	RandomQuestionOrder bool       `json:"randomQuestionOrder"`
	Questions           []Question `json:"questions"`
}

func NewQuiz(name string, random bool, questions ...Question) Quiz {
	return Quiz{
		Name:                name,
		Slug:                Slugify(name, QuizSlugMaxLen),
		RandomQuestionOrder: random,
		Questions:           questions,
	}
}

// Question finds a question of the quiz by ID.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Sending is one dispatch of a quiz to a group.
type Sending struct {
	ID      string    `json:"id"`
	QuizID  string    `json:"quizId"`
	GroupID string    `json:"groupId"`
	Date    time.Time `json:"date"`
	EndDate time.Time `json:"endDate"`
	Started bool      `json:"started"`

	memo *sendingMemo
}

type sendingMemo struct {
	once  sync.Once
	token string
	hash  string
}

// NewSending truncates the date to minute precision, the precision of its token.
func NewSending(quizID, groupID string, date time.Time) Sending {
	return Sending{
		QuizID:  quizID,
		GroupID: groupID,
		Date:    date.UTC().Truncate(time.Minute),
		EndDate: DefaultEndDate,
		memo:    &sendingMemo{},
	}
}

// WithMemo attaches a fresh derived-value cache; stores call it on every
// sending they materialize.
func (s Sending) WithMemo() Sending {
	s.memo = &sendingMemo{}
	return s
}

func (s Sending) derive() (string, string) {
	compute := func() (string, string) {
		token := s.Date.UTC().Format(dateTokenLayout)
		h := fnv.New64a()
		h.Write([]byte("QuizzSending"))
		h.Write([]byte{0})
		h.Write([]byte(token))
		return token, fmt.Sprintf("0x%x", h.Sum64())
	}
	if s.memo == nil {
		return compute()
	}
	s.memo.once.Do(func() {
		s.memo.token, s.memo.hash = compute()
	})
	return s.memo.token, s.memo.hash
}

// DateToken is the URL-safe identifier of the sending.
func (s Sending) DateToken() string {
	token, _ := s.derive()
	return token
}

// Hash is a short stable identifier derived from the date token.
func (s Sending) Hash() string {
	_, hash := s.derive()
	return hash
}

// ClosedAt reports whether answers are no longer accepted at now.
func (s Sending) ClosedAt(now time.Time) bool {
	return now.After(s.EndDate)
}

// ParseDateToken is the inverse of Sending.DateToken.
func ParseDateToken(token string) (time.Time, error) {
	t, err := time.ParseInLocation(dateTokenLayout, token, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sending token %q: %w", token, err)
	}
	return t, nil
}

// Answer is the persisted response of one person to one question of a sending.
// Choices keeps the stored comma-separated form; use Chosen to decode it.
type Answer struct {
	ID         string `json:"id"`
	SendingID  string `json:"sendingId"`
	PersonID   string `json:"personId"`
	QuestionID string `json:"questionId"`
	Choices    string `json:"choices"`
}

// Chosen decodes the stored option indices.
func (a Answer) Chosen() (IndexSet, error) {
	return ParseIndexSet(a.Choices)
}

// ReviewAnswer is free-text feedback, unrelated to scoring.
type ReviewAnswer struct {
	ID     string    `json:"id"`
	Review string    `json:"review"`
	Email  string    `json:"email,omitempty"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}
