package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizz-service/internal/app"
	"quizz-service/internal/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store persists quiz entities in Postgres. It implements app.Store,
// app.Catalog and the quiz loader used by the caches.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) PersonByEmail(ctx context.Context, email string) (domain.Person, error) {
	var p domain.Person
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, username, first_name, last_name FROM persons WHERE email=$1`, email).
		Scan(&p.ID, &p.Email, &p.Username, &p.FirstName, &p.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Person{}, domain.ErrUnknownIdentity
		}
		return domain.Person{}, fmt.Errorf("person by email: %w", err)
	}
	return p, nil
}

func (s *Store) PersonsByIDs(ctx context.Context, ids []string) ([]domain.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, username, first_name, last_name FROM persons WHERE id = ANY($1) ORDER BY email`, ids)
	if err != nil {
		return nil, fmt.Errorf("persons by ids: %w", err)
	}
	return scanPersons(rows)
}

func (s *Store) Profile(ctx context.Context, personID string) (domain.Profile, error) {
	profile := domain.Profile{PersonID: personID}
	err := s.pool.QueryRow(ctx, `SELECT dyslexic FROM profiles WHERE person_id=$1`, personID).
		Scan(&profile.Dyslexic)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, fmt.Errorf("profile: %w", err)
	}
	return profile, nil
}

// SetProfile replaces the profile of an existing person.
func (s *Store) SetProfile(ctx context.Context, profile domain.Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (person_id, dyslexic) VALUES ($1, $2)
		ON CONFLICT (person_id) DO UPDATE SET dyslexic = EXCLUDED.dyslexic`,
		profile.PersonID, profile.Dyslexic)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return domain.ErrUnknownIdentity
	}
	if err != nil {
		return fmt.Errorf("set profile: %w", err)
	}
	return nil
}

const sendingColumns = `id, quiz_id, group_id, date, end_date, started`

func (s *Store) SendingByDate(ctx context.Context, date time.Time) (domain.Sending, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sendingColumns+` FROM sendings
		WHERE date_trunc('minute', date) = date_trunc('minute', $1::timestamptz)`, date.UTC())
	return scanSending(row)
}

func (s *Store) SendingByID(ctx context.Context, id string) (domain.Sending, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sendingColumns+` FROM sendings WHERE id=$1`, id)
	return scanSending(row)
}

// GroupMembers returns the persons of a group ordered by email.
func (s *Store) GroupMembers(ctx context.Context, groupID string) ([]domain.Person, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id=$1)`, groupID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("group members: %w", err)
	}
	if !exists {
		return nil, domain.ErrGroupNotFound
	}
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.email, p.username, p.first_name, p.last_name
		FROM group_members gm JOIN persons p ON p.id = gm.person_id
		WHERE gm.group_id=$1 ORDER BY p.email`, groupID)
	if err != nil {
		return nil, fmt.Errorf("group members: %w", err)
	}
	return scanPersons(rows)
}

// Answers returns matching answers ordered by sending, person and question.
func (s *Store) Answers(ctx context.Context, filter app.AnswerFilter) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, sending_id, person_id, question_id, choices FROM answers
		WHERE ($1 = '' OR sending_id = $1)
		  AND ($2 = '' OR person_id = $2)
		  AND ($3 = '' OR question_id = $3)
		ORDER BY sending_id, person_id, question_id`,
		filter.SendingID, filter.PersonID, filter.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("answers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Answer, 0)
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.SendingID, &a.PersonID, &a.QuestionID, &a.Choices); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAnswer relies on the (sending, person, question) unique constraint, so
// concurrent submissions of the same answer insert exactly one row.
func (s *Store) InsertAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error) {
	answer.ID = uuid.NewString()
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO answers (id, sending_id, person_id, question_id, choices)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sending_id, person_id, question_id) DO NOTHING
		RETURNING id`,
		answer.ID, answer.SendingID, answer.PersonID, answer.QuestionID, answer.Choices).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Answer{}, domain.ErrDuplicateAnswer
		}
		return domain.Answer{}, fmt.Errorf("insert answer: %w", err)
	}
	return answer, nil
}

func (s *Store) InsertReview(ctx context.Context, review domain.ReviewAnswer) (domain.ReviewAnswer, error) {
	review.ID = uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_answers (id, review, email, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		review.ID, review.Review, review.Email, review.Text, review.At.UTC())
	if err != nil {
		return domain.ReviewAnswer{}, fmt.Errorf("insert review: %w", err)
	}
	return review, nil
}

// Reviews lists the stored feedback for a review identifier, oldest first.
func (s *Store) Reviews(ctx context.Context, review string) ([]domain.ReviewAnswer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, review, email, text, created_at FROM review_answers WHERE review=$1 ORDER BY created_at, id`, review)
	if err != nil {
		return nil, fmt.Errorf("reviews: %w", err)
	}
	defer rows.Close()
	var out []domain.ReviewAnswer
	for rows.Next() {
		var r domain.ReviewAnswer
		if err := rows.Scan(&r.ID, &r.Review, &r.Email, &r.Text, &r.At); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.At = r.At.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadQuiz loads a quiz with its questions in position order.
func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, random_question_order FROM quizzes WHERE id=$1`, quizID).
		Scan(&quiz.ID, &quiz.Name, &quiz.Slug, &quiz.RandomQuestionOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT q.id, q.statement, q.slug, q.answers, q.correct_answers, q.auto_evaluation
		FROM quiz_questions qq JOIN questions q ON q.id = qq.question_id
		WHERE qq.quiz_id=$1 ORDER BY qq.position`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz questions: %w", err)
	}
	defer rows.Close()
	quiz.Questions = make([]domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return domain.Quiz{}, err
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz, rows.Err()
}

func (s *Store) CreatePerson(ctx context.Context, person domain.Person, profile domain.Profile) (domain.Person, error) {
	person.ID = uuid.NewString()
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO persons (id, email, username, first_name, last_name) VALUES ($1, $2, $3, $4, $5)`,
			person.ID, person.Email, person.Username, person.FirstName, person.LastName); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO profiles (person_id, dyslexic) VALUES ($1, $2)`, person.ID, profile.Dyslexic)
		return err
	})
	if err != nil {
		return domain.Person{}, mapCreateErr("create person", err)
	}
	return person, nil
}

func (s *Store) CreateGroup(ctx context.Context, group domain.Group) (domain.Group, error) {
	group.ID = uuid.NewString()
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO groups (id, name, slug) VALUES ($1, $2, $3)`,
			group.ID, group.Name, group.Slug); err != nil {
			return err
		}
		for _, personID := range group.PersonIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO group_members (group_id, person_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				group.ID, personID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.Group{}, domain.ErrUnknownIdentity
		}
		return domain.Group{}, mapCreateErr("create group", err)
	}
	group.PersonIDs = append([]string(nil), group.PersonIDs...)
	return group, nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	questions := make([]domain.Question, 0, len(quiz.Questions))
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, q := range quiz.Questions {
			if q.ID != "" {
				row := tx.QueryRow(ctx,
					`SELECT id, statement, slug, answers, correct_answers, auto_evaluation FROM questions WHERE id=$1`, q.ID)
				existing, err := scanQuestion(row)
				if errors.Is(err, pgx.ErrNoRows) {
					return domain.ErrQuestionNotFound
				}
				if err != nil {
					return err
				}
				questions = append(questions, existing)
				continue
			}
			if err := q.Validate(); err != nil {
				return err
			}
			q.ID = uuid.NewString()
			if _, err := tx.Exec(ctx,
				`INSERT INTO questions (id, statement, slug, answers, correct_answers, auto_evaluation)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				q.ID, q.Statement, q.Slug, q.Answers, q.CorrectAnswers.String(), q.AutoEvaluation); err != nil {
				return err
			}
			questions = append(questions, q)
		}

		quiz.ID = uuid.NewString()
		if _, err := tx.Exec(ctx,
			`INSERT INTO quizzes (id, name, slug, random_question_order) VALUES ($1, $2, $3, $4)`,
			quiz.ID, quiz.Name, quiz.Slug, quiz.RandomQuestionOrder); err != nil {
			return err
		}
		for i, q := range questions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO quiz_questions (quiz_id, question_id, position) VALUES ($1, $2, $3)`,
				quiz.ID, q.ID, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Quiz{}, mapCreateErr("create quiz", err)
	}
	quiz.Questions = questions
	return quiz, nil
}

func (s *Store) CreateSending(ctx context.Context, sending domain.Sending) (domain.Sending, error) {
	if sending.EndDate.IsZero() {
		sending.EndDate = domain.DefaultEndDate
	}
	sending.ID = uuid.NewString()
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var quizExists, groupExists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM quizzes WHERE id=$1), EXISTS (SELECT 1 FROM groups WHERE id=$2)`,
			sending.QuizID, sending.GroupID).Scan(&quizExists, &groupExists); err != nil {
			return err
		}
		if !quizExists {
			return domain.ErrQuizNotFound
		}
		if !groupExists {
			return domain.ErrGroupNotFound
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO sendings (`+sendingColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			sending.ID, sending.QuizID, sending.GroupID, sending.Date.UTC(), sending.EndDate.UTC(), sending.Started)
		return err
	})
	if err != nil {
		return domain.Sending{}, mapCreateErr("create sending", err)
	}
	return sending.WithMemo(), nil
}

// DeleteSending removes a sending; its answers go with it through ON DELETE CASCADE.
func (s *Store) DeleteSending(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sendings WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete sending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSendingNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func mapCreateErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	if errors.Is(err, domain.ErrQuizNotFound) || errors.Is(err, domain.ErrGroupNotFound) ||
		errors.Is(err, domain.ErrQuestionNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanPersons(rows pgx.Rows) ([]domain.Person, error) {
	defer rows.Close()
	out := make([]domain.Person, 0)
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.Email, &p.Username, &p.FirstName, &p.LastName); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanSending(row pgx.Row) (domain.Sending, error) {
	var sending domain.Sending
	err := row.Scan(&sending.ID, &sending.QuizID, &sending.GroupID, &sending.Date, &sending.EndDate, &sending.Started)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Sending{}, domain.ErrSendingNotFound
		}
		return domain.Sending{}, fmt.Errorf("scan sending: %w", err)
	}
	sending.Date = sending.Date.UTC()
	sending.EndDate = sending.EndDate.UTC()
	return sending.WithMemo(), nil
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q       domain.Question
		correct string
	)
	if err := row.Scan(&q.ID, &q.Statement, &q.Slug, &q.Answers, &correct, &q.AutoEvaluation); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, err
		}
		return domain.Question{}, fmt.Errorf("scan question: %w", err)
	}
	set, err := domain.ParseIndexSet(correct)
	if err != nil {
		return domain.Question{}, fmt.Errorf("question %s correct answers: %w", q.ID, err)
	}
	q.CorrectAnswers = set
	return q, nil
}
