package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quizz-service/internal/app"
	"quizz-service/internal/domain"
	"quizz-service/internal/infra/memory"
)

const token = "2024-01-01--10-00"

type env struct {
	server *httptest.Server
	store  *memory.Store
	quiz   domain.Quiz
	a, b   domain.Person
}

// newEnv serves a two-question quiz sent to a@ and b@ from 10:00 to 11:00 on
// 2024-01-01, with the clock at 10:05. c@ exists but is not in the group.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	q1, err := domain.NewQuestion("Capital of France?", []string{"Paris", "Lyon", "Nice"}, 0)
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	quiz, err := store.CreateQuiz(ctx, domain.NewQuiz("Geography", false, q1, domain.NewSelfEvaluationQuestion("I know my capitals")))
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	group, persons, err := app.Enroll(ctx, store, "Class A", "a@example.com", "b@example.com")
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, _, err := app.Enroll(ctx, store, "Class B", "c@example.com"); err != nil {
		t.Fatalf("enroll outsider: %v", err)
	}
	sending := domain.NewSending(quiz.ID, group.ID, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	sending.EndDate = time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	sending.Started = true
	if _, err := store.CreateSending(ctx, sending); err != nil {
		t.Fatalf("create sending: %v", err)
	}

	now := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	service := app.NewQuizService(store, memory.NewQuizRepository(store, time.Minute),
		app.WithClock(func() time.Time { return now }))
	server := httptest.NewServer(NewRouter(service, 5*time.Second))
	t.Cleanup(server.Close)
	return &env{server: server, store: store, quiz: quiz, a: persons[0], b: persons[1]}
}

func (e *env) postAnswer(t *testing.T, email, questionID string, options ...int) (int, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"email": email, "question_id": questionID, "options": options})
	return e.do(t, http.MethodPost, "/sendings/"+token+"/answers", body)
}

func (e *env) do(t *testing.T, method, path string, body []byte) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestSubmitAnswerStatuses(t *testing.T) {
	e := newEnv(t)
	q1, q2 := e.quiz.Questions[0].ID, e.quiz.Questions[1].ID

	cases := []struct {
		name     string
		email    string
		question string
		options  []int
		want     int
	}{
		{"accepted", "a@example.com", q1, []int{0}, http.StatusCreated},
		{"duplicate", "a@example.com", q1, []int{1}, http.StatusConflict},
		{"unknown email", "nobody@example.com", q1, []int{0}, http.StatusNotFound},
		{"outside group", "c@example.com", q1, []int{0}, http.StatusForbidden},
		{"unknown question", "a@example.com", "missing", []int{0}, http.StatusNotFound},
		{"no option", "b@example.com", q2, nil, http.StatusBadRequest},
		{"option out of range", "b@example.com", q2, []int{4}, http.StatusUnprocessableEntity},
		{"invalid email", "not-an-email", q1, []int{0}, http.StatusBadRequest},
		{"self evaluation", "b@example.com", q2, []int{2}, http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := e.postAnswer(t, tc.email, tc.question, tc.options...)
			if status != tc.want {
				t.Fatalf("expected %d, got %d (%v)", tc.want, status, body)
			}
			if status >= 400 && body["error"] == "" {
				t.Fatalf("expected error message in %v", body)
			}
		})
	}
}

func TestSubmitAnswerRejectsUnknownSendingAndBadJSON(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(map[string]any{"email": "a@example.com", "question_id": e.quiz.Questions[0].ID, "options": []int{0}})
	if status, _ := e.do(t, http.MethodPost, "/sendings/2024-01-02--10-00/answers", body); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sending, got %d", status)
	}
	if status, _ := e.do(t, http.MethodPost, "/sendings/not-a-date/answers", body); status != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed token, got %d", status)
	}
	if status, _ := e.do(t, http.MethodPost, "/sendings/"+token+"/answers", []byte("{")); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", status)
	}
}

func TestSubmitAnswerToClosedSending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	closed := domain.NewSending(e.quiz.ID, mustSending(t, e).GroupID, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	closed.EndDate = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	if _, err := e.store.CreateSending(ctx, closed); err != nil {
		t.Fatalf("create sending: %v", err)
	}
	body, _ := json.Marshal(map[string]any{"email": "a@example.com", "question_id": e.quiz.Questions[0].ID, "options": []int{0}})
	if status, _ := e.do(t, http.MethodPost, "/sendings/2024-01-01--08-00/answers", body); status != http.StatusGone {
		t.Fatalf("expected 410, got %d", status)
	}
}

func mustSending(t *testing.T, e *env) domain.Sending {
	t.Helper()
	sending, err := e.store.SendingByDate(context.Background(), time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("sending: %v", err)
	}
	return sending
}

func TestNextQuestionFlow(t *testing.T) {
	e := newEnv(t)

	resp, err := http.Get(e.server.URL + "/sendings/" + token + "/next?email=a@example.com")
	if err != nil {
		t.Fatalf("get next: %v", err)
	}
	var next app.NextQuestion
	if err := json.NewDecoder(resp.Body).Decode(&next); err != nil {
		t.Fatalf("decode next: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if next.Completed || next.Question.ID != e.quiz.Questions[0].ID {
		t.Fatalf("expected first question of fixed-order quiz, got %+v", next)
	}
	if !next.Question.CorrectAnswers.Empty() {
		t.Fatalf("correct answers leaked to respondent: %v", next.Question.CorrectAnswers)
	}
	if got := strings.Join(next.Options, "|"); got != "Paris|Lyon|Nice|"+domain.NoOpinion {
		t.Fatalf("unexpected options %q", got)
	}

	e.postAnswer(t, "a@example.com", e.quiz.Questions[0].ID, 0)
	e.postAnswer(t, "a@example.com", e.quiz.Questions[1].ID, 3)

	status, body := e.do(t, http.MethodGet, "/sendings/"+token+"/next?email=a@example.com", nil)
	if status != http.StatusOK || body["completed"] != true {
		t.Fatalf("expected completed, got %d %v", status, body)
	}

	if status, _ := e.do(t, http.MethodGet, "/sendings/"+token+"/next", nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without email, got %d", status)
	}
}

func TestStatisticsAndExport(t *testing.T) {
	e := newEnv(t)
	e.postAnswer(t, "a@example.com", e.quiz.Questions[0].ID, 0)
	e.postAnswer(t, "b@example.com", e.quiz.Questions[0].ID, 1)

	resp, err := http.Get(e.server.URL + "/sendings/" + token + "/statistics")
	if err != nil {
		t.Fatalf("get statistics: %v", err)
	}
	var stats app.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode statistics: %v", err)
	}
	resp.Body.Close()
	if stats.NbQuestions != 2 || stats.NbPersons != 2 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.Progress.Value != 2 || stats.Progress.Max != 4 {
		t.Fatalf("expected progress 2/4, got %+v", stats.Progress)
	}
	if stats.HistogramVisible {
		t.Fatalf("histogram must stay hidden while the sending is open")
	}

	resp, err = http.Get(e.server.URL + "/sendings/" + token + "/export.csv")
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	want := "name,score,max\na,1.00,2\nb,0.00,2\n"
	if string(raw) != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", raw, want)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	e := newEnv(t)
	e.postAnswer(t, "a@example.com", e.quiz.Questions[0].ID, 0)

	resp, err := http.Get(e.server.URL + "/persons/a@example.com/history")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer resp.Body.Close()
	var history []app.SendingHistory
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Sending != token {
		t.Fatalf("unexpected history %+v", history)
	}
	total := history[0].Entries[0]
	if !total.Total || total.Value != 1 || total.Max != 2 {
		t.Fatalf("unexpected total entry %+v", total)
	}

	if status, _ := e.do(t, http.MethodGet, "/persons/nobody@example.com/history", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown person, got %d", status)
	}
}

func TestSubmitReview(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(map[string]string{"email": "a@example.com", "text": "Great session"})
	status, out := e.do(t, http.MethodPost, "/reviews/week-1", body)
	if status != http.StatusCreated || out["text"] != "Great session" {
		t.Fatalf("expected 201, got %d %v", status, out)
	}

	blank, _ := json.Marshal(map[string]string{"text": "   "})
	if status, _ := e.do(t, http.MethodPost, "/reviews/week-1", blank); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank review, got %d", status)
	}

	reviews, err := e.store.Reviews(context.Background(), "week-1")
	if err != nil {
		t.Fatalf("reviews: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("expected 1 stored review, got %d", len(reviews))
	}
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
