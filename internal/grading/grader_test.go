package grading

import (
	"errors"
	"testing"

	"quizz-service/internal/domain"
)

func multipleChoiceQuestion(t *testing.T, correct ...int) domain.Question {
	t.Helper()
	q, err := domain.NewQuestion("Which are prime?", []string{"2", "3", "4", "6"}, correct...)
	if err != nil {
		t.Fatalf("new question: %v", err)
	}
	return q
}

func TestMultipleChoiceScores(t *testing.T) {
	q := multipleChoiceQuestion(t, 0, 1)
	cases := []struct {
		name    string
		choices string
		want    float64
	}{
		{name: "exact match", choices: "0,1", want: 1},
		{name: "one missed", choices: "0", want: 0.5},
		{name: "one missed one wrong", choices: "0,2", want: 0},
		{name: "all wrong clamps to zero", choices: "2,3", want: 0},
		{name: "superset", choices: "0,1,2", want: 0.5},
		{name: "no opinion", choices: "4", want: 0},
		{name: "empty", choices: "", want: 0},
	}
	for _, tc := range cases {
		got, err := Score(q, domain.Answer{Choices: tc.choices})
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestSingleCorrectDisjointChoiceIsZero(t *testing.T) {
	q := multipleChoiceQuestion(t, 1)
	got, err := Score(q, domain.Answer{Choices: "0,2,3"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected clamped 0, got %v", got)
	}
}

func TestSelfEvaluationScores(t *testing.T) {
	q := domain.NewSelfEvaluationQuestion("I can write table tests")
	cases := map[string]float64{
		"":    0,
		"0":   0,
		"1":   0.5,
		"2":   1,
		"3":   1,
		"0,3": 1,
	}
	for choices, want := range cases {
		got, err := Score(q, domain.Answer{Choices: choices})
		if err != nil {
			t.Fatalf("%q: unexpected error %v", choices, err)
		}
		if got != want {
			t.Fatalf("%q: expected %v, got %v", choices, want, got)
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	q := multipleChoiceQuestion(t, 0, 3)
	a := domain.Answer{Choices: "0,1"}
	first, _ := Score(q, a)
	for i := 0; i < 50; i++ {
		if got, _ := Score(q, a); got != first {
			t.Fatalf("score changed between calls: %v != %v", got, first)
		}
	}
}

func TestScoreReportsInvalidAndMalformedAnswers(t *testing.T) {
	q := multipleChoiceQuestion(t, 0)
	if _, err := Score(q, domain.Answer{Choices: "9"}); !errors.Is(err, domain.ErrInvalidAnswer) {
		t.Fatalf("expected invalid answer, got %v", err)
	}
	if _, err := Score(q, domain.Answer{Choices: "x"}); !errors.Is(err, domain.ErrMalformedIndexList) {
		t.Fatalf("expected malformed list, got %v", err)
	}
}
