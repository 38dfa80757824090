package service

import (
	"encoding/json"
	"testing"
)

func TestAnswersMatch(t *testing.T) {
	cases := []struct {
		name      string
		submitted string
		correct   string
		want      bool
	}{
		{"string ignores case and space", `"  Goroutine "`, `"goroutine"`, true},
		{"string mismatch", `"thread"`, `"goroutine"`, false},
		{"bool", `true`, `true`, true},
		{"bool mismatch", `false`, `true`, false},
		{"number", `4`, `4`, true},
		{"set ignores order", `["b","A"]`, `["a","b"]`, true},
		{"set size differs", `["a"]`, `["a","b"]`, false},
		{"type mismatch", `"4"`, `4`, false},
		{"no correct answer", `"x"`, ``, false},
		{"null correct answer", `"x"`, `null`, false},
		{"empty submission", ``, `"x"`, false},
		{"invalid submission", `{`, `"x"`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AnswersMatch(json.RawMessage(tc.submitted), json.RawMessage(tc.correct))
			if got != tc.want {
				t.Fatalf("AnswersMatch(%s, %s) = %v, want %v", tc.submitted, tc.correct, got, tc.want)
			}
		})
	}
}
