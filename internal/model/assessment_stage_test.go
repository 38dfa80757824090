package model

import "testing"

func TestStageStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to StageStatus
		want     bool
	}{
		{StagePending, StageInProgress, true},
		{StagePending, StageCompleted, true},
		{StagePending, StageCancelled, true},
		{StageInProgress, StagePending, false},
		{StageInProgress, StageNoShow, true},
		{StageInProgress, StageInProgress, true},
		{StageCompleted, StageInProgress, false},
		{StageCompleted, StageCancelled, false},
		{StageCancelled, StagePending, false},
		{StageNoShow, StageCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAttemptStatusTerminal(t *testing.T) {
	if AttemptInProgress.Terminal() {
		t.Fatal("IN_PROGRESS must not be terminal")
	}
	for _, s := range []AttemptStatus{AttemptCompleted, AttemptSubmitted, AttemptExpired, AttemptTerminated} {
		if !s.Terminal() || !s.Valid() {
			t.Fatalf("%s should be a valid terminal status", s)
		}
	}
	if AttemptStatus("PAUSED").Valid() {
		t.Fatal("unknown status accepted")
	}
}

func TestQuestionTypeValid(t *testing.T) {
	for _, q := range []QuestionType{QuestionMultipleChoice, QuestionTrueFalse, QuestionEssay, QuestionFillBlank} {
		if !q.Valid() {
			t.Fatalf("%s should be valid", q)
		}
	}
	if QuestionType("ORAL").Valid() || StageType("PHONE").Valid() {
		t.Fatal("unknown type accepted")
	}
}
