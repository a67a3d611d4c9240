package cmd

import (
	"reflect"
	"testing"

	"github.com/abhisek/mabquiz/internal/selection"
)

func TestParseCandidates(t *testing.T) {
	got := parseCandidates([]string{"q1", "q2@pharm:dosage:calc", " q3 @ t3 "})
	want := []selection.Candidate{
		{QuestionID: "q1"},
		{QuestionID: "q2", TopicKey: "pharm:dosage:calc"},
		{QuestionID: "q3", TopicKey: "t3"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
