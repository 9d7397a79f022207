package scoring

import (
	"testing"

	"github.com/prepdesk/prepdesk/internal/content"
)

func mcq(id, correctOpt string) content.Question {
	return content.Question{
		ID:   id,
		Kind: content.KindMultipleChoice,
		Options: []content.Option{
			{ID: "a"},
			{ID: "b", IsCorrect: correctOpt == "b"},
			{ID: "c", IsCorrect: correctOpt == "c"},
			{ID: "d"},
		},
	}
}

func TestCorrectMultipleChoice(t *testing.T) {
	q := mcq("q1", "c")
	if !Correct(q, "c") {
		t.Error("correct option id not accepted")
	}
	if Correct(q, "a") || Correct(q, "") {
		t.Error("wrong option accepted")
	}
}

func TestCorrectTextInput(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		answer string
		want   bool
	}{
		{"exact", "42", "42", true},
		{"trimmed upper", "Paris; paris ", "  PARIS", true},
		{"second accepted form", "1/2;0.5", "0.5", true},
		{"whitespace only", "x", "   ", false},
		{"wrong", "Paris", "London", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := content.Question{ID: "q", Kind: content.KindTextInput, CorrectAnswer: tc.key}
			if got := Correct(q, tc.answer); got != tc.want {
				t.Errorf("Correct(%q vs %q) = %v, want %v", tc.answer, tc.key, got, tc.want)
			}
		})
	}
}

func TestRawScore(t *testing.T) {
	qs := []content.Question{mcq("q1", "b"), mcq("q2", "c"), mcq("q3", "b")}
	answers := map[string]string{"q1": "b", "q2": "a"} // q3 unanswered
	score, total := RawScore(qs, answers)
	if score != 1 || total != 3 {
		t.Fatalf("RawScore = %d/%d, want 1/3", score, total)
	}
}

func TestEssayScore(t *testing.T) {
	qs := []content.Question{{ID: "e1", Kind: content.KindTextInput}}
	if s, tot := EssayScore(qs, map[string]string{}); s != 0 || tot != 1 {
		t.Errorf("unanswered essay = %d/%d, want 0/1", s, tot)
	}
	if s, tot := EssayScore(qs, map[string]string{"e1": "   "}); s != 0 || tot != 1 {
		t.Errorf("blank essay = %d/%d, want 0/1", s, tot)
	}
	if s, tot := EssayScore(qs, map[string]string{"e1": "a long response"}); s != 1 || tot != 1 {
		t.Errorf("answered essay = %d/%d, want 1/1", s, tot)
	}
}

func TestLookupScaledFloorRule(t *testing.T) {
	table := []content.ScaledScoreEntry{
		{ModuleID: "m", CorrectAnswers: 0, ScaledScore: 200},
		{ModuleID: "m", CorrectAnswers: 5, ScaledScore: 500},
		{ModuleID: "m", CorrectAnswers: 10, ScaledScore: 800},
		{ModuleID: "other", CorrectAnswers: 7, ScaledScore: 777},
	}
	tests := []struct {
		correct int
		want    int
	}{
		{7, 500},  // floors to 5, never rounds up
		{10, 800}, // exact
		{0, 200},
		{12, 800},
	}
	for _, tc := range tests {
		got, ok := LookupScaled(table, "m", tc.correct)
		if !ok || got != tc.want {
			t.Errorf("LookupScaled(m, %d) = %d,%v, want %d", tc.correct, got, ok, tc.want)
		}
	}
}

func TestLookupScaledLowestFallback(t *testing.T) {
	// No 0-entry: counts below every bucket fall back to the lowest present.
	table := []content.ScaledScoreEntry{
		{ModuleID: "m", CorrectAnswers: 5, ScaledScore: 500},
		{ModuleID: "m", CorrectAnswers: 10, ScaledScore: 800},
	}
	got, ok := LookupScaled(table, "m", 0)
	if !ok || got != 500 {
		t.Fatalf("LookupScaled(m, 0) = %d,%v, want 500", got, ok)
	}
	if _, ok := LookupScaled(table, "missing", 3); ok {
		t.Error("lookup against absent module table should fail")
	}
}

func TestCompositeSAT(t *testing.T) {
	got := Composite(content.CategorySAT, []ModuleScaled{
		{ModuleType: "reading", ScaledScore: 650},
		{ModuleType: "math", ScaledScore: 700},
	})
	if got != 1350 {
		t.Fatalf("SAT composite = %d, want 1350", got)
	}
}

func TestCompositeACT(t *testing.T) {
	got := Composite(content.CategoryACT, []ModuleScaled{
		{ModuleType: "english", ScaledScore: 24},
		{ModuleType: "math", ScaledScore: 27},
		{ModuleType: "reading", ScaledScore: 26},
		{ModuleType: "science", ScaledScore: 30}, // not in the ACT average
	})
	// (24+27+26)/3 = 25.67 -> 26
	if got != 26 {
		t.Fatalf("ACT composite = %d, want 26", got)
	}
}
