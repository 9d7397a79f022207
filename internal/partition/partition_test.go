package partition

import (
	"fmt"
	"testing"

	"github.com/prepdesk/prepdesk/internal/content"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("q%d", i+1)
	}
	return out
}

func TestSplitSAT(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10, 11, 20, 27, 44} {
		parts := Split(content.CategorySAT, ids(n), 60)
		if len(parts) != 2 {
			t.Fatalf("n=%d: got %d parts, want 2", n, len(parts))
		}
		first, second := len(parts[0].QuestionIDs), len(parts[1].QuestionIDs)
		if first+second != n {
			t.Errorf("n=%d: parts sum to %d", n, first+second)
		}
		if first != (n+1)/2 || second != n/2 {
			t.Errorf("n=%d: split %d/%d, want %d/%d", n, first, second, (n+1)/2, n/2)
		}
		if first < second {
			t.Errorf("n=%d: first part smaller than second", n)
		}
	}
}

func TestSplitACT(t *testing.T) {
	parts := Split(content.CategoryACT, ids(40), 35)
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	if len(parts[0].QuestionIDs) != 40 {
		t.Errorf("part size %d, want 40", len(parts[0].QuestionIDs))
	}
	if parts[0].DurationSeconds != 35*60 {
		t.Errorf("duration %d, want %d", parts[0].DurationSeconds, 35*60)
	}
}

// SAT Math, 20 questions, 60 minutes: two parts of 10, 30 minutes each.
func TestSplitSATMathScenario(t *testing.T) {
	parts := Split(content.CategorySAT, ids(20), 60)
	if len(parts) != 2 {
		t.Fatalf("got %d parts", len(parts))
	}
	for i, p := range parts {
		if len(p.QuestionIDs) != 10 {
			t.Errorf("part %d size %d, want 10", i+1, len(p.QuestionIDs))
		}
		if p.DurationSeconds != 1800 {
			t.Errorf("part %d duration %d, want 1800", i+1, p.DurationSeconds)
		}
	}
}

func TestPassageMapRoundTrip(t *testing.T) {
	cases := [][]int{
		{4, 3, 5},
		{1},
		{10, 10},
		{2, 0, 3}, // empty passage in the middle
		{5, 1, 1, 1},
	}
	for _, counts := range cases {
		m := NewPassageMap(counts)
		for g := 0; g < m.Total(); g++ {
			p, q, ok := m.ToPassage(g)
			if !ok {
				t.Fatalf("counts=%v: ToPassage(%d) not ok", counts, g)
			}
			back, ok := m.ToGlobal(p, q)
			if !ok || back != g {
				t.Errorf("counts=%v: %d -> (%d,%d) -> %d", counts, g, p, q, back)
			}
		}
		if _, _, ok := m.ToPassage(-1); ok {
			t.Errorf("counts=%v: ToPassage(-1) ok", counts)
		}
		if _, _, ok := m.ToPassage(m.Total()); ok {
			t.Errorf("counts=%v: ToPassage(total) ok", counts)
		}
	}
}

// ACT Reading with passages of 4, 3, 5 questions: global index 7 lands on
// passage 2 (0-based), first question.
func TestPassageMapReadingScenario(t *testing.T) {
	m := NewPassageMap([]int{4, 3, 5})
	p, q, ok := m.ToPassage(7)
	if !ok || p != 2 || q != 0 {
		t.Fatalf("ToPassage(7) = (%d,%d,%v), want (2,0,true)", p, q, ok)
	}
}

func TestMapForOrdersByPassagePosition(t *testing.T) {
	def := &content.TestDefinition{
		ID:       "t1",
		Category: content.CategoryACT,
		Modules:  []content.Module{{ID: "m-r", Type: "reading", Name: "Reading", DurationMinutes: 35}},
		Passages: []content.Passage{
			{ID: "p2", ModuleType: "reading", Position: 2},
			{ID: "p1", ModuleType: "reading", Position: 1},
		},
		Questions: []content.Question{
			{ID: "q3", ModuleType: "reading", Kind: content.KindMultipleChoice, PassageID: "p2", Position: 1},
			{ID: "q1", ModuleType: "reading", Kind: content.KindMultipleChoice, PassageID: "p1", Position: 1},
			{ID: "q2", ModuleType: "reading", Kind: content.KindMultipleChoice, PassageID: "p1", Position: 2},
		},
	}
	ordered := def.ModuleQuestions("reading")
	want := []string{"q1", "q2", "q3"}
	for i, q := range ordered {
		if q.ID != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, q.ID, want[i])
		}
	}
	m := MapFor(def, "reading")
	if m.Total() != 3 || m.Passages() != 2 {
		t.Fatalf("map total=%d passages=%d", m.Total(), m.Passages())
	}
	if g, ok := m.ToGlobal(1, 0); !ok || g != 2 {
		t.Errorf("ToGlobal(1,0) = %d, want 2", g)
	}
}
