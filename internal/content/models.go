package content

import "sort"

type Category string

const (
	CategorySAT Category = "SAT"
	CategoryACT Category = "ACT"
)

const (
	KindMultipleChoice = "multiple_choice"
	KindTextInput      = "text_input"
)

type Option struct {
	ID        string `json:"id"`
	LabelHTML string `json:"label_html,omitempty"`
	IsCorrect bool   `json:"is_correct,omitempty"`
}

type Question struct {
	ID         string `json:"id"`
	ModuleType string `json:"module_type"`
	Kind       string `json:"kind"` // multiple_choice | text_input
	PromptHTML string `json:"prompt_html,omitempty"`

	// Ordering: implied by passage + position when PassageID is set,
	// else explicit QuestionNumber.
	QuestionNumber int    `json:"question_number,omitempty"`
	PassageID      string `json:"passage_id,omitempty"`
	Position       int    `json:"position,omitempty"` // within its passage

	Options []Option `json:"options,omitempty"`
	// Semicolon-separated accepted strings, for text_input.
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

type Passage struct {
	ID          string `json:"id"`
	ModuleType  string `json:"module_type"`
	Position    int    `json:"position"`
	ContentHTML string `json:"content_html,omitempty"`
}

type Module struct {
	ID              string `json:"id"`
	Type            string `json:"type"` // english | math | reading | science | writing | ...
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Essay reports whether the module is a free-text writing module that is
// graded manually rather than auto-scored.
func (m Module) Essay() bool {
	return m.Type == "writing" || m.Type == "essay"
}

type ScaledScoreEntry struct {
	ModuleID       string `json:"module_id"` // or "overall" for the composite table
	CorrectAnswers int    `json:"correct_answers"`
	ScaledScore    int    `json:"scaled_score"`
}

// TestDefinition is immutable after load. Never mutated by the runtime.
type TestDefinition struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Category     Category           `json:"category"`
	Modules      []Module           `json:"modules"`
	Questions    []Question         `json:"questions"`
	Passages     []Passage          `json:"passages,omitempty"`
	ScaledScores []ScaledScoreEntry `json:"scaled_scores,omitempty"`
}

// ModuleByType returns the module with the given type, if present.
func (d *TestDefinition) ModuleByType(typ string) (Module, bool) {
	for _, m := range d.Modules {
		if m.Type == typ {
			return m, true
		}
	}
	return Module{}, false
}

// PassagesFor returns the module's passages ordered by position.
func (d *TestDefinition) PassagesFor(typ string) []Passage {
	var out []Passage
	for _, p := range d.Passages {
		if p.ModuleType == typ {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ModuleQuestions returns the module's questions in delivery order: each
// passage's questions in passage order, then passage-less questions by
// question number.
func (d *TestDefinition) ModuleQuestions(typ string) []Question {
	byPassage := map[string][]Question{}
	var loose []Question
	for _, q := range d.Questions {
		if q.ModuleType != typ {
			continue
		}
		if q.PassageID != "" {
			byPassage[q.PassageID] = append(byPassage[q.PassageID], q)
		} else {
			loose = append(loose, q)
		}
	}
	var out []Question
	for _, p := range d.PassagesFor(typ) {
		qs := byPassage[p.ID]
		sort.Slice(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
		out = append(out, qs...)
	}
	sort.Slice(loose, func(i, j int) bool { return loose[i].QuestionNumber < loose[j].QuestionNumber })
	return append(out, loose...)
}

// StudentView returns a copy with answer keys stripped.
func (d *TestDefinition) StudentView() *TestDefinition {
	cp := *d
	cp.Questions = make([]Question, len(d.Questions))
	copy(cp.Questions, d.Questions)
	for i := range cp.Questions {
		cp.Questions[i].CorrectAnswer = ""
		if len(cp.Questions[i].Options) > 0 {
			opts := make([]Option, len(cp.Questions[i].Options))
			copy(opts, cp.Questions[i].Options)
			for j := range opts {
				opts[j].IsCorrect = false
			}
			cp.Questions[i].Options = opts
		}
	}
	return &cp
}
