// Package scoring grades answers against question keys and maps raw correct
// counts to scaled scores via per-module lookup tables.
package scoring

import (
	"math"
	"strings"

	"github.com/prepdesk/prepdesk/internal/content"
)

// Correct reports whether the answer is correct for an auto-scored question.
// multiple_choice: the answer must equal the id of the correct option.
// text_input: case-insensitive, trimmed match against any of the
// semicolon-separated accepted strings.
func Correct(q content.Question, answer string) bool {
	switch q.Kind {
	case content.KindMultipleChoice:
		for _, opt := range q.Options {
			if opt.IsCorrect {
				return answer == opt.ID
			}
		}
		return false
	case content.KindTextInput:
		got := strings.ToLower(strings.TrimSpace(answer))
		if got == "" {
			return false
		}
		for _, accepted := range strings.Split(q.CorrectAnswer, ";") {
			if got == strings.ToLower(strings.TrimSpace(accepted)) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// RawScore counts correct answers for a module's question set. Unanswered
// questions count toward total only.
func RawScore(questions []content.Question, answers map[string]string) (score, total int) {
	total = len(questions)
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok && Correct(q, a) {
			score++
		}
	}
	return score, total
}

// EssayScore produces the synthetic result for a manually-graded module:
// 1/1 once any non-empty answer exists for the module's questions, 0/1
// otherwise.
func EssayScore(questions []content.Question, answers map[string]string) (score, total int) {
	for _, q := range questions {
		if strings.TrimSpace(answers[q.ID]) != "" {
			return 1, 1
		}
	}
	return 0, 1
}

// OverallModuleID keys the optional module-agnostic table used for composite
// scores.
const OverallModuleID = "overall"

// LookupScaled resolves a raw correct count against the module's table
// entries. Prefers an exact match; otherwise floors to the entry with the
// greatest correctAnswers strictly below the count (never rounds up); with
// nothing below, falls back to the lowest entry present. Returns false only
// when the module has no entries at all.
func LookupScaled(entries []content.ScaledScoreEntry, moduleID string, correct int) (int, bool) {
	var floor, lowest *content.ScaledScoreEntry
	for i := range entries {
		e := &entries[i]
		if e.ModuleID != moduleID {
			continue
		}
		if e.CorrectAnswers == correct {
			return e.ScaledScore, true
		}
		if e.CorrectAnswers < correct && (floor == nil || e.CorrectAnswers > floor.CorrectAnswers) {
			floor = e
		}
		if lowest == nil || e.CorrectAnswers < lowest.CorrectAnswers {
			lowest = e
		}
	}
	if floor != nil {
		return floor.ScaledScore, true
	}
	if lowest != nil {
		return lowest.ScaledScore, true
	}
	return 0, false
}

// ModuleScaled pairs a module with its scaled score for composite math.
type ModuleScaled struct {
	ModuleType  string
	ScaledScore int
}

// Composite combines module scaled scores into a test-level score.
// SAT: sum of module scaled scores. ACT: average of the English, Math and
// Reading scaled scores, rounded to the nearest integer.
func Composite(category content.Category, modules []ModuleScaled) int {
	if category == content.CategoryACT {
		sum, n := 0, 0
		for _, m := range modules {
			switch strings.ToLower(m.ModuleType) {
			case "english", "math", "reading":
				sum += m.ScaledScore
				n++
			}
		}
		if n == 0 {
			return 0
		}
		return int(math.Round(float64(sum) / float64(n)))
	}
	sum := 0
	for _, m := range modules {
		sum += m.ScaledScore
	}
	return sum
}
