// Package partition splits a module's question list into timed parts and
// maps between the flattened question index and passage-local coordinates.
package partition

import (
	"github.com/prepdesk/prepdesk/internal/content"
)

// Part is one timed sub-division of a module. ACT modules have a single part
// covering the whole module; SAT modules are split into two equal-time parts.
type Part struct {
	QuestionIDs     []string
	DurationSeconds int
}

// Split partitions questionIDs per category. SAT: two parts split at
// ceil(n/2), first part gets the larger or equal half, each with half the
// module duration (pre-divided). ACT: one part with the full duration.
func Split(category content.Category, questionIDs []string, durationMinutes int) []Part {
	if category == content.CategorySAT {
		n := len(questionIDs)
		cut := (n + 1) / 2
		half := durationMinutes * 60 / 2
		return []Part{
			{QuestionIDs: questionIDs[:cut], DurationSeconds: half},
			{QuestionIDs: questionIDs[cut:], DurationSeconds: half},
		}
	}
	return []Part{{QuestionIDs: questionIDs, DurationSeconds: durationMinutes * 60}}
}

// PassageMap converts between a module-relative flat question index and a
// (passageIndex, questionInPassage) pair. Both directions must agree for
// every valid index; the flat index is the canonical representation.
type PassageMap struct {
	counts  []int
	offsets []int
	total   int
}

// NewPassageMap takes per-passage question counts in passage order.
func NewPassageMap(counts []int) PassageMap {
	m := PassageMap{counts: counts, offsets: make([]int, len(counts))}
	for i, c := range counts {
		m.offsets[i] = m.total
		m.total += c
	}
	return m
}

// MapFor builds the passage map for one module of a definition.
func MapFor(def *content.TestDefinition, moduleType string) PassageMap {
	perPassage := map[string]int{}
	for _, q := range def.Questions {
		if q.ModuleType == moduleType && q.PassageID != "" {
			perPassage[q.PassageID]++
		}
	}
	passages := def.PassagesFor(moduleType)
	counts := make([]int, len(passages))
	for i, p := range passages {
		counts[i] = perPassage[p.ID]
	}
	return NewPassageMap(counts)
}

func (m PassageMap) Total() int { return m.total }

func (m PassageMap) Passages() int { return len(m.counts) }

// ToPassage maps a flat index to (passageIndex, questionInPassage).
func (m PassageMap) ToPassage(global int) (passage, question int, ok bool) {
	if global < 0 || global >= m.total {
		return 0, 0, false
	}
	for i := len(m.counts) - 1; i >= 0; i-- {
		if m.counts[i] > 0 && global >= m.offsets[i] {
			return i, global - m.offsets[i], true
		}
	}
	return 0, 0, false
}

// ToGlobal maps (passageIndex, questionInPassage) back to the flat index.
func (m PassageMap) ToGlobal(passage, question int) (int, bool) {
	if passage < 0 || passage >= len(m.counts) {
		return 0, false
	}
	if question < 0 || question >= m.counts[passage] {
		return 0, false
	}
	return m.offsets[passage] + question, true
}
