package session

import (
	"github.com/prepdesk/prepdesk/internal/attempt"
)

// ModuleProgress is the module-selection badge data: completion plus how many
// of the module's questions have answers.
type ModuleProgress struct {
	ModuleID  string `json:"module_id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Parts     int    `json:"parts"`
	Completed bool   `json:"completed"`
	Answered  int    `json:"answered"`
	Total     int    `json:"total"`
}

// View is the client-facing projection of the session. Passage coordinates
// are derived from the canonical flat index.
type View struct {
	AttemptID string `json:"attempt_id,omitempty"`
	Phase     Phase  `json:"phase"`

	ModuleType string `json:"module_type,omitempty"`
	Part       int    `json:"part,omitempty"`
	PartCount  int    `json:"part_count,omitempty"`

	GlobalIndex       int    `json:"global_index"`
	PartStart         int    `json:"part_start"`
	PartEnd           int    `json:"part_end"`
	CurrentQuestionID string `json:"current_question_id,omitempty"`
	PassageIndex      int    `json:"passage_index"`       // -1 when not passage-backed
	QuestionInPassage int    `json:"question_in_passage"` // -1 when not passage-backed

	TimeLeftSeconds int  `json:"time_left_seconds"`
	TimerRunning    bool `json:"timer_running"`
	TimeExpired     bool `json:"time_expired"`

	Flagged    []string            `json:"flagged,omitempty"`
	CrossedOut map[string][]string `json:"crossed_out,omitempty"`
	Answers    map[string]string   `json:"answers,omitempty"`

	Modules    []ModuleProgress      `json:"modules"`
	LastResult *attempt.ModuleResult `json:"last_result,omitempty"`
}

func (r *Runtime) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		AttemptID:         r.attemptID,
		Phase:             r.state.Phase,
		ModuleType:        r.state.ModuleType,
		Part:              r.state.Part,
		GlobalIndex:       r.state.GlobalIndex,
		PassageIndex:      -1,
		QuestionInPassage: -1,
		TimerRunning:      r.state.TimerRunning,
		TimeExpired:       r.state.TimeExpired,
		LastResult:        r.lastScored,
	}

	if r.state.ModuleType != "" {
		v.PartCount = len(r.parts[r.state.ModuleType])
		v.PartStart, v.PartEnd = r.partBounds(r.state.ModuleType, r.state.Part)
		v.TimeLeftSeconds = r.state.TimeLeft[PartKey(r.state.ModuleType, r.state.Part)]
		qs := r.order[r.state.ModuleType]
		if r.state.GlobalIndex >= 0 && r.state.GlobalIndex < len(qs) {
			v.CurrentQuestionID = qs[r.state.GlobalIndex].ID
		}
		if pm := r.pmaps[r.state.ModuleType]; pm.Total() > 0 {
			if p, q, ok := pm.ToPassage(r.state.GlobalIndex); ok {
				v.PassageIndex, v.QuestionInPassage = p, q
			}
		}
	}

	for id := range r.state.Flagged {
		v.Flagged = append(v.Flagged, id)
	}
	if len(r.state.CrossedOut) > 0 {
		v.CrossedOut = make(map[string][]string, len(r.state.CrossedOut))
		for k, ids := range r.state.CrossedOut {
			v.CrossedOut[k] = append([]string(nil), ids...)
		}
	}
	v.Answers = make(map[string]string, len(r.answers))
	for k, val := range r.answers {
		v.Answers[k] = val
	}

	for _, m := range r.def.Modules {
		answered := 0
		for _, q := range r.order[m.Type] {
			if _, ok := r.answers[q.ID]; ok {
				answered++
			}
		}
		v.Modules = append(v.Modules, ModuleProgress{
			ModuleID:  m.ID,
			Type:      m.Type,
			Name:      m.Name,
			Parts:     len(r.parts[m.Type]),
			Completed: r.state.Completed[m.Type],
			Answered:  answered,
			Total:     len(r.order[m.Type]),
		})
	}
	return v
}
