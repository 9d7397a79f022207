// Package session owns the exam-session state machine: module/part selection,
// the question pointer, per-part countdown timers and module completion. One
// Runtime exists per live (user, test) pair; the durable attempt record is the
// source of truth across reconnects.
package session

import "strconv"

type Phase string

const (
	PhaseModuleSelect   Phase = "module_select"
	PhaseInProgress     Phase = "in_progress"
	PhasePartTransition Phase = "part_transition"
	PhaseModuleScored   Phase = "module_scored"
	PhaseSubmitted      Phase = "submitted"
)

// State is the serializable session state. The flat question index is the
// canonical position; passage coordinates are always derived from it. The
// attempt's answer map is not part of this value: answers live on the attempt
// record and merge there.
type State struct {
	Phase      Phase  `json:"phase"`
	ModuleType string `json:"module_type,omitempty"`
	// Part is 1-based; 2 only exists for SAT modules.
	Part        int `json:"part,omitempty"`
	GlobalIndex int `json:"global_index"`

	// TimeLeft maps partKey -> remaining seconds. Entries persist across
	// module switches so re-entering a part never extends its clock.
	TimeLeft     map[string]int `json:"time_left,omitempty"`
	TimerRunning bool           `json:"timer_running,omitempty"`
	// TimeExpired flags that the current part's clock hit zero. It is a
	// notification, not a lock: the student keeps control.
	TimeExpired bool `json:"time_expired,omitempty"`

	Completed  map[string]bool     `json:"completed_modules,omitempty"`
	Flagged    map[string]bool     `json:"flagged,omitempty"`
	CrossedOut map[string][]string `json:"crossed_out,omitempty"`

	// LastIndex maps partKey -> last question index the student was on, used
	// to resume mid-part instead of restarting at the part's first question.
	LastIndex map[string]int `json:"last_index,omitempty"`

	StartedAt int64 `json:"started_at,omitempty"`
}

func NewState() State {
	return State{
		Phase:      PhaseModuleSelect,
		TimeLeft:   map[string]int{},
		Completed:  map[string]bool{},
		Flagged:    map[string]bool{},
		CrossedOut: map[string][]string{},
		LastIndex:  map[string]int{},
	}
}

// ensureMaps repairs nil maps after JSON hydration.
func (s *State) ensureMaps() {
	if s.TimeLeft == nil {
		s.TimeLeft = map[string]int{}
	}
	if s.Completed == nil {
		s.Completed = map[string]bool{}
	}
	if s.Flagged == nil {
		s.Flagged = map[string]bool{}
	}
	if s.CrossedOut == nil {
		s.CrossedOut = map[string][]string{}
	}
	if s.LastIndex == nil {
		s.LastIndex = map[string]int{}
	}
}

// PartKey keys per-part state (timers, resume indices) by module type and
// 1-based part number.
func PartKey(moduleType string, part int) string {
	return moduleType + "|" + strconv.Itoa(part)
}
