package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prepdesk/prepdesk/internal/attempt"
	"github.com/prepdesk/prepdesk/internal/content"
	"github.com/prepdesk/prepdesk/internal/partition"
	"github.com/prepdesk/prepdesk/internal/scoring"
	"github.com/prepdesk/prepdesk/internal/syncx"
)

var (
	ErrSubmitted       = errors.New("test already submitted")
	ErrWrongPhase      = errors.New("operation not valid in current phase")
	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownQuestion = errors.New("question not in current module")
	ErrModuleDone      = errors.New("module already completed")
)

// Runtime drives one student through one test. All methods serialize through
// a single mutex; suspension points are only the store writes at completion
// boundaries. Routine persistence is the autosave coordinator's job, signaled
// through onChange.
type Runtime struct {
	mu sync.Mutex

	def    *content.TestDefinition
	userID string

	store  attempt.Store
	events *syncx.EventRepo // optional

	attemptID  string
	state      State
	answers    map[string]string // local view; merged into the durable map, never replacing it
	lastScored *attempt.ModuleResult

	order map[string][]content.Question
	parts map[string][]partition.Part
	pmaps map[string]partition.PassageMap

	onChange func()
}

func NewRuntime(def *content.TestDefinition, userID string, store attempt.Store, events *syncx.EventRepo) *Runtime {
	r := &Runtime{
		def:     def,
		userID:  userID,
		store:   store,
		events:  events,
		state:   NewState(),
		answers: map[string]string{},
		order:   map[string][]content.Question{},
		parts:   map[string][]partition.Part{},
		pmaps:   map[string]partition.PassageMap{},
	}
	r.state.StartedAt = time.Now().Unix()
	for _, m := range def.Modules {
		qs := def.ModuleQuestions(m.Type)
		ids := make([]string, len(qs))
		for i, q := range qs {
			ids[i] = q.ID
		}
		r.order[m.Type] = qs
		r.parts[m.Type] = partition.Split(def.Category, ids, m.DurationMinutes)
		r.pmaps[m.Type] = partition.MapFor(def, m.Type)
	}
	return r
}

func (r *Runtime) SetOnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Runtime) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}

func (r *Runtime) AttemptID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attemptID
}

// Snapshot returns the serialized state and a copy of the local answer map
// for the autosave coordinator.
func (r *Runtime) Snapshot() ([]byte, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, err := json.Marshal(r.state)
	if err != nil {
		log.Printf("session: snapshot marshal: %v", err)
		buf = nil
	}
	ans := make(map[string]string, len(r.answers))
	for k, v := range r.answers {
		ans[k] = v
	}
	return buf, ans
}

// Hydrate restores a previously saved session. Invalid saved positions fall
// back to safe defaults instead of failing the resume.
func (r *Runtime) Hydrate(attemptID string, stateJSON []byte, answers map[string]string, completed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attemptID = attemptID
	r.answers = map[string]string{}
	for k, v := range answers {
		r.answers[k] = v
	}

	st := NewState()
	if len(stateJSON) > 0 {
		var saved State
		if err := json.Unmarshal(stateJSON, &saved); err != nil {
			log.Printf("session: discarding unreadable snapshot for attempt %s: %v", attemptID, err)
		} else {
			st = saved
			st.ensureMaps()
		}
	}
	if st.Phase == "" {
		st.Phase = PhaseModuleSelect
	}
	if completed {
		// Defensive reopen after submission: show results, never restart.
		st.Phase = PhaseSubmitted
		st.TimerRunning = false
	}

	if st.Phase == PhaseInProgress || st.Phase == PhasePartTransition || st.Phase == PhaseModuleScored {
		parts, ok := r.parts[st.ModuleType]
		if !ok {
			st.Phase = PhaseModuleSelect
			st.ModuleType = ""
			st.Part = 0
			st.TimerRunning = false
		} else if st.Phase == PhaseInProgress {
			if st.Part < 1 || st.Part > len(parts) {
				st.Part = 1
			}
			start, end := r.partBounds(st.ModuleType, st.Part)
			if st.GlobalIndex < start || st.GlobalIndex >= end {
				st.GlobalIndex = start
			}
		}
	}
	r.state = st
}

// SeedCompleted marks modules whose results already exist, used when a prior
// incomplete attempt is found without a usable session snapshot.
func (r *Runtime) SeedCompleted(moduleIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range moduleIDs {
		for _, m := range r.def.Modules {
			if m.ID == id {
				r.state.Completed[m.Type] = true
			}
		}
	}
}

// partBounds returns the current module-relative [start, end) index range of
// a 1-based part.
func (r *Runtime) partBounds(moduleType string, part int) (int, int) {
	start := 0
	for i, p := range r.parts[moduleType] {
		if i+1 == part {
			return start, start + len(p.QuestionIDs)
		}
		start += len(p.QuestionIDs)
	}
	return 0, 0
}

func (r *Runtime) moduleHasAnswer(moduleType string) bool {
	for _, q := range r.order[moduleType] {
		if _, ok := r.answers[q.ID]; ok {
			return true
		}
	}
	return false
}

func (r *Runtime) partHasAnswer(moduleType string, part int) bool {
	start, end := r.partBounds(moduleType, part)
	qs := r.order[moduleType]
	for i := start; i < end && i < len(qs); i++ {
		if _, ok := r.answers[qs[i].ID]; ok {
			return true
		}
	}
	return false
}

// SelectModule starts (or re-enters) a module part. The attempt record is
// created lazily here, on first module start.
func (r *Runtime) SelectModule(ctx context.Context, moduleType string, part int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Phase == PhaseSubmitted {
		return ErrSubmitted
	}
	parts, ok := r.parts[moduleType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, moduleType)
	}
	if part < 1 || part > len(parts) {
		return fmt.Errorf("%w: %s has no part %d", ErrUnknownModule, moduleType, part)
	}
	if r.state.Completed[moduleType] {
		return ErrModuleDone
	}

	if r.attemptID == "" {
		a, err := r.store.GetOrCreate(ctx, r.userID, r.def.ID)
		if err != nil {
			return fmt.Errorf("create attempt: %w", err)
		}
		r.attemptID = a.ID
		// Answers saved by an earlier flow belong to this session too.
		r.answers = attempt.MergeAnswers(a.Answers, r.answers)
	}

	r.enterPart(moduleType, part)
	r.notify()
	return nil
}

// enterPart resolves the starting index and timer for (moduleType, part) and
// moves to InProgress. Passage coordinates need no reset: they are derived
// from the flat index, which is re-resolved here.
func (r *Runtime) enterPart(moduleType string, part int) {
	key := PartKey(moduleType, part)
	start, end := r.partBounds(moduleType, part)

	idx := start
	// Resume the saved mid-part position only when this module already has an
	// answer and the answer map is non-empty at all; a stale index must never
	// be applied to what is effectively a fresh session.
	if saved, ok := r.state.LastIndex[key]; ok && len(r.answers) > 0 && r.moduleHasAnswer(moduleType) {
		if saved >= start && saved < end {
			idx = saved
		}
	}

	// Fresh allotment unless the part already has answers, in which case the
	// last-known remaining time is reused verbatim. No extensions.
	if _, ok := r.state.TimeLeft[key]; !ok || !r.partHasAnswer(moduleType, part) {
		r.state.TimeLeft[key] = r.parts[moduleType][part-1].DurationSeconds
	}

	r.state.ModuleType = moduleType
	r.state.Part = part
	r.state.GlobalIndex = idx
	r.state.Phase = PhaseInProgress
	r.state.TimerRunning = true
	r.state.TimeExpired = r.state.TimeLeft[key] <= 0
	if r.state.TimeExpired {
		r.state.TimerRunning = false
	}
}

// Answer records an answer for a question in the current module.
func (r *Runtime) Answer(questionID, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseInProgress {
		return ErrWrongPhase
	}
	if !r.inCurrentModule(questionID) {
		return ErrUnknownQuestion
	}
	r.answers[questionID] = value
	r.state.LastIndex[PartKey(r.state.ModuleType, r.state.Part)] = r.state.GlobalIndex
	r.notify()
	return nil
}

func (r *Runtime) Flag(questionID string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseInProgress {
		return ErrWrongPhase
	}
	if !r.inCurrentModule(questionID) {
		return ErrUnknownQuestion
	}
	if on {
		r.state.Flagged[questionID] = true
	} else {
		delete(r.state.Flagged, questionID)
	}
	r.notify()
	return nil
}

func (r *Runtime) CrossOut(questionID, optionID string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseInProgress {
		return ErrWrongPhase
	}
	if !r.inCurrentModule(questionID) {
		return ErrUnknownQuestion
	}
	crossed := r.state.CrossedOut[questionID]
	if on {
		for _, id := range crossed {
			if id == optionID {
				return nil
			}
		}
		r.state.CrossedOut[questionID] = append(crossed, optionID)
	} else {
		out := crossed[:0]
		for _, id := range crossed {
			if id != optionID {
				out = append(out, id)
			}
		}
		if len(out) == 0 {
			delete(r.state.CrossedOut, questionID)
		} else {
			r.state.CrossedOut[questionID] = out
		}
	}
	r.notify()
	return nil
}

func (r *Runtime) inCurrentModule(questionID string) bool {
	for _, q := range r.order[r.state.ModuleType] {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// Next advances the question pointer. At the last question of part 1 of an
// SAT module it moves to the part transition; at the end of the final part it
// completes the module. Completion is a navigational event: unanswered
// questions do not block it.
func (r *Runtime) Next(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseInProgress {
		return ErrWrongPhase
	}

	_, end := r.partBounds(r.state.ModuleType, r.state.Part)
	key := PartKey(r.state.ModuleType, r.state.Part)

	if r.state.GlobalIndex < end-1 {
		r.state.GlobalIndex++
		r.state.LastIndex[key] = r.state.GlobalIndex
		r.notify()
		return nil
	}

	if r.def.Category == content.CategorySAT && r.state.Part == 1 {
		r.state.Phase = PhasePartTransition
		r.state.TimerRunning = false
		r.notify()
		return nil
	}
	return r.completeModuleLocked(ctx)
}

// Prev steps back within the current part, never across a part boundary.
func (r *Runtime) Prev() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseInProgress {
		return ErrWrongPhase
	}
	start, _ := r.partBounds(r.state.ModuleType, r.state.Part)
	if r.state.GlobalIndex > start {
		r.state.GlobalIndex--
		r.state.LastIndex[PartKey(r.state.ModuleType, r.state.Part)] = r.state.GlobalIndex
		r.notify()
	}
	return nil
}

// ConfirmPart acknowledges the SAT part transition and starts part 2.
func (r *Runtime) ConfirmPart(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhasePartTransition {
		return ErrWrongPhase
	}
	r.enterPart(r.state.ModuleType, 2)
	r.notify()
	return nil
}

// PauseTimer stops the countdown. The paused flag is part of persisted state,
// so a reload does not resume a paused timer as running.
func (r *Runtime) PauseTimer() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseInProgress {
		return ErrWrongPhase
	}
	r.state.TimerRunning = false
	r.notify()
	return nil
}

func (r *Runtime) ResumeTimer() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseInProgress {
		return ErrWrongPhase
	}
	if r.state.TimeExpired {
		return nil
	}
	r.state.TimerRunning = true
	r.notify()
	return nil
}

// Tick decrements the running part timer by one second. Reaching zero raises
// the TimeExpired notification; the exam is never auto-submitted.
func (r *Runtime) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseInProgress || !r.state.TimerRunning {
		return
	}
	key := PartKey(r.state.ModuleType, r.state.Part)
	if r.state.TimeLeft[key] > 0 {
		r.state.TimeLeft[key]--
	}
	if r.state.TimeLeft[key] <= 0 {
		r.state.TimeExpired = true
		r.state.TimerRunning = false
	}
}

// completeModuleLocked scores the current module and persists its result.
// Persistence happens before the phase moves, so a failed write leaves the
// student in place to retry.
func (r *Runtime) completeModuleLocked(ctx context.Context) error {
	moduleType := r.state.ModuleType
	mod, ok := r.def.ModuleByType(moduleType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, moduleType)
	}
	qs := r.order[moduleType]

	var score, total int
	var scaled *int
	if mod.Essay() {
		// Manually graded: synthetic 1/1 once any answer exists; the scaled
		// score arrives later through the manual grading channel.
		score, total = scoring.EssayScore(qs, r.answers)
	} else {
		score, total = scoring.RawScore(qs, r.answers)
		if v, ok := scoring.LookupScaled(r.def.ScaledScores, mod.ID, score); ok {
			scaled = &v
		}
	}
	res := attempt.ModuleResult{
		AttemptID:   r.attemptID,
		ModuleID:    mod.ID,
		ModuleName:  mod.Name,
		Score:       score,
		Total:       total,
		ScaledScore: scaled,
	}

	// Always land the freshest answers before the result, merge-on-write.
	if _, err := r.store.PatchAnswers(ctx, r.attemptID, r.answers); err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	if err := r.store.UpsertModuleResult(ctx, res); err != nil {
		return fmt.Errorf("save module result: %w", err)
	}

	r.state.Completed[moduleType] = true
	r.state.Phase = PhaseModuleScored
	r.state.TimerRunning = false
	r.lastScored = &res
	r.appendEvent(ctx, syncx.EventModuleCompleted, res)
	r.notify()
	return nil
}

// Proceed leaves the module-scored screen: on to module selection while
// incomplete modules remain, else the whole test is submitted.
func (r *Runtime) Proceed(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Phase != PhaseModuleScored {
		return ErrWrongPhase
	}
	for _, m := range r.def.Modules {
		if !r.state.Completed[m.Type] {
			r.state.Phase = PhaseModuleSelect
			r.state.ModuleType = ""
			r.state.Part = 0
			r.notify()
			return nil
		}
	}
	return r.submitLocked(ctx)
}

func (r *Runtime) submitLocked(ctx context.Context) error {
	var totalScore, totalQuestions, autoCorrect int
	var mods []scoring.ModuleScaled
	for _, m := range r.def.Modules {
		qs := r.order[m.Type]
		if m.Essay() {
			s, t := scoring.EssayScore(qs, r.answers)
			totalScore += s
			totalQuestions += t
			continue
		}
		s, t := scoring.RawScore(qs, r.answers)
		totalScore += s
		totalQuestions += t
		autoCorrect += s
		if v, ok := scoring.LookupScaled(r.def.ScaledScores, m.ID, s); ok {
			mods = append(mods, scoring.ModuleScaled{ModuleType: m.Type, ScaledScore: v})
		}
	}
	scaled, ok := scoring.LookupScaled(r.def.ScaledScores, scoring.OverallModuleID, autoCorrect)
	if !ok {
		scaled = scoring.Composite(r.def.Category, mods)
	}
	sum := attempt.Summary{
		TotalScore:       totalScore,
		TotalQuestions:   totalQuestions,
		ScaledScore:      scaled,
		TimeTakenSeconds: r.timeTakenLocked(),
	}

	if _, err := r.store.PatchAnswers(ctx, r.attemptID, r.answers); err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	if err := r.store.MarkCompleted(ctx, r.attemptID, sum); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	r.state.Phase = PhaseSubmitted
	r.state.TimerRunning = false
	r.appendEvent(ctx, syncx.EventTestSubmitted, sum)
	r.notify()
	return nil
}

// timeTakenLocked sums allotted-minus-remaining across every part that was
// ever started.
func (r *Runtime) timeTakenLocked() int {
	taken := 0
	for _, m := range r.def.Modules {
		for i, p := range r.parts[m.Type] {
			key := PartKey(m.Type, i+1)
			if left, ok := r.state.TimeLeft[key]; ok {
				taken += p.DurationSeconds - left
			}
		}
	}
	return taken
}

func (r *Runtime) appendEvent(ctx context.Context, typ string, payload any) {
	if r.events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := r.events.Append(ctx, syncx.Event{Type: typ, Key: r.attemptID, DataJSON: string(data)}); err != nil {
		log.Printf("session: event append %s: %v", typ, err)
	}
}
