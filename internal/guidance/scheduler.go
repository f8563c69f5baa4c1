package guidance

import (
	"bellhop/internal/profile"
)

// State is the scheduler's serializable position in the rule list. Callers
// persist it between turns; the rules themselves are static configuration
// held by the Scheduler.
type State struct {
	CurrentPriority int  `json:"current_priority"`
	Done            bool `json:"done"`
}

// Scheduler walks an ordered rule list, always pointing at the lowest-priority
// rule whose required fields the profile has not yet satisfied. The cursor
// only ever moves forward within a session.
type Scheduler struct {
	rules []Rule
}

func NewScheduler(rules []Rule) *Scheduler {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Scheduler{rules: rules}
}

// NewState positions the cursor at the first rule.
func (s *Scheduler) NewState() State {
	return State{CurrentPriority: s.rules[0].Priority}
}

// Rules returns the static rule list.
func (s *Scheduler) Rules() []Rule {
	return s.rules
}

func (s *Scheduler) ruleAt(priority int) (Rule, bool) {
	for _, rule := range s.rules {
		if rule.Priority == priority {
			return rule, true
		}
	}
	return Rule{}, false
}

func ruleSatisfied(rule Rule, p profile.Profile) bool {
	for _, field := range rule.RequiredInfo {
		if !p.Has(field) {
			return false
		}
	}
	return true
}

// MissingInfo recomputes the current rule's unsatisfied required fields
// against the profile. In the terminal state it is always empty.
func (s *Scheduler) MissingInfo(state State, p profile.Profile) []string {
	if state.Done {
		return nil
	}
	rule, ok := s.ruleAt(state.CurrentPriority)
	if !ok {
		return nil
	}
	var missing []string
	for _, field := range rule.RequiredInfo {
		if !p.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// Advance moves the cursor after a merge: if the current rule is satisfied it
// steps forward to the next unsatisfied rule, skipping any already satisfied
// by the profile. With no unsatisfied rule left the state becomes terminal.
// The cursor never regresses.
func (s *Scheduler) Advance(state State, p profile.Profile) State {
	if state.Done {
		return state
	}
	current, ok := s.ruleAt(state.CurrentPriority)
	if ok && !ruleSatisfied(current, p) {
		return state
	}
	for _, rule := range s.rules {
		if rule.Priority <= state.CurrentPriority {
			continue
		}
		if !ruleSatisfied(rule, p) {
			state.CurrentPriority = rule.Priority
			return state
		}
	}
	state.Done = true
	return state
}

// Prompt returns the guidance template for the current rule, or the wrap-up
// prompt in the terminal state.
func (s *Scheduler) Prompt(state State) string {
	if state.Done {
		return WrapUpPrompt
	}
	if rule, ok := s.ruleAt(state.CurrentPriority); ok {
		return rule.PromptTemplate
	}
	return WrapUpPrompt
}

// CurrentRule returns the rule under the cursor, if any.
func (s *Scheduler) CurrentRule(state State) (Rule, bool) {
	if state.Done {
		return Rule{}, false
	}
	return s.ruleAt(state.CurrentPriority)
}
