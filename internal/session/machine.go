package session

import "time"

// Machine applies the flow policy to sessions: validating transitions,
// recording the audit trail, and auto-advancing when enough data has been
// collected. It is stateless apart from the policy and safe for concurrent
// use as long as each session is externally serialized.
type Machine struct {
	policy *FlowPolicy
}

// NewMachine builds a state machine over the given policy. A nil policy gets
// the default flow.
func NewMachine(policy *FlowPolicy) *Machine {
	if policy == nil {
		policy = DefaultFlowPolicy()
	}
	return &Machine{policy: policy}
}

// Policy exposes the active flow policy.
func (m *Machine) Policy() *FlowPolicy { return m.policy }

// Transition moves the session to target if the policy permits it. The audit
// entry and the state change are applied together; on failure the session is
// untouched and a *StateTransitionError is returned.
func (m *Machine) Transition(s *Session, target State, context map[string]any) error {
	if !target.Valid() {
		return &StateTransitionError{From: s.CurrentState, To: target}
	}
	if !m.policy.CanTransition(s.CurrentState, target) {
		return &StateTransitionError{From: s.CurrentState, To: target}
	}
	m.commit(s, target, context)
	return nil
}

// ForceTransition moves the session to target regardless of the adjacency
// rule. The audit entry marks the transition as forced.
func (m *Machine) ForceTransition(s *Session, target State, context map[string]any) error {
	if !target.Valid() {
		return &StateTransitionError{From: s.CurrentState, To: target}
	}
	if context == nil {
		context = map[string]any{}
	}
	context["forced"] = true
	m.commit(s, target, context)
	return nil
}

func (m *Machine) commit(s *Session, target State, context map[string]any) {
	if context == nil {
		context = map[string]any{}
	}
	s.StateTransitions = append(s.StateTransitions, StateTransition{
		Timestamp: time.Now().UTC(),
		FromState: s.CurrentState,
		ToState:   target,
		Context:   context,
	})
	s.CurrentState = target
	s.Touch()
}

// AutoAdvance checks the auto-advance rule for the session's current state:
// if the required fields are at least threshold-percent complete and a next
// state exists and is reachable, the session transitions with an
// auto_transition audit entry. extracted names the fields merged this turn
// and is recorded in the audit context. States with no required fields are
// pass-through and never auto-advanced by this rule.
func (m *Machine) AutoAdvance(s *Session, extracted []string) (State, bool) {
	required := m.policy.RequiredFields[s.CurrentState]
	if len(required) == 0 {
		return "", false
	}

	pct := s.CompletionPercentage(required)
	if group, ok := m.policy.FormGroups[s.CurrentState]; ok {
		s.UpdateFormCompletion(group, FormStatus{
			Completed:            pct >= m.policy.AutoAdvanceThreshold,
			CompletionPercentage: pct,
		})
	}

	if pct < m.policy.AutoAdvanceThreshold {
		return "", false
	}
	next, ok := m.policy.NextState[s.CurrentState]
	if !ok || !m.policy.CanTransition(s.CurrentState, next) {
		return "", false
	}

	if extracted == nil {
		extracted = []string{}
	}
	m.commit(s, next, map[string]any{
		"trigger":               "auto_transition",
		"completion_percentage": pct,
		"extracted_fields":      extracted,
	})
	return next, true
}
