package session

import "fmt"

// State identifies a stage of the insurance purchase flow.
type State string

const (
	StateOnboarding         State = "onboarding"
	StateEligibilityCheck   State = "eligibility_check"
	StateProductSelection   State = "product_selection"
	StateQuoteGeneration    State = "quote_generation"
	StateAddonRiders        State = "addon_riders"
	StatePaymentInitiated   State = "payment_initiated"
	StateDocumentCollection State = "document_collection"
	StatePolicyIssued       State = "policy_issued"
)

// AllStates lists every state in happy-path order.
var AllStates = []State{
	StateOnboarding,
	StateEligibilityCheck,
	StateProductSelection,
	StateQuoteGeneration,
	StateAddonRiders,
	StatePaymentInitiated,
	StateDocumentCollection,
	StatePolicyIssued,
}

// Valid reports whether s is a declared state.
func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// StateTransitionError is returned when a transition is not permitted by the
// flow policy. It names both ends of the invalid transition so handlers can
// surface a precise message.
type StateTransitionError struct {
	From State
	To   State
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("session: invalid transition from %s to %s", e.From, e.To)
}

// FlowPolicy holds the configurable rules of the purchase flow: which fields
// each state needs, which transitions are allowed, and when auto-advance
// kicks in. Treated as policy rather than law so deployments can tune it.
type FlowPolicy struct {
	RequiredFields       map[State][]string
	AllowedTransitions   map[State][]State
	NextState            map[State]State
	FormGroups           map[State]string
	AutoAdvanceThreshold int
}

// DefaultFlowPolicy returns the standard term-insurance purchase flow.
func DefaultFlowPolicy() *FlowPolicy {
	return &FlowPolicy{
		RequiredFields: map[State][]string{
			StateOnboarding:         {"full_name", "age", "gender", "mobile_number", "email"},
			StateEligibilityCheck:   {"pin_code", "smoker"},
			StateProductSelection:   {"coverage_amount", "policy_term"},
			StateQuoteGeneration:    {"premium_frequency"},
			StateAddonRiders:        {},
			StatePaymentInitiated:   {"payment_method"},
			StateDocumentCollection: {},
			StatePolicyIssued:       {},
		},
		AllowedTransitions: map[State][]State{
			StateOnboarding:         {StateEligibilityCheck},
			StateEligibilityCheck:   {StateProductSelection, StateOnboarding},
			StateProductSelection:   {StateQuoteGeneration},
			StateQuoteGeneration:    {StateAddonRiders},
			StateAddonRiders:        {StatePaymentInitiated},
			StatePaymentInitiated:   {StateDocumentCollection},
			StateDocumentCollection: {StatePolicyIssued},
			StatePolicyIssued:       {},
		},
		NextState: map[State]State{
			StateOnboarding:       StateEligibilityCheck,
			StateEligibilityCheck: StateProductSelection,
			StateProductSelection: StateQuoteGeneration,
			StateQuoteGeneration:  StateAddonRiders,
			StateAddonRiders:      StatePaymentInitiated,
		},
		FormGroups: map[State]string{
			StateOnboarding:       FormPersonalDetails,
			StateEligibilityCheck: FormPersonalDetails,
			StateProductSelection: FormInsuranceRequirements,
			StateQuoteGeneration:  FormInsuranceRequirements,
			StateAddonRiders:      FormRiderSelection,
			StatePaymentInitiated: FormPaymentDetails,
		},
		AutoAdvanceThreshold: 80,
	}
}

// CanTransition reports whether the flow allows moving from one state to
// another. Self-transitions are always permitted.
func (p *FlowPolicy) CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, allowed := range p.AllowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a state accepts no further transitions.
func (p *FlowPolicy) Terminal(s State) bool {
	return len(p.AllowedTransitions[s]) == 0
}
