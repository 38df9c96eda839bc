package session

import (
	"time"

	"github.com/google/uuid"
)

// Form group names used in FormCompletion tracking.
const (
	FormPersonalDetails       = "personal_details"
	FormInsuranceRequirements = "insurance_requirements"
	FormRiderSelection        = "rider_selection"
	FormPaymentDetails        = "payment_details"
)

// CustomerData is the typed record of facts collected across a conversation.
// Each known field is a nullable slot so required-field checks are covered at
// compile time; Extra carries fields the decision schema may grow before we
// do.
type CustomerData struct {
	FullName             *string  `json:"full_name,omitempty"`
	DateOfBirth          *string  `json:"date_of_birth,omitempty"`
	Age                  *int     `json:"age,omitempty"`
	Gender               *string  `json:"gender,omitempty"`
	Occupation           *string  `json:"occupation,omitempty"`
	Smoker               *bool    `json:"smoker,omitempty"`
	MobileNumber         *string  `json:"mobile_number,omitempty"`
	Email                *string  `json:"email,omitempty"`
	PinCode              *string  `json:"pin_code,omitempty"`
	CoverageAmount       *int64   `json:"coverage_amount,omitempty"`
	PolicyTerm           *int     `json:"policy_term,omitempty"`
	PremiumPayingTerm    *int     `json:"premium_paying_term,omitempty"`
	PremiumFrequency     *string  `json:"premium_frequency,omitempty"`
	PaymentMethod        *string  `json:"payment_method,omitempty"`
	HealthCondition      *string  `json:"health_condition,omitempty"`
	FamilyMedicalHistory *string  `json:"family_medical_history,omitempty"`
	AnnualIncome         *int64   `json:"annual_income,omitempty"`
	RidersInterest       []string `json:"riders_interest,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Has reports whether the named field is set. The switch is closed over the
// known field names; unknown names fall through to Extra.
func (c *CustomerData) Has(field string) bool {
	switch field {
	case "full_name":
		return c.FullName != nil
	case "date_of_birth":
		return c.DateOfBirth != nil
	case "age":
		return c.Age != nil
	case "gender":
		return c.Gender != nil
	case "occupation":
		return c.Occupation != nil
	case "smoker":
		return c.Smoker != nil
	case "mobile_number":
		return c.MobileNumber != nil
	case "email":
		return c.Email != nil
	case "pin_code":
		return c.PinCode != nil
	case "coverage_amount":
		return c.CoverageAmount != nil
	case "policy_term":
		return c.PolicyTerm != nil
	case "premium_paying_term":
		return c.PremiumPayingTerm != nil
	case "premium_frequency":
		return c.PremiumFrequency != nil
	case "payment_method":
		return c.PaymentMethod != nil
	case "health_condition":
		return c.HealthCondition != nil
	case "family_medical_history":
		return c.FamilyMedicalHistory != nil
	case "annual_income":
		return c.AnnualIncome != nil
	case "riders_interest":
		return len(c.RidersInterest) > 0
	default:
		_, ok := c.Extra[field]
		return ok
	}
}

// Merge overlays the set fields of in onto c. Fields absent from in are left
// untouched, so the collected record only ever grows between resets.
func (c *CustomerData) Merge(in CustomerData) {
	if in.FullName != nil {
		c.FullName = in.FullName
	}
	if in.DateOfBirth != nil {
		c.DateOfBirth = in.DateOfBirth
	}
	if in.Age != nil {
		c.Age = in.Age
	}
	if in.Gender != nil {
		c.Gender = in.Gender
	}
	if in.Occupation != nil {
		c.Occupation = in.Occupation
	}
	if in.Smoker != nil {
		c.Smoker = in.Smoker
	}
	if in.MobileNumber != nil {
		c.MobileNumber = in.MobileNumber
	}
	if in.Email != nil {
		c.Email = in.Email
	}
	if in.PinCode != nil {
		c.PinCode = in.PinCode
	}
	if in.CoverageAmount != nil {
		c.CoverageAmount = in.CoverageAmount
	}
	if in.PolicyTerm != nil {
		c.PolicyTerm = in.PolicyTerm
	}
	if in.PremiumPayingTerm != nil {
		c.PremiumPayingTerm = in.PremiumPayingTerm
	}
	if in.PremiumFrequency != nil {
		c.PremiumFrequency = in.PremiumFrequency
	}
	if in.PaymentMethod != nil {
		c.PaymentMethod = in.PaymentMethod
	}
	if in.HealthCondition != nil {
		c.HealthCondition = in.HealthCondition
	}
	if in.FamilyMedicalHistory != nil {
		c.FamilyMedicalHistory = in.FamilyMedicalHistory
	}
	if in.AnnualIncome != nil {
		c.AnnualIncome = in.AnnualIncome
	}
	if len(in.RidersInterest) > 0 {
		c.RidersInterest = in.RidersInterest
	}
	if len(in.Extra) > 0 {
		if c.Extra == nil {
			c.Extra = make(map[string]any, len(in.Extra))
		}
		for k, v := range in.Extra {
			c.Extra[k] = v
		}
	}
}

// FieldNames returns the names of all set fields, in declaration order.
func (c *CustomerData) FieldNames() []string {
	known := []string{
		"full_name", "date_of_birth", "age", "gender", "occupation", "smoker",
		"mobile_number", "email", "pin_code", "coverage_amount", "policy_term",
		"premium_paying_term", "premium_frequency", "payment_method",
		"health_condition", "family_medical_history", "annual_income",
		"riders_interest",
	}
	var names []string
	for _, f := range known {
		if c.Has(f) {
			names = append(names, f)
		}
	}
	for k := range c.Extra {
		names = append(names, k)
	}
	return names
}

// AsMap flattens the set fields into a plain map, mainly for LLM context.
func (c *CustomerData) AsMap() map[string]any {
	out := make(map[string]any)
	put := func(k string, v any) { out[k] = v }
	if c.FullName != nil {
		put("full_name", *c.FullName)
	}
	if c.DateOfBirth != nil {
		put("date_of_birth", *c.DateOfBirth)
	}
	if c.Age != nil {
		put("age", *c.Age)
	}
	if c.Gender != nil {
		put("gender", *c.Gender)
	}
	if c.Occupation != nil {
		put("occupation", *c.Occupation)
	}
	if c.Smoker != nil {
		put("smoker", *c.Smoker)
	}
	if c.MobileNumber != nil {
		put("mobile_number", *c.MobileNumber)
	}
	if c.Email != nil {
		put("email", *c.Email)
	}
	if c.PinCode != nil {
		put("pin_code", *c.PinCode)
	}
	if c.CoverageAmount != nil {
		put("coverage_amount", *c.CoverageAmount)
	}
	if c.PolicyTerm != nil {
		put("policy_term", *c.PolicyTerm)
	}
	if c.PremiumPayingTerm != nil {
		put("premium_paying_term", *c.PremiumPayingTerm)
	}
	if c.PremiumFrequency != nil {
		put("premium_frequency", *c.PremiumFrequency)
	}
	if c.PaymentMethod != nil {
		put("payment_method", *c.PaymentMethod)
	}
	if c.HealthCondition != nil {
		put("health_condition", *c.HealthCondition)
	}
	if c.FamilyMedicalHistory != nil {
		put("family_medical_history", *c.FamilyMedicalHistory)
	}
	if c.AnnualIncome != nil {
		put("annual_income", *c.AnnualIncome)
	}
	if len(c.RidersInterest) > 0 {
		put("riders_interest", c.RidersInterest)
	}
	for k, v := range c.Extra {
		out[k] = v
	}
	return out
}

// ConversationTurn is one request/response cycle, recorded after the reply is
// composed.
type ConversationTurn struct {
	Timestamp     time.Time      `json:"timestamp"`
	UserMessage   string         `json:"user_message"`
	BotResponse   string         `json:"bot_response"`
	State         State          `json:"state"`
	ActionsTaken  []string       `json:"actions_taken"`
	DataCollected map[string]any `json:"data_collected"`
}

// StateTransition is one audit-trail entry. Never mutated after append.
type StateTransition struct {
	Timestamp time.Time      `json:"timestamp"`
	FromState State          `json:"from_state"`
	ToState   State          `json:"to_state"`
	Context   map[string]any `json:"context"`
}

// FormStatus tracks completion for one logical form group.
type FormStatus struct {
	Completed            bool `json:"completed"`
	CompletionPercentage int  `json:"completion_percentage"`
}

// Session is the unit of conversation continuity.
type Session struct {
	ID              string       `json:"session_id"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	CurrentState    State        `json:"current_state"`
	CustomerData    CustomerData `json:"customer_data"`
	SelectedVariant string       `json:"selected_variant,omitempty"`

	// Latest computed artifacts. Overwritten whole on regeneration.
	QuoteData   map[string]any `json:"quote_data"`
	PolicyData  map[string]any `json:"policy_data"`
	PaymentData map[string]any `json:"payment_data"`

	ConversationHistory []ConversationTurn    `json:"conversation_history"`
	StateTransitions    []StateTransition     `json:"state_transitions"`
	FormCompletion      map[string]FormStatus `json:"form_completion"`
	Metadata            map[string]any        `json:"metadata,omitempty"`
}

// New creates a session in the onboarding state. An empty id gets a generated
// one.
func New(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		UpdatedAt:    now,
		CurrentState: StateOnboarding,
		QuoteData:    map[string]any{},
		PolicyData:   map[string]any{},
		PaymentData:  map[string]any{},
		FormCompletion: map[string]FormStatus{
			FormPersonalDetails:       {},
			FormInsuranceRequirements: {},
			FormRiderSelection:        {},
			FormPaymentDetails:        {},
		},
	}
}

// Touch bumps the updated-at timestamp, keeping it monotonically
// non-decreasing.
func (s *Session) Touch() {
	now := time.Now().UTC()
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// AddTurn appends a conversation turn and bumps the timestamp.
func (s *Session) AddTurn(userMessage, botResponse string, actions []string, collected map[string]any) {
	if actions == nil {
		actions = []string{}
	}
	if collected == nil {
		collected = map[string]any{}
	}
	s.ConversationHistory = append(s.ConversationHistory, ConversationTurn{
		Timestamp:     time.Now().UTC(),
		UserMessage:   userMessage,
		BotResponse:   botResponse,
		State:         s.CurrentState,
		ActionsTaken:  actions,
		DataCollected: collected,
	})
	s.Touch()
}

// CompletionPercentage computes how many of the required fields are set,
// 0-100 rounding down. An empty requirement list counts as complete.
func (s *Session) CompletionPercentage(required []string) int {
	if len(required) == 0 {
		return 100
	}
	set := 0
	for _, f := range required {
		if s.CustomerData.Has(f) {
			set++
		}
	}
	return set * 100 / len(required)
}

// UpdateFormCompletion records progress for a form group.
func (s *Session) UpdateFormCompletion(group string, status FormStatus) {
	if s.FormCompletion == nil {
		s.FormCompletion = map[string]FormStatus{}
	}
	s.FormCompletion[group] = status
	s.Touch()
}

// Reset clears collected data and history but keeps the session id, returning
// the session to onboarding.
func (s *Session) Reset() {
	s.CurrentState = StateOnboarding
	s.CustomerData = CustomerData{}
	s.SelectedVariant = ""
	s.QuoteData = map[string]any{}
	s.PolicyData = map[string]any{}
	s.PaymentData = map[string]any{}
	s.ConversationHistory = nil
	s.StateTransitions = nil
	s.FormCompletion = map[string]FormStatus{
		FormPersonalDetails:       {},
		FormInsuranceRequirements: {},
		FormRiderSelection:        {},
		FormPaymentDetails:        {},
	}
	s.Touch()
}
