package decision

// Mode is the model's classification of user intent for a turn.
type Mode string

const (
	ModeInformational  Mode = "informational"
	ModeConversational Mode = "conversational"
	ModeOnboarding     Mode = "onboarding"
)

// Extracted is the nullable field set the model may pull from a message.
// Every slot is optional; nil means "not mentioned this turn".
type Extracted struct {
	FullName         *string  `json:"full_name"`
	DateOfBirth      *string  `json:"date_of_birth"`
	Age              *int     `json:"age"`
	Gender           *string  `json:"gender"`
	Occupation       *string  `json:"occupation"`
	Smoker           *bool    `json:"smoker"`
	MobileNumber     *string  `json:"mobile_number"`
	Email            *string  `json:"email"`
	PinCode          *string  `json:"pin_code"`
	CoverageAmount   *int64   `json:"coverage_amount"`
	PolicyTerm       *int     `json:"policy_term"`
	PremiumFrequency *string  `json:"premium_frequency"`
	RidersInterest   []string `json:"riders_interest"`
}

// Empty reports whether no field was extracted.
func (e Extracted) Empty() bool {
	return e.FullName == nil && e.DateOfBirth == nil && e.Age == nil &&
		e.Gender == nil && e.Occupation == nil && e.Smoker == nil &&
		e.MobileNumber == nil && e.Email == nil && e.PinCode == nil &&
		e.CoverageAmount == nil && e.PolicyTerm == nil &&
		e.PremiumFrequency == nil && len(e.RidersInterest) == 0
}

// APICall is one backend operation the model asked for, by name.
type APICall struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// StoreUpdate mirrors extracted fields in the frontend store shape.
type StoreUpdate struct {
	PersonalDetails map[string]any `json:"personalDetails,omitempty"`
	QuoteDetails    map[string]any `json:"quoteDetails,omitempty"`
}

// Decision is the structured turn decision the model is asked to emit.
type Decision struct {
	Mode         Mode        `json:"mode"`
	Reply        string      `json:"reply"`
	NextQuestion string      `json:"next_question,omitempty"`
	Extracted    Extracted   `json:"extracted"`
	StoreUpdate  StoreUpdate `json:"store_update"`
	APICalls     []APICall   `json:"api_calls"`
	Reasoning    string      `json:"reasoning,omitempty"`
	Done         bool        `json:"done"`
}
