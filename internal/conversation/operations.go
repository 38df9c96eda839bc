package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/insurelab/termlife-ai-platform/internal/decision"
	"github.com/insurelab/termlife-ai-platform/internal/payments"
	"github.com/insurelab/termlife-ai-platform/internal/quote"
	"github.com/insurelab/termlife-ai-platform/internal/session"
)

// OperationKind identifies one backend operation the model may request.
type OperationKind string

const (
	OpPremiumCalculation OperationKind = "premium_calculation"
	OpEligibilityCheck   OperationKind = "eligibility_check"
	OpPlanComparison     OperationKind = "plan_comparison"
	OpPolicyDocuments    OperationKind = "policy_documents"
	OpPaymentInitiation  OperationKind = "payment_initiation"
	OpStateTransition    OperationKind = "state_transition"
)

// ParseOperationKind maps a model-supplied operation name to a known kind,
// tolerating a few aliases the model tends to produce.
func ParseOperationKind(name string) (OperationKind, bool) {
	switch OperationKind(strings.ToLower(strings.TrimSpace(name))) {
	case OpPremiumCalculation, "calculate_premium", "quote_generation":
		return OpPremiumCalculation, true
	case OpEligibilityCheck, "check_eligibility":
		return OpEligibilityCheck, true
	case OpPlanComparison, "compare_plans":
		return OpPlanComparison, true
	case OpPolicyDocuments, "get_documents":
		return OpPolicyDocuments, true
	case OpPaymentInitiation, "initiate_payment":
		return OpPaymentInitiation, true
	case OpStateTransition, "transition_state":
		return OpStateTransition, true
	}
	return "", false
}

// executeOperation dispatches one requested operation against the session.
// Unknown names fail the individual operation without failing the turn, and
// every branch returns a result rather than panicking on missing data.
func (o *Orchestrator) executeOperation(ctx context.Context, s *session.Session, call decision.APICall) OperationResult {
	kind, ok := ParseOperationKind(call.Name)
	if !ok {
		return OperationResult{
			Operation: call.Name,
			Success:   false,
			Error:     fmt.Sprintf("unknown operation %q", call.Name),
		}
	}

	var res OperationResult
	switch kind {
	case OpPremiumCalculation:
		res = o.opPremiumCalculation(s, call.Params)
	case OpEligibilityCheck:
		res = o.opEligibilityCheck(s, call.Params)
	case OpPlanComparison:
		res = o.opPlanComparison(s)
	case OpPolicyDocuments:
		res = o.opPolicyDocuments(s)
	case OpPaymentInitiation:
		res = o.opPaymentInitiation(ctx, s, call.Params)
	case OpStateTransition:
		res = o.opStateTransition(s, call.Params)
	}
	o.metrics.Operation(string(kind), res.Success)
	return res
}

// quoteProfile assembles the pricing inputs, preferring explicit operation
// params over the session's collected data.
func (o *Orchestrator) quoteProfile(s *session.Session, params map[string]any) (age int, sumAssured float64, term int, profile quote.Profile, err error) {
	data := &s.CustomerData

	age = paramInt(params, "age", intOrZero(data.Age))
	sumAssured = paramFloat(params, "coverage_amount", float64(int64OrZero(data.CoverageAmount)))
	term = paramInt(params, "policy_term", intOrZero(data.PolicyTerm))

	if age <= 0 {
		return 0, 0, 0, quote.Profile{}, fmt.Errorf("age is required for premium calculation")
	}
	if sumAssured <= 0 {
		return 0, 0, 0, quote.Profile{}, fmt.Errorf("coverage amount is required for premium calculation")
	}
	if term <= 0 {
		return 0, 0, 0, quote.Profile{}, fmt.Errorf("policy term is required for premium calculation")
	}

	profile = quote.Profile{
		Gender:           paramString(params, "gender", stringOrEmpty(data.Gender)),
		TobaccoUser:      paramBool(params, "smoker", boolOrFalse(data.Smoker)),
		Occupation:       paramString(params, "occupation", stringOrEmpty(data.Occupation)),
		HealthCondition:  stringOrEmpty(data.HealthCondition),
		PaymentFrequency: paramString(params, "premium_frequency", stringOrEmpty(data.PremiumFrequency)),
		Age:              age,
		AnnualIncome:     float64(int64OrZero(data.AnnualIncome)),
		PurchaseChannel:  "online",
	}
	return age, sumAssured, term, profile, nil
}

func (o *Orchestrator) opPremiumCalculation(s *session.Session, params map[string]any) OperationResult {
	age, sumAssured, term, profile, err := o.quoteProfile(s, params)
	if err != nil {
		return OperationResult{Operation: string(OpPremiumCalculation), Success: false, Error: err.Error()}
	}

	quotes := o.quotes.GenerateQuotes(age, sumAssured, term, term, profile)
	if len(quotes) == 0 {
		return OperationResult{
			Operation: string(OpPremiumCalculation),
			Success:   false,
			Error:     "no variant could be priced for the given inputs",
		}
	}

	s.QuoteData = map[string]any{
		"quotes":       quotes,
		"generated_at": nowUTC().Format(timeLayout),
		"inputs": map[string]any{
			"age":             age,
			"coverage_amount": sumAssured,
			"policy_term":     term,
		},
	}
	o.metrics.QuoteGenerated()

	return OperationResult{
		Operation: string(OpPremiumCalculation),
		Success:   true,
		Result: map[string]any{
			"quotes":        quotes,
			"variant_count": len(quotes),
			"best_annual":   quotes[0].AnnualPremium,
		},
	}
}

// Eligibility is a rules check, not underwriting: age window, serviceable
// pin code, and a coverage cap of twenty times annual income when income is
// known.
func (o *Orchestrator) opEligibilityCheck(s *session.Session, params map[string]any) OperationResult {
	data := &s.CustomerData
	age := paramInt(params, "age", intOrZero(data.Age))
	pin := paramString(params, "pin_code", stringOrEmpty(data.PinCode))

	var reasons []string
	if age < 18 || age > 65 {
		reasons = append(reasons, fmt.Sprintf("age %d is outside the eligible range of 18 to 65", age))
	}
	if pin == "" {
		reasons = append(reasons, "pin code is required to confirm serviceability")
	}
	if income := int64OrZero(data.AnnualIncome); income > 0 {
		if cover := int64OrZero(data.CoverageAmount); cover > 0 && cover > income*20 {
			reasons = append(reasons, "requested coverage exceeds twenty times annual income")
		}
	}

	eligible := len(reasons) == 0
	result := map[string]any{
		"eligible": eligible,
		"age":      age,
		"pin_code": pin,
	}
	if !eligible {
		result["reasons"] = reasons
	}
	return OperationResult{Operation: string(OpEligibilityCheck), Success: true, Result: result}
}

func (o *Orchestrator) opPlanComparison(s *session.Session) OperationResult {
	comparison := make([]map[string]any, 0, len(quote.Variants))
	for _, variant := range quote.Variants {
		entry := map[string]any{
			"variant":  variant,
			"features": quote.VariantFeatures(variant),
		}
		if cover := int64OrZero(s.CustomerData.CoverageAmount); cover > 0 {
			entry["benefits"] = quote.VariantBenefits(variant, float64(cover))
		}
		comparison = append(comparison, entry)
	}
	return OperationResult{
		Operation: string(OpPlanComparison),
		Success:   true,
		Result:    map[string]any{"plans": comparison},
	}
}

func (o *Orchestrator) opPolicyDocuments(s *session.Session) OperationResult {
	required := []map[string]any{
		{"name": "identity_proof", "description": "PAN card or Aadhaar", "mandatory": true},
		{"name": "address_proof", "description": "Aadhaar, passport, or utility bill", "mandatory": true},
		{"name": "income_proof", "description": "Salary slips or ITR for the last 2 years", "mandatory": true},
		{"name": "photograph", "description": "Recent passport-size photograph", "mandatory": true},
		{"name": "medical_reports", "description": "Only if asked for during underwriting", "mandatory": false},
	}
	return OperationResult{
		Operation: string(OpPolicyDocuments),
		Success:   true,
		Result: map[string]any{
			"documents": required,
			"state":     string(s.CurrentState),
		},
	}
}

func (o *Orchestrator) opPaymentInitiation(ctx context.Context, s *session.Session, params map[string]any) OperationResult {
	amount := paramFloat(params, "amount", 0)
	if amount <= 0 {
		amount = bestAnnualPremium(s.QuoteData)
	}
	if amount <= 0 {
		return OperationResult{
			Operation: string(OpPaymentInitiation),
			Success:   false,
			Error:     "no premium amount available, generate a quote first",
		}
	}

	method := payments.ParseMethod(paramString(params, "payment_method", stringOrEmpty(s.CustomerData.PaymentMethod)))
	p, err := o.payments.Initiate(ctx, payments.Request{
		SessionID:       s.ID,
		Amount:          amount,
		Currency:        "INR",
		Method:          method,
		CustomerDetails: s.CustomerData.AsMap(),
		PolicyDetails:   s.QuoteData,
	})
	if err != nil {
		return OperationResult{Operation: string(OpPaymentInitiation), Success: false, Error: err.Error()}
	}

	s.PaymentData = map[string]any{
		"payment_id":     p.PaymentID,
		"transaction_id": p.TransactionID,
		"status":         string(p.Status),
		"payment_url":    p.PaymentURL,
		"amount":         p.Amount,
		"currency":       p.Currency,
		"payment_method": string(p.Method),
	}

	return OperationResult{
		Operation: string(OpPaymentInitiation),
		Success:   true,
		Result:    s.PaymentData,
	}
}

func (o *Orchestrator) opStateTransition(s *session.Session, params map[string]any) OperationResult {
	target := session.State(paramString(params, "target_state", ""))
	if target == "" {
		return OperationResult{Operation: string(OpStateTransition), Success: false, Error: "target_state is required"}
	}
	if err := o.machine.Transition(s, target, map[string]any{"trigger": "model_requested"}); err != nil {
		return OperationResult{Operation: string(OpStateTransition), Success: false, Error: err.Error()}
	}
	o.metrics.StateTransition(string(target), "model_requested")
	return OperationResult{
		Operation: string(OpStateTransition),
		Success:   true,
		Result:    map[string]any{"current_state": string(target)},
	}
}

// bestAnnualPremium pulls the cheapest annual premium out of stored quote
// data, tolerating both live and JSON-round-tripped shapes.
func bestAnnualPremium(quoteData map[string]any) float64 {
	raw, ok := quoteData["quotes"]
	if !ok {
		return 0
	}
	switch quotes := raw.(type) {
	case []quote.Quote:
		if len(quotes) > 0 {
			return quotes[0].AnnualPremium
		}
	case []any:
		if len(quotes) > 0 {
			if m, ok := quotes[0].(map[string]any); ok {
				if v, ok := m["annual_premium"].(float64); ok {
					return v
				}
			}
		}
	}
	return 0
}

func paramString(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func paramInt(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func paramBool(params map[string]any, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func int64OrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func stringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func boolOrFalse(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}
