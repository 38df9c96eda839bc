package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurelab/termlife-ai-platform/internal/decision"
	"github.com/insurelab/termlife-ai-platform/internal/observability/metrics"
	"github.com/insurelab/termlife-ai-platform/internal/payments"
	"github.com/insurelab/termlife-ai-platform/internal/quote"
	"github.com/insurelab/termlife-ai-platform/internal/session"
)

// scriptedLLM plays canned responses in order; safe for concurrent turns.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (s *scriptedLLM) Complete(_ context.Context, _ decision.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	i := s.calls
	s.calls = i + 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	if i < 0 {
		return "", errors.New("no scripted response")
	}
	return s.responses[i], nil
}

type recordingTurnLog struct {
	mu      sync.Mutex
	records []TurnRecord
}

func (r *recordingTurnLog) Append(_ context.Context, rec TurnRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func newTestOrchestrator(t *testing.T, llm decision.Client, opts ...OrchestratorOption) (*Orchestrator, session.Store) {
	t.Helper()
	store := session.NewMemoryStore(0)
	sim := payments.NewSimulator("", nil,
		payments.WithSuccessRate(1.0),
		payments.WithSettlementDelays(time.Millisecond, time.Millisecond),
	)
	o := NewOrchestrator(
		store,
		session.NewMachine(nil),
		decision.NewDecider(llm, nil),
		quote.NewCalculator(quote.DefaultConfig(), nil),
		sim,
		nil,
		opts...,
	)
	return o, store
}

const fullExtractionDecision = `{
	"mode": "onboarding",
	"reply": "Thanks Ravi, let me note that down.",
	"extracted": {
		"full_name": "Ravi Kumar",
		"age": 30,
		"gender": "male",
		"smoker": false,
		"mobile_number": "9876543210",
		"email": "ravi@example.com",
		"coverage_amount": 5000000,
		"policy_term": 20
	},
	"done": false
}`

func TestProcessTurnExtractsAdvancesAndQuotes(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		fullExtractionDecision,
		"Here are your quotes across all three variants. Which one should we look at first?",
	}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, err := o.StartSession(ctx, "")
	require.NoError(t, err)

	resp, err := o.ProcessTurn(ctx, TurnRequest{
		SessionID: s.ID,
		Message:   "I want term insurance. I'm Ravi Kumar, 30 year old male, non smoker, need 50 lakh cover for 20 years. Mobile 9876543210, email ravi@example.com",
	})
	require.NoError(t, err)

	// All onboarding fields arrived, so the session auto-advanced.
	assert.True(t, resp.StateChanged)
	assert.Equal(t, session.StateEligibilityCheck, resp.CurrentState)

	// Complete pricing inputs trigger automatic quote generation.
	require.NotEmpty(t, resp.Operations)
	assert.Equal(t, string(OpPremiumCalculation), resp.Operations[0].Operation)
	assert.True(t, resp.Operations[0].Success)
	require.Contains(t, resp.QuoteData, "quotes")
	quotes, ok := resp.QuoteData["quotes"].([]quote.Quote)
	require.True(t, ok)
	require.Len(t, quotes, 3)
	for i := 1; i < len(quotes); i++ {
		assert.LessOrEqual(t, quotes[i-1].AnnualPremium, quotes[i].AnnualPremium)
	}

	assert.Equal(t, "Here are your quotes across all three variants. Which one should we look at first?", resp.Reply)
	assert.Contains(t, resp.DataCollection.ExtractedThisTurn, "full_name")

	// The turn landed in the session history.
	stored, err := o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, stored.ConversationHistory, 1)
	assert.Equal(t, resp.Reply, stored.ConversationHistory[0].BotResponse)
}

func TestProcessTurnNoExtraction(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"mode": "informational", "reply": "Term insurance pays your family a lump sum if you pass away during the policy term.", "done": false}`,
	}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	resp, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "what is term insurance?"})
	require.NoError(t, err)

	assert.False(t, resp.StateChanged)
	assert.Equal(t, session.StateOnboarding, resp.CurrentState)
	assert.Empty(t, resp.Operations)
	assert.Equal(t, "informational", resp.Mode)
	assert.Empty(t, resp.DataCollection.ExtractedThisTurn)
	assert.Len(t, resp.DataCollection.MissingFields, 5)
}

func TestProcessTurnSurvivesModelOutage(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("connection refused")}
	reg := prometheus.NewRegistry()
	o, _ := newTestOrchestrator(t, llm, WithMetrics(metrics.NewConversationMetrics(reg)))

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	resp, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "hello"})
	require.NoError(t, err, "model outage must not fail the turn")
	assert.NotEmpty(t, resp.Reply)
	assert.Equal(t, session.StateOnboarding, resp.CurrentState)

	// The degradation is counted, keyed by its reason.
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "termlife_conversation_decision_failures_total"))
}

func TestProcessTurnOperationFailureIsIsolated(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{
			"mode": "conversational",
			"reply": "Let me check that.",
			"api_calls": [
				{"name": "teleport_customer", "params": {}},
				{"name": "policy_documents", "params": {}}
			],
			"done": false
		}`,
		"One of those I could not do, but here is your document list.",
	}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	resp, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "what documents do I need?"})
	require.NoError(t, err)

	require.Len(t, resp.Operations, 2)
	assert.False(t, resp.Operations[0].Success)
	assert.Contains(t, resp.Operations[0].Error, "unknown operation")
	assert.True(t, resp.Operations[1].Success)
}

func TestProcessTurnRequiresMessage(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedLLM{})

	_, err := o.ProcessTurn(context.Background(), TurnRequest{SessionID: "x", Message: ""})
	require.Error(t, err)
}

func TestProcessTurnCreatesSessionWithSuppliedID(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"mode": "conversational", "reply": "Hello!", "done": false}`,
	}}
	o, store := newTestOrchestrator(t, llm)
	ctx := context.Background()

	// First message on a client-chosen id: no start-session call happened,
	// the turn itself brings the session into existence.
	resp, err := o.ProcessTurn(ctx, TurnRequest{SessionID: "client-chosen-id", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "client-chosen-id", resp.SessionID)
	assert.NotEmpty(t, resp.Reply)

	stored, err := store.Get(ctx, "client-chosen-id")
	require.NoError(t, err)
	assert.Len(t, stored.ConversationHistory, 1)
}

func TestProcessTurnGeneratesIDWhenMissing(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"mode": "conversational", "reply": "Hello!", "done": false}`,
	}}
	o, _ := newTestOrchestrator(t, llm)
	ctx := context.Background()

	resp, err := o.ProcessTurn(ctx, TurnRequest{Message: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)

	// The generated id resolves on explicit lookup afterwards.
	got, err := o.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StateOnboarding, got.CurrentState)
}

func TestProcessTurnSkipsAutoQuoteOutOfBounds(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{
			"mode": "onboarding",
			"reply": "Noted.",
			"extracted": {"age": 30, "gender": "male", "smoker": false, "coverage_amount": 100000, "policy_term": 20},
			"done": false
		}`,
	}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	resp, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "1 lakh cover please"})
	require.NoError(t, err)

	assert.Empty(t, resp.Operations, "coverage below minimum must not auto-quote")
	assert.NotContains(t, resp.QuoteData, "quotes")
}

func TestProcessTurnSkipsAutoQuoteUntilRatingFieldsKnown(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{
			"mode": "onboarding",
			"reply": "Noted. Do you smoke?",
			"extracted": {"age": 40, "coverage_amount": 5000000, "policy_term": 20},
			"done": false
		}`,
		`{
			"mode": "onboarding",
			"reply": "Thanks, got it.",
			"extracted": {"gender": "male", "smoker": true},
			"done": false
		}`,
		"Here are your quotes.",
	}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	// Numeric inputs alone must not price: smoker status swings the premium
	// 1.75x and gender changes the rate row.
	first, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "40 years old, 50 lakh for 20 years"})
	require.NoError(t, err)
	assert.Empty(t, first.Operations, "no quote while gender and smoker are unknown")
	assert.NotContains(t, first.QuoteData, "quotes")

	// The moment both arrive, the quote fires and prices as a smoker.
	second, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "male, and yes I smoke"})
	require.NoError(t, err)
	require.NotEmpty(t, second.Operations)
	assert.Equal(t, string(OpPremiumCalculation), second.Operations[0].Operation)
	require.Contains(t, second.QuoteData, "quotes")

	quotes, ok := second.QuoteData["quotes"].([]quote.Quote)
	require.True(t, ok)
	require.NotEmpty(t, quotes)
	assert.True(t, quotes[0].Breakdown.TobaccoUser, "quote must carry the declared smoker status")
}

func TestProcessTurnAutoQuoteDefersToRequestedCalculation(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{
			"mode": "onboarding",
			"reply": "Let me price that for you.",
			"extracted": {
				"full_name": "Ravi Kumar",
				"age": 30,
				"gender": "male",
				"smoker": false,
				"coverage_amount": 5000000,
				"policy_term": 20
			},
			"api_calls": [{"name": "premium_calculation", "params": {}}],
			"done": false
		}`,
		"Here are your quotes.",
	}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	resp, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "price 50 lakh for 20 years, I'm 30, male, non-smoker"})
	require.NoError(t, err)

	// The model already asked for the calculation; the automatic check must
	// not run it a second time.
	require.Len(t, resp.Operations, 1)
	assert.Equal(t, string(OpPremiumCalculation), resp.Operations[0].Operation)
	assert.True(t, resp.Operations[0].Success)
}

func TestProcessTurnDoesNotRequoteSameInputs(t *testing.T) {
	llm := &scriptedLLM{responses: []string{fullExtractionDecision, "Quotes ready."}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	first, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "my details..."})
	require.NoError(t, err)
	require.NotEmpty(t, first.Operations)

	// Same inputs again: quotes already on file, no regeneration.
	second, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "tell me more"})
	require.NoError(t, err)
	assert.Empty(t, second.Operations)
}

func TestTransitionStateManual(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedLLM{})
	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	got, err := o.TransitionState(ctx, s.ID, session.StateEligibilityCheck, false)
	require.NoError(t, err)
	assert.Equal(t, session.StateEligibilityCheck, got.CurrentState)
}

func TestTransitionStateRejectsSkip(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedLLM{})
	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	_, err := o.TransitionState(ctx, s.ID, session.StatePolicyIssued, false)
	var terr *session.StateTransitionError
	require.ErrorAs(t, err, &terr)

	// State unchanged after the rejected transition.
	got, err := o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StateOnboarding, got.CurrentState)
}

func TestTransitionStateForce(t *testing.T) {
	o, _ := newTestOrchestrator(t, &scriptedLLM{})
	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	got, err := o.TransitionState(ctx, s.ID, session.StatePaymentInitiated, true)
	require.NoError(t, err)
	assert.Equal(t, session.StatePaymentInitiated, got.CurrentState)
}

func TestResetSession(t *testing.T) {
	llm := &scriptedLLM{responses: []string{fullExtractionDecision, "Quotes ready."}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")
	_, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "my details"})
	require.NoError(t, err)

	reset, err := o.ResetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, reset.ID)
	assert.Equal(t, session.StateOnboarding, reset.CurrentState)
	assert.Empty(t, reset.ConversationHistory)
	assert.Empty(t, reset.QuoteData)
}

func TestProcessTurnWritesTurnLog(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"mode": "conversational", "reply": "Hello!", "done": false}`,
	}}
	turnLog := &recordingTurnLog{}
	o, _ := newTestOrchestrator(t, llm, WithTurnLog(turnLog))

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	_, err := o.ProcessTurn(ctx, TurnRequest{SessionID: s.ID, Message: "hi"})
	require.NoError(t, err)

	require.Len(t, turnLog.records, 1)
	rec := turnLog.records[0]
	assert.Equal(t, s.ID, rec.SessionID)
	assert.Equal(t, "hi", rec.UserMessage)
	assert.Equal(t, "Hello!", rec.Reply)

	// The raw decision rides along so the audit trail shows what the model
	// actually returned for the turn.
	require.NotNil(t, rec.Decision)
	assert.Equal(t, decision.ModeConversational, rec.Decision.Mode)
	assert.Equal(t, "Hello!", rec.Decision.Reply)
}

func TestProcessTurnSerializesPerSession(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"mode": "conversational", "reply": "ok", "done": false}`,
	}}
	o, _ := newTestOrchestrator(t, llm)

	ctx := context.Background()
	s, _ := o.StartSession(ctx, "")

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.ProcessTurn(ctx, TurnRequest{
				SessionID: s.ID,
				Message:   fmt.Sprintf("message %d", i),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := o.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.ConversationHistory, turns, "every concurrent turn recorded exactly once")
}
