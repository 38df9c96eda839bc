package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insurelab/termlife-ai-platform/internal/decision"
	"github.com/insurelab/termlife-ai-platform/internal/observability/metrics"
	"github.com/insurelab/termlife-ai-platform/internal/payments"
	"github.com/insurelab/termlife-ai-platform/internal/quote"
	"github.com/insurelab/termlife-ai-platform/internal/session"
	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

const (
	// historyWindow is how many prior turns accompany each decision call.
	historyWindow = 5

	timeLayout = time.RFC3339
)

var nowUTC = func() time.Time { return time.Now().UTC() }

// AutoQuoteBounds gates the automatic quote generation that fires once the
// pricing inputs are on file. Out-of-range inputs leave quoting to an
// explicit operation so the model can address the problem in conversation.
type AutoQuoteBounds struct {
	MinAge      int
	MaxAge      int
	MinCoverage int64
	MaxCoverage int64
	MinTerm     int
	MaxTerm     int
}

// DefaultAutoQuoteBounds matches the underwriting window of the rate tables.
func DefaultAutoQuoteBounds() AutoQuoteBounds {
	return AutoQuoteBounds{
		MinAge:      18,
		MaxAge:      65,
		MinCoverage: 500_000,
		MaxCoverage: 100_000_000,
		MinTerm:     5,
		MaxTerm:     40,
	}
}

func (b AutoQuoteBounds) allows(age int, coverage int64, term int) bool {
	return age >= b.MinAge && age <= b.MaxAge &&
		coverage >= b.MinCoverage && coverage <= b.MaxCoverage &&
		term >= b.MinTerm && term <= b.MaxTerm
}

// Orchestrator implements Service. Each turn runs merge, state advancement,
// operations, and reply composition under a per-session lock, so concurrent
// messages to one session serialize while distinct sessions proceed in
// parallel.
type Orchestrator struct {
	store    session.Store
	machine  *session.Machine
	decider  *decision.Decider
	quotes   *quote.Calculator
	payments *payments.Simulator
	turnLog  TurnLog
	bounds   AutoQuoteBounds
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// OrchestratorOption configures optional collaborators.
type OrchestratorOption func(*Orchestrator)

// WithTurnLog attaches a durable turn log.
func WithTurnLog(log TurnLog) OrchestratorOption {
	return func(o *Orchestrator) { o.turnLog = log }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.ConversationMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAutoQuoteBounds overrides the auto-quote gating window.
func WithAutoQuoteBounds(b AutoQuoteBounds) OrchestratorOption {
	return func(o *Orchestrator) { o.bounds = b }
}

// NewOrchestrator wires the turn pipeline together.
func NewOrchestrator(
	store session.Store,
	machine *session.Machine,
	decider *decision.Decider,
	quotes *quote.Calculator,
	sim *payments.Simulator,
	logger *logging.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		store:    store,
		machine:  machine,
		decider:  decider,
		quotes:   quotes,
		payments: sim,
		bounds:   DefaultAutoQuoteBounds(),
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// sessionLock returns the mutex dedicated to one session id. Locks are never
// reclaimed; the session cap keeps the map bounded in practice.
func (o *Orchestrator) sessionLock(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
		o.metrics.SetActiveSessions(len(o.locks))
	}
	return l
}

// StartSession creates (or returns) the session for the given id.
func (o *Orchestrator) StartSession(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := o.store.Create(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return s, nil
}

// GetSession fetches a session by id.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return o.store.Get(ctx, sessionID)
}

// ResetSession wipes collected data and history, keeping the id.
func (o *Orchestrator) ResetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.Reset()
	if err := o.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}
	return s, nil
}

// TransitionState moves a session manually, validating against the flow
// unless force is set. The session is persisted only on success.
func (o *Orchestrator) TransitionState(ctx context.Context, sessionID string, target session.State, force bool) (*session.Session, error) {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	audit := map[string]any{"trigger": "manual"}
	if force {
		err = o.machine.ForceTransition(s, target, audit)
	} else {
		err = o.machine.Transition(s, target, audit)
	}
	if err != nil {
		return nil, err
	}
	o.metrics.StateTransition(string(target), "manual")

	if err := o.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("persist transition: %w", err)
	}
	return s, nil
}

// ProcessTurn runs the full pipeline for one user message: resolve the
// session (creating it if needed), ask the model for a decision, merge
// extracted data, advance state, maybe auto-quote, execute requested
// operations, compose the reply, and persist. The per-session lock is held
// for the whole turn, model calls included, so a session's turns are
// strictly ordered.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("conversation: message is required")
	}

	// A supplied id resumes (or revives) that session; no id starts a fresh
	// one. Explicit lookups are the only place a missing session is an error.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	started := nowUTC()
	s, err := o.store.Create(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	decided := o.decider.Decide(ctx, decision.DecideInput{
		UserMessage:  req.Message,
		CustomerData: s.CustomerData.AsMap(),
		History:      recentHistory(s, historyWindow),
		CurrentState: string(s.CurrentState),
	})
	switch decided.Reasoning {
	case decision.ReasonLLMUnavailable, decision.ReasonParseFail:
		o.metrics.DecisionFailure(decided.Reasoning)
	}

	// Merge whatever was extracted regardless of the detected mode; users
	// volunteer details even in informational asides.
	delta := normalizeExtracted(decided.Extracted)
	extractedFields := delta.FieldNames()
	s.CustomerData.Merge(delta)

	stateBefore := s.CurrentState
	if next, advanced := o.machine.AutoAdvance(s, extractedFields); advanced {
		o.metrics.StateTransition(string(next), "auto_transition")
		o.logger.Info("session auto-advanced",
			"session_id", s.ID, "from", string(stateBefore), "to", string(next))
	}

	var operations []OperationResult
	if !quoteRequested(decided.APICalls) {
		operations = o.maybeAutoQuote(s)
	}

	for _, call := range decided.APICalls {
		operations = append(operations, o.executeOperation(ctx, s, call))
	}

	reply := o.decider.Compose(ctx, decision.DecideInput{
		UserMessage:  req.Message,
		CustomerData: s.CustomerData.AsMap(),
		CurrentState: string(s.CurrentState),
	}, decided, toOutcomes(operations))

	actions := make([]string, 0, len(operations))
	for _, op := range operations {
		actions = append(actions, op.Operation)
	}
	s.AddTurn(req.Message, reply, actions, delta.AsMap())

	if err := o.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	o.recordTurn(ctx, s, req.Message, reply, decided, operations, started)
	o.metrics.ObserveTurn(string(s.CurrentState), nowUTC().Sub(started).Seconds())

	required := o.machine.Policy().RequiredFields[s.CurrentState]
	return &TurnResponse{
		SessionID:    s.ID,
		Reply:        reply,
		CurrentState: s.CurrentState,
		StateChanged: s.CurrentState != stateBefore,
		Mode:         string(decided.Mode),
		DataCollection: DataCollection{
			ExtractedThisTurn:    delta.AsMap(),
			MissingFields:        missingFields(&s.CustomerData, required),
			CompletionPercentage: s.CompletionPercentage(required),
		},
		Operations:  operations,
		QuoteData:   s.QuoteData,
		StoreUpdate: storeUpdateMap(decided.StoreUpdate),
		Done:        decided.Done,
	}, nil
}

// quoteRequested reports whether the decision already asked for a premium
// calculation, in which case the automatic quote check stands down for the
// turn.
func quoteRequested(calls []decision.APICall) bool {
	for _, call := range calls {
		if kind, ok := ParseOperationKind(call.Name); ok && kind == OpPremiumCalculation {
			return true
		}
	}
	return false
}

// maybeAutoQuote generates quotes as soon as age, gender, smoker status,
// coverage, and term are all on file with the numeric inputs within bounds,
// unless the current quote set was already built from the same inputs.
// Gender and smoker status gate the check because both swing the rate
// lookup; pricing on their defaults would misquote.
func (o *Orchestrator) maybeAutoQuote(s *session.Session) []OperationResult {
	data := &s.CustomerData
	age := intOrZero(data.Age)
	coverage := int64OrZero(data.CoverageAmount)
	term := intOrZero(data.PolicyTerm)

	if age == 0 || coverage == 0 || term == 0 {
		return nil
	}
	if data.Gender == nil || data.Smoker == nil {
		return nil
	}
	if !o.bounds.allows(age, coverage, term) {
		return nil
	}
	if sameQuoteInputs(s.QuoteData, age, coverage, term) {
		return nil
	}

	res := o.opPremiumCalculation(s, nil)
	if res.Success {
		o.logger.Info("auto-generated quotes",
			"session_id", s.ID, "age", age, "coverage_amount", coverage, "policy_term", term)
	}
	return []OperationResult{res}
}

// sameQuoteInputs reports whether stored quote data was produced from
// identical pricing inputs, tolerating JSON round-trips.
func sameQuoteInputs(quoteData map[string]any, age int, coverage int64, term int) bool {
	inputs, ok := quoteData["inputs"].(map[string]any)
	if !ok {
		return false
	}
	return paramInt(inputs, "age", -1) == age &&
		int64(paramFloat(inputs, "coverage_amount", -1)) == coverage &&
		paramInt(inputs, "policy_term", -1) == term
}

func (o *Orchestrator) recordTurn(ctx context.Context, s *session.Session, userMessage, reply string, decided *decision.Decision, operations []OperationResult, started time.Time) {
	if o.turnLog == nil {
		return
	}
	rec := TurnRecord{
		SessionID:   s.ID,
		Timestamp:   started,
		UserMessage: userMessage,
		Reply:       reply,
		Mode:        string(decided.Mode),
		State:       string(s.CurrentState),
		Decision:    decided,
		Operations:  operations,
		DurationMS:  nowUTC().Sub(started).Milliseconds(),
	}
	if err := o.turnLog.Append(ctx, rec); err != nil {
		// Turn logging is best-effort; the session record is the source of
		// truth.
		o.logger.Warn("turn log append failed", "session_id", s.ID, "error", err)
	}
}

func recentHistory(s *session.Session, n int) []decision.HistoryTurn {
	turns := s.ConversationHistory
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]decision.HistoryTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, decision.HistoryTurn{User: t.UserMessage, Agent: t.BotResponse})
	}
	return out
}

func missingFields(data *session.CustomerData, required []string) []string {
	missing := []string{}
	for _, f := range required {
		if !data.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func toOutcomes(results []OperationResult) []decision.OperationOutcome {
	outcomes := make([]decision.OperationOutcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, decision.OperationOutcome{
			Name:    r.Operation,
			Success: r.Success,
			Result:  r.Result,
			Error:   r.Error,
		})
	}
	return outcomes
}

func storeUpdateMap(u decision.StoreUpdate) map[string]any {
	if len(u.PersonalDetails) == 0 && len(u.QuoteDetails) == 0 {
		return nil
	}
	out := map[string]any{}
	if len(u.PersonalDetails) > 0 {
		out["personalDetails"] = u.PersonalDetails
	}
	if len(u.QuoteDetails) > 0 {
		out["quoteDetails"] = u.QuoteDetails
	}
	return out
}
