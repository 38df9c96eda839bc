package payments

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

// Status is the lifecycle state of a simulated payment.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

func (s Status) valid() bool {
	switch s {
	case StatusInitiated, StatusProcessing, StatusSuccess, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Method is the customer's chosen payment instrument.
type Method string

const (
	MethodCreditCard Method = "credit_card"
	MethodDebitCard  Method = "debit_card"
	MethodNetBanking Method = "net_banking"
	MethodUPI        Method = "upi"
	MethodWallet     Method = "wallet"
)

// ParseMethod maps free text to a method, defaulting to credit card.
func ParseMethod(raw string) Method {
	switch Method(strings.ToLower(strings.TrimSpace(raw))) {
	case MethodDebitCard:
		return MethodDebitCard
	case MethodNetBanking:
		return MethodNetBanking
	case MethodUPI:
		return MethodUPI
	case MethodWallet:
		return MethodWallet
	default:
		return MethodCreditCard
	}
}

// Request describes one payment to initiate.
type Request struct {
	SessionID       string         `json:"session_id"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	Method          Method         `json:"payment_method"`
	CustomerDetails map[string]any `json:"customer_details"`
	PolicyDetails   map[string]any `json:"policy_details"`
	ReturnURL       string         `json:"return_url"`
}

// Payment is the simulator-owned record. Callers receive copies and only
// ever reference a payment by id.
type Payment struct {
	PaymentID       string         `json:"payment_id"`
	TransactionID   string         `json:"transaction_id"`
	Status          Status         `json:"status"`
	PaymentURL      string         `json:"payment_url"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	Method          Method         `json:"payment_method"`
	GatewayResponse map[string]any `json:"gateway_response"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ErrPaymentNotFound distinguishes an unknown payment id from a failure.
var ErrPaymentNotFound = errors.New("payments: payment not found")

var failureReasons = []string{
	"Insufficient funds",
	"Card declined by bank",
	"Transaction timeout",
	"Invalid card details",
	"Bank server unavailable",
}

// Simulator models a payment gateway: initiate, asynchronous settlement with
// a configurable success rate, cancellation, webhooks, and receipts. Intended
// for demos and tests; never a real gateway.
type Simulator struct {
	mu       sync.Mutex
	payments map[string]*Payment

	successRate  float64
	processDelay time.Duration
	settleDelay  time.Duration
	rng          *rand.Rand
	baseURL      string
	webhookFn    func(Payment)
	logger       *logging.Logger
}

// SimulatorOption configures the simulator.
type SimulatorOption func(*Simulator)

// WithSuccessRate overrides the settlement success probability (0..1).
func WithSuccessRate(rate float64) SimulatorOption {
	return func(s *Simulator) {
		if rate >= 0 && rate <= 1 {
			s.successRate = rate
		}
	}
}

// WithSettlementDelays overrides the simulated processing delays. Tests use
// tiny values so settlement finishes quickly.
func WithSettlementDelays(process, settle time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if process >= 0 {
			s.processDelay = process
		}
		if settle >= 0 {
			s.settleDelay = settle
		}
	}
}

// WithRand injects a deterministic random source.
func WithRand(rng *rand.Rand) SimulatorOption {
	return func(s *Simulator) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithWebhook registers a callback invoked after settlement, simulating the
// gateway's webhook delivery.
func WithWebhook(fn func(Payment)) SimulatorOption {
	return func(s *Simulator) { s.webhookFn = fn }
}

// NewSimulator builds a simulator with an 85% success rate and realistic
// settlement delays.
func NewSimulator(baseURL string, logger *logging.Logger, opts ...SimulatorOption) *Simulator {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = "https://mock-gateway.lifeshield.example"
	}
	s := &Simulator{
		payments:     make(map[string]*Payment),
		successRate:  0.85,
		processDelay: 2 * time.Second,
		settleDelay:  5 * time.Second,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate records a new payment and kicks off asynchronous settlement. It
// returns immediately with status "initiated"; callers observe the outcome by
// polling Status or via the webhook callback, never by blocking here.
func (s *Simulator) Initiate(_ context.Context, req Request) (*Payment, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("payments: session id is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payments: amount must be positive, got %.2f", req.Amount)
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}
	if req.Method == "" {
		req.Method = MethodCreditCard
	}

	now := time.Now().UTC()
	paymentID := uuid.NewString()
	p := &Payment{
		PaymentID:     paymentID,
		TransactionID: fmt.Sprintf("TXN%s%s", now.Format("20060102150405"), paymentID[:8]),
		Status:        StatusInitiated,
		PaymentURL:    fmt.Sprintf("%s/pay/%s", s.baseURL, paymentID),
		Amount:        req.Amount,
		Currency:      req.Currency,
		Method:        req.Method,
		GatewayResponse: map[string]any{
			"gateway":        "MockPaymentGateway",
			"merchant_id":    "LIFESHIELD_TERM",
			"amount":         req.Amount,
			"currency":       req.Currency,
			"payment_method": string(req.Method),
			"session_id":     req.SessionID,
			"return_url":     req.ReturnURL,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.payments[paymentID] = p
	s.mu.Unlock()

	go s.settle(paymentID)

	s.logger.Info("payment initiated", "payment_id", paymentID, "session_id", req.SessionID, "amount", req.Amount)
	return copyPayment(p), nil
}

// Status returns a copy of the payment record, or ErrPaymentNotFound.
func (s *Simulator) Status(paymentID string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

// Cancel aborts a payment that has not yet settled. Returns false once the
// payment reached a terminal status.
func (s *Simulator) Cancel(paymentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return false
	}
	if p.Status != StatusInitiated && p.Status != StatusProcessing {
		return false
	}
	p.Status = StatusCancelled
	p.UpdatedAt = time.Now().UTC()
	p.GatewayResponse["cancelled_at"] = p.UpdatedAt.Format(time.RFC3339)
	p.GatewayResponse["cancellation_reason"] = "User initiated cancellation"
	s.logger.Info("payment cancelled", "payment_id", paymentID)
	return true
}

// ProcessWebhook applies a gateway callback payload to the referenced
// payment.
func (s *Simulator) ProcessWebhook(payload map[string]any) (map[string]any, error) {
	paymentID, _ := payload["payment_id"].(string)
	statusRaw, _ := payload["status"].(string)
	status := Status(statusRaw)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || !status.valid() {
		return map[string]any{"status": "error", "message": "Invalid webhook data"}, fmt.Errorf("payments: invalid webhook payload")
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	for k, v := range payload {
		p.GatewayResponse[k] = v
	}
	s.logger.Info("payment webhook processed", "payment_id", paymentID, "status", statusRaw)
	return map[string]any{"status": "success", "message": "Webhook processed"}, nil
}

// Receipt builds receipt data for a successful payment.
func (s *Simulator) Receipt(paymentID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if p.Status != StatusSuccess {
		return nil, fmt.Errorf("payments: payment %s is %s, receipt requires success", paymentID, p.Status)
	}
	now := time.Now().UTC()
	return map[string]any{
		"receipt_id":         fmt.Sprintf("RCP%s%s", now.Format("20060102150405"), paymentID[:6]),
		"payment_id":         p.PaymentID,
		"transaction_id":     p.TransactionID,
		"amount":             p.Amount,
		"currency":           p.Currency,
		"payment_method":     string(p.Method),
		"paid_at":            p.GatewayResponse["success_at"],
		"authorization_code": p.GatewayResponse["authorization_code"],
		"bank_reference":     p.GatewayResponse["bank_reference_number"],
		"merchant_details": map[string]any{
			"name":        "Life Shield Term Insurance",
			"merchant_id": "LIFESHIELD_TERM",
		},
		"receipt_url": fmt.Sprintf("%s/receipt/%s", s.baseURL, paymentID),
	}, nil
}

// PolicyNumber derives a mock policy number for a settled payment.
func (s *Simulator) PolicyNumber(sessionID, paymentID string) string {
	sid := strings.ToUpper(sessionID)
	if len(sid) > 8 {
		sid = sid[:8]
	}
	pid := strings.ToUpper(paymentID)
	if len(pid) > 4 {
		pid = pid[:4]
	}
	return fmt.Sprintf("LSTERM%s%s%s", time.Now().UTC().Format("20060102"), sid, pid)
}

// Stats summarizes processing outcomes for monitoring.
func (s *Simulator) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.payments)
	if total == 0 {
		return map[string]any{"total_payments": 0}
	}
	statusCounts := map[string]int{}
	var totalAmount float64
	for _, p := range s.payments {
		statusCounts[string(p.Status)]++
		if p.Status == StatusSuccess {
			totalAmount += p.Amount
		}
	}
	return map[string]any{
		"total_payments":          total,
		"status_breakdown":        statusCounts,
		"total_successful_amount": totalAmount,
		"success_rate":            float64(statusCounts[string(StatusSuccess)]) / float64(total),
		"failure_rate":            float64(statusCounts[string(StatusFailed)]) / float64(total),
	}
}

// settle drives the asynchronous lifecycle: initiated -> processing ->
// success or failed. A payment cancelled mid-flight stays cancelled.
func (s *Simulator) settle(paymentID string) {
	time.Sleep(s.processDelay)

	s.mu.Lock()
	p, ok := s.payments[paymentID]
	if !ok || p.Status != StatusInitiated {
		s.mu.Unlock()
		return
	}
	p.Status = StatusProcessing
	p.UpdatedAt = time.Now().UTC()
	p.GatewayResponse["processing_started_at"] = p.UpdatedAt.Format(time.RFC3339)
	s.mu.Unlock()

	time.Sleep(s.settleDelay)

	s.mu.Lock()
	p, ok = s.payments[paymentID]
	if !ok || p.Status != StatusProcessing {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	if s.rng.Float64() < s.successRate {
		p.Status = StatusSuccess
		p.GatewayResponse["success_at"] = now.Format(time.RFC3339)
		p.GatewayResponse["authorization_code"] = fmt.Sprintf("AUTH%06d", s.rng.Intn(1_000_000))
		p.GatewayResponse["gateway_transaction_id"] = fmt.Sprintf("GTW%010d", s.rng.Int63n(10_000_000_000))
		p.GatewayResponse["bank_reference_number"] = fmt.Sprintf("BRN%010d", s.rng.Int63n(10_000_000_000))
		s.logger.Info("payment settled", "payment_id", paymentID, "status", "success")
	} else {
		p.Status = StatusFailed
		p.GatewayResponse["failed_at"] = now.Format(time.RFC3339)
		p.GatewayResponse["failure_reason"] = failureReasons[s.rng.Intn(len(failureReasons))]
		p.GatewayResponse["error_code"] = fmt.Sprintf("ERR%04d", s.rng.Intn(10_000))
		s.logger.Info("payment settled", "payment_id", paymentID, "status", "failed")
	}
	p.UpdatedAt = now
	settled := *copyPayment(p)
	webhook := s.webhookFn
	s.mu.Unlock()

	if webhook != nil {
		webhook(settled)
	}
}

func copyPayment(p *Payment) *Payment {
	cp := *p
	cp.GatewayResponse = make(map[string]any, len(p.GatewayResponse))
	for k, v := range p.GatewayResponse {
		cp.GatewayResponse[k] = v
	}
	return &cp
}
