package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Simulator) {
	t.Helper()
	sim := NewSimulator("", nil,
		WithSuccessRate(1.0),
		WithSettlementDelays(time.Hour, time.Hour),
	)
	h := NewHandler(sim, nil)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, sim
}

func TestHandlerInitiate(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"session_id": "sess-1", "amount": 5430.50, "payment_method": "upi"}`
	resp, err := http.Post(srv.URL+"/initiate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p Payment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.NotEmpty(t, p.PaymentID)
	assert.Equal(t, StatusInitiated, p.Status)
	assert.Equal(t, MethodUPI, p.Method)
}

func TestHandlerInitiateRejectsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/initiate", "application/json", strings.NewReader(`{"amount": -5}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerStatus(t *testing.T) {
	srv, sim := newTestServer(t)
	p, err := sim.Initiate(context.Background(), Request{SessionID: "sess-1", Amount: 100})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/status/" + p.PaymentID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	notFound, err := http.Get(srv.URL + "/status/ghost")
	require.NoError(t, err)
	defer notFound.Body.Close()
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
}

func TestHandlerCancel(t *testing.T) {
	srv, sim := newTestServer(t)
	p, err := sim.Initiate(context.Background(), Request{SessionID: "sess-1", Amount: 100})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/"+p.PaymentID+"/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A second cancel conflicts.
	again, err := http.Post(srv.URL+"/"+p.PaymentID+"/cancel", "application/json", nil)
	require.NoError(t, err)
	defer again.Body.Close()
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

func TestHandlerReceiptBeforeSuccess(t *testing.T) {
	srv, sim := newTestServer(t)
	p, err := sim.Initiate(context.Background(), Request{SessionID: "sess-1", Amount: 100})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/" + p.PaymentID + "/receipt")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandlerStatistics(t *testing.T) {
	srv, sim := newTestServer(t)
	_, err := sim.Initiate(context.Background(), Request{SessionID: "sess-1", Amount: 100})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/statistics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1.0, stats["total_payments"])
}
