package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

// Handler exposes the payment simulator over HTTP.
type Handler struct {
	simulator *Simulator
	logger    *logging.Logger
}

func NewHandler(simulator *Simulator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{simulator: simulator, logger: logger}
}

// Routes mounts the payment endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/initiate", h.initiate)
	r.Get("/status/{paymentID}", h.status)
	r.Post("/{paymentID}/cancel", h.cancel)
	r.Post("/webhook", h.webhook)
	r.Get("/{paymentID}/receipt", h.receipt)
	r.Get("/statistics", h.statistics)
	return r
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.simulator.Initiate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	p, err := h.simulator.Status(paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch payment")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	if !h.simulator.Cancel(paymentID) {
		writeError(w, http.StatusConflict, "payment cannot be cancelled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_id": paymentID,
		"status":     string(StatusCancelled),
	})
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}
	result, err := h.simulator.ProcessWebhook(payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	receipt, err := h.simulator.Receipt(paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.simulator.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
