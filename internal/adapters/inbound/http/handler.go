// handler.go provides HTTP REST API handlers for payment verification and billing.
//
// Routes:
//   - POST /api/verify-payment: verify an on-chain transfer against an expected payment
//   - POST /api/billing/top-up: verify a payment to the treasury and credit the wallet
//   - GET  /api/billing/history?wallet=: the wallet's billing records, newest first
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
	"github.com/ideomind/unreal-dashboard/internal/ports/inbound"
)

const maxBodySize = 64 * 1024

// Response messages.
const (
	msgMissingFields      = "Missing required fields"
	msgInvalidBody        = "Invalid request body"
	msgVerified           = "Payment verified successfully"
	msgVerificationFailed = "Payment verification failed"
	msgInternal           = "Internal server error"
)

// Handler implements HTTP handlers for the API.
type Handler struct {
	verifier inbound.PaymentVerifier
	billing  inbound.BillingService
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler. billing may be nil, in which case
// the billing routes are not registered.
func NewHandler(verifier inbound.PaymentVerifier, billing inbound.BillingService, logger *slog.Logger) (*Handler, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifier: verifier,
		billing:  billing,
		logger:   logger.With("component", "http-handler"),
	}, nil
}

// RegisterRoutes registers the API routes with the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/verify-payment", h.VerifyPayment)
		if h.billing != nil {
			r.Post("/billing/top-up", h.TopUp)
			r.Get("/billing/history", h.History)
		}
	})
}

type verifyPaymentRequest struct {
	TransactionHash string          `json:"transactionHash"`
	SenderAddress   string          `json:"senderAddress"`
	ReceiverAddress string          `json:"receiverAddress"`
	Amount          json.RawMessage `json:"amount"`
}

type verifyPaymentResponse struct {
	Success      bool                         `json:"success"`
	Message      string                       `json:"message,omitempty"`
	Transaction  *entity.ConfirmedTransaction `json:"transaction,omitempty"`
	CreditsToAdd *int64                       `json:"creditsToAdd,omitempty"`
	Error        string                       `json:"error,omitempty"`
	Details      *entity.MismatchDetails      `json:"details,omitempty"`
}

// VerifyPayment handles POST /api/verify-payment.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var body verifyPaymentRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.logger.Debug("failed to decode body", "error", err)
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	amount, err := parseAmount(body.Amount)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	req := entity.PaymentRequest{
		TransactionReference: strings.TrimSpace(body.TransactionHash),
		SenderAddress:        strings.TrimSpace(body.SenderAddress),
		ReceiverAddress:      strings.TrimSpace(body.ReceiverAddress),
		ExpectedAmount:       amount,
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	result := h.verifier.Verify(r.Context(), req)
	if !result.Verified {
		h.respondJSON(w, http.StatusBadRequest, verifyPaymentResponse{
			Success: false,
			Message: msgVerificationFailed,
			Error:   result.Reason,
			Details: result.Details,
		})
		return
	}

	resp := verifyPaymentResponse{
		Success:     true,
		Message:     msgVerified,
		Transaction: result.Transaction,
	}
	if h.billing != nil {
		if credits, err := h.billing.CreditsFor(req.ExpectedAmount); err == nil {
			resp.CreditsToAdd = &credits
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

type topUpRequest struct {
	Wallet          string          `json:"wallet"`
	TransactionHash string          `json:"transactionHash"`
	Amount          json.RawMessage `json:"amount"`
	ReceiptURL      string          `json:"receiptUrl"`
}

type topUpResponse struct {
	Success bool                  `json:"success"`
	Record  *entity.BillingRecord `json:"record"`
	Balance int64                 `json:"balance"`
}

// TopUp handles POST /api/billing/top-up.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	var body topUpRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.logger.Debug("failed to decode body", "error", err)
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	amount, err := parseAmount(body.Amount)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if strings.TrimSpace(body.Wallet) == "" || strings.TrimSpace(body.TransactionHash) == "" || amount.IsZero() {
		h.respondError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	result, err := h.billing.TopUp(r.Context(), inbound.TopUpRequest{
		Wallet:               body.Wallet,
		TransactionReference: body.TransactionHash,
		Amount:               amount,
		ReceiptURL:           body.ReceiptURL,
	})

	var vErr *inbound.VerificationFailedError
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, topUpResponse{
			Success: true,
			Record:  result.Record,
			Balance: result.Balance,
		})
	case errors.As(err, &vErr):
		h.respondJSON(w, http.StatusBadRequest, verifyPaymentResponse{
			Success: false,
			Message: msgVerificationFailed,
			Error:   vErr.Result.Reason,
			Details: vErr.Result.Details,
		})
	case errors.Is(err, inbound.ErrInvalidTopUp):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inbound.ErrAlreadyCredited), errors.Is(err, inbound.ErrVerificationInProgress):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("top-up failed", "wallet", body.Wallet, "reference", body.TransactionHash, "error", err)
		h.respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

type historyResponse struct {
	Success bool                    `json:"success"`
	Records []*entity.BillingRecord `json:"records"`
}

// History handles GET /api/billing/history?wallet=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
	if wallet == "" {
		h.respondError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	records, err := h.billing.History(r.Context(), wallet)
	switch {
	case err == nil:
		h.respondJSON(w, http.StatusOK, historyResponse{Success: true, Records: records})
	case errors.Is(err, inbound.ErrInvalidWallet):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("history failed", "wallet", wallet, "error", err)
		h.respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

// decodeBody decodes a size-limited JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
}

// parseAmount accepts a JSON number or a numeric string. A missing, null or
// empty amount yields zero so it is reported as a missing field.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, nil
		}
	}
	return decimal.NewFromString(s)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]any{"success": false, "error": message})
}
