package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pretty1020/lept-reviewer/internal/api/v1/dto"
	"github.com/pretty1020/lept-reviewer/internal/middleware"
	"github.com/pretty1020/lept-reviewer/internal/model"
	"github.com/pretty1020/lept-reviewer/internal/service"

	"github.com/go-playground/validator/v10"
)

type PaymentHandler struct {
	payments service.PaymentService
	validate *validator.Validate
}

func NewPaymentHandler(payments service.PaymentService, v *validator.Validate) *PaymentHandler {
	return &PaymentHandler{payments: payments, validate: v}
}

// RegisterRoutes mounts v1 payment routes
func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/v1/payments", authMw(http.HandlerFunc(h.handlePayments)))
}

func (h *PaymentHandler) handlePayments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submitPayment(w, r)
	case http.MethodGet:
		h.listMyPayments(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PaymentHandler) submitPayment(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.PaymentSubmitDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	payment := &model.PaymentRequest{
		FullName:      req.FullName,
		Email:         email,
		PlanRequested: req.PlanRequested,
		ReferenceCode: req.ReferenceCode,
		ReceiptPath:   req.ReceiptPath,
	}
	id, err := h.payments.Submit(r.Context(), payment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlan):
			http.Error(w, "Invalid plan requested", http.StatusBadRequest)
		default:
			http.Error(w, "Failed to submit payment request: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	payment.PaymentID = id
	payment.Status = model.PaymentPending

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPaymentResponse(payment))
}

func (h *PaymentHandler) listMyPayments(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
		return
	}

	payments, err := h.payments.ListForUser(r.Context(), email)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]dto.PaymentResponseDTO, 0, len(payments))
	for i := range payments {
		resp = append(resp, toPaymentResponse(&payments[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func toPaymentResponse(p *model.PaymentRequest) dto.PaymentResponseDTO {
	return dto.PaymentResponseDTO{
		PaymentID:     p.PaymentID,
		FullName:      p.FullName,
		Email:         p.Email,
		PlanRequested: p.PlanRequested,
		ReferenceCode: p.ReferenceCode,
		Status:        p.Status,
		AdminNotes:    p.AdminNotes,
		ResolvedBy:    p.ResolvedBy,
		SubmittedAt:   p.SubmittedAt,
		ResolvedAt:    p.ResolvedAt,
	}
}
