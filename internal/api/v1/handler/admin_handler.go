package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pretty1020/lept-reviewer/internal/api/v1/dto"
	"github.com/pretty1020/lept-reviewer/internal/middleware"
	"github.com/pretty1020/lept-reviewer/internal/service"

	"github.com/go-playground/validator/v10"
)

type AdminHandler struct {
	entitlement service.EntitlementService
	payments    service.PaymentService
	documents   service.DocumentService
	audit       service.AuditService
	validate    *validator.Validate
}

func NewAdminHandler(
	entitlement service.EntitlementService,
	payments service.PaymentService,
	documents service.DocumentService,
	audit service.AuditService,
	v *validator.Validate,
) *AdminHandler {
	return &AdminHandler{
		entitlement: entitlement,
		payments:    payments,
		documents:   documents,
		audit:       audit,
		validate:    v,
	}
}

// RegisterRoutes mounts v1 admin routes. Every route requires the admin
// claim on top of authentication.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	admin := func(fn http.HandlerFunc) http.Handler {
		return authMw(middleware.AdminOnly(fn))
	}
	mux.Handle("/v1/admin/users", admin(h.listUsers))
	mux.Handle("/v1/admin/users/", admin(h.handleUser))
	mux.Handle("/v1/admin/ips/", admin(h.handleIP))
	mux.Handle("/v1/admin/payments", admin(h.listPayments))
	mux.Handle("/v1/admin/payments/", admin(h.handlePayment))
	mux.Handle("/v1/admin/reviewers", admin(h.handleReviewers))
	mux.Handle("/v1/admin/reviewers/", admin(h.handleReviewer))
	mux.Handle("/v1/admin/usage", admin(h.listUsage))
	mux.Handle("/v1/admin/audit", admin(h.listAudit))
}

func (h *AdminHandler) actor(r *http.Request) string {
	email, _ := middleware.UserFromContext(r.Context())
	return email
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	users, err := h.entitlement.ListUsers(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]dto.UserResponseDTO, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleUser dispatches /v1/admin/users/{email}[/block|/quota|/plan].
func (h *AdminHandler) handleUser(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/users/")
	email, action, _ := strings.Cut(rest, "/")
	if email == "" {
		http.Error(w, "Missing user email", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		h.deleteUser(w, r, email)
	case action == "block" && r.Method == http.MethodPost:
		h.blockUser(w, r, email)
	case action == "quota" && r.Method == http.MethodPost:
		h.setQuota(w, r, email)
	case action == "plan" && r.Method == http.MethodPost:
		h.setPlan(w, r, email)
	default:
		http.NotFound(w, r)
	}
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request, email string) {
	if err := h.entitlement.DeleteUser(r.Context(), h.actor(r), email); err != nil {
		http.Error(w, "Failed to delete user: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) blockUser(w http.ResponseWriter, r *http.Request, email string) {
	var req dto.BlockRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.entitlement.SetUserBlocked(r.Context(), h.actor(r), email, req.Blocked); err != nil {
		http.Error(w, "Failed to update block status: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) setQuota(w http.ResponseWriter, r *http.Request, email string) {
	var req dto.QuotaRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.entitlement.AdjustQuota(r.Context(), h.actor(r), email, req.QuestionsRemaining); err != nil {
		http.Error(w, "Failed to adjust quota: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) setPlan(w http.ResponseWriter, r *http.Request, email string) {
	var req dto.PlanRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.entitlement.AdminChangePlan(r.Context(), h.actor(r), email, req.Plan, req.Quota); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPlan):
			http.Error(w, "Invalid plan", http.StatusBadRequest)
		default:
			http.Error(w, "Failed to change plan: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleIP dispatches /v1/admin/ips/{ip}/block.
func (h *AdminHandler) handleIP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/ips/")
	ip, action, _ := strings.Cut(rest, "/")
	if ip == "" || action != "block" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req dto.BlockRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.entitlement.SetIPBlocked(r.Context(), h.actor(r), ip, req.Blocked); err != nil {
		http.Error(w, "Failed to update IP block status: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		payments []dto.PaymentResponseDTO
		err      error
	)
	if r.URL.Query().Get("status") == "pending" {
		pending, perr := h.payments.ListPending(r.Context())
		err = perr
		for i := range pending {
			payments = append(payments, toPaymentResponse(&pending[i]))
		}
	} else {
		all, perr := h.payments.ListAll(r.Context())
		err = perr
		for i := range all {
			payments = append(payments, toPaymentResponse(&all[i]))
		}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if payments == nil {
		payments = []dto.PaymentResponseDTO{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payments)
}

// handlePayment dispatches /v1/admin/payments/{id}/approve|reject.
func (h *AdminHandler) handlePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/payments/")
	idPart, action, _ := strings.Cut(rest, "/")
	paymentID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		http.Error(w, "Invalid payment ID", http.StatusBadRequest)
		return
	}

	var req dto.PaymentResolveDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	switch action {
	case "approve":
		err = h.payments.Approve(r.Context(), h.actor(r), paymentID, req.Notes)
	case "reject":
		err = h.payments.Reject(r.Context(), h.actor(r), paymentID, req.Notes)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			http.Error(w, "Payment request not found", http.StatusNotFound)
		case errors.Is(err, service.ErrPaymentNotPending):
			http.Error(w, "Payment request already resolved", http.StatusConflict)
		default:
			http.Error(w, "Failed to resolve payment: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleReviewers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	fileType := header.Header.Get("Content-Type")
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	category := r.FormValue("category")
	downloadable := r.FormValue("downloadable") == "true"

	doc, err := h.documents.UploadAdminDocument(r.Context(), h.actor(r), header.Filename, fileType, category, downloadable, content)
	if err != nil {
		http.Error(w, "Failed to upload reviewer: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAdminDocumentResponse(*doc))
}

// handleReviewer dispatches /v1/admin/reviewers/{id}[/downloadable].
func (h *AdminHandler) handleReviewer(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/reviewers/")
	idPart, action, _ := strings.Cut(rest, "/")
	docID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		http.Error(w, "Invalid reviewer ID", http.StatusBadRequest)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		err = h.documents.DeleteAdminDocument(r.Context(), h.actor(r), docID)
	case action == "downloadable" && r.Method == http.MethodPost:
		var req dto.BlockRequestDTO
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil {
			http.Error(w, "Invalid JSON payload: "+derr.Error(), http.StatusBadRequest)
			return
		}
		err = h.documents.SetAdminDocumentDownloadable(r.Context(), h.actor(r), docID, req.Blocked)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			http.Error(w, "Reviewer not found", http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	events, err := h.entitlement.UsageAll(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUsageResponses(events))
}

func (h *AdminHandler) listAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	actions, err := h.audit.ListActions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]dto.AdminActionResponseDTO, 0, len(actions))
	for _, a := range actions {
		resp = append(resp, dto.AdminActionResponseDTO{
			ActionID:   a.ActionID,
			AdminUser:  a.AdminUser,
			ActionType: a.ActionType,
			Details:    a.Details,
			ActionTime: a.ActionTime,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
