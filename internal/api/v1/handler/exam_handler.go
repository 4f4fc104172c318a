package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pretty1020/lept-reviewer/internal/api/v1/dto"
	"github.com/pretty1020/lept-reviewer/internal/middleware"
	"github.com/pretty1020/lept-reviewer/internal/service"

	"github.com/go-playground/validator/v10"
)

type ExamHandler struct {
	exams    service.ExamService
	validate *validator.Validate
}

func NewExamHandler(exams service.ExamService, v *validator.Validate) *ExamHandler {
	return &ExamHandler{exams: exams, validate: v}
}

// RegisterRoutes mounts v1 exam routes
func (h *ExamHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/v1/exams/generate", authMw(middleware.ClientIPMiddleware(http.HandlerFunc(h.generate))))
}

func (h *ExamHandler) generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.ExamRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ExamComponent == "specialization" && req.Specialization == "" {
		http.Error(w, "Specialization is required for specialization exams", http.StatusBadRequest)
		return
	}

	ipAddress := middleware.ClientIPFromContext(r.Context())
	result, err := h.exams.GenerateBatch(r.Context(), email, ipAddress, service.ExamRequest{
		EducationLevel: req.EducationLevel,
		ExamComponent:  req.ExamComponent,
		Specialization: req.Specialization,
		Difficulty:     req.Difficulty,
		DocumentIDs:    req.DocumentIDs,
		AdminDocIDs:    req.AdminDocIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, "Account not found. Please sign in again.", http.StatusNotFound)
		case errors.Is(err, service.ErrUserBlocked), errors.Is(err, service.ErrIPBlocked):
			http.Error(w, "Your account has been blocked. Please contact support.", http.StatusForbidden)
		case errors.Is(err, service.ErrQuotaExhausted):
			http.Error(w, "You've used all your questions. Upgrade to continue!", http.StatusPaymentRequired)
		case errors.Is(err, service.ErrPremiumExpired):
			http.Error(w, "Your Premium subscription has expired. Please renew to continue.", http.StatusPaymentRequired)
		default:
			http.Error(w, "Failed to generate questions: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	resp := dto.ExamResponseDTO{
		Questions:  result.Questions,
		SourceType: result.SourceType,
		Remaining:  result.Remaining,
		Plan:       result.Plan,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
