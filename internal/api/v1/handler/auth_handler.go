package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/api/v1/dto"
	"github.com/pretty1020/lept-reviewer/internal/middleware"
	"github.com/pretty1020/lept-reviewer/internal/model"
	"github.com/pretty1020/lept-reviewer/internal/service"
	"github.com/pretty1020/lept-reviewer/internal/util"

	"github.com/go-playground/validator/v10"
)

type AuthHandler struct {
	entitlement service.EntitlementService
	validate    *validator.Validate
	jwtSecret   string
	sessionTTL  time.Duration
	isAdmin     func(email string) bool
}

func NewAuthHandler(
	entitlement service.EntitlementService,
	v *validator.Validate,
	jwtSecret string,
	sessionTTL time.Duration,
	isAdmin func(email string) bool,
) *AuthHandler {
	return &AuthHandler{
		entitlement: entitlement,
		validate:    v,
		jwtSecret:   jwtSecret,
		sessionTTL:  sessionTTL,
		isAdmin:     isAdmin,
	}
}

// RegisterRoutes mounts v1 auth routes. Login is unauthenticated but
// still passes through the client IP resolver.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/v1/auth/login", middleware.ClientIPMiddleware(http.HandlerFunc(h.login)))
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dto.LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	ipAddress := middleware.ClientIPFromContext(r.Context())
	user, created, err := h.entitlement.GetOrCreateUser(r.Context(), req.Email, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserBlocked), errors.Is(err, service.ErrIPBlocked):
			http.Error(w, "Your account has been blocked. Please contact support.", http.StatusForbidden)
		default:
			http.Error(w, "Failed to sign in: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	token, err := util.IssueJWT(user.Email, h.isAdmin(user.Email), h.jwtSecret, h.sessionTTL)
	if err != nil {
		http.Error(w, "Failed to issue session token", http.StatusInternalServerError)
		return
	}

	resp := dto.LoginResponseDTO{
		Token:   token,
		Created: created,
		User:    toUserResponse(user),
	}
	w.Header().Set("Content-Type", "application/json")
	if created {
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(resp)
}

func toUserResponse(u *model.User) dto.UserResponseDTO {
	return dto.UserResponseDTO{
		Email:              u.Email,
		PlanStatus:         u.PlanStatus,
		EffectivePlan:      service.DeriveEffectivePlan(u.PlanStatus, u.PremiumExpiry, time.Now()).String(),
		QuestionsRemaining: u.QuestionsRemaining,
		QuestionsUsedTotal: u.QuestionsUsedTotal,
		PremiumExpiry:      u.PremiumExpiry,
		IsBlocked:          u.IsBlocked,
		CreatedAt:          u.CreatedAt,
		LastActive:         u.UpdatedAt,
	}
}
