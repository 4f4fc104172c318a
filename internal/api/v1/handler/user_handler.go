package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pretty1020/lept-reviewer/internal/api/v1/dto"
	"github.com/pretty1020/lept-reviewer/internal/middleware"
	"github.com/pretty1020/lept-reviewer/internal/model"
	"github.com/pretty1020/lept-reviewer/internal/service"
)

type UserHandler struct {
	entitlement service.EntitlementService
}

func NewUserHandler(entitlement service.EntitlementService) *UserHandler {
	return &UserHandler{entitlement: entitlement}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/v1/users/me", authMw(http.HandlerFunc(h.getMe)))
	mux.Handle("/v1/users/me/status", authMw(http.HandlerFunc(h.getStatus)))
	mux.Handle("/v1/users/me/usage", authMw(http.HandlerFunc(h.getUsage)))
}

func (h *UserHandler) getMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
		return
	}

	user, err := h.entitlement.GetUser(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	resp := toUserResponse(user)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *UserHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
		return
	}

	count := h.entitlement.Limits().QuestionsPerBatch
	decision, err := h.entitlement.Evaluate(r.Context(), email, count)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := dto.StatusResponseDTO{
		Allowed:   decision.Allowed,
		Reason:    decision.Reason,
		Message:   decision.Message,
		Plan:      decision.Plan.String(),
		Remaining: decision.Remaining,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *UserHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
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

	events, err := h.entitlement.UsageForUser(r.Context(), email, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := toUsageResponses(events)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func toUsageResponses(events []model.UsageEvent) []dto.UsageEventResponseDTO {
	resp := make([]dto.UsageEventResponseDTO, 0, len(events))
	for _, e := range events {
		resp = append(resp, dto.UsageEventResponseDTO{
			EventID:            e.EventID,
			Email:              e.Email,
			IPAddress:          e.IPAddress,
			QuestionsGenerated: e.QuestionsGenerated,
			SourceType:         e.SourceType,
			Category:           e.Category,
			Difficulty:         e.Difficulty,
			EventTime:          e.EventTime,
		})
	}
	return resp
}
