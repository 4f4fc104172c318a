package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/api/v1/dto"
	"github.com/pretty1020/lept-reviewer/internal/middleware"
	"github.com/pretty1020/lept-reviewer/internal/model"
	"github.com/pretty1020/lept-reviewer/internal/service"
)

// maxUploadBytes bounds reviewer uploads.
const maxUploadBytes = 20 << 20

type DocumentHandler struct {
	documents   service.DocumentService
	entitlement service.EntitlementService
}

func NewDocumentHandler(documents service.DocumentService, entitlement service.EntitlementService) *DocumentHandler {
	return &DocumentHandler{documents: documents, entitlement: entitlement}
}

// RegisterRoutes mounts v1 document routes
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/v1/documents", authMw(http.HandlerFunc(h.handleDocuments)))
	mux.Handle("/v1/documents/", authMw(http.HandlerFunc(h.handleDocument)))
	mux.Handle("/v1/reviewers", authMw(http.HandlerFunc(h.listReviewers)))
	mux.Handle("/v1/reviewers/", authMw(http.HandlerFunc(h.downloadReviewer)))
}

func (h *DocumentHandler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.uploadDocument(w, r)
	case http.MethodGet:
		h.listDocuments(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DocumentHandler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
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

	doc, err := h.documents.UploadUserDocument(r.Context(), email, header.Filename, fileType, content)
	if err != nil {
		http.Error(w, "Failed to upload document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toDocumentResponse(doc))
}

func (h *DocumentHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
		return
	}

	docs, err := h.documents.ListUserDocuments(r.Context(), email)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]dto.DocumentResponseDTO, 0, len(docs))
	for i := range docs {
		resp = append(resp, toDocumentResponse(&docs[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *DocumentHandler) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
		return
	}

	docID, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/v1/documents/"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid document ID", http.StatusBadRequest)
		return
	}

	if err := h.documents.DeleteUserDocument(r.Context(), docID, email); err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			http.Error(w, "Document not found", http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) listReviewers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	docs, err := h.documents.ListAdminDocuments(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]dto.AdminDocumentResponseDTO, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, toAdminDocumentResponse(d))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *DocumentHandler) downloadReviewer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	email, ok := middleware.UserFromContext(r.Context())
	if !ok || email == "" {
		http.Error(w, "Unauthorized: user not found in context", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/reviewers/")
	docID, err := strconv.ParseInt(strings.TrimSuffix(path, "/download"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid reviewer ID", http.StatusBadRequest)
		return
	}

	user, err := h.entitlement.GetUser(r.Context(), email)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	plan := service.DeriveEffectivePlan(user.PlanStatus, user.PremiumExpiry, time.Now())

	content, err := h.documents.DownloadAdminDocument(r.Context(), docID, plan)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanRequired):
			http.Error(w, "Reviewer downloads require a PRO or PREMIUM plan", http.StatusPaymentRequired)
		case errors.Is(err, service.ErrNotDownloadable):
			http.Error(w, "This reviewer is not available for download", http.StatusForbidden)
		case errors.Is(err, service.ErrDocumentNotFound):
			http.Error(w, "Reviewer not found", http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", content.FileType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", content.FileName))
	w.Write(content.Content)
}

func toDocumentResponse(d *model.UserDocument) dto.DocumentResponseDTO {
	return dto.DocumentResponseDTO{
		DocID:      d.DocID,
		FileName:   d.FileName,
		FileType:   d.FileType,
		HasText:    d.ExtractedText != nil && *d.ExtractedText != "",
		UploadedAt: d.UploadedAt,
	}
}

func toAdminDocumentResponse(d model.AdminDocument) dto.AdminDocumentResponseDTO {
	return dto.AdminDocumentResponseDTO{
		DocID:          d.DocID,
		FileName:       d.FileName,
		FileType:       d.FileType,
		Category:       d.Category,
		IsDownloadable: d.IsDownloadable,
		UploadedBy:     d.UploadedBy,
		UploadedAt:     d.UploadedAt,
	}
}
