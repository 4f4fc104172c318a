package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pretty1020/lept-reviewer/internal/cache"
	"github.com/pretty1020/lept-reviewer/internal/model"
	"github.com/pretty1020/lept-reviewer/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DocumentService manages the two document collections: per-user study
// uploads stored in S3 and admin-curated reviewers stored inline.
type DocumentService interface {
	// UploadUserDocument stores the file in S3 and records it. Text
	// extraction is attempted but never fails the upload.
	UploadUserDocument(ctx context.Context, email, fileName, fileType string, content []byte) (*model.UserDocument, error)
	ListUserDocuments(ctx context.Context, email string) ([]model.UserDocument, error)
	GetUserDocumentText(ctx context.Context, docID int64, email string) (string, error)
	DeleteUserDocument(ctx context.Context, docID int64, email string) error

	UploadAdminDocument(ctx context.Context, uploadedBy, fileName, fileType, category string, downloadable bool, content []byte) (*model.AdminDocument, error)
	ListAdminDocuments(ctx context.Context) ([]model.AdminDocument, error)
	GetAdminDocumentText(ctx context.Context, docID int64) (string, error)
	// DownloadAdminDocument gates on the reviewer's downloadable flag
	// and on the caller holding a paid plan.
	DownloadAdminDocument(ctx context.Context, docID int64, plan EffectivePlan) (*model.DocumentContent, error)
	SetAdminDocumentDownloadable(ctx context.Context, actor string, docID int64, downloadable bool) error
	DeleteAdminDocument(ctx context.Context, actor string, docID int64) error
}

type documentService struct {
	docs       repository.DocumentRepository
	audit      repository.AuditRepository
	s3Client   *s3.Client
	bucketName string
	extractor  TextExtractor
	cache      *cache.Cache
	maxTextLen int
	logger     zerolog.Logger
}

func NewDocumentService(
	docs repository.DocumentRepository,
	audit repository.AuditRepository,
	s3Client *s3.Client,
	bucketName string,
	extractor TextExtractor,
	c *cache.Cache,
	maxTextLen int,
	logger zerolog.Logger,
) DocumentService {
	return &documentService{
		docs:       docs,
		audit:      audit,
		s3Client:   s3Client,
		bucketName: bucketName,
		extractor:  extractor,
		cache:      c,
		maxTextLen: maxTextLen,
		logger:     logger.With().Str("service", "DocumentService").Logger(),
	}
}

func (s *documentService) UploadUserDocument(ctx context.Context, email, fileName, fileType string, content []byte) (*model.UserDocument, error) {
	storagePath := fmt.Sprintf("user-documents/%s/%s-%s", email, uuid.NewString(), fileName)
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(storagePath),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Failed to upload document to S3")
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &model.UserDocument{
		Email:       email,
		FileName:    fileName,
		FileType:    fileType,
		StoragePath: storagePath,
	}
	if s.extractor != nil {
		extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		text, err := s.extractor.Extract(extractCtx, fileName, content)
		cancel()
		if err != nil {
			// The document is still usable for download; only
			// generation from its text is unavailable.
			s.logger.Warn().Err(err).Str("file_name", fileName).Msg("text extraction failed, storing without text")
		} else {
			text = truncate(text, s.maxTextLen)
			doc.ExtractedText = &text
		}
	}

	id, err := s.docs.SaveUserDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}
	doc.DocID = id
	_ = s.cache.Evict(ctx, cache.KindUserDocs)
	return doc, nil
}

func (s *documentService) ListUserDocuments(ctx context.Context, email string) ([]model.UserDocument, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.KindUserDocs, email, func(ctx context.Context) ([]model.UserDocument, error) {
		return s.docs.ListUserDocuments(ctx, email)
	})
}

func (s *documentService) GetUserDocumentText(ctx context.Context, docID int64, email string) (string, error) {
	doc, err := s.docs.GetUserDocument(ctx, docID, email)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", ErrDocumentNotFound
	}
	if doc.ExtractedText == nil || *doc.ExtractedText == "" {
		return "", fmt.Errorf("document %d has no extracted text", docID)
	}
	return *doc.ExtractedText, nil
}

func (s *documentService) DeleteUserDocument(ctx context.Context, docID int64, email string) error {
	ok, err := s.docs.SoftDeleteUserDocument(ctx, docID, email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDocumentNotFound
	}
	// The S3 object is kept; the record is only hidden.
	_ = s.cache.Evict(ctx, cache.KindUserDocs)
	return nil
}

func (s *documentService) UploadAdminDocument(ctx context.Context, uploadedBy, fileName, fileType, category string, downloadable bool, content []byte) (*model.AdminDocument, error) {
	doc := &model.AdminDocument{
		FileName:       fileName,
		FileType:       fileType,
		Category:       category,
		IsDownloadable: downloadable,
		UploadedBy:     uploadedBy,
	}
	if s.extractor != nil {
		extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		text, err := s.extractor.Extract(extractCtx, fileName, content)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Str("file_name", fileName).Msg("text extraction failed, storing without text")
		} else {
			text = truncate(text, s.maxTextLen)
			doc.ExtractedText = &text
		}
	}

	id, err := s.docs.SaveAdminDocument(ctx, doc, content)
	if err != nil {
		return nil, fmt.Errorf("failed to save reviewer: %w", err)
	}
	doc.DocID = id
	_ = s.cache.Evict(ctx, cache.KindAdminDocs)
	if err := s.audit.RecordAction(ctx, uploadedBy, "UPLOAD_REVIEWER", fileName); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record admin action")
	}
	return doc, nil
}

func (s *documentService) ListAdminDocuments(ctx context.Context) ([]model.AdminDocument, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.KindAdminDocs, "all", func(ctx context.Context) ([]model.AdminDocument, error) {
		return s.docs.ListAdminDocuments(ctx)
	})
}

func (s *documentService) GetAdminDocumentText(ctx context.Context, docID int64) (string, error) {
	text, err := s.docs.GetAdminDocumentText(ctx, docID)
	if err != nil {
		return "", err
	}
	if text == nil || *text == "" {
		return "", ErrDocumentNotFound
	}
	return *text, nil
}

func (s *documentService) DownloadAdminDocument(ctx context.Context, docID int64, plan EffectivePlan) (*model.DocumentContent, error) {
	if plan == EffectiveFree || plan == EffectivePremiumExpired {
		return nil, ErrPlanRequired
	}
	docs, err := s.ListAdminDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var found *model.AdminDocument
	for i := range docs {
		if docs[i].DocID == docID {
			found = &docs[i]
			break
		}
	}
	if found == nil {
		return nil, ErrDocumentNotFound
	}
	if !found.IsDownloadable {
		return nil, ErrNotDownloadable
	}
	content, err := s.docs.GetAdminDocumentContent(ctx, docID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, ErrDocumentNotFound
	}
	return content, nil
}

func (s *documentService) SetAdminDocumentDownloadable(ctx context.Context, actor string, docID int64, downloadable bool) error {
	if err := s.docs.SetAdminDocumentDownloadable(ctx, docID, downloadable); err != nil {
		return err
	}
	_ = s.cache.Evict(ctx, cache.KindAdminDocs)
	return s.audit.RecordAction(ctx, actor, "SET_REVIEWER_DOWNLOADABLE", fmt.Sprintf("doc %d -> %t", docID, downloadable))
}

func (s *documentService) DeleteAdminDocument(ctx context.Context, actor string, docID int64) error {
	ok, err := s.docs.SoftDeleteAdminDocument(ctx, docID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDocumentNotFound
	}
	_ = s.cache.Evict(ctx, cache.KindAdminDocs)
	return s.audit.RecordAction(ctx, actor, "DELETE_REVIEWER", fmt.Sprintf("doc %d", docID))
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
