package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/pretty1020/lept-reviewer/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository stores user-uploaded and admin-curated reviewer
// documents. Soft-deleted rows are filtered at query level, never by
// post-filtering.
type DocumentRepository interface {
	// SaveUserDocument inserts the metadata row and returns its generated
	// identifier from the insert itself.
	SaveUserDocument(ctx context.Context, d *model.UserDocument) (int64, error)
	ListUserDocuments(ctx context.Context, email string) ([]model.UserDocument, error)
	GetUserDocument(ctx context.Context, docID int64, email string) (*model.UserDocument, error)
	// SoftDeleteUserDocument is scoped by owner; a user may only delete
	// their own documents. Reports whether a row was marked.
	SoftDeleteUserDocument(ctx context.Context, docID int64, email string) (bool, error)

	SaveAdminDocument(ctx context.Context, d *model.AdminDocument, content []byte) (int64, error)
	ListAdminDocuments(ctx context.Context) ([]model.AdminDocument, error)
	// GetAdminDocumentContent returns nil for unknown, deleted, or
	// content-less documents. Missing content is normal, not exceptional.
	GetAdminDocumentContent(ctx context.Context, docID int64) (*model.DocumentContent, error)
	GetAdminDocumentText(ctx context.Context, docID int64) (*string, error)
	SetAdminDocumentDownloadable(ctx context.Context, docID int64, downloadable bool) error
	SoftDeleteAdminDocument(ctx context.Context, docID int64) (bool, error)
}

type documentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo creates a new DocumentRepository.
func NewDocumentRepo(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepo{pool: pool}
}

func (r *documentRepo) SaveUserDocument(ctx context.Context, d *model.UserDocument) (int64, error) {
	const q = `
        INSERT INTO user_documents (email, file_name, file_type, storage_path, extracted_text)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING doc_id, uploaded_at
    `
	err := r.pool.QueryRow(ctx, q,
		d.Email, d.FileName, d.FileType, d.StoragePath, d.ExtractedText,
	).Scan(&d.DocID, &d.UploadedAt)
	if err != nil {
		return 0, fmt.Errorf("save document for user %s: %w", d.Email, err)
	}
	return d.DocID, nil
}

func (r *documentRepo) ListUserDocuments(ctx context.Context, email string) ([]model.UserDocument, error) {
	const q = `
        SELECT doc_id, email, file_name, file_type, storage_path, extracted_text, uploaded_at
        FROM user_documents
        WHERE email = $1 AND is_deleted = FALSE
        ORDER BY uploaded_at DESC
    `
	rows, err := r.pool.Query(ctx, q, email)
	if err != nil {
		return nil, fmt.Errorf("list documents for user %s: %w", email, err)
	}
	defer rows.Close()

	var docs []model.UserDocument
	for rows.Next() {
		var d model.UserDocument
		if err := rows.Scan(
			&d.DocID,
			&d.Email,
			&d.FileName,
			&d.FileType,
			&d.StoragePath,
			&d.ExtractedText,
			&d.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents for user %s: %w", email, err)
	}
	return docs, nil
}

func (r *documentRepo) GetUserDocument(ctx context.Context, docID int64, email string) (*model.UserDocument, error) {
	const q = `
        SELECT doc_id, email, file_name, file_type, storage_path, extracted_text, uploaded_at
        FROM user_documents
        WHERE doc_id = $1 AND email = $2 AND is_deleted = FALSE
    `
	var d model.UserDocument
	err := r.pool.QueryRow(ctx, q, docID, email).Scan(
		&d.DocID,
		&d.Email,
		&d.FileName,
		&d.FileType,
		&d.StoragePath,
		&d.ExtractedText,
		&d.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch document %d for user %s: %w", docID, email, err)
	}
	return &d, nil
}

func (r *documentRepo) SoftDeleteUserDocument(ctx context.Context, docID int64, email string) (bool, error) {
	const q = `
        UPDATE user_documents SET is_deleted = TRUE
        WHERE doc_id = $1 AND email = $2 AND is_deleted = FALSE
    `
	tag, err := r.pool.Exec(ctx, q, docID, email)
	if err != nil {
		return false, fmt.Errorf("delete document %d for user %s: %w", docID, email, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *documentRepo) SaveAdminDocument(ctx context.Context, d *model.AdminDocument, content []byte) (int64, error) {
	const q = `
        INSERT INTO admin_documents (file_name, file_type, category, is_downloadable,
                                     uploaded_by, file_content, extracted_text)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING admin_doc_id, uploaded_at
    `
	err := r.pool.QueryRow(ctx, q,
		d.FileName, d.FileType, d.Category, d.IsDownloadable, d.UploadedBy, content, d.ExtractedText,
	).Scan(&d.DocID, &d.UploadedAt)
	if err != nil {
		return 0, fmt.Errorf("save admin document %s: %w", d.FileName, err)
	}
	return d.DocID, nil
}

func (r *documentRepo) ListAdminDocuments(ctx context.Context) ([]model.AdminDocument, error) {
	const q = `
        SELECT admin_doc_id, file_name, file_type, category, is_downloadable,
               uploaded_by, extracted_text, uploaded_at
        FROM admin_documents
        WHERE is_deleted = FALSE
        ORDER BY uploaded_at DESC
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list admin documents: %w", err)
	}
	defer rows.Close()

	var docs []model.AdminDocument
	for rows.Next() {
		var d model.AdminDocument
		if err := rows.Scan(
			&d.DocID,
			&d.FileName,
			&d.FileType,
			&d.Category,
			&d.IsDownloadable,
			&d.UploadedBy,
			&d.ExtractedText,
			&d.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan admin document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admin documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepo) GetAdminDocumentContent(ctx context.Context, docID int64) (*model.DocumentContent, error) {
	const q = `
        SELECT file_name, file_type, file_content
        FROM admin_documents
        WHERE admin_doc_id = $1 AND is_deleted = FALSE
    `
	var c model.DocumentContent
	err := r.pool.QueryRow(ctx, q, docID).Scan(&c.FileName, &c.FileType, &c.Content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch admin document %d content: %w", docID, err)
	}
	if len(c.Content) == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *documentRepo) GetAdminDocumentText(ctx context.Context, docID int64) (*string, error) {
	const q = `
        SELECT extracted_text
        FROM admin_documents
        WHERE admin_doc_id = $1 AND is_deleted = FALSE
    `
	var text *string
	err := r.pool.QueryRow(ctx, q, docID).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch admin document %d text: %w", docID, err)
	}
	return text, nil
}

func (r *documentRepo) SetAdminDocumentDownloadable(ctx context.Context, docID int64, downloadable bool) error {
	const q = `UPDATE admin_documents SET is_downloadable = $1 WHERE admin_doc_id = $2`
	if _, err := r.pool.Exec(ctx, q, downloadable, docID); err != nil {
		return fmt.Errorf("set downloadable for admin document %d: %w", docID, err)
	}
	return nil
}

func (r *documentRepo) SoftDeleteAdminDocument(ctx context.Context, docID int64) (bool, error) {
	const q = `
        UPDATE admin_documents SET is_deleted = TRUE
        WHERE admin_doc_id = $1 AND is_deleted = FALSE
    `
	tag, err := r.pool.Exec(ctx, q, docID)
	if err != nil {
		return false, fmt.Errorf("delete admin document %d: %w", docID, err)
	}
	return tag.RowsAffected() > 0, nil
}
