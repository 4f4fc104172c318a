package model

import "time"

// UserDocument is a reviewer file uploaded by a user. The file lives in
// object storage; only the locator is persisted.
type UserDocument struct {
	DocID         int64     `db:"doc_id" json:"doc_id"`
	Email         string    `db:"email" json:"email"`
	FileName      string    `db:"file_name" json:"file_name"`
	FileType      string    `db:"file_type" json:"file_type"`
	StoragePath   string    `db:"storage_path" json:"storage_path"`
	ExtractedText *string   `db:"extracted_text" json:"extracted_text,omitempty"`
	IsDeleted     bool      `db:"is_deleted" json:"-"`
	UploadedAt    time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// AdminDocument is a curated reviewer file. Content is stored inline so
// downloads survive object-storage churn.
type AdminDocument struct {
	DocID          int64     `db:"admin_doc_id" json:"doc_id"`
	FileName       string    `db:"file_name" json:"file_name"`
	FileType       string    `db:"file_type" json:"file_type"`
	Category       string    `db:"category" json:"category"`
	IsDownloadable bool      `db:"is_downloadable" json:"is_downloadable"`
	UploadedBy     string    `db:"uploaded_by" json:"uploaded_by"`
	ExtractedText  *string   `db:"extracted_text" json:"extracted_text,omitempty"`
	IsDeleted      bool      `db:"is_deleted" json:"-"`
	UploadedAt     time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// DocumentContent carries downloadable bytes with enough metadata to set
// response headers.
type DocumentContent struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	Content  []byte `json:"content"`
}
