package dto

import "time"

// DocumentResponseDTO describes one stored reviewer upload.
type DocumentResponseDTO struct {
	DocID      int64     `json:"doc_id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	HasText    bool      `json:"has_text"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// AdminDocumentResponseDTO describes one curated reviewer.
type AdminDocumentResponseDTO struct {
	DocID          int64     `json:"doc_id"`
	FileName       string    `json:"file_name"`
	FileType       string    `json:"file_type"`
	Category       string    `json:"category"`
	IsDownloadable bool      `json:"is_downloadable"`
	UploadedBy     string    `json:"uploaded_by"`
	UploadedAt     time.Time `json:"uploaded_at"`
}
