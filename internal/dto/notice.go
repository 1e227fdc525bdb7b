package dto

import (
	"io"
	"time"

	"github.com/noah-isme/campus-noticeboard/internal/models"
)

// NoticeForm holds the editable notice fields submitted by staff.
type NoticeForm struct {
	Title       string `form:"title" json:"title" validate:"required,max=200"`
	Category    string `form:"category" json:"category" validate:"notice_category"`
	Department  string `form:"department" json:"department" validate:"department"`
	Semester    string `form:"semester" json:"semester" validate:"semester"`
	Description string `form:"description" json:"description" validate:"required"`
}

// AttachmentUpload carries one uploaded file and its optional display name.
type AttachmentUpload struct {
	Filename string
	Name     string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// NoticeListQuery filters the default listing.
type NoticeListQuery struct {
	Department string `form:"department"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// ArchiveQuery filters the full archive.
type ArchiveQuery struct {
	Department string `form:"department"`
	Semester   string `form:"semester"`
	Search     string `form:"search"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// AttachmentResponse describes one attachment with a signed download link.
type AttachmentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	DownloadURL string `json:"download_url,omitempty"`
}

// NoticeResponse is the public representation of a notice.
type NoticeResponse struct {
	ID                    string                `json:"id"`
	Title                 string                `json:"title"`
	Category              models.NoticeCategory `json:"category"`
	Department            models.Department     `json:"department"`
	DepartmentDisplayName string                `json:"department_display_name"`
	Semester              models.Semester       `json:"semester"`
	Description           string                `json:"description"`
	PostedBy              string                `json:"posted_by"`
	AuthorName            string                `json:"author_name"`
	PostedAt              time.Time             `json:"posted_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	Attachments           []AttachmentResponse  `json:"attachments"`
}
