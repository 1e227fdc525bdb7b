package models

import (
	"path"
	"time"
)

// NoticeCategory classifies a notice.
type NoticeCategory string

const (
	CategoryCommon       NoticeCategory = "Common"
	CategoryExaminations NoticeCategory = "Examinations"
	CategoryAssignments  NoticeCategory = "Assignments"
	CategoryNotes        NoticeCategory = "Notes"
	CategoryEvents       NoticeCategory = "Events"
	CategoryBacks        NoticeCategory = "Backs"
	CategoryUrgent       NoticeCategory = "Urgent"
)

// Categories lists every valid category in display order.
var Categories = []NoticeCategory{
	CategoryCommon, CategoryExaminations, CategoryAssignments, CategoryNotes,
	CategoryEvents, CategoryBacks, CategoryUrgent,
}

// Valid reports whether c is one of the fixed categories.
func (c NoticeCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Department is a department code. DepartmentAll is only meaningful as a subscription filter.
type Department string

const (
	DepartmentAll Department = "ALL"
	DepartmentCSE Department = "CSE"
	DepartmentEE  Department = "EE"
	DepartmentME  Department = "ME"
	DepartmentCE  Department = "CE"
)

var departmentNames = map[Department]string{
	DepartmentCSE: "Computer Science and Engineering",
	DepartmentEE:  "Electrical Engineering",
	DepartmentME:  "Mechanical Engineering",
	DepartmentCE:  "Civil Engineering",
	DepartmentAll: "All Departments",
}

// Departments lists the departments a notice may belong to.
var Departments = []Department{DepartmentCSE, DepartmentEE, DepartmentME, DepartmentCE}

// Valid reports whether d is a department a notice can be posted to.
func (d Department) Valid() bool {
	return d != DepartmentAll && departmentNames[d] != ""
}

// ValidFilter reports whether d is acceptable as a subscription filter (includes ALL).
func (d Department) ValidFilter() bool {
	return departmentNames[d] != ""
}

// DisplayName returns the human-readable department name, or the raw code when unknown.
func (d Department) DisplayName() string {
	if name, ok := departmentNames[d]; ok {
		return name
	}
	return string(d)
}

// Semester is S1..S8 or ALL.
type Semester string

const (
	SemesterAll Semester = "ALL"
	Semester1   Semester = "S1"
	Semester2   Semester = "S2"
	Semester3   Semester = "S3"
	Semester4   Semester = "S4"
	Semester5   Semester = "S5"
	Semester6   Semester = "S6"
	Semester7   Semester = "S7"
	Semester8   Semester = "S8"
)

// Semesters lists every valid semester value.
var Semesters = []Semester{
	Semester1, Semester2, Semester3, Semester4,
	Semester5, Semester6, Semester7, Semester8, SemesterAll,
}

// Valid reports whether s is one of the fixed semesters.
func (s Semester) Valid() bool {
	for _, known := range Semesters {
		if s == known {
			return true
		}
	}
	return false
}

// Notice represents a persisted notice row joined with its author's username.
type Notice struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	PostedBy    string         `db:"posted_by" json:"posted_by"`
	AuthorName  string         `db:"author_name" json:"author_name"`
	PostedAt    time.Time      `db:"posted_at" json:"posted_at"`
	Category    NoticeCategory `db:"category" json:"category"`
	Department  Department     `db:"department" json:"department"`
	Semester    Semester       `db:"semester" json:"semester"`
	Description string         `db:"description" json:"description"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
	Attachments []Attachment   `db:"-" json:"attachments"`
}

// Attachment is a file owned by exactly one notice.
type Attachment struct {
	ID         string    `db:"id" json:"id"`
	NoticeID   string    `db:"notice_id" json:"notice_id"`
	Position   int       `db:"position" json:"position"`
	Name       string    `db:"name" json:"name"`
	FilePath   string    `db:"file_path" json:"file_path"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// Filename returns the base name of the stored file.
func (a Attachment) Filename() string {
	return path.Base(a.FilePath)
}

// DisplayName prefers the user-supplied name over the stored filename.
func (a Attachment) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Filename()
}

// NoticeFilter narrows notice listing queries. Zero values mean "no restriction".
type NoticeFilter struct {
	Department Department
	Semester   Semester
	Search     string
	// SearchAttachments extends Search to attachment names and stored paths.
	SearchAttachments bool
	PostedBy          string
	PostedFrom        *time.Time
	PostedBefore      *time.Time
	Page              int
	PageSize          int
}
