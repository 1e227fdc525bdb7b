package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-noticeboard/internal/models"
)

const (
	defaultNoticePageSize = 50
	maxNoticePageSize     = 200
)

const noticeSelect = `SELECT n.id, n.title, n.posted_by, u.username AS author_name, n.posted_at,
       n.category, n.department, n.semester, n.description, n.updated_at
FROM notices n JOIN users u ON u.id = n.posted_by`

const attachmentColumns = `id, notice_id, position, name, file_path, mime_type, size_bytes, uploaded_at`

// NoticeRepository persists notices together with their attachments.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository constructs the repository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Create inserts the notice and every attachment in a single transaction.
func (r *NoticeRepository) Create(ctx context.Context, notice *models.Notice) (err error) {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notice.PostedAt.IsZero() {
		notice.PostedAt = now
	}
	notice.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notice transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertNotice = `INSERT INTO notices (id, title, posted_by, posted_at, category, department, semester, description, updated_at)
VALUES (:id, :title, :posted_by, :posted_at, :category, :department, :semester, :description, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertNotice, notice); err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	if err = insertAttachments(ctx, tx, notice.ID, 0, notice.Attachments); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit notice: %w", err)
	}
	return nil
}

// Update rewrites the notice fields, appends new attachments and removes the listed ones.
// It returns the attachments that were removed so their files can be cleaned up.
func (r *NoticeRepository) Update(ctx context.Context, notice *models.Notice, added []models.Attachment, removeIDs []string) (removed []models.Attachment, err error) {
	notice.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin notice transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateNotice = `UPDATE notices SET title = :title, category = :category, department = :department,
semester = :semester, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, updateNotice, notice); err != nil {
		return nil, fmt.Errorf("update notice: %w", err)
	}

	if len(removeIDs) > 0 {
		query := `DELETE FROM attachments WHERE notice_id = $1 AND id = ANY($2) RETURNING ` + attachmentColumns
		if err = tx.SelectContext(ctx, &removed, query, notice.ID, pq.Array(removeIDs)); err != nil {
			return nil, fmt.Errorf("delete attachments: %w", err)
		}
	}

	if len(added) > 0 {
		var next int
		const maxPosition = `SELECT COALESCE(MAX(position) + 1, 0) FROM attachments WHERE notice_id = $1`
		if err = tx.GetContext(ctx, &next, maxPosition, notice.ID); err != nil {
			return nil, fmt.Errorf("next attachment position: %w", err)
		}
		if err = insertAttachments(ctx, tx, notice.ID, next, added); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit notice update: %w", err)
	}
	return removed, nil
}

func insertAttachments(ctx context.Context, tx *sqlx.Tx, noticeID string, offset int, attachments []models.Attachment) error {
	const insertAttachment = `INSERT INTO attachments (id, notice_id, position, name, file_path, mime_type, size_bytes, uploaded_at)
VALUES (:id, :notice_id, :position, :name, :file_path, :mime_type, :size_bytes, :uploaded_at)`
	now := time.Now().UTC()
	for i := range attachments {
		att := &attachments[i]
		if att.ID == "" {
			att.ID = uuid.NewString()
		}
		att.NoticeID = noticeID
		att.Position = offset + i
		if att.UploadedAt.IsZero() {
			att.UploadedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insertAttachment, att); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}
	return nil
}

// Delete removes a notice and its attachments in one transaction, locking the notice row first
// so a concurrent edit cannot add an attachment that is never returned.
// It returns the attachments that belonged to the notice.
func (r *NoticeRepository) Delete(ctx context.Context, id string) (removed []models.Attachment, err error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin notice transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM notices WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock notice: %w", err)
	}

	query := `DELETE FROM attachments WHERE notice_id = $1 RETURNING ` + attachmentColumns
	if err = tx.SelectContext(ctx, &removed, query, id); err != nil {
		return nil, fmt.Errorf("delete attachments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM notices WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete notice: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit notice delete: %w", err)
	}
	return removed, nil
}

// GetByID loads one notice with its attachments ordered by position.
func (r *NoticeRepository) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, noticeSelect+` WHERE n.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get notice: %w", err)
	}
	attachments, err := r.ListAttachments(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	notice.Attachments = attachments[id]
	if notice.Attachments == nil {
		notice.Attachments = []models.Attachment{}
	}
	return &notice, nil
}

// List returns notices matching the filter newest first, along with the total match count.
func (r *NoticeRepository) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	where, args := buildNoticeConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultNoticePageSize
	}
	if pageSize > maxNoticePageSize {
		pageSize = maxNoticePageSize
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY n.posted_at DESC LIMIT %d OFFSET %d", noticeSelect, where, pageSize, offset)
	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM notices n JOIN users u ON u.id = n.posted_by` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}

	if len(notices) == 0 {
		return []models.Notice{}, total, nil
	}

	ids := make([]string, len(notices))
	for i := range notices {
		ids[i] = notices[i].ID
	}
	attachments, err := r.ListAttachments(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range notices {
		notices[i].Attachments = attachments[notices[i].ID]
		if notices[i].Attachments == nil {
			notices[i].Attachments = []models.Attachment{}
		}
	}
	return notices, total, nil
}

func buildNoticeConditions(filter models.NoticeFilter) (string, []interface{}) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if filter.PostedBy != "" {
		args = append(args, filter.PostedBy)
		conditions = append(conditions, fmt.Sprintf("n.posted_by = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("n.department = $%d", len(args)))
	}
	if filter.Semester != "" && filter.Semester != models.SemesterAll {
		args = append(args, filter.Semester)
		conditions = append(conditions, fmt.Sprintf("n.semester = $%d", len(args)))
	}
	if filter.PostedFrom != nil {
		args = append(args, *filter.PostedFrom)
		conditions = append(conditions, fmt.Sprintf("n.posted_at >= $%d", len(args)))
	}
	if filter.PostedBefore != nil {
		args = append(args, *filter.PostedBefore)
		conditions = append(conditions, fmt.Sprintf("n.posted_at < $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		p := len(args)
		clause := fmt.Sprintf("n.title ILIKE $%d OR n.description ILIKE $%d OR u.username ILIKE $%d", p, p, p)
		if filter.SearchAttachments {
			clause += fmt.Sprintf(" OR EXISTS (SELECT 1 FROM attachments a WHERE a.notice_id = n.id AND (a.name ILIKE $%d OR a.file_path ILIKE $%d))", p, p)
		}
		conditions = append(conditions, "("+clause+")")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// ListAttachments returns the attachments of the given notices keyed by notice id.
func (r *NoticeRepository) ListAttachments(ctx context.Context, noticeIDs []string) (map[string][]models.Attachment, error) {
	result := make(map[string][]models.Attachment, len(noticeIDs))
	if len(noticeIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE notice_id = ANY($1) ORDER BY notice_id, position`
	var rows []models.Attachment
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(noticeIDs)); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	for _, att := range rows {
		result[att.NoticeID] = append(result[att.NoticeID], att)
	}
	return result, nil
}

// GetAttachment loads a single attachment row.
func (r *NoticeRepository) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	var att models.Attachment
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1`
	if err := r.db.GetContext(ctx, &att, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return &att, nil
}

// validID reports whether id can match a UUID key column. Anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
