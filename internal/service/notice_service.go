package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

type noticeStore interface {
	Create(ctx context.Context, notice *models.Notice) error
	Update(ctx context.Context, notice *models.Notice, added []models.Attachment, removeIDs []string) ([]models.Attachment, error)
	Delete(ctx context.Context, id string) ([]models.Attachment, error)
	GetByID(ctx context.Context, id string) (*models.Notice, error)
}

type attachmentManager interface {
	Store(uploads []dto.AttachmentUpload) ([]models.Attachment, error)
	Remove(attachments []models.Attachment)
	MaxPerNotice() int
}

type noticeNotifier interface {
	Notify(ctx context.Context, notice *models.Notice) FanoutSummary
}

type noticeCacheInvalidator interface {
	InvalidateNotices(ctx context.Context)
}

type noticeMetrics interface {
	RecordNoticeEvent(action string)
}

// RequestMeta carries caller details recorded in the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// NoticeService publishes, edits and removes notices.
type NoticeService struct {
	repo        noticeStore
	attachments attachmentManager
	notifier    noticeNotifier
	cache       noticeCacheInvalidator
	audit       auditLogger
	metrics     noticeMetrics
	validator   *validator.Validate
	logger      *zap.Logger
}

// NoticeServiceDeps groups the collaborators of NoticeService.
type NoticeServiceDeps struct {
	Repo        noticeStore
	Attachments attachmentManager
	Notifier    noticeNotifier
	Cache       noticeCacheInvalidator
	Audit       auditLogger
	Metrics     noticeMetrics
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewNoticeService constructs the publisher.
func NewNoticeService(deps NoticeServiceDeps) *NoticeService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}
	return &NoticeService{
		repo:        deps.Repo,
		attachments: deps.Attachments,
		notifier:    deps.Notifier,
		cache:       deps.Cache,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		validator:   deps.Validator,
		logger:      deps.Logger,
	}
}

// Create validates and persists a notice with its attachments, then runs the push fan-out once.
// Fan-out problems are logged by the notifier and never fail the publish.
func (s *NoticeService) Create(ctx context.Context, form dto.NoticeForm, uploads []dto.AttachmentUpload, actor *models.JWTClaims, meta RequestMeta) (*models.Notice, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	form = withCreateDefaults(normalizeNoticeForm(form))
	if err := s.validator.Struct(form); err != nil {
		return nil, validationError(err)
	}
	if len(uploads) > s.attachments.MaxPerNotice() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d attachments are allowed", s.attachments.MaxPerNotice()))
	}

	stored, err := s.attachments.Store(uploads)
	if err != nil {
		return nil, err
	}

	notice := &models.Notice{
		Title:       form.Title,
		PostedBy:    actor.UserID,
		AuthorName:  actor.Username,
		Category:    models.NoticeCategory(form.Category),
		Department:  models.Department(form.Department),
		Semester:    models.Semester(form.Semester),
		Description: form.Description,
		Attachments: stored,
	}
	if err := s.repo.Create(ctx, notice); err != nil {
		s.attachments.Remove(stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notice")
	}

	s.afterMutation(ctx, models.AuditActionNoticeCreate, actor, meta, notice.ID, nil, snapshotNotice(notice))

	// Detached so a client disconnect does not cut the loop short.
	if s.notifier != nil {
		s.notifier.Notify(context.WithoutCancel(ctx), notice)
	}
	return notice, nil
}

// Update lets the author change fields, add uploads and drop attachments by id.
func (s *NoticeService) Update(ctx context.Context, id string, form dto.NoticeForm, uploads []dto.AttachmentUpload, removeIDs []string, actor *models.JWTClaims, meta RequestMeta) (*models.Notice, error) {
	existing, err := s.authorize(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	form = withExistingEnums(normalizeNoticeForm(form), existing)
	if err := s.validator.Struct(form); err != nil {
		return nil, validationError(err)
	}

	removeIDs = ownedAttachmentIDs(existing, removeIDs)
	if remaining := len(existing.Attachments) - len(removeIDs) + len(uploads); remaining > s.attachments.MaxPerNotice() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d attachments are allowed", s.attachments.MaxPerNotice()))
	}

	added, err := s.attachments.Store(uploads)
	if err != nil {
		return nil, err
	}

	before := snapshotNotice(existing)
	updated := *existing
	updated.Title = form.Title
	updated.Category = models.NoticeCategory(form.Category)
	updated.Department = models.Department(form.Department)
	updated.Semester = models.Semester(form.Semester)
	updated.Description = form.Description

	removed, err := s.repo.Update(ctx, &updated, added, removeIDs)
	if err != nil {
		s.attachments.Remove(added)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notice")
	}
	s.attachments.Remove(removed)
	updated.Attachments = mergeAttachments(existing.Attachments, removed, added)

	s.afterMutation(ctx, models.AuditActionNoticeUpdate, actor, meta, updated.ID, before, snapshotNotice(&updated))
	return &updated, nil
}

// Delete removes the notice and its attachment files. Only the author may delete.
func (s *NoticeService) Delete(ctx context.Context, id string, actor *models.JWTClaims, meta RequestMeta) error {
	existing, err := s.authorize(ctx, id, actor)
	if err != nil {
		return err
	}
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notice")
	}
	s.attachments.Remove(removed)
	s.afterMutation(ctx, models.AuditActionNoticeDelete, actor, meta, existing.ID, snapshotNotice(existing), nil)
	return nil
}

// authorize loads the notice and checks that actor posted it.
func (s *NoticeService) authorize(ctx context.Context, id string, actor *models.JWTClaims) (*models.Notice, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}
	if notice.PostedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can modify this notice")
	}
	return notice, nil
}

func (s *NoticeService) afterMutation(ctx context.Context, action models.AuditAction, actor *models.JWTClaims, meta RequestMeta, resourceID string, before, after []byte) {
	if s.cache != nil {
		s.cache.InvalidateNotices(ctx)
	}
	if s.metrics != nil {
		s.metrics.RecordNoticeEvent(string(action))
	}
	emitAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   models.AuditResourceNotice,
		ResourceID: &resourceID,
		OldValues:  before,
		NewValues:  after,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.logger.Info("notice mutated", zap.String("action", string(action)), zap.String("notice_id", resourceID), zap.String("user_id", actor.UserID))
}

func normalizeNoticeForm(form dto.NoticeForm) dto.NoticeForm {
	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)
	form.Category = strings.TrimSpace(form.Category)
	form.Department = strings.ToUpper(strings.TrimSpace(form.Department))
	form.Semester = strings.ToUpper(strings.TrimSpace(form.Semester))
	return form
}

// withCreateDefaults fills enum fields a new notice left empty.
func withCreateDefaults(form dto.NoticeForm) dto.NoticeForm {
	if form.Category == "" {
		form.Category = string(models.CategoryCommon)
	}
	if form.Department == "" {
		form.Department = string(models.DepartmentCSE)
	}
	if form.Semester == "" {
		form.Semester = string(models.SemesterAll)
	}
	return form
}

// withExistingEnums keeps the stored category, department and semester for fields an edit left out.
func withExistingEnums(form dto.NoticeForm, existing *models.Notice) dto.NoticeForm {
	if form.Category == "" {
		form.Category = string(existing.Category)
	}
	if form.Department == "" {
		form.Department = string(existing.Department)
	}
	if form.Semester == "" {
		form.Semester = string(existing.Semester)
	}
	return form
}

// ownedAttachmentIDs keeps only ids that belong to notice, without duplicates.
func ownedAttachmentIDs(notice *models.Notice, ids []string) []string {
	owned := make(map[string]bool, len(notice.Attachments))
	for _, att := range notice.Attachments {
		owned[att.ID] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if owned[id] {
			out = append(out, id)
			owned[id] = false
		}
	}
	return out
}

func mergeAttachments(current, removed, added []models.Attachment) []models.Attachment {
	gone := make(map[string]bool, len(removed))
	for _, att := range removed {
		gone[att.ID] = true
	}
	out := make([]models.Attachment, 0, len(current)+len(added))
	for _, att := range current {
		if !gone[att.ID] {
			out = append(out, att)
		}
	}
	return append(out, added...)
}

func snapshotNotice(n *models.Notice) []byte {
	raw, _ := json.Marshal(map[string]interface{}{
		"id":          n.ID,
		"title":       n.Title,
		"category":    n.Category,
		"department":  n.Department,
		"semester":    n.Semester,
		"attachments": len(n.Attachments),
	})
	return raw
}
