package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
	"github.com/noah-isme/campus-noticeboard/pkg/storage"
)

const (
	attachmentDir         = "notice_attachments/multiple"
	maxAttachmentNameLen  = 100
	defaultMaxAttachments = 10
)

var defaultAttachmentMIMEs = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/zip",
	"image/jpeg",
	"image/png",
	"text/plain",
}

type attachmentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type downloadSigner interface {
	Sign(attachmentID, path string) (string, time.Time, error)
	Verify(token string) (storage.DownloadClaims, error)
}

type attachmentFinder interface {
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)
}

// AttachmentConfig holds upload limits and link settings.
type AttachmentConfig struct {
	MaxFileSize  int64
	MaxPerNotice int
	AllowedMIMEs []string
	APIPrefix    string
}

// AttachmentDownload bundles an opened file with its metadata for streaming.
type AttachmentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// AttachmentService stores uploaded files and serves them through signed links.
type AttachmentService struct {
	finder  attachmentFinder
	storage attachmentStorage
	signer  downloadSigner
	logger  *zap.Logger
	cfg     AttachmentConfig
	mimeSet map[string]struct{}
}

// NewAttachmentService constructs the service with defaults.
func NewAttachmentService(finder attachmentFinder, store attachmentStorage, signer downloadSigner, logger *zap.Logger, cfg AttachmentConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if cfg.MaxPerNotice <= 0 {
		cfg.MaxPerNotice = defaultMaxAttachments
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = defaultAttachmentMIMEs
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return &AttachmentService{finder: finder, storage: store, signer: signer, logger: logger, cfg: cfg, mimeSet: mimeSet}
}

// MaxPerNotice is the attachment limit for one notice.
func (s *AttachmentService) MaxPerNotice() int {
	return s.cfg.MaxPerNotice
}

// Store validates and writes every upload. Either all files are stored or none are.
func (s *AttachmentService) Store(uploads []dto.AttachmentUpload) ([]models.Attachment, error) {
	stored := make([]models.Attachment, 0, len(uploads))
	for _, upload := range uploads {
		att, err := s.storeOne(upload)
		if err != nil {
			s.Remove(stored)
			return nil, err
		}
		stored = append(stored, *att)
	}
	return stored, nil
}

func (s *AttachmentService) storeOne(upload dto.AttachmentUpload) (*models.Attachment, error) {
	name := strings.TrimSpace(upload.Name)
	if utf8.RuneCountInString(name) > maxAttachmentNameLen {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment name must be at most %d characters", maxAttachmentNameLen))
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attachment file is empty")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment %q exceeds %d bytes limit", upload.Filename, s.cfg.MaxFileSize))
	}
	mimeType, err := detectMime(upload)
	if err != nil {
		return nil, err
	}
	if declared, _, perr := mime.ParseMediaType(upload.MimeType); perr == nil && !strings.EqualFold(declared, mimeType) {
		s.logger.Debug("declared attachment type differs from content",
			zap.String("filename", upload.Filename), zap.String("declared", declared), zap.String("detected", mimeType))
	}
	if _, ok := s.mimeSet[mimeType]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment type %s is not allowed", mimeType))
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	relPath, err := s.storage.SaveStream(generateFilename(upload.Filename, mimeType), upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	return &models.Attachment{
		Name:      name,
		FilePath:  relPath,
		MimeType:  mimeType,
		SizeBytes: upload.Size,
	}, nil
}

// Remove deletes stored files, logging failures.
func (s *AttachmentService) Remove(attachments []models.Attachment) {
	for _, att := range attachments {
		if err := s.storage.Delete(att.FilePath); err != nil {
			s.logger.Warn("failed to delete attachment file", zap.String("path", att.FilePath), zap.Error(err))
		}
	}
}

// DownloadURL returns a signed, expiring link for att.
func (s *AttachmentService) DownloadURL(att models.Attachment) (string, error) {
	token, _, err := s.signer.Sign(att.ID, att.FilePath)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/attachments/%s/download?token=%s", base, att.ID, url.QueryEscape(token)), nil
}

// ToResponse renders a notice with signed links for each attachment.
func (s *AttachmentService) ToResponse(notice *models.Notice) dto.NoticeResponse {
	resp := dto.NoticeResponse{
		ID:                    notice.ID,
		Title:                 notice.Title,
		Category:              notice.Category,
		Department:            notice.Department,
		DepartmentDisplayName: notice.Department.DisplayName(),
		Semester:              notice.Semester,
		Description:           notice.Description,
		PostedBy:              notice.PostedBy,
		AuthorName:            notice.AuthorName,
		PostedAt:              notice.PostedAt,
		UpdatedAt:             notice.UpdatedAt,
		Attachments:           make([]dto.AttachmentResponse, 0, len(notice.Attachments)),
	}
	for _, att := range notice.Attachments {
		item := dto.AttachmentResponse{
			ID:        att.ID,
			Name:      att.DisplayName(),
			Filename:  att.Filename(),
			MimeType:  att.MimeType,
			SizeBytes: att.SizeBytes,
		}
		if link, err := s.DownloadURL(att); err == nil {
			item.DownloadURL = link
		} else {
			s.logger.Warn("failed to sign attachment link", zap.String("attachment_id", att.ID), zap.Error(err))
		}
		resp.Attachments = append(resp.Attachments, item)
	}
	return resp
}

// ToResponses renders a list of notices.
func (s *AttachmentService) ToResponses(notices []models.Notice) []dto.NoticeResponse {
	out := make([]dto.NoticeResponse, len(notices))
	for i := range notices {
		out[i] = s.ToResponse(&notices[i])
	}
	return out
}

// Open validates token against the attachment and opens the stored file.
func (s *AttachmentService) Open(ctx context.Context, id, token string) (*AttachmentDownload, error) {
	att, err := s.finder.GetAttachment(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachment")
	}
	claims, err := s.signer.Verify(token)
	if errors.Is(err, storage.ErrTokenExpired) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link has expired")
	}
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	if claims.AttachmentID != att.ID || claims.Path != att.FilePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(att.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "attachment file missing")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attachment metadata")
	}
	filename := att.Filename()
	if att.Name != "" {
		filename = att.Name + path.Ext(att.FilePath)
	}
	return &AttachmentDownload{
		File:      file,
		Filename:  filename,
		MimeType:  att.MimeType,
		SizeBytes: info.Size(),
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// detectMime sniffs the content. The client supplied Content-Type is never trusted.
func detectMime(upload dto.AttachmentUpload) (string, error) {
	detected, err := mimetype.DetectReader(upload.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	mt, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return detected.String(), nil
	}
	return strings.ToLower(mt), nil
}

func generateFilename(original, mimeType string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	stem := sanitize(base)
	if stem == "" {
		stem = "attachment"
	}
	if len(stem) > 60 {
		stem = stem[:60]
	}
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	return fmt.Sprintf("%s/%s_%d_%s%s", attachmentDir, stem, time.Now().Unix(), randomSuffix(), ext)
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func mimeExtension(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
