package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
	"github.com/noah-isme/campus-noticeboard/pkg/export"
)

const maxExportRows = 5000

type datasetWriter interface {
	Write(w io.Writer, data export.Dataset) error
	ContentType() string
	Extension() string
}

type noticeLister interface {
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
}

// ExportResult is a rendered archive export.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders the notice archive as CSV or PDF.
type ExportService struct {
	repo    noticeLister
	writers map[string]datasetWriter
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewExportService constructs the export service with the CSV and PDF writers.
func NewExportService(repo noticeLister, csv, pdf datasetWriter, loc *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ExportService{
		repo:    repo,
		writers: map[string]datasetWriter{"csv": csv, "pdf": pdf},
		logger:  logger,
		loc:     loc,
		now:     time.Now,
	}
}

// Export renders every archive match for q in the requested format.
func (s *ExportService) Export(ctx context.Context, q dto.ArchiveQuery, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	writer, ok := s.writers[format]
	if !ok || writer == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	notices, err := s.collect(ctx, q)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title: "Notice Archive",
		Columns: []export.Column{
			{Header: "Posted At", Width: 1.4},
			{Header: "Title", Width: 3},
			{Header: "Category", Width: 1.2},
			{Header: "Department", Width: 1},
			{Header: "Semester", Width: 0.8},
			{Header: "Posted By", Width: 1.2},
			{Header: "Attachments", Width: 0.9},
		},
		Rows: make([][]string, 0, len(notices)),
	}
	for _, n := range notices {
		data.Rows = append(data.Rows, []string{
			n.PostedAt.In(s.loc).Format("2006-01-02 15:04"),
			n.Title,
			string(n.Category),
			string(n.Department),
			string(n.Semester),
			n.AuthorName,
			strconv.Itoa(len(n.Attachments)),
		})
	}

	var buf bytes.Buffer
	if err := writer.Write(&buf, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("archive exported", zap.String("format", format), zap.Int("rows", len(notices)))
	return &ExportResult{
		Filename:    fmt.Sprintf("notices_%s.%s", s.now().In(s.loc).Format("20060102_150405"), writer.Extension()),
		ContentType: writer.ContentType(),
		Data:        buf.Bytes(),
		Rows:        len(notices),
	}, nil
}

// collect pages through the archive up to maxExportRows.
func (s *ExportService) collect(ctx context.Context, q dto.ArchiveQuery) ([]models.Notice, error) {
	filter := archiveFilter(q)
	filter.Page, filter.PageSize = 1, maxPageSize

	var out []models.Notice
	for len(out) < maxExportRows {
		page, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notices for export")
		}
		out = append(out, page...)
		if len(page) < filter.PageSize || len(out) >= total {
			break
		}
		filter.Page++
	}
	if len(out) > maxExportRows {
		out = out[:maxExportRows]
	}
	return out, nil
}
