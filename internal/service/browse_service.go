package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type noticeQuerier interface {
	List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error)
	GetByID(ctx context.Context, id string) (*models.Notice, error)
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Generation() uint64
	SetIfGeneration(ctx context.Context, generation uint64, key string, value interface{}, ttl time.Duration)
}

// BrowseConfig tunes the listing surface.
type BrowseConfig struct {
	Location *time.Location
	CacheTTL time.Duration
	// Now is the clock used for the default "today" listing.
	Now func() time.Time
}

// NoticePage is one page of notices with its pagination metadata.
type NoticePage struct {
	Notices    []models.Notice   `json:"notices"`
	Pagination models.Pagination `json:"pagination"`
}

// BrowseService answers the student facing listing, archive and detail queries.
type BrowseService struct {
	repo   noticeQuerier
	cache  listingCache
	logger *zap.Logger
	cfg    BrowseConfig
}

// NewBrowseService constructs the browsing service. cache may be nil.
func NewBrowseService(repo noticeQuerier, cache listingCache, logger *zap.Logger, cfg BrowseConfig) *BrowseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &BrowseService{repo: repo, cache: cache, logger: logger, cfg: cfg}
}

// List serves the default listing. Without a department or search term only notices
// posted today in the configured timezone are returned; any filter lifts that window.
func (s *BrowseService) List(ctx context.Context, q dto.NoticeListQuery) (*NoticePage, error) {
	filter := models.NoticeFilter{
		Department: models.Department(strings.ToUpper(strings.TrimSpace(q.Department))),
		Search:     strings.TrimSpace(q.Search),
	}
	filter.Page, filter.PageSize = normalizePage(q.Page, q.PageSize)

	if filter.Department == "" && filter.Search == "" {
		from, to := s.today()
		filter.PostedFrom = &from
		filter.PostedBefore = &to
	}
	return s.query(ctx, "list", filter)
}

// Archive searches every notice. Search additionally matches attachment names and paths.
func (s *BrowseService) Archive(ctx context.Context, q dto.ArchiveQuery) (*NoticePage, error) {
	filter := archiveFilter(q)
	return s.query(ctx, "archive", filter)
}

// Mine lists notices posted by actor, newest first.
func (s *BrowseService) Mine(ctx context.Context, actor *models.JWTClaims, page, pageSize int) (*NoticePage, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.NoticeFilter{PostedBy: actor.UserID}
	filter.Page, filter.PageSize = normalizePage(page, pageSize)
	return s.fetch(ctx, filter)
}

// Get returns a single notice with attachments.
func (s *BrowseService) Get(ctx context.Context, id string) (*models.Notice, error) {
	notice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notice")
	}
	return notice, nil
}

func (s *BrowseService) query(ctx context.Context, scope string, filter models.NoticeFilter) (*NoticePage, error) {
	key := listingKey(scope, filter.Department, filter.Semester, strings.ToLower(filter.Search), filter.Page, filter.PageSize, dayStamp(filter.PostedFrom))
	var generation uint64
	if s.cache != nil {
		var cached NoticePage
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
		generation = s.cache.Generation()
	}
	page, err := s.fetch(ctx, filter)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetIfGeneration(ctx, generation, key, page, s.cfg.CacheTTL)
	}
	return page, nil
}

func (s *BrowseService) fetch(ctx context.Context, filter models.NoticeFilter) (*NoticePage, error) {
	notices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notices")
	}
	return &NoticePage{
		Notices:    notices,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}, nil
}

// today returns the bounds of the current calendar day in the listing timezone.
func (s *BrowseService) today() (time.Time, time.Time) {
	now := s.cfg.Now().In(s.cfg.Location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	return start, start.AddDate(0, 0, 1)
}

func archiveFilter(q dto.ArchiveQuery) models.NoticeFilter {
	filter := models.NoticeFilter{
		Department:        models.Department(strings.ToUpper(strings.TrimSpace(q.Department))),
		Semester:          models.Semester(strings.ToUpper(strings.TrimSpace(q.Semester))),
		Search:            strings.TrimSpace(q.Search),
		SearchAttachments: true,
	}
	if filter.Semester == models.SemesterAll {
		filter.Semester = ""
	}
	filter.Page, filter.PageSize = normalizePage(q.Page, q.PageSize)
	return filter
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func dayStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
