package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-noticeboard/internal/dto"
	"github.com/noah-isme/campus-noticeboard/internal/models"
	appErrors "github.com/noah-isme/campus-noticeboard/pkg/errors"
)

type mockNoticeQuerier struct {
	filters []models.NoticeFilter
	notices []models.Notice
	byID    map[string]*models.Notice
	onList  func()
}

func (m *mockNoticeQuerier) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	m.filters = append(m.filters, filter)
	if m.onList != nil {
		m.onList()
	}
	return m.notices, len(m.notices), nil
}

func (m *mockNoticeQuerier) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	if n, ok := m.byID[id]; ok {
		return n, nil
	}
	return nil, sql.ErrNoRows
}

type memoryListingCache struct {
	entries    map[string]*NoticePage
	sets       int
	generation uint64
}

func (m *memoryListingCache) Get(ctx context.Context, key string, dest interface{}) bool {
	page, ok := m.entries[key]
	if !ok {
		return false
	}
	*dest.(*NoticePage) = *page
	return true
}

func (m *memoryListingCache) Generation() uint64 { return m.generation }

func (m *memoryListingCache) SetIfGeneration(ctx context.Context, generation uint64, key string, value interface{}, ttl time.Duration) {
	if generation != m.generation {
		return
	}
	if m.entries == nil {
		m.entries = map[string]*NoticePage{}
	}
	m.entries[key] = value.(*NoticePage)
	m.sets++
}

func fixedClock(loc *time.Location) func() time.Time {
	return func() time.Time { return time.Date(2026, 3, 2, 23, 30, 0, 0, loc) }
}

func TestListDefaultsToToday(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	repo := &mockNoticeQuerier{}
	svc := NewBrowseService(repo, nil, nil, BrowseConfig{Location: loc, Now: fixedClock(loc)})

	_, err := svc.List(context.Background(), dto.NoticeListQuery{})
	require.NoError(t, err)

	require.Len(t, repo.filters, 1)
	f := repo.filters[0]
	require.NotNil(t, f.PostedFrom)
	require.NotNil(t, f.PostedBefore)
	assert.True(t, f.PostedFrom.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, loc)))
	assert.True(t, f.PostedBefore.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, loc)))
	assert.False(t, f.SearchAttachments)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 50, f.PageSize)
}

func TestListFilterDropsDateWindow(t *testing.T) {
	repo := &mockNoticeQuerier{}
	svc := NewBrowseService(repo, nil, nil, BrowseConfig{})

	_, err := svc.List(context.Background(), dto.NoticeListQuery{Department: "cse"})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), dto.NoticeListQuery{Search: "exam"})
	require.NoError(t, err)

	require.Len(t, repo.filters, 2)
	assert.Nil(t, repo.filters[0].PostedFrom)
	assert.Equal(t, models.DepartmentCSE, repo.filters[0].Department)
	assert.Nil(t, repo.filters[1].PostedFrom)
	assert.Equal(t, "exam", repo.filters[1].Search)
	assert.False(t, repo.filters[1].SearchAttachments)
}

func TestArchiveSearchesAttachmentsAndSemester(t *testing.T) {
	repo := &mockNoticeQuerier{}
	svc := NewBrowseService(repo, nil, nil, BrowseConfig{})

	_, err := svc.Archive(context.Background(), dto.ArchiveQuery{Search: "exam", Semester: "ALL", PageSize: 1000})
	require.NoError(t, err)
	_, err = svc.Archive(context.Background(), dto.ArchiveQuery{Semester: "s3"})
	require.NoError(t, err)

	assert.True(t, repo.filters[0].SearchAttachments)
	assert.Equal(t, models.Semester(""), repo.filters[0].Semester)
	assert.Nil(t, repo.filters[0].PostedFrom)
	assert.Equal(t, 200, repo.filters[0].PageSize)
	assert.Equal(t, models.Semester3, repo.filters[1].Semester)
}

func TestMineFiltersByAuthor(t *testing.T) {
	repo := &mockNoticeQuerier{}
	svc := NewBrowseService(repo, nil, nil, BrowseConfig{})

	_, err := svc.Mine(context.Background(), &models.JWTClaims{UserID: "u1"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "u1", repo.filters[0].PostedBy)

	_, err = svc.Mine(context.Background(), nil, 0, 0)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestListUsesCache(t *testing.T) {
	repo := &mockNoticeQuerier{notices: []models.Notice{{ID: "n1"}}}
	cache := &memoryListingCache{}
	svc := NewBrowseService(repo, cache, nil, BrowseConfig{})

	first, err := svc.Archive(context.Background(), dto.ArchiveQuery{Search: "exam"})
	require.NoError(t, err)
	second, err := svc.Archive(context.Background(), dto.ArchiveQuery{Search: "EXAM"})
	require.NoError(t, err)

	assert.Len(t, repo.filters, 1)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, first.Notices, second.Notices)
	assert.Equal(t, 1, second.Pagination.TotalCount)
}

func TestListSkipsCacheWhenInvalidatedDuringLoad(t *testing.T) {
	cache := &memoryListingCache{}
	repo := &mockNoticeQuerier{notices: []models.Notice{{ID: "n1"}}}
	repo.onList = func() { cache.generation++ }
	svc := NewBrowseService(repo, cache, nil, BrowseConfig{})

	_, err := svc.Archive(context.Background(), dto.ArchiveQuery{Search: "exam"})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.sets)
	assert.Empty(t, cache.entries)

	repo.onList = nil
	_, err = svc.Archive(context.Background(), dto.ArchiveQuery{Search: "exam"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestGetNotFound(t *testing.T) {
	svc := NewBrowseService(&mockNoticeQuerier{}, nil, nil, BrowseConfig{})
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
