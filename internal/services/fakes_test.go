package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/database"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/workflow"
)

type dispatchCall struct {
	Op   workflow.Operation
	ID   string
	Body backend.ActionBody
}

type fakeBackend struct {
	mu         sync.Mutex
	records    map[string]string
	dispatches []dispatchCall
	listCalls  []string
	failures   map[string]error
	acks       bool
	block      chan struct{}
	started    chan struct{}
	releases   []models.ReleaseDetail
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{records: map[string]string{}, failures: map[string]error{}}
}

func (f *fakeBackend) List(ctx context.Context, token, family string, params models.ListParams) (*backend.RawPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, family)
	page := &backend.RawPage{Pagination: models.Pagination{CurrentPage: params.Page, TotalPages: 4, TotalItems: 37}}
	for _, r := range f.records {
		page.Items = append(page.Items, json.RawMessage(r))
	}
	return page, nil
}

func (f *fakeBackend) Get(ctx context.Context, token, family, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, &backend.RemoteError{Kind: backend.KindRejected, StatusCode: 404, Message: "not found"}
	}
	return json.RawMessage(r), nil
}

func (f *fakeBackend) Dispatch(ctx context.Context, token string, op workflow.Operation, id string, body backend.ActionBody) (json.RawMessage, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches = append(f.dispatches, dispatchCall{Op: op, ID: id, Body: body})
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	if f.acks {
		return nil, nil
	}
	return json.RawMessage(f.records[id]), nil
}

func (f *fakeBackend) GetReleasePage(ctx context.Context, token string, page, limit int) (*models.ReleasePage, error) {
	total := int64(len(f.releases))
	out := &models.ReleasePage{Pagination: models.Pagination{CurrentPage: page, TotalItems: total}}
	if limit > 0 {
		out.Pagination.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	start := (page - 1) * limit
	for i := start; i < start+limit && i < len(f.releases); i++ {
		out.Items = append(out.Items, f.releases[i])
	}
	return out, nil
}

func (f *fakeBackend) dispatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatches)
}

func record(id string, status models.Status, category models.Category) string {
	return fmt.Sprintf(`{"id":%q,"name":"Item %s","status":%q,"category":%q}`, id, id, status, category)
}

type fakeActionLogs struct {
	mu      sync.Mutex
	entries []LogActionParams
}

func (f *fakeActionLogs) LogAction(ctx context.Context, params *LogActionParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *params)
	return nil
}

func (f *fakeActionLogs) logged() []LogActionParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]LogActionParams(nil), f.entries...)
}

func (f *fakeActionLogs) GetActionLog(ctx context.Context, id uuid.UUID) (*models.ActionLog, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeActionLogs) ListActionLogs(ctx context.Context, filter *models.ActionLogFilter) ([]models.ActionLog, int64, error) {
	return nil, 0, nil
}

func (f *fakeActionLogs) GetStats(ctx context.Context, days int) (*models.ActionLogStats, error) {
	return &models.ActionLogStats{}, nil
}

func (f *fakeActionLogs) GetEntityHistory(ctx context.Context, entity models.EntityType, entityID string) ([]models.ActionLog, error) {
	return nil, nil
}

func (f *fakeActionLogs) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	return 3, nil
}

func (f *fakeActionLogs) GetFilterOptions(ctx context.Context) (*FilterOptions, error) {
	return &FilterOptions{}, nil
}

type fakeListCache struct {
	mu          sync.Mutex
	pages       map[string]*models.EntityPage
	invalidated []string
}

func newFakeListCache() *fakeListCache {
	return &fakeListCache{pages: map[string]*models.EntityPage{}}
}

func (c *fakeListCache) CachedList(ctx context.Context, operatorID, key string) (*models.EntityPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pages[operatorID+"/"+key]
	if !ok {
		return nil, database.ErrCacheMiss
	}
	return p, nil
}

func (c *fakeListCache) CacheList(ctx context.Context, operatorID, key string, page *models.EntityPage, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[operatorID+"/"+key] = page
	return nil
}

func (c *fakeListCache) InvalidateLists(ctx context.Context, operatorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, operatorID)
	for k := range c.pages {
		delete(c.pages, k)
	}
	return nil
}

type fakeBulkRepo struct {
	mu    sync.Mutex
	runs  map[uuid.UUID]*models.BulkRun
	items map[uuid.UUID][]models.BulkRunItem
}

func newFakeBulkRepo() *fakeBulkRepo {
	return &fakeBulkRepo{runs: map[uuid.UUID]*models.BulkRun{}, items: map[uuid.UUID][]models.BulkRunItem{}}
}

func (r *fakeBulkRepo) Create(ctx context.Context, run *models.BulkRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *fakeBulkRepo) AddItem(ctx context.Context, item *models.BulkRunItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.RunID] = append(r.items[item.RunID], *item)
	return nil
}

func (r *fakeBulkRepo) Complete(ctx context.Context, id uuid.UUID, succeeded, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	run.State = models.BulkRunCompleted
	run.Succeeded = succeeded
	run.Failed = failed
	run.CompletedAt = &now
	return nil
}

func (r *fakeBulkRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.BulkRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *run
	cp.Items = append([]models.BulkRunItem(nil), r.items[id]...)
	return &cp, nil
}

func (r *fakeBulkRepo) List(ctx context.Context, filter *models.BulkRunFilter) ([]models.BulkRun, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.BulkRun{}
	for _, run := range r.runs {
		out = append(out, *run)
	}
	return out, int64(len(out)), nil
}

type fakeProgress struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]models.BulkProgress
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{entries: map[uuid.UUID][]models.BulkProgress{}}
}

func (p *fakeProgress) SetBulkProgress(ctx context.Context, bp models.BulkProgress, expiration time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[bp.RunID] = append(p.entries[bp.RunID], bp)
	return nil
}

func (p *fakeProgress) GetBulkProgress(ctx context.Context, runID uuid.UUID) (*models.BulkProgress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := p.entries[runID]
	if len(all) == 0 {
		return nil, database.ErrCacheMiss
	}
	last := all[len(all)-1]
	return &last, nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *fakeObjectStore) UploadExport(ctx context.Context, name, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	objectName := "exports/test/" + name
	s.objects[objectName] = data
	return objectName, nil
}

func (s *fakeObjectStore) GetFileURL(ctx context.Context, objectName string) (string, error) {
	return "https://files.example/" + objectName + "?sig=1", nil
}

func testActor() Actor {
	return Actor{
		Operator:  &models.Operator{ID: "op-1", Email: "ops@example.com", Role: models.RoleAdmin, Token: "tok"},
		IPAddress: "127.0.0.1",
	}
}
