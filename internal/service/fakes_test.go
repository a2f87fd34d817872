package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ats-optimizer/internal/storage"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/internal/types"
)

type memRepo struct {
	mu        sync.Mutex
	records   map[uint64]*models.ResumeAnalysis
	outbox    []*models.OutboxMessage
	downloads []*models.DownloadLog
	admins    map[string]*models.Admin
	nextID    uint64
	createErr error
	statsCall int
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[uint64]*models.ResumeAnalysis{}, admins: map[string]*models.Admin{}}
}

func (r *memRepo) CreateAnalysisWithOutbox(_ context.Context, record *models.ResumeAnalysis, msg *models.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	record.ID = r.nextID
	record.CreatedAt = time.Now()
	r.records[record.ID] = record
	if msg != nil {
		r.outbox = append(r.outbox, msg)
	}
	return nil
}

func (r *memRepo) GetAnalysis(_ context.Context, id uint64) (*models.ResumeAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return rec, nil
}

func (r *memRepo) ListAnalyses(_ context.Context, limit, offset int) ([]models.ResumeAnalysis, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	out := []models.ResumeAnalysis{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, *r.records[ids[i]])
	}
	return out, int64(len(ids)), nil
}

func (r *memRepo) UpdateAnalysisText(_ context.Context, id uint64, job, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return storage.ErrRecordNotFound
	}
	rec.JobDescription = job
	rec.ResumeText = text
	return nil
}

func (r *memRepo) CreateDownloadLog(_ context.Context, entry *models.DownloadLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = append(r.downloads, entry)
	return nil
}

func (r *memRepo) GetAnalysisStats(_ context.Context) (*models.AnalysisStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsCall++
	stats := &models.AnalysisStats{TotalResumes: int64(len(r.records)), Recent: []models.DailyScore{}}
	return stats, nil
}

func (r *memRepo) FindAdmin(_ context.Context, username string) (*models.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.admins[username]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return a, nil
}

func (r *memRepo) EnsureAdmin(_ context.Context, username, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.admins) > 0 {
		return false, nil
	}
	r.admins[username] = &models.Admin{ID: 1, Username: username, PasswordHash: hash}
	return true, nil
}

type memCache struct {
	mu      sync.Mutex
	results map[string]*types.AnalysisResult
	stats   *models.AnalysisStats
	locks   map[string]string
	tokens  map[string]string
}

func newMemCache() *memCache {
	return &memCache{
		results: map[string]*types.AnalysisResult{},
		locks:   map[string]string{},
		tokens:  map[string]string{},
	}
}

func (c *memCache) GetCachedResult(_ context.Context, key string) (*types.AnalysisResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.results[key]; ok {
		return r, nil
	}
	return nil, storage.ErrNotFound
}

func (c *memCache) CacheResult(_ context.Context, key string, result *types.AnalysisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = result
	return nil
}

func (c *memCache) GetStats(context.Context) (*models.AnalysisStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats == nil {
		return nil, storage.ErrNotFound
	}
	return c.stats, nil
}

func (c *memCache) SetStats(_ context.Context, stats *models.AnalysisStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
	return nil
}

func (c *memCache) InvalidateStats(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = nil
	return nil
}

func (c *memCache) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.locks[key]; held {
		return "", nil
	}
	c.locks[key] = "v"
	return "v", nil
}

func (c *memCache) ReleaseLock(_ context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[key] != value {
		return false, nil
	}
	delete(c.locks, key)
	return true, nil
}

func (c *memCache) SetAdminToken(_ context.Context, token, username string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[token] = username
	return nil
}

func (c *memCache) GetAdminToken(_ context.Context, token string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u, ok := c.tokens[token]; ok {
		return u, nil
	}
	return "", storage.ErrNotFound
}

func (c *memCache) DeleteAdminToken(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, token)
	return nil
}

type memObjects struct {
	mu        sync.Mutex
	originals map[string][]byte
	optimized []string
	failAll   bool
}

func newMemObjects() *memObjects {
	return &memObjects{originals: map[string][]byte{}}
}

func (o *memObjects) UploadOriginal(_ context.Context, id, ext string, data []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failAll {
		return "", errors.New("minio unavailable")
	}
	key := storage.ObjectKey(time.Now(), id, ext)
	o.originals[key] = data
	return key, nil
}

func (o *memObjects) UploadOptimized(_ context.Context, id, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failAll {
		return "", errors.New("minio unavailable")
	}
	key := storage.ObjectKey(time.Now(), id, ".docx")
	o.optimized = append(o.optimized, key)
	return key, nil
}

func (o *memObjects) GetPresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio.local/" + key, nil
}

// stubExtractor 把文件内容原样当作文本
type stubExtractor struct {
	err error
}

func (s stubExtractor) ExtractBytes(_ context.Context, data []byte, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return string(data), nil
}
