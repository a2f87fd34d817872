package handler_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"ats-optimizer/internal/analyzer"
	"ats-optimizer/internal/config"
	"ats-optimizer/internal/generator"
	"ats-optimizer/internal/parser"
	"ats-optimizer/internal/service"
	"ats-optimizer/internal/storage"
	"ats-optimizer/internal/storage/models"

	"github.com/stretchr/testify/require"
)

// memStore 同时充当分析记录和管理员账号存储
type memStore struct {
	mu        sync.Mutex
	records   map[uint64]*models.ResumeAnalysis
	admins    map[string]*models.Admin
	downloads int
	nextID    uint64
}

func newMemStore() *memStore {
	return &memStore{records: map[uint64]*models.ResumeAnalysis{}, admins: map[string]*models.Admin{}}
}

func (m *memStore) CreateAnalysisWithOutbox(_ context.Context, record *models.ResumeAnalysis, _ *models.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	record.ID = m.nextID
	record.CreatedAt = time.Now()
	m.records[record.ID] = record
	return nil
}

func (m *memStore) GetAnalysis(_ context.Context, id uint64) (*models.ResumeAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, storage.ErrRecordNotFound
}

func (m *memStore) ListAnalyses(_ context.Context, limit, offset int) ([]models.ResumeAnalysis, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	out := []models.ResumeAnalysis{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, *m.records[ids[i]])
	}
	return out, int64(len(ids)), nil
}

func (m *memStore) UpdateAnalysisText(_ context.Context, id uint64, job, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return storage.ErrRecordNotFound
	}
	r.JobDescription, r.ResumeText = job, text
	return nil
}

func (m *memStore) CreateDownloadLog(context.Context, *models.DownloadLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	return nil
}

func (m *memStore) GetAnalysisStats(context.Context) (*models.AnalysisStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.AnalysisStats{TotalResumes: int64(len(m.records)), Recent: []models.DailyScore{}}, nil
}

func (m *memStore) FindAdmin(_ context.Context, username string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.admins[username]; ok {
		return a, nil
	}
	return nil, storage.ErrRecordNotFound
}

func (m *memStore) EnsureAdmin(_ context.Context, username, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.admins) > 0 {
		return false, nil
	}
	m.admins[username] = &models.Admin{ID: 1, Username: username, PasswordHash: hash}
	return true, nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *memTokens) SetAdminToken(_ context.Context, token, username string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = username
	return nil
}

func (m *memTokens) GetAdminToken(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.tokens[token]; ok {
		return u, nil
	}
	return "", storage.ErrNotFound
}

func (m *memTokens) DeleteAdminToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

type fixture struct {
	store    *memStore
	tempDir  string
	analyses *service.AnalysisService
	admins   *service.AdminService
}

// newFixture 组装真实的分析器、文本提取器和文档生成器，存储使用内存实现
// persistent=false 时模拟未配置MySQL/Redis
func newFixture(t *testing.T, persistent bool) *fixture {
	t.Helper()
	ctx := context.Background()

	extractor, err := parser.NewTextExtractor(ctx)
	require.NoError(t, err)

	f := &fixture{store: newMemStore(), tempDir: t.TempDir()}
	upload := config.UploadConfig{MaxBytes: 1 << 20, AllowedExtensions: []string{"pdf", "docx", "txt"}}
	renderer := generator.NewDocxGenerator(generator.WithTempDir(f.tempDir))

	if !persistent {
		f.analyses = service.NewAnalysisService(upload, analyzer.NewAnalyzer(), extractor, renderer)
		f.admins = service.NewAdminService(nil, nil, 0)
		return f
	}

	f.analyses = service.NewAnalysisService(upload, analyzer.NewAnalyzer(), extractor, renderer,
		service.WithRepository(f.store))
	f.admins = service.NewAdminService(f.store, &memTokens{tokens: map[string]string{}}, time.Hour)
	require.NoError(t, f.admins.EnsureSeedAdmin(ctx, "admin", "s3cret"))
	return f
}

const (
	sampleResume = `Jane Doe
jane@example.com | +1 555 123 4567

EXPERIENCE
Senior Backend Engineer, Acme Corp
- Built Go microservices on Kubernetes and Docker, reducing latency by 40%
- Designed PostgreSQL schemas and Redis caching layers

EDUCATION
B.Sc. Computer Science

SKILLS
Go, Python, Docker, Kubernetes, PostgreSQL, Redis`

	sampleJob = `We are hiring a backend engineer with strong Go and Python skills.
Experience with Kubernetes, Docker, AWS and PostgreSQL is required. Knowledge of Kafka is a plus.`
)
