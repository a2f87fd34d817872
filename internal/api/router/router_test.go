package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"ats-optimizer/internal/analyzer"
	"ats-optimizer/internal/api/handler"
	"ats-optimizer/internal/api/router"
	"ats-optimizer/internal/config"
	"ats-optimizer/internal/generator"
	"ats-optimizer/internal/parser"
	"ats-optimizer/internal/service"
	"ats-optimizer/internal/storage"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/pkg/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adminStore struct {
	mu     sync.Mutex
	admin  *models.Admin
	tokens map[string]string
}

func (s *adminStore) FindAdmin(_ context.Context, username string) (*models.Admin, error) {
	if s.admin == nil || s.admin.Username != username {
		return nil, storage.ErrRecordNotFound
	}
	return s.admin, nil
}

func (s *adminStore) EnsureAdmin(_ context.Context, username, hash string) (bool, error) {
	if s.admin != nil {
		return false, nil
	}
	s.admin = &models.Admin{ID: 1, Username: username, PasswordHash: hash}
	return true, nil
}

func (s *adminStore) SetAdminToken(_ context.Context, token, username string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = username
	return nil
}

func (s *adminStore) GetAdminToken(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.tokens[token]; ok {
		return u, nil
	}
	return "", storage.ErrNotFound
}

func (s *adminStore) DeleteAdminToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func newTestServer(t *testing.T, guards ...app.HandlerFunc) *server.Hertz {
	t.Helper()
	ctx := context.Background()

	extractor, err := parser.NewTextExtractor(ctx)
	require.NoError(t, err)
	upload := config.UploadConfig{MaxBytes: 1 << 20, AllowedExtensions: []string{"pdf", "docx", "txt"}}
	analyses := service.NewAnalysisService(upload, analyzer.NewAnalyzer(), extractor,
		generator.NewDocxGenerator(generator.WithTempDir(t.TempDir())))

	store := &adminStore{tokens: map[string]string{}}
	admins := service.NewAdminService(store, store, time.Hour)
	require.NoError(t, admins.EnsureSeedAdmin(ctx, "admin", "s3cret"))

	h := server.Default()
	h.Use(handler.RequestID())
	router.RegisterRoutes(h,
		handler.NewAnalysisHandler(analyses),
		handler.NewAdminHandler(admins, analyses),
		handler.AdminAuth(admins),
		guards...)
	return h
}

func multipartBody(t *testing.T, filename, content, job string) (*ut.Body, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("resume_file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("job_description", job))
	require.NoError(t, w.Close())
	return &ut.Body{Body: buf, Len: buf.Len()}, w.FormDataContentType()
}

func jsonBody(t *testing.T, v interface{}) *ut.Body {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return &ut.Body{Body: bytes.NewReader(data), Len: len(data)}
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func TestHealthAndRequestID(t *testing.T) {
	h := newTestServer(t)

	w := ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/health", nil,
		ut.Header{Key: handler.HeaderRequestID, Value: "req-123"})
	resp := w.Result()
	assert.Equal(t, consts.StatusOK, resp.StatusCode())
	assert.Equal(t, "req-123", string(resp.Header.Peek(handler.HeaderRequestID)))

	w = ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/health", nil)
	assert.NotEmpty(t, string(w.Result().Header.Peek(handler.HeaderRequestID)))
}

func TestAnalyzeUpload(t *testing.T) {
	h := newTestServer(t)
	resume := "Backend engineer with Go, Docker and Kubernetes experience.\nEXPERIENCE\nBuilt services.\nEDUCATION\nB.Sc."
	job := "Looking for a Go developer with Docker, Kubernetes and AWS."

	body, contentType := multipartBody(t, "resume.txt", resume, job)
	w := ut.PerformRequest(h.Engine, consts.MethodPost, "/api/v1/analyze", body,
		ut.Header{Key: "Content-Type", Value: contentType})
	resp := w.Result()
	require.Equal(t, consts.StatusOK, resp.StatusCode(), string(resp.Body()))

	var out handler.AnalysisResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &out))
	assert.Equal(t, "resume.txt", out.Filename)
	assert.Contains(t, out.MatchedSkills, "kubernetes")
	assert.Contains(t, out.MissingSkills, "aws")
}

func TestAnalyzeUploadRejectsInput(t *testing.T) {
	h := newTestServer(t)

	body, contentType := multipartBody(t, "resume.exe", "binary", "Go developer")
	w := ut.PerformRequest(h.Engine, consts.MethodPost, "/api/v1/analyze", body,
		ut.Header{Key: "Content-Type", Value: contentType})
	assert.Equal(t, consts.StatusBadRequest, w.Result().StatusCode())

	body, contentType = multipartBody(t, "resume.txt", "Go developer", "   ")
	w = ut.PerformRequest(h.Engine, consts.MethodPost, "/api/v1/analyze", body,
		ut.Header{Key: "Content-Type", Value: contentType})
	assert.Equal(t, consts.StatusBadRequest, w.Result().StatusCode())

	w = ut.PerformRequest(h.Engine, consts.MethodPost, "/api/v1/analyze", jsonBody(t, map[string]string{}), jsonHeader)
	assert.Equal(t, consts.StatusBadRequest, w.Result().StatusCode())
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newTestServer(t)

	w := ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/admin/history", nil)
	assert.Equal(t, consts.StatusUnauthorized, w.Result().StatusCode())

	w = ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/admin/history", nil,
		ut.Header{Key: "Authorization", Value: "Bearer not-a-token"})
	assert.Equal(t, consts.StatusUnauthorized, w.Result().StatusCode())
}

func TestAdminLoginLogoutFlow(t *testing.T) {
	h := newTestServer(t)

	w := ut.PerformRequest(h.Engine, consts.MethodPost, "/api/v1/admin/login",
		jsonBody(t, handler.LoginRequest{Username: "admin", Password: "s3cret"}), jsonHeader)
	require.Equal(t, consts.StatusOK, w.Result().StatusCode())
	var login map[string]string
	require.NoError(t, json.Unmarshal(w.Result().Body(), &login))
	auth := ut.Header{Key: "Authorization", Value: "Bearer " + login["token"]}

	// 令牌有效，但未配置MySQL，历史记录不可用
	w = ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/admin/history", nil, auth)
	assert.Equal(t, consts.StatusServiceUnavailable, w.Result().StatusCode())

	w = ut.PerformRequest(h.Engine, consts.MethodPost, "/api/v1/admin/logout", nil, auth)
	require.Equal(t, consts.StatusOK, w.Result().StatusCode())

	w = ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/admin/dashboard", nil, auth)
	assert.Equal(t, consts.StatusUnauthorized, w.Result().StatusCode())
}

func TestAnalyzeRateLimit(t *testing.T) {
	h := newTestServer(t, handler.RateLimit(ratelimit.NewTokenBucket(1, 1)))
	body := handler.AnalyzeTextRequest{ResumeText: "Go developer with Docker", JobDescription: "Go and Docker"}

	w := ut.PerformRequest(h.Engine, consts.MethodPost, "/api/v1/analyze/text", jsonBody(t, body), jsonHeader)
	require.Equal(t, consts.StatusOK, w.Result().StatusCode())

	w = ut.PerformRequest(h.Engine, consts.MethodPost, "/api/v1/analyze/text", jsonBody(t, body), jsonHeader)
	assert.Equal(t, consts.StatusTooManyRequests, w.Result().StatusCode())
	assert.NotEmpty(t, string(w.Result().Header.Peek("Retry-After")))

	// 健康检查不受限流影响
	w = ut.PerformRequest(h.Engine, consts.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, consts.StatusOK, w.Result().StatusCode())
}
