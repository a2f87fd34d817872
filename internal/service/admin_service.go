package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/storage"
	"ats-optimizer/internal/storage/models"

	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 12 * time.Hour

// AdminRepository 管理员账号存储，由 storage.MySQL 实现
type AdminRepository interface {
	FindAdmin(ctx context.Context, username string) (*models.Admin, error)
	EnsureAdmin(ctx context.Context, username, passwordHash string) (bool, error)
}

// TokenStore 登录令牌存储，由 storage.Redis 实现
type TokenStore interface {
	SetAdminToken(ctx context.Context, token, username string, ttl time.Duration) error
	GetAdminToken(ctx context.Context, token string) (string, error)
	DeleteAdminToken(ctx context.Context, token string) error
}

// AdminService 管理员登录与令牌校验
type AdminService struct {
	admins   AdminRepository
	tokens   TokenStore
	tokenTTL time.Duration
}

// NewAdminService 创建管理员服务，tokenTTL<=0 时使用12小时
func NewAdminService(admins AdminRepository, tokens TokenStore, tokenTTL time.Duration) *AdminService {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &AdminService{admins: admins, tokens: tokens, tokenTTL: tokenTTL}
}

// Enabled 管理后台需要MySQL和Redis
func (s *AdminService) Enabled() bool {
	return s != nil && s.admins != nil && s.tokens != nil
}

// EnsureSeedAdmin 管理员表为空时按配置创建初始管理员
func (s *AdminService) EnsureSeedAdmin(ctx context.Context, username, password string) error {
	if s.admins == nil || username == "" || password == "" {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	created, err := s.admins.EnsureAdmin(ctx, username, hash)
	if err != nil {
		return err
	}
	if created {
		logger.Info().Str("username", username).Msg("已创建初始管理员")
	}
	return nil
}

// Login 校验用户名密码，成功后签发令牌
func (s *AdminService) Login(ctx context.Context, username, password string) (string, error) {
	if !s.Enabled() {
		return "", ErrPersistenceDisabled
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return "", newValidationError("username", "用户名和密码不能为空")
	}

	admin, err := s.admins.FindAdmin(ctx, username)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		logger.Ctx(ctx).Warn().Str("username", username).Msg("管理员密码错误")
		return "", ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.tokens.SetAdminToken(ctx, token, admin.Username, s.tokenTTL); err != nil {
		return "", fmt.Errorf("保存登录令牌失败: %w", err)
	}
	logger.Ctx(ctx).Info().Str("username", admin.Username).Msg("管理员登录成功")
	return token, nil
}

// ValidateToken 返回令牌对应的用户名
func (s *AdminService) ValidateToken(ctx context.Context, token string) (string, error) {
	if !s.Enabled() {
		return "", ErrUnauthorized
	}
	username, err := s.tokens.GetAdminToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", err
	}
	return username, nil
}

// Logout 注销令牌
func (s *AdminService) Logout(ctx context.Context, token string) error {
	if !s.Enabled() {
		return ErrPersistenceDisabled
	}
	return s.tokens.DeleteAdminToken(ctx, token)
}

// HashPassword 生成 bcrypt 密码哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("生成密码哈希失败: %w", err)
	}
	return string(hash), nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成令牌失败: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
