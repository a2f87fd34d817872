package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"ats-optimizer/internal/config"
	"ats-optimizer/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadOriginal 保存上传的原始简历文件，返回对象键
	UploadOriginal(ctx context.Context, analysisUUID, fileExt string, data []byte) (string, error)
	// UploadOptimized 保存生成的优化简历，返回对象键
	UploadOptimized(ctx context.Context, analysisUUID, localPath string) (string, error)
	// GetPresignedURL 获取优化简历的预签名下载地址
	GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client          *minio.Client
	cfg             *config.MinIOConfig
	originalBucket  string
	optimizedBucket string
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("originals_bucket", cfg.OriginalsBucket).
		Str("optimized_bucket", cfg.OptimizedBucket).
		Msg("[MinIO] 初始化客户端")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:          client,
		cfg:             cfg,
		originalBucket:  defaultString(cfg.OriginalsBucket, "originals"),
		optimizedBucket: defaultString(cfg.OptimizedBucket, "optimized"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, bucket := range []string{m.originalBucket, m.optimizedBucket} {
		if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
			return nil, err
		}
	}

	// 设置生命周期规则
	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-originals", cfg.OriginalFileExpireDays); err != nil {
			logger.Warn().Err(err).Str("bucket", m.originalBucket).Msg("[MinIO] 设置生命周期规则失败")
		}
	}
	if cfg.OptimizedFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.optimizedBucket, "expire-optimized", cfg.OptimizedFileExpireDays); err != nil {
			logger.Warn().Err(err).Str("bucket", m.optimizedBucket).Msg("[MinIO] 设置生命周期规则失败")
		}
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Msg("[MinIO] 客户端初始化成功")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		logger.Debug().Str("bucket", bucketName).Msg("[MinIO] 存储桶已存在")
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	logger.Info().Str("bucket", bucketName).Msg("[MinIO] 存储桶创建成功")
	return nil
}

// setupBucketLifecycle 为指定存储桶设置生命周期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lc)
}

// UploadOriginal 上传原始简历到 originals 存储桶
// 对象键格式: 2006/01/02/{analysisUUID}{ext}
func (m *MinIO) UploadOriginal(ctx context.Context, analysisUUID, fileExt string, data []byte) (string, error) {
	objectKey := ObjectKey(time.Now(), analysisUUID, fileExt)
	_, err := m.client.PutObject(ctx, m.originalBucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: getContentType(fileExt)})
	if err != nil {
		return "", fmt.Errorf("上传原始简历 %s 到存储桶 %s 失败: %w", objectKey, m.originalBucket, err)
	}
	logger.Debug().Str("object_key", objectKey).Int("size", len(data)).Msg("[MinIO] 原始简历上传成功")
	return objectKey, nil
}

// UploadOptimized 上传生成的 .docx 到 optimized 存储桶
func (m *MinIO) UploadOptimized(ctx context.Context, analysisUUID, localPath string) (string, error) {
	objectKey := ObjectKey(time.Now(), analysisUUID, ".docx")
	_, err := m.client.FPutObject(ctx, m.optimizedBucket, objectKey, localPath,
		minio.PutObjectOptions{ContentType: getContentType(".docx")})
	if err != nil {
		return "", fmt.Errorf("上传优化简历 %s 到存储桶 %s 失败: %w", objectKey, m.optimizedBucket, err)
	}
	logger.Debug().Str("object_key", objectKey).Msg("[MinIO] 优化简历上传成功")
	return objectKey, nil
}

// GetPresignedURL 获取优化简历的预签名URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.optimizedBucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}

// ObjectKey 生成按日期分目录的对象键
func ObjectKey(now time.Time, analysisUUID, fileExt string) string {
	ext := strings.ToLower(fileExt)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s/%s%s", now.Format("2006/01/02"), analysisUUID, ext)
}

func getContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return "application/pdf"
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
