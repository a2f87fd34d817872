package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "config-test")
	require.NoError(t, err, "无法创建临时目录")
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigOverridesDefaults 文件中出现的字段覆盖默认值，未出现的保持默认
func TestLoadConfigOverridesDefaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  address: ":9090"
upload:
  max_bytes: 1048576
  allowed_extensions: [pdf, txt]
scoring:
  taxonomy_file: "/etc/ats/skills.yaml"
rabbitmq:
  url: "amqp://user:pass@mq:5672/"
  prefetch_count: 20
redis:
  stats_ttl: "1m"
`)

	config, err := LoadConfig(configPath)
	require.NoError(t, err, "加载具有正确语法的配置不应返回错误")
	require.NotNil(t, config, "配置对象不应为 nil")

	assert.Equal(t, ":9090", config.Server.Address)
	assert.Equal(t, int64(1048576), config.Upload.MaxBytes)
	assert.Equal(t, []string{"pdf", "txt"}, config.Upload.AllowedExtensions)
	assert.Equal(t, "/etc/ats/skills.yaml", config.Scoring.TaxonomyFile)
	assert.Equal(t, 20, config.RabbitMQ.PrefetchCount)
	assert.Equal(t, "1m", config.Redis.StatsTTL)

	// 未在文件中出现的字段保持默认值
	assert.Equal(t, "ats.events", config.RabbitMQ.EventsExchange)
	assert.Equal(t, "analysis.completed", config.RabbitMQ.AnalysisCompletedRoutingKey)
	assert.Equal(t, "24h", config.Redis.ResultTTL)
	assert.Equal(t, 5, config.Outbox.MaxRetries)
}

// TestLoadConfigEnvOverrides 验证环境变量覆盖敏感配置
func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ATS_MYSQL_PASSWORD", "secret")
	t.Setenv("ATS_REDIS_ADDRESS", "redis:6380")
	t.Setenv("ATS_ADMIN_PASSWORD", "admin-pass")

	configPath := writeConfig(t, `
mysql:
  password: "from-file"
`)
	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "secret", config.MySQL.Password, "环境变量应覆盖文件中的密码")
	assert.Equal(t, "redis:6380", config.Redis.Address)
	assert.Equal(t, "admin-pass", config.Admin.Password)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "配置文件不存在时应返回错误")

	_, err = LoadConfig(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err, "YAML语法错误时应返回错误")

	_, err = LoadConfig(writeConfig(t, "redis:\n  stats_ttl: \"soon\"\n"))
	assert.Error(t, err, "非法时间间隔应返回错误")

	_, err = LoadConfig(writeConfig(t, "tracing:\n  sample_ratio: 2\n"))
	assert.Error(t, err, "采样率超出范围应返回错误")

	_, err = LoadConfig(writeConfig(t, "upload:\n  max_bytes: 0\n"))
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	config := createDefaultConfig()
	require.NoError(t, config.Validate(), "默认配置应合法")
	assert.Equal(t, int64(16<<20), config.Upload.MaxBytes)
	assert.True(t, config.Upload.AllowedExtension(".PDF"))
	assert.True(t, config.Upload.AllowedExtension("doc"))
	assert.False(t, config.Upload.AllowedExtension("exe"))
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	config, err := LoadConfig(path)
	require.NoError(t, err, "示例配置应能被重新加载")
	assert.Equal(t, createDefaultConfig().RabbitMQ, config.RabbitMQ)

	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("bad", time.Minute))
}
