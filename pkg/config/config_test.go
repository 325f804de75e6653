package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambertxiao/go-formstream/pkg/types"
)

const sampleYaml = `
access_key: ak
secret_key: sk
endpoint: s3.local:9000
bucket: uploads
encoding: iso-8859-1
chunk_size: 64KiB
retry: 5
retry_delay: 250ms
timeout: 30s
headers:
  X-Token: abc
log_dir: /var/log/formstream
log_max_age: 24h
`

func defaultConfig() *Config {
	return &Config{
		Encoding:        types.DEFAULT_ENCODING,
		ChunkSize:       types.DEFAULT_CHUNK_SIZE,
		Retry:           types.DEFAULT_RETRY,
		LogMaxAge:       types.DEFAULT_LOG_MAX_AGE,
		LogRotationTime: types.DEFAULT_LOG_ROTATION_TIME,
		HTTPConfig: HTTPConf{
			RetryDelay: types.DEFAULT_RETRY_DELAY,
			Timeout:    types.DEFAULT_TIMEOUT,
		},
	}
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "formstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAndMerge(t *testing.T) {
	fc, mtime, err := LoadFileConfig(writeConfig(t, sampleYaml))
	require.NoError(t, err)
	assert.False(t, mtime.IsZero())

	cfg := defaultConfig()
	require.NoError(t, fc.Merge(cfg))

	assert.Equal(t, "ak", cfg.StorageConfig.AccessKey)
	assert.Equal(t, "sk", cfg.StorageConfig.SecretKey)
	assert.Equal(t, "s3.local:9000", cfg.StorageConfig.Endpoint)
	assert.Equal(t, "uploads", cfg.StorageConfig.Bucket)
	assert.Equal(t, "iso-8859-1", cfg.Encoding)
	assert.Equal(t, 64*1024, cfg.ChunkSize)
	assert.Equal(t, 5, cfg.Retry)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTPConfig.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.HTTPConfig.Timeout)
	assert.Equal(t, "abc", cfg.HTTPConfig.Headers["X-Token"])
	assert.Equal(t, "/var/log/formstream", cfg.LogDir)
	assert.Equal(t, 24*time.Hour, cfg.LogMaxAge)
	assert.Equal(t, types.DEFAULT_LOG_ROTATION_TIME, cfg.LogRotationTime)
}

func TestFlagsWinOverFile(t *testing.T) {
	fc, _, err := LoadFileConfig(writeConfig(t, sampleYaml))
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.ChunkSize = 1024
	cfg.Retry = 0
	cfg.Encoding = "utf-8"
	cfg.StorageConfig.Bucket = "other"
	cfg.HTTPConfig.Headers = map[string]string{"X-Token": "from-flag"}
	cfg.HTTPConfig.Timeout = time.Second

	require.NoError(t, fc.Merge(cfg))
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.Equal(t, 0, cfg.Retry)
	assert.Equal(t, "other", cfg.StorageConfig.Bucket)
	assert.Equal(t, "from-flag", cfg.HTTPConfig.Headers["X-Token"])
	assert.Equal(t, time.Second, cfg.HTTPConfig.Timeout)
}

func TestMissingFileIsEmpty(t *testing.T) {
	fc, mtime, err := LoadFileConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Nil(t, err)
	assert.True(t, mtime.IsZero())
	assert.Equal(t, &FileConfig{}, fc)
}

func TestBadValues(t *testing.T) {
	_, _, err := LoadFileConfig(writeConfig(t, "retry: [1"))
	assert.Error(t, err)

	fc := &FileConfig{Timeout: "soon"}
	assert.Error(t, fc.Merge(defaultConfig()))

	fc = &FileConfig{Chunk_size: "lots"}
	assert.Error(t, fc.Merge(defaultConfig()))
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("4096")
	assert.Nil(t, err)
	assert.Equal(t, 4096, n)

	n, err = ParseSize("1MiB")
	assert.Nil(t, err)
	assert.Equal(t, 1<<20, n)

	_, err = ParseSize("0")
	assert.Error(t, err)
}

func TestGlobalConfig(t *testing.T) {
	cfg := defaultConfig()
	SetGConfig(cfg)
	assert.Same(t, cfg, GetGConfig())
}
