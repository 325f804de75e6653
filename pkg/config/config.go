package config

import (
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/lambertxiao/go-formstream/pkg/types"
)

type StorageConf struct {
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Secure    bool
	Prefix    string

	Storage_class string
}

type HTTPConf struct {
	Method     string
	Timeout    time.Duration
	RetryDelay time.Duration
	Headers    map[string]string
}

type Config struct {
	ModifiedTime  time.Time
	Config_file   string
	StorageConfig StorageConf
	HTTPConfig    HTTPConf

	// encoder
	Boundary  string
	Encoding  string
	ChunkSize int

	Retry      int
	Foreground bool
	Stats      bool
	Stats_file string
	Pprof_port int

	Log_level       logrus.Level
	LogDir          string
	LogMaxAge       time.Duration
	LogRotationTime time.Duration
	UseSyslog       bool
}

var (
	gConfig *Config
	cfgLock sync.RWMutex
)

func GetGConfig() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()

	return gConfig
}

func SetGConfig(cfg *Config) {
	cfgLock.Lock()
	defer cfgLock.Unlock()

	gConfig = cfg
}

// FileConfig is the yaml form of Config. Sizes and durations are strings so
// "64k" or "30s" can be written.
type FileConfig struct {
	Access_key      string            `yaml:"access_key"`
	Secret_key      string            `yaml:"secret_key"`
	Endpoint        string            `yaml:"endpoint"`
	Secure          bool              `yaml:"secure"`
	Bucket          string            `yaml:"bucket"`
	Prefix          string            `yaml:"prefix"`
	Storage_class   string            `yaml:"storage_class"`
	Boundary        string            `yaml:"boundary"`
	Encoding        string            `yaml:"encoding"`
	Chunk_size      string            `yaml:"chunk_size"`
	Retry           int               `yaml:"retry"`
	Retry_delay     string            `yaml:"retry_delay"`
	Timeout         string            `yaml:"timeout"`
	Method          string            `yaml:"method"`
	Headers         map[string]string `yaml:"headers"`
	LogDir          string            `yaml:"log_dir"`
	LogMaxAge       string            `yaml:"log_max_age"`
	LogRotationTime string            `yaml:"log_rotation_time"`
	Log_level       string            `yaml:"level"`
	Syslog          bool              `yaml:"syslog"`
}

// LoadFileConfig reads path. A missing file yields an empty config and no
// error, the file is optional.
func LoadFileConfig(path string) (*FileConfig, time.Time, error) {
	var fc FileConfig
	if path == "" {
		return &fc, time.Time{}, nil
	}

	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &fc, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	y, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(y, &fc); err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "parse config %s", path)
	}
	return &fc, fi.ModTime(), nil
}

// Merge copies file values into cfg wherever cfg still holds the default.
// Values given on the command line win.
func (fc *FileConfig) Merge(cfg *Config) error {
	sc := &cfg.StorageConfig
	if sc.AccessKey == "" {
		sc.AccessKey = fc.Access_key
	}
	if sc.SecretKey == "" {
		sc.SecretKey = fc.Secret_key
	}
	if sc.Endpoint == "" {
		sc.Endpoint = fc.Endpoint
	}
	if sc.Bucket == "" {
		sc.Bucket = fc.Bucket
	}
	if sc.Prefix == "" {
		sc.Prefix = fc.Prefix
	}
	if sc.Storage_class == "" {
		sc.Storage_class = fc.Storage_class
	}
	if fc.Secure {
		sc.Secure = true
	}

	if cfg.Boundary == "" {
		cfg.Boundary = fc.Boundary
	}
	if (cfg.Encoding == "" || cfg.Encoding == types.DEFAULT_ENCODING) && fc.Encoding != "" {
		cfg.Encoding = fc.Encoding
	}
	if cfg.ChunkSize == types.DEFAULT_CHUNK_SIZE && fc.Chunk_size != "" {
		size, err := ParseSize(fc.Chunk_size)
		if err != nil {
			return errors.Wrap(err, "chunk_size")
		}
		cfg.ChunkSize = size
	}
	if cfg.Retry == types.DEFAULT_RETRY && fc.Retry != 0 {
		cfg.Retry = fc.Retry
	}

	hc := &cfg.HTTPConfig
	if hc.Method == "" {
		hc.Method = fc.Method
	}
	if len(fc.Headers) > 0 {
		if hc.Headers == nil {
			hc.Headers = make(map[string]string, len(fc.Headers))
		}
		for k, v := range fc.Headers {
			if _, ok := hc.Headers[k]; !ok {
				hc.Headers[k] = v
			}
		}
	}

	var err error
	if hc.RetryDelay, err = mergeDuration(hc.RetryDelay, types.DEFAULT_RETRY_DELAY, fc.Retry_delay, "retry_delay"); err != nil {
		return err
	}
	if hc.Timeout, err = mergeDuration(hc.Timeout, types.DEFAULT_TIMEOUT, fc.Timeout, "timeout"); err != nil {
		return err
	}
	if cfg.LogMaxAge, err = mergeDuration(cfg.LogMaxAge, types.DEFAULT_LOG_MAX_AGE, fc.LogMaxAge, "log_max_age"); err != nil {
		return err
	}
	if cfg.LogRotationTime, err = mergeDuration(cfg.LogRotationTime, types.DEFAULT_LOG_ROTATION_TIME, fc.LogRotationTime, "log_rotation_time"); err != nil {
		return err
	}

	if cfg.LogDir == "" {
		cfg.LogDir = fc.LogDir
	}
	if fc.Syslog {
		cfg.UseSyslog = true
	}
	return nil
}

func mergeDuration(cur, def time.Duration, s, name string) (time.Duration, error) {
	if cur != def || s == "" {
		return cur, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return cur, errors.Errorf("invalid value %s for %s: parse error", s, name)
	}
	return d, nil
}

// ParseSize accepts humanized sizes such as "32k", "1MiB" or "4096".
func ParseSize(s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "parse size %q", s)
	}
	if n == 0 {
		return 0, errors.Errorf("size %q must be positive", s)
	}
	return int(n), nil
}
