package types

import (
	"time"
)

var (
	FORMSTREAM_VERSION string
	GO_VERSION         string
	COMMIT_ID          string
	BUILD_TIME         string
)

const (
	PANIC_LOG_PREFIX = "formstream-"
	PANIC_LOG_SUFFIX = "-stderr.log"

	// default value
	DEFAULT_CHUNK_SIZE        = 32 * 1024 // 8192 * 4
	DEFAULT_ENCODING          = "utf-8"
	DEFAULT_CONTENT_TYPE      = "application/octet-stream"
	DEFAULT_RETRY             = 2
	DEFAULT_RETRY_DELAY       = 100 * time.Millisecond
	DEFAULT_TIMEOUT           = 0
	DEFAULT_LOG_MAX_AGE       = 72 * time.Hour
	DEFAULT_LOG_ROTATION_TIME = 1 * time.Hour
	DEFAULT_LEVEL             = "info"
	DEFAULT_CONFIG_FILE       = "/etc/formstream/formstream.yaml"
	DEFAULT_STATS_PREFIX      = "formstream_"
)
