package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/lambertxiao/go-formstream/pkg/config"
	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

const (
	// flags
	C_HELP              = "help, h"
	C_CONFIG            = "config"
	C_BOUNDARY          = "boundary"
	C_ENCODING          = "encoding"
	C_CHUNK_SIZE        = "chunk_size"
	C_RETRY             = "retry"
	C_RETRY_DELAY       = "retry_delay"
	C_LEVEL             = "level"
	C_LOG_DIR           = "log_dir"
	C_LOG_MAX_AGE       = "log_max_age"
	C_LOG_ROTATION_TIME = "log_rotation_time"
	C_SYSLOG            = "syslog"
	C_STATS             = "stats"
	C_STATS_FILE        = "stats_file"
	C_PPROF             = "pprof"

	// command flags
	C_FIELD         = "F"
	C_OUT           = "o"
	C_URL           = "url"
	C_METHOD        = "X"
	C_HEADER        = "H"
	C_TIMEOUT       = "timeout"
	C_BUCKET        = "bucket"
	C_KEY           = "key"
	C_ENDPOINT      = "endpoint"
	C_SECURE        = "secure"
	C_PREFIX        = "prefix"
	C_STORAGE_CLASS = "storage_class"
	C_META          = "meta"
	C_FILE          = "f"
)

const DEFAULT_CHUNK_SIZE_STR = "32KiB"

var allFlags map[string]string

func init() {
	cli.VersionPrinter = VersionPointer
	allFlags = make(map[string]string)
	for _, v := range []string{C_HELP, C_CONFIG} {
		allFlags[v] = "misc"
	}

	FillPlatformFlags(allFlags)

	for _, v := range []string{C_BOUNDARY, C_ENCODING, C_CHUNK_SIZE} {
		allFlags[v] = "encoder"
	}
	for _, v := range []string{
		C_RETRY, C_RETRY_DELAY, C_LEVEL, C_LOG_DIR, C_LOG_MAX_AGE, C_LOG_ROTATION_TIME,
		C_SYSLOG, C_STATS, C_STATS_FILE, C_PPROF,
	} {
		allFlags[v] = "os"
	}
}

func VersionPointer(c *cli.Context) {
	fmt.Printf("%v", c.App.Version)
}

func fieldFlag() cli.Flag {
	return cli.StringSliceFlag{
		Name:  C_FIELD,
		Usage: "Form field: name=value, name=@file[;type=..;filename=..;headers=K: v] or name=<file",
	}
}

func NewApp() *cli.App {
	version := "FORMSTREAM Version: " + types.FORMSTREAM_VERSION + "\n" +
		"  Commit ID: " + types.COMMIT_ID + "\n" +
		"  Build: " + types.BUILD_TIME + "\n" +
		"  Go Version: " + types.GO_VERSION + "\n"

	app := &cli.App{
		Name:     "formstream",
		HideHelp: false,
		Version:  version,
		Usage:    "formstream [global options] command [command options]",
		Writer:   os.Stderr,
		Commands: []cli.Command{
			{
				Name:  "encode",
				Usage: "write the multipart body to a file or stdout",
				Flags: []cli.Flag{
					fieldFlag(),
					cli.StringFlag{
						Name:  C_OUT,
						Usage: "output file, stdout when empty",
					},
				},
				Action: runEncode,
			},
			{
				Name:  "length",
				Usage: "print the headers of the body without reading any file",
				Flags: []cli.Flag{fieldFlag()},
				Action: runLength,
			},
			{
				Name:      "post",
				Usage:     "send the body to an http endpoint",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					fieldFlag(),
					cli.StringFlag{
						Name:  C_URL,
						Usage: "target url, used when no argument is given",
					},
					cli.StringFlag{
						Name:  C_METHOD,
						Usage: "request method",
						Value: http.MethodPost,
					},
					cli.StringSliceFlag{
						Name:  C_HEADER,
						Usage: "extra request header, \"Key: value\"",
					},
					cli.DurationFlag{
						Name:  C_TIMEOUT,
						Usage: "whole request timeout, 0 for none",
						Value: types.DEFAULT_TIMEOUT,
					},
				},
				Action: runPost,
			},
			{
				Name:  "put",
				Usage: "store the body as one object",
				Flags: []cli.Flag{
					fieldFlag(),
					cli.StringFlag{
						Name:  C_BUCKET,
						Usage: "bucket name",
					},
					cli.StringFlag{
						Name:  C_KEY,
						Usage: "object key",
					},
					cli.StringFlag{
						Name:  C_ENDPOINT,
						Usage: "object storage endpoint, host:port",
					},
					cli.BoolFlag{
						Name:  C_SECURE,
						Usage: "use https for the endpoint",
					},
					cli.StringFlag{
						Name:  C_PREFIX,
						Usage: "key prefix, must end with /",
					},
					cli.StringFlag{
						Name:  C_STORAGE_CLASS,
						Usage: "Storage type, including \"STANDARD\", \"IA\"",
					},
					cli.StringSliceFlag{
						Name:  C_META,
						Usage: "user metadata, key=value",
					},
				},
				Action: runPut,
			},
			{
				Name:  "stats",
				Usage: "watch the stats file written by a running upload",
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:     C_FILE,
						Usage:    "stats file",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					return ShowStats(c.String(C_FILE))
				},
			},
		},
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  C_HELP,
				Usage: "show help",
			},
			cli.StringFlag{
				Name:  C_CONFIG,
				Usage: "specify config file",
				Value: types.DEFAULT_CONFIG_FILE,
			},
			cli.StringFlag{
				Name:  C_BOUNDARY,
				Usage: "multipart boundary, random when empty",
			},
			cli.StringFlag{
				Name:  C_ENCODING,
				Usage: "charset for text values and part headers",
				Value: types.DEFAULT_ENCODING,
			},
			cli.StringFlag{
				Name:  C_CHUNK_SIZE,
				Usage: "read size. e.g.: 32KiB/1MiB/4096",
				Value: DEFAULT_CHUNK_SIZE_STR,
			},
			cli.IntFlag{
				Name:  C_RETRY,
				Value: types.DEFAULT_RETRY,
				Usage: "Number of times to retry a failed upload",
			},
			cli.DurationFlag{
				Name:  C_RETRY_DELAY,
				Value: types.DEFAULT_RETRY_DELAY,
				Usage: "Pause before the first retry, doubled afterwards",
			},
			cli.StringFlag{
				Name:  C_LEVEL,
				Usage: "Set log level: error/warn/info/debug",
				Value: types.DEFAULT_LEVEL,
			},
			cli.StringFlag{
				Name:  C_LOG_DIR,
				Usage: "Set log dir",
				Value: "",
			},
			cli.DurationFlag{
				Name:  C_LOG_MAX_AGE,
				Usage: "Set log max age",
				Value: types.DEFAULT_LOG_MAX_AGE,
			},
			cli.DurationFlag{
				Name:  C_LOG_ROTATION_TIME,
				Usage: "Set log rotation time",
				Value: types.DEFAULT_LOG_ROTATION_TIME,
			},
			cli.BoolFlag{
				Name:  C_SYSLOG,
				Usage: "log to syslog when no log dir is set",
			},
			cli.BoolFlag{
				Name:  C_STATS,
				Usage: "print a stats line when the command ends",
			},
			cli.StringFlag{
				Name:  C_STATS_FILE,
				Usage: "keep writing stats to this file while uploading",
			},
			cli.IntFlag{
				Name:  C_PPROF,
				Usage: "serve net/http/pprof on this local port while uploading, 0 to disable",
			},
		},
	}

	AppendAppFlags(app)
	return app
}

// PopulateConfig builds the config from global flags and the config file.
// Command specific settings are filled in by the commands.
func PopulateConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{
		Config_file: c.GlobalString(C_CONFIG),
		Boundary:    c.GlobalString(C_BOUNDARY),
		Encoding:    c.GlobalString(C_ENCODING),
		Retry:       c.GlobalInt(C_RETRY),
		Stats:       c.GlobalBool(C_STATS),
		Stats_file:  c.GlobalString(C_STATS_FILE),
		Pprof_port:  c.GlobalInt(C_PPROF),

		LogDir:          c.GlobalString(C_LOG_DIR),
		LogMaxAge:       c.GlobalDuration(C_LOG_MAX_AGE),
		LogRotationTime: c.GlobalDuration(C_LOG_ROTATION_TIME),
		UseSyslog:       c.GlobalBool(C_SYSLOG),

		HTTPConfig: config.HTTPConf{
			RetryDelay: c.GlobalDuration(C_RETRY_DELAY),
			Timeout:    types.DEFAULT_TIMEOUT,
		},
	}
	FillConfig(c, cfg)

	chunkSize, err := config.ParseSize(c.GlobalString(C_CHUNK_SIZE))
	if err != nil {
		return cfg, err
	}
	cfg.ChunkSize = chunkSize

	fc, mtime, err := config.LoadFileConfig(cfg.Config_file)
	if err != nil {
		return cfg, err
	}
	cfg.ModifiedTime = mtime
	if err := fc.Merge(cfg); err != nil {
		return cfg, err
	}

	if cfg.Retry < 0 {
		cfg.Retry = 0
	}

	level_str := c.GlobalString(C_LEVEL)
	if level_str == types.DEFAULT_LEVEL && fc.Log_level != "" {
		level_str = fc.Log_level
	}
	cfg.Log_level = logg.ParseLevel(level_str)
	logg.SetLevel(cfg.Log_level)

	return cfg, nil
}

// populateStorage fills the object storage settings of the put command.
func populateStorage(c *cli.Context, cfg *config.Config) error {
	sc := &cfg.StorageConfig
	if v := c.String(C_BUCKET); v != "" {
		sc.Bucket = v
	}
	if v := c.String(C_ENDPOINT); v != "" {
		sc.Endpoint = v
	}
	if c.Bool(C_SECURE) {
		sc.Secure = true
	}
	if v := c.String(C_PREFIX); v != "" {
		sc.Prefix = v
	}
	if v := c.String(C_STORAGE_CLASS); v != "" {
		sc.Storage_class = v
	}

	if sc.Prefix != "" && !strings.HasSuffix(sc.Prefix, "/") {
		return errors.New("prefix must end up with  /")
	}
	if sc.Storage_class != "" {
		class, ok := StorageClass(sc.Storage_class)
		if !ok {
			return errors.New("wrong storage class")
		}
		sc.Storage_class = class
	}
	if sc.AccessKey == "" || sc.SecretKey == "" {
		return errors.Errorf("access_key and secret_key are required in %s", cfg.Config_file)
	}
	return nil
}

// parseHeaders reads "Key: value" strings.
func parseHeaders(hs []string, into map[string]string) (map[string]string, error) {
	if into == nil {
		into = make(map[string]string, len(hs))
	}
	for _, h := range hs {
		k, v, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, errors.Wrapf(types.EINVAL, "header %q", h)
		}
		into[http.CanonicalHeaderKey(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return into, nil
}

// parseMeta reads "key=value" strings.
func parseMeta(ms []string) (map[string]string, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(ms))
	for _, m := range ms {
		k, v, ok := strings.Cut(m, "=")
		if !ok || k == "" {
			return nil, errors.Wrapf(types.EINVAL, "metadata %q", m)
		}
		meta[k] = v
	}
	return meta, nil
}

const (
	standard_class = "STANDARD"
	ia_class       = "IA"
)

func StorageClass(s string) (string, bool) {
	s = strings.ToUpper(s)
	switch s {
	case standard_class:
		return standard_class, true
	case ia_class:
		return ia_class, true
	}
	return "", false
}
