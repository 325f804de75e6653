package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/lambertxiao/go-formstream/pkg/config"
	"github.com/lambertxiao/go-formstream/pkg/formdata"
	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/metrics"
	"github.com/lambertxiao/go-formstream/pkg/storage"
	"github.com/lambertxiao/go-formstream/pkg/transport"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

// setup parses the flags shared by every command and starts logging.
func setup(c *cli.Context) (*config.Config, []*FieldSpec, error) {
	cfg, err := PopulateConfig(c)
	if err != nil {
		fmt.Printf("Parse config error: %v\n", err)
		return nil, nil, err
	}

	specs, err := ParseFieldSpecs(c.StringSlice(C_FIELD))
	if err != nil {
		return nil, nil, err
	}

	config.SetGConfig(cfg)
	logg.InitLogHook(cfg.LogDir, cfg.LogMaxAge, cfg.LogRotationTime, cfg.UseSyslog)
	logg.InitLogger()
	return cfg, specs, nil
}

func encoderOptions(cfg *config.Config) *formdata.Options {
	return &formdata.Options{
		Boundary:  cfg.Boundary,
		Encoding:  cfg.Encoding,
		ChunkSize: cfg.ChunkSize,
	}
}

// checkBody builds the body once so bad fields fail before any upload.
func checkBody(factory formdata.Factory) func() error {
	return func() error {
		enc, err := factory()
		if err != nil {
			return err
		}
		logg.Dlog.Infof("body %v, %s", enc, humanize.IBytes(uint64(enc.Len())))
		return enc.Close()
	}
}

func runEncode(c *cli.Context) error {
	cfg, specs, err := setup(c)
	if err != nil {
		return err
	}

	enc, err := BodyFactory(specs, encoderOptions(cfg))()
	if err != nil {
		return err
	}
	defer enc.Close()

	var w io.Writer = os.Stdout
	if out := c.String(C_OUT); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	// stdout may carry the body, headers go to stderr
	if err := enc.Headers().Write(os.Stderr); err != nil {
		return err
	}

	n, err := enc.WriteTo(w)
	if err != nil {
		logg.Dlog.Errorf("encode %v: %v", enc, err)
		return err
	}
	if n != enc.Len() {
		return errors.Wrapf(types.ErrSizeMismatch, "wrote %d of %d bytes", n, enc.Len())
	}
	logg.Dlog.Infof("encoded %s", humanize.IBytes(uint64(n)))
	return nil
}

func runLength(c *cli.Context) error {
	cfg, specs, err := setup(c)
	if err != nil {
		return err
	}

	enc, err := BodyFactory(specs, encoderOptions(cfg))()
	if err != nil {
		return err
	}
	defer enc.Close()

	return enc.Headers().Write(os.Stdout)
}

func runPost(c *cli.Context) error {
	cfg, specs, err := setup(c)
	if err != nil {
		return err
	}

	url := c.Args().First()
	if url == "" {
		url = c.String(C_URL)
	}
	if url == "" {
		return errors.Wrap(types.EINVAL, "post needs a url")
	}

	hc := &cfg.HTTPConfig
	method := c.String(C_METHOD)
	if method == http.MethodPost && hc.Method != "" {
		method = hc.Method
	}
	hc.Method = method
	if t := c.Duration(C_TIMEOUT); t != types.DEFAULT_TIMEOUT {
		hc.Timeout = t
	}
	hc.Headers, err = parseHeaders(c.StringSlice(C_HEADER), hc.Headers)
	if err != nil {
		return err
	}
	header := make(http.Header, len(hc.Headers))
	for k, v := range hc.Headers {
		header.Set(k, v)
	}

	registry, registerer := metrics.InitMetricRegistry("post", url)
	metrics.RegistMetrics(registerer)

	client := transport.NewClient(transport.NewHTTPClient(hc.Timeout), registerer).
		WithRetry(cfg.Retry, hc.RetryDelay).
		WithHeaders(header)
	factory := BodyFactory(specs, encoderOptions(cfg))

	return runJob(cfg, checkBody(factory), func(ctx context.Context) error {
		stop := startStatsWriter(ctx, registry, cfg.Stats_file)
		defer stop()

		reply, err := client.Post(ctx, &transport.PostRequest{
			Method: method,
			URL:    url,
			Body:   factory,
		})
		if err != nil {
			return err
		}
		logg.Dlog.Infof("%s %s: %d, sent %s in %d attempts", method, url, reply.StatusCode,
			humanize.IBytes(uint64(reply.Sent)), reply.Attempts)

		if cfg.Foreground {
			fmt.Fprintf(os.Stderr, "%d %s\n", reply.StatusCode, http.StatusText(reply.StatusCode))
			os.Stdout.Write(reply.Body)
		}
		if cfg.Stats {
			PrintSnapshot(registry)
		}
		return nil
	})
}

func runPut(c *cli.Context) error {
	cfg, specs, err := setup(c)
	if err != nil {
		return err
	}

	key := c.String(C_KEY)
	if key == "" {
		return errors.Wrapf(types.EINVAL, "put needs --%s", C_KEY)
	}
	if err := populateStorage(c, cfg); err != nil {
		return err
	}
	meta, err := parseMeta(c.StringSlice(C_META))
	if err != nil {
		return err
	}

	registry, registerer := metrics.InitMetricRegistry("put", cfg.StorageConfig.Bucket)
	metrics.RegistMetrics(registerer)

	sto, err := storage.NewS3Storage(cfg.StorageConfig, registerer)
	if err != nil {
		return err
	}
	storage.InitStorage(sto)
	uploader := storage.NewUploader(storage.Instance)
	factory := BodyFactory(specs, encoderOptions(cfg))

	return runJob(cfg, checkBody(factory), func(ctx context.Context) error {
		stop := startStatsWriter(ctx, registry, cfg.Stats_file)
		defer stop()

		reply, err := uploader.UploadForm(&storage.UploadFormRequest{
			Key:      key,
			Body:     factory,
			MetaData: meta,
			Retry:    cfg.Retry,
		})
		if err != nil {
			return err
		}
		logg.Dlog.Infof("put %s/%s: etag %s, %s", cfg.StorageConfig.Bucket, key, reply.Etag,
			humanize.IBytes(uint64(reply.Size)))

		if cfg.Foreground {
			fmt.Printf("%s\t%d\t%s\n", reply.Etag, reply.Size, reply.Boundary)
		}
		if cfg.Stats {
			PrintSnapshot(registry)
		}
		return nil
	})
}
