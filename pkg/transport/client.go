// Package transport posts multipart bodies over HTTP.
package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lambertxiao/go-formstream/pkg/formdata"
	"github.com/lambertxiao/go-formstream/pkg/logg"
	"github.com/lambertxiao/go-formstream/pkg/types"
)

const tracerName = "github.com/lambertxiao/go-formstream/pkg/transport"

// responses larger than this are cut off
const maxReplyBody = 1 << 20

// HTTPDoer abstracts HTTP client operations for dependency inversion.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns an http.Client whose transport records a client span
// per request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// Client sends multipart bodies, rebuilding the body for every attempt.
type Client struct {
	httpClient HTTPDoer
	headers    http.Header
	maxRetries int
	baseDelay  time.Duration
	sleepFunc  func(time.Duration)

	reqsHistogram *prometheus.HistogramVec
	dataBytes     *prometheus.CounterVec
}

func NewClient(httpClient HTTPDoer, reg prometheus.Registerer) *Client {
	c := &Client{
		httpClient: httpClient,
		maxRetries: types.DEFAULT_RETRY,
		baseDelay:  types.DEFAULT_RETRY_DELAY,
		sleepFunc:  time.Sleep,
	}
	c.initMetrics(reg)
	return c
}

func (c *Client) initMetrics(reg prometheus.Registerer) {
	c.reqsHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_durations_histogram_seconds",
		Help:    "Multipart upload latency distributions.",
		Buckets: prometheus.ExponentialBuckets(0.01, 1.5, 25),
	}, []string{"method"})

	c.dataBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_request_data_bytes",
		Help: "Multipart body bytes sent.",
	}, []string{"method"})

	if reg == nil {
		return
	}

	reg.MustRegister(c.reqsHistogram)
	reg.MustRegister(c.dataBytes)
}

// WithRetry sets how many times a failed attempt is repeated and the first
// pause, which doubles on every further attempt.
func (c *Client) WithRetry(maxRetries int, baseDelay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.baseDelay = baseDelay
	return c
}

// WithHeaders adds headers to every request.
func (c *Client) WithHeaders(h http.Header) *Client {
	c.headers = h
	return c
}

func (c *Client) WithSleep(f func(time.Duration)) *Client {
	c.sleepFunc = f
	return c
}

type PostRequest struct {
	Method string // POST when empty
	URL    string
	Body   formdata.Factory
	Header http.Header
}

type PostReply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Sent       int64
	Attempts   int
}

// countingReader wraps a reader and counts bytes read.
type countingReader struct {
	reader    io.Reader
	bytesRead int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.bytesRead += int64(n)
	return n, err
}

// Post sends the body. Transport failures and 5xx answers are retried, 4xx
// answers are returned as ErrInvalidArguments right away.
func (c *Client) Post(ctx context.Context, req *PostRequest) (*PostReply, error) {
	if req.URL == "" || req.Body == nil {
		return nil, errors.Wrap(types.ErrInvalidArguments, "url and body are required")
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "formdata.Post",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", req.URL),
		))
	defer span.End()

	reply, err := c.post(ctx, method, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return reply, err
	}
	span.SetAttributes(
		attribute.Int("http.response.status_code", reply.StatusCode),
		attribute.Int64("formdata.bytes_sent", reply.Sent),
		attribute.Int("formdata.attempts", reply.Attempts),
	)
	return reply, nil
}

func (c *Client) post(ctx context.Context, method string, req *PostRequest) (*PostReply, error) {
	maxAttempts := c.maxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 0 && c.sleepFunc != nil && c.baseDelay > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			c.sleepFunc(delay)
		}

		reply, retry, err := c.attempt(ctx, method, req)
		if err == nil {
			reply.Attempts = attempt + 1
			return reply, nil
		}
		if !retry {
			return reply, err
		}
		logg.Dhttplog.Warnf("%s %s attempt %d: %v", method, req.URL, attempt+1, err)
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method string, req *PostRequest) (*PostReply, bool, error) {
	enc, err := req.Body()
	if err != nil {
		return nil, false, err
	}
	defer enc.Close()

	cr := &countingReader{reader: enc}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, cr)
	if err != nil {
		return nil, false, errors.Wrapf(types.ErrInvalidArguments, "%v", err)
	}
	httpReq.ContentLength = enc.Len()
	httpReq.GetBody = func() (io.ReadCloser, error) {
		e, err := req.Body()
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	for k, vv := range c.headers {
		httpReq.Header[k] = append([]string(nil), vv...)
	}
	for k, vv := range req.Header {
		httpReq.Header[k] = append([]string(nil), vv...)
	}
	httpReq.Header.Set("Content-Type", enc.ContentType())

	st := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.dataBytes.WithLabelValues(method).Add(float64(cr.bytesRead))
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, errors.Wrapf(types.ErrServerFail, "%v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	c.reqsHistogram.WithLabelValues(method).Observe(time.Since(st).Seconds())
	logg.Dhttplog.Infof("%s %s %d, sent %d/%d bytes in %v", method, req.URL, resp.StatusCode,
		cr.bytesRead, enc.Len(), time.Since(st))
	if err != nil {
		return nil, true, errors.Wrapf(types.ErrServerFail, "read response: %v", err)
	}

	reply := &PostReply{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Sent:       cr.bytesRead,
	}
	switch {
	case resp.StatusCode >= 500:
		return reply, true, errors.Wrapf(types.ErrServerFail, "%s returned status %d", req.URL, resp.StatusCode)
	case resp.StatusCode >= 400:
		return reply, false, errors.Wrapf(types.ErrInvalidArguments, "%s returned status %d", req.URL, resp.StatusCode)
	}
	return reply, false, nil
}
