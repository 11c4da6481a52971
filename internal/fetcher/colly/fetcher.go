// Package collyfetcher fetches restaurant pages with a gocolly collector.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxBodySize caps the bytes read per page; zero keeps colly's default.
	MaxBodySize int
}

// Clock stamps fetch times.
type Clock interface {
	Now() time.Time
}

// Fetcher issues one synchronous GET per call. The base collector is cloned
// for every fetch so callbacks never leak between pages.
type Fetcher struct {
	cfg   Config
	base  *colly.Collector
	clock Clock
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher sharing one pooled transport across fetches.
func New(cfg Config, clock Clock) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if clock == nil {
		clock = utcClock{}
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{cfg: cfg, base: c, clock: clock}
}

// Fetch downloads rawURL. Non-2xx responses are returned as errors that
// carry the status code.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (pipeline.Document, error) {
	var (
		doc      pipeline.Document
		fetchErr error
	)
	start := f.clock.Now()
	collector := f.base.Clone()
	f.configureHooks(collector, start, &doc, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return pipeline.Document{}, fmt.Errorf("fetch %s canceled: %w", rawURL, ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return pipeline.Document{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
		if err != nil {
			return pipeline.Document{}, fmt.Errorf("visit %s: %w", rawURL, err)
		}
	}
	if doc.FetchedAt.IsZero() {
		return pipeline.Document{}, fmt.Errorf("fetch %s: no response", rawURL)
	}
	return doc, nil
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

func (f *Fetcher) configureHooks(hooks collectorHooks, start time.Time, doc *pipeline.Document, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		now := f.clock.Now()
		*doc = pipeline.Document{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Header:     r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			FetchedAt:  now,
			Duration:   now.Sub(start),
		}
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = &StatusError{Code: r.StatusCode, Err: err}
			return
		}
		*fetchErr = err
	})
}

// IsStatus reports whether err came from a response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       60 * time.Second,
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
