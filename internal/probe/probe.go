// Package probe measures how reliably a URL answers: it fires a fixed number
// of GET requests with bounded concurrency and summarizes the outcome.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

const userAgent = "ReliabilityTester/1.0"

type Config struct {
	URL         string
	Requests    int
	Concurrency int
	Timeout     time.Duration
	// BatchDelay pauses a worker after every Concurrency completions
	BatchDelay time.Duration
}

type Result struct {
	N         int
	Timestamp time.Time
	Success   bool
	// Status is zero when no response arrived
	Status   int
	Duration time.Duration
	Error    string
}

// Run sends cfg.Requests GETs. progress, if set, is called once per finished
// request with the running completion count; calls are serialized.
func Run(ctx context.Context, cfg Config, progress func(done int, r Result)) (*Report, error) {
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}
	if cfg.Requests <= 0 {
		return nil, errors.New("requests must be positive")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	report := &Report{URL: cfg.URL, Results: make([]Result, 0, cfg.Requests)}
	var mu sync.Mutex
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i := 1; i <= cfg.Requests; i++ {
		n := i
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := fetch(cfg, n)

			mu.Lock()
			report.Results = append(report.Results, r)
			done := len(report.Results)
			if progress != nil {
				progress(done, r)
			}
			mu.Unlock()

			if cfg.BatchDelay > 0 && done%cfg.Concurrency == 0 {
				time.Sleep(cfg.BatchDelay)
			}
			return nil
		})
	}
	err := g.Wait()
	report.Elapsed = time.Since(start)
	return report, err
}

func fetch(cfg Config, n int) Result {
	r := Result{N: n, Timestamp: time.Now()}

	a := fiber.Get(cfg.URL)
	a.UserAgent(userAgent)
	if cfg.Timeout > 0 {
		a.Timeout(cfg.Timeout)
	}
	code, _, errs := a.Bytes()
	r.Duration = time.Since(r.Timestamp)

	if len(errs) > 0 {
		r.Duration = 0
		r.Error = classify(errs[0])
		return r
	}
	r.Status = code
	r.Success = code == fiber.StatusOK
	return r
}

func classify(err error) string {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return "Timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, fasthttp.ErrConnectionClosed) {
		return "Connection Error"
	}
	return fmt.Sprint(err)
}
