// Command loadtest drives the post search endpoint with a weighted mix of
// search box shapes (plain words, quoted phrases, directives, filter-only
// and follow-up searches) and reports, per shape, latency percentiles,
// cache hit and zero-result ratios, highlight matches and rate limiting.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

type options struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	users       int
	limit       int
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the search service")
	flag.IntVar(&opts.concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	flag.IntVar(&opts.users, "users", 5, "distinct X-User-ID values the workers search as")
	flag.IntVar(&opts.limit, "limit", 10, "results per page")
	flag.Parse()

	workload := defaultWorkload()
	fmt.Printf("post search load test: %s, %d workers, %s, %d scenarios\n",
		opts.baseURL, opts.concurrency, opts.duration, len(workload))

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	start := time.Now()
	rec, err := run(ctx, client, opts, workload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}
	rec.writeReport(os.Stdout, time.Since(start))

	if all := rec.totals(); all.requests == all.failures {
		fmt.Fprintln(os.Stderr, "no request succeeded; is the search service running?")
		os.Exit(1)
	}
}

// run sends searches from opts.concurrency workers until ctx is done.
func run(ctx context.Context, client *http.Client, opts options, workload []scenario) (*recorder, error) {
	urls := make([]string, len(workload))
	for i, sc := range workload {
		u, err := searchURL(opts.baseURL, sc, opts.limit)
		if err != nil {
			return nil, err
		}
		urls[i] = u
	}
	order := schedule(workload)
	rec := newRecorder(workload)
	users := max(opts.users, 1)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < max(opts.concurrency, 1); w++ {
		w := w
		g.Go(func() error {
			userID := strconv.Itoa(w%users + 1)
			for n := w; ctx.Err() == nil; n++ {
				idx := order[n%len(order)]
				o := search(ctx, client, urls[idx], userID)
				if o.err != nil && ctx.Err() != nil {
					return nil
				}
				rec.record(workload[idx].Name, o)
			}
			return nil
		})
	}
	return rec, g.Wait()
}

func search(ctx context.Context, client *http.Client, rawURL, userID string) outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return outcome{err: err}
	}
	req.Header.Set("X-User-ID", userID)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return outcome{latency: time.Since(start), err: err}
	}
	defer resp.Body.Close()

	o := outcome{status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		var summary searchSummary
		if err := json.NewDecoder(resp.Body).Decode(&summary); err == nil {
			o.summary = &summary
		} else if ctx.Err() != nil {
			return outcome{err: ctx.Err()}
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	o.latency = time.Since(start)
	return o
}
