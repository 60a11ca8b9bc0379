package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// searchSummary is the part of a search response the report uses.
type searchSummary struct {
	TotalHits int      `json:"total_hits"`
	CacheHit  bool     `json:"cache_hit"`
	Filters   []string `json:"filters"`
	Results   []struct {
		Matches int `json:"matches"`
	} `json:"results"`
}

type outcome struct {
	latency time.Duration
	status  int
	err     error
	summary *searchSummary
}

type scenarioStats struct {
	requests    int
	failures    int
	rateLimited int
	cacheHits   int
	zeroHits    int
	matches     int
	statuses    map[int]int
	latencies   []time.Duration
}

// recorder collects outcomes per scenario. It is shared by all workers.
type recorder struct {
	mu    sync.Mutex
	stats map[string]*scenarioStats
	order []string
}

func newRecorder(scenarios []scenario) *recorder {
	r := &recorder{stats: make(map[string]*scenarioStats, len(scenarios))}
	for _, sc := range scenarios {
		r.stats[sc.Name] = &scenarioStats{statuses: make(map[int]int)}
		r.order = append(r.order, sc.Name)
	}
	return r
}

func (r *recorder) record(name string, o outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats[name]
	s.requests++
	if o.err != nil {
		s.failures++
		return
	}
	s.statuses[o.status]++
	s.latencies = append(s.latencies, o.latency)
	switch {
	case o.status == 429:
		s.rateLimited++
	case o.status < 200 || o.status > 299:
		s.failures++
	}
	if o.summary == nil {
		return
	}
	if o.summary.CacheHit {
		s.cacheHits++
	}
	if o.summary.TotalHits == 0 {
		s.zeroHits++
	}
	for _, res := range o.summary.Results {
		s.matches += res.Matches
	}
}

// totals sums every scenario.
func (r *recorder) totals() scenarioStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := scenarioStats{statuses: make(map[int]int)}
	for _, s := range r.stats {
		all.requests += s.requests
		all.failures += s.failures
		all.rateLimited += s.rateLimited
		all.cacheHits += s.cacheHits
		all.zeroHits += s.zeroHits
		all.matches += s.matches
		all.latencies = append(all.latencies, s.latencies...)
		for code, n := range s.statuses {
			all.statuses[code] += n
		}
	}
	return all
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// writeReport prints one row per scenario followed by the overall figures.
func (r *recorder) writeReport(w io.Writer, elapsed time.Duration) {
	rows := make([][]string, 0, len(r.order)+1)
	r.mu.Lock()
	for _, name := range r.order {
		rows = append(rows, r.stats[name].row(name))
	}
	r.mu.Unlock()
	all := r.totals()
	rows = append(rows, all.row("TOTAL"))

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("scenario", "reqs", "fail", "429", "cache", "zero", "matches/req", "p50", "p95", "p99").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, tbl.String())

	if elapsed > 0 {
		fmt.Fprintf(w, "throughput: %.1f req/s over %s\n", float64(all.requests)/elapsed.Seconds(), elapsed.Round(time.Millisecond))
	}
	codes := make([]int, 0, len(all.statuses))
	for code := range all.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  HTTP %d: %d\n", code, all.statuses[code])
	}
}

func (s *scenarioStats) row(name string) []string {
	sorted := slices.Clone(s.latencies)
	slices.Sort(sorted)
	ok := s.requests - s.failures - s.rateLimited
	return []string{
		name,
		strconv.Itoa(s.requests),
		strconv.Itoa(s.failures),
		strconv.Itoa(s.rateLimited),
		ratio(s.cacheHits, ok),
		ratio(s.zeroHits, ok),
		perRequest(s.matches, ok),
		percentile(sorted, 50).Round(time.Microsecond).String(),
		percentile(sorted, 95).Round(time.Microsecond).String(),
		percentile(sorted, 99).Round(time.Microsecond).String(),
	}
}

func ratio(n, of int) string {
	if of <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", float64(n)/float64(of)*100)
}

func perRequest(n, of int) string {
	if of <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", float64(n)/float64(of))
}

// percentile uses the nearest-rank method on sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
