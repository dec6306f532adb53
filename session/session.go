// Package session orchestrates a crawl: it owns the frontier, the worker
// pool, the inventory collector, and the final artifacts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/frontier"
	"github.com/use-agent/sitelens/inventory"
	"github.com/use-agent/sitelens/models"
	"github.com/use-agent/sitelens/scraper"
	"github.com/use-agent/sitelens/urlutil"
)

// Renderer supplies prepared rendering surfaces to the crawl workers.
// *scraper.Browser is the production implementation.
type Renderer interface {
	Acquire() (scraper.Page, error)
	Release(scraper.Page)
}

// Session states. A session moves strictly forward: Idle -> Running ->
// (Draining | Capped) -> Finalized.
const (
	stateIdle int32 = iota
	stateRunning
	stateDraining
	stateCapped
	stateFinalized
)

const timeLayout = "2006-01-02 15:04:05"

// Session runs one crawl from a seed URL to the finished artifacts. Create
// it with New and drive it with a single call to Run.
type Session struct {
	id        string
	startURL  string
	outputDir string
	cfg       *config.Config

	renderer  Renderer
	procs     []scraper.PageProcessor
	sink      *scraper.AssetSink
	frontier  *frontier.Frontier
	collector *inventory.Collector
	blocklist urlutil.Blocklist
	limiter   *rate.Limiter

	state     atomic.Int32
	pageCount atomic.Int32
	startTime time.Time
}

// New validates the seed URL and assembles a session. sink may be nil when
// asset capture is disabled.
func New(startURL, outputDir string, cfg *config.Config, renderer Renderer, procs []scraper.PageProcessor, sink *scraper.AssetSink) (*Session, error) {
	u, err := url.Parse(startURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, models.NewCrawlError(
			models.ErrCodeInvalidInput,
			fmt.Sprintf("start URL must be absolute http(s): %q", startURL),
			err,
		)
	}
	u.Fragment = ""

	blocklist, err := urlutil.CompileBlocklist(cfg.BlockHostPatterns)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeInvalidInput, "invalid blocklist pattern", err)
	}

	s := &Session{
		id:        uuid.NewString(),
		startURL:  u.String(),
		outputDir: outputDir,
		cfg:       cfg,
		renderer:  renderer,
		procs:     procs,
		sink:      sink,
		frontier:  frontier.New(cfg.MaxDepth),
		blocklist: blocklist,
	}
	if cfg.PageDelayMS > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.PageDelay()), 1)
	}
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Run executes the crawl to completion and writes the artifacts. It returns
// once every worker has stopped and the summary is on disk. Cancelling ctx
// stops the crawl early but still finalizes.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		return models.NewCrawlError(models.ErrCodeFatal, "session already started", nil)
	}
	s.startTime = time.Now()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return models.NewCrawlError(models.ErrCodeFatal, "cannot create output directory", err)
	}

	s.collector = inventory.NewCollector(s.startURL, s.startTime)
	s.frontier.Enqueue(s.startURL, 0)

	slog.Info("session started",
		"sessionId", s.id,
		"startUrl", s.startURL,
		"maxPages", s.cfg.MaxPages,
		"maxDepth", s.cfg.MaxDepth,
		"concurrency", s.cfg.ConcurrencyPages,
	)

	// Cancellation closes the frontier, which unblocks every worker.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			slog.Info("session canceled, closing frontier")
			s.frontier.Close()
		case <-watchDone:
		}
	}()

	g := new(errgroup.Group)
	for i := 0; i < s.cfg.ConcurrencyPages; i++ {
		g.Go(func() error {
			s.worker(ctx)
			return nil
		})
	}
	_ = g.Wait()
	close(watchDone)

	s.state.CompareAndSwap(stateRunning, stateDraining)
	return s.finalize(ctx)
}

// worker pulls frontier entries until the frontier drains or closes.
func (s *Session) worker(ctx context.Context) {
	for {
		entry, ok := s.frontier.Dequeue()
		if !ok {
			return
		}

		if ctx.Err() != nil {
			s.frontier.Done()
			continue
		}

		if !s.reserveSlot() {
			// Page budget exhausted: drop the entry and stop accepting
			// new work. In-flight pages still finish.
			if s.state.CompareAndSwap(stateRunning, stateCapped) {
				slog.Info("page budget reached, draining", "maxPages", s.cfg.MaxPages)
				s.frontier.Close()
			}
			s.frontier.Done()
			continue
		}

		s.crawlOne(ctx, entry)
		s.frontier.Done()
	}
}

// reserveSlot claims one unit of the page budget before navigation starts,
// so concurrent workers can never overshoot MaxPages. A failed navigation
// returns its slot via releaseSlot.
func (s *Session) reserveSlot() bool {
	for {
		n := s.pageCount.Load()
		if int(n) >= s.cfg.MaxPages {
			return false
		}
		if s.pageCount.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *Session) releaseSlot() {
	s.pageCount.Add(-1)
}

// crawlOne renders a single page: navigate, run processors, collect the UI
// inventory, and discover outgoing links. Processor failures degrade the
// page's outputs but never fail the page.
func (s *Session) crawlOne(ctx context.Context, entry frontier.Entry) {
	if !s.allowedByRobots(entry.URL) {
		slog.Debug("skipped by robots.txt", "url", entry.URL)
		s.releaseSlot()
		return
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.releaseSlot()
			return
		}
	}

	page, err := s.renderer.Acquire()
	if err != nil {
		slog.Error("failed to acquire page", "url", entry.URL, "error", err)
		s.releaseSlot()
		s.retryOrFail(entry, err)
		return
	}
	defer s.renderer.Release(page)

	if err := page.Navigate(ctx, entry.URL); err != nil {
		s.releaseSlot()
		s.retryOrFail(entry, err)
		return
	}

	slog.Info("page rendered", "url", entry.URL, "depth", entry.Depth, "attempt", entry.Attempt)

	for _, proc := range s.procs {
		if err := proc.Process(ctx, page, entry.URL, s.outputDir); err != nil {
			slog.Warn("processor failed",
				"processor", proc.Name(), "url", entry.URL, "error", err)
		}
	}

	if s.cfg.CollectUIInventory {
		if data, dataErr := scraper.CollectPageData(page, entry.URL); dataErr != nil {
			slog.Warn("UI extraction failed", "url", entry.URL, "error", dataErr)
		} else {
			s.collector.Merge(data)
		}
	}

	if entry.Depth < s.cfg.MaxDepth {
		if html, htmlErr := page.HTML(); htmlErr == nil {
			s.discoverLinks(entry.URL, entry.Depth, html)
		}
	}
}

// retryOrFail either requeues the entry for another attempt or records it as
// permanently failed. Attempt counts retries, so max_retries=3 allows three
// requeues on top of the first attempt. Requeue happens while the entry is
// still accounted in-flight, so the frontier cannot drain in between; a
// refused requeue (frontier already closed) is recorded as a failure so the
// URL does not silently stay visited-but-unprocessed.
func (s *Session) retryOrFail(entry frontier.Entry, cause error) {
	if s.cfg.RetryFailedPages && entry.Attempt < s.cfg.MaxRetries {
		slog.Warn("page failed, will retry",
			"url", entry.URL, "attempt", entry.Attempt, "error", cause)
		if s.frontier.Requeue(frontier.Entry{
			URL:     entry.URL,
			Depth:   entry.Depth,
			Attempt: entry.Attempt + 1,
		}) {
			return
		}
	}
	slog.Error("page failed permanently", "url", entry.URL, "attempts", entry.Attempt+1, "error", cause)
	s.frontier.Fail(entry.URL)
}

// discoverLinks feeds a page's outgoing links into the frontier after
// normalization and filtering.
func (s *Session) discoverLinks(currentURL string, depth int, html string) {
	var accepted int
	for _, link := range scraper.ExtractLinks(html, currentURL) {
		if !s.cfg.AllowCrossOrigin && !urlutil.SameOrigin(s.startURL, link) {
			continue
		}
		if urlutil.IsAssetURL(link) {
			continue
		}
		if s.blocklist.Matches(link) {
			continue
		}
		if s.frontier.Enqueue(link, depth+1) {
			accepted++
		}
	}
	if accepted > 0 {
		slog.Debug("links discovered", "url", currentURL, "accepted", accepted)
	}
}

// allowedByRobots gates a URL on the site's robots.txt when the config asks
// for it.
func (s *Session) allowedByRobots(pageURL string) bool {
	if !s.cfg.RespectRobotsTxt {
		return true
	}
	// TODO: fetch and evaluate /robots.txt disallow rules for our user agent.
	return true
}

// finalize flushes the inventory, writes the summary report, and moves the
// session to its terminal state.
func (s *Session) finalize(ctx context.Context) error {
	end := time.Now()
	duration := end.Sub(s.startTime)

	if s.sink != nil {
		s.collector.AddAssets(s.sink.Count())
	}
	s.collector.Finalize(end)

	if s.cfg.CollectUIInventory {
		if err := s.collector.Save(s.outputDir); err != nil {
			slog.Error("failed to save UI inventory", "error", err)
		}
	}

	if err := s.saveSummary(end, duration); err != nil {
		slog.Error("failed to save summary", "error", err)
	}

	s.state.Store(stateFinalized)
	slog.Info("session finished",
		"sessionId", s.id,
		"pages", s.pageCount.Load(),
		"failed", len(s.frontier.FailedURLs()),
		"duration", duration.Round(time.Millisecond),
	)
	return ctx.Err()
}

func (s *Session) saveSummary(end time.Time, duration time.Duration) error {
	summary := models.Summary{
		SessionID:       s.id,
		StartURL:        s.startURL,
		StartTime:       s.startTime.Format(timeLayout),
		EndTime:         end.Format(timeLayout),
		DurationSeconds: duration.Seconds(),
		TotalPages:      int(s.pageCount.Load()),
		DuplicatePages:  s.collector.DuplicatePages(),
		FailedURLs:      s.frontier.FailedURLs(),
		Configuration: models.SummaryConfig{
			MaxPages:    s.cfg.MaxPages,
			MaxDepth:    s.cfg.MaxDepth,
			Concurrency: s.cfg.ConcurrencyPages,
		},
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.outputDir, "scraping_summary.json"), data, 0o644)
}
