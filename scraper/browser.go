// Package scraper wraps the headless browser: page pool, navigation,
// in-page extraction scripts, response interception, and the per-page
// output processors.
package scraper

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/models"
)

// Browser manages the global browser lifecycle and the reusable page pool.
// It is safe for concurrent use.
type Browser struct {
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
	cfg     *config.Config
	sink    *AssetSink
}

// NewBrowser launches a headless browser and initialises the page pool.
// The pool is sized to the crawl concurrency so each worker holds at most
// one tab. sink may be nil when asset capture is disabled.
func NewBrowser(cfg *config.Config, sink *AssetSink) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true)

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("ignore-certificate-errors"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &Browser{
		browser: browser,
		pool:    rod.NewPagePool(cfg.ConcurrencyPages),
		cfg:     cfg,
		sink:    sink,
	}, nil
}

// Acquire borrows a tab from the pool (creating one on first use) and
// prepares it for a crawl: stealth script, user agent, extra headers, the
// desktop viewport, and the asset interceptor subscription.
func (b *Browser) Acquire() (Page, error) {
	page, err := b.pool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			err,
		)
	}

	// Stealth must be installed before any navigation on this tab.
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	if b.cfg.UserAgent != "" {
		if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: b.cfg.UserAgent,
		}); uaErr != nil {
			slog.Warn("user agent override failed", "error", uaErr)
		}
	}

	if len(b.cfg.CustomHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(b.cfg.CustomHeaders),
		}.Call(page)
	}

	p := &rodPage{
		raw:        page,
		navTimeout: b.cfg.NavigationTimeout(),
		idleWindow: b.cfg.NetworkIdle(),
	}
	if vpErr := p.SetViewport(b.cfg.ViewportDesktop.Width, b.cfg.ViewportDesktop.Height); vpErr != nil {
		slog.Warn("viewport setup failed", "error", vpErr)
	}

	if b.sink != nil {
		p.stopSink = b.sink.Subscribe(page)
	}

	return p, nil
}

// Release detaches the asset interceptor, parks the tab on about:blank, and
// returns it to the pool. The about:blank navigation uses the original page
// reference so cleanup succeeds even when the crawl context has expired.
func (b *Browser) Release(p Page) {
	rp, ok := p.(*rodPage)
	if !ok {
		return
	}
	if rp.stopSink != nil {
		rp.stopSink()
		rp.stopSink = nil
	}
	if navErr := rp.raw.Navigate("about:blank"); navErr != nil {
		slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
	}
	b.pool.Put(rp.raw)
}

// Close drains the page pool and kills the browser process. Call this on
// shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining page pool")
	b.pool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	b.browser.MustClose()
	slog.Info("browser shutdown complete")
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
