package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/sitelens/models"
)

// Page is one rendering surface for a single crawl operation. The session
// engine depends on this interface rather than on rod directly so that the
// crawl logic is testable without a running browser.
type Page interface {
	// Navigate loads url and waits for the DOM to settle, respecting the
	// configured navigation timeout and the caller's context.
	Navigate(ctx context.Context, url string) error

	// HTML returns the rendered document.
	HTML() (string, error)

	// Eval runs a JS function expression in the page and returns its
	// result.
	Eval(js string) (gson.JSON, error)

	// Screenshot captures the current viewport, or the full page when
	// fullPage is set.
	Screenshot(fullPage bool) ([]byte, error)

	// SetViewport resizes the rendering surface.
	SetViewport(width, height int) error
}

// rodPage adapts a pooled rod tab to the Page interface.
type rodPage struct {
	raw        *rod.Page
	navTimeout time.Duration
	idleWindow time.Duration
	stopSink   func()
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	bound := p.raw.Context(ctx)
	if err := bound.Navigate(url); err != nil {
		return categorizeError(err, "navigation failed")
	}

	// Settle on DOM stability rather than network idle: WaitRequestIdle
	// uses the Fetch domain, which conflicts with the Network domain the
	// asset interceptor needs.
	if err := bound.WaitDOMStable(p.idleWindow, 0.1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return categorizeError(err, "page did not settle before timeout")
		}
		// Non-fatal: proceed with whatever DOM we have.
	}
	return nil
}

func (p *rodPage) HTML() (string, error) {
	html, err := p.raw.HTML()
	if err != nil {
		return "", models.NewCrawlError(models.ErrCodeExtraction, "failed to extract page HTML", err)
	}
	return html, nil
}

func (p *rodPage) Eval(js string) (gson.JSON, error) {
	res, err := p.raw.Eval(js)
	if err != nil {
		return gson.New(nil), models.NewCrawlError(models.ErrCodeExtraction, "page evaluation failed", err)
	}
	return res.Value, nil
}

func (p *rodPage) Screenshot(fullPage bool) ([]byte, error) {
	data, err := p.raw.Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, models.NewCrawlError(models.ErrCodeExtraction, "screenshot capture failed", err)
	}
	return data, nil
}

func (p *rodPage) SetViewport(width, height int) error {
	return p.raw.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

// categorizeError wraps a raw browser error with the matching crawl error
// code.
func categorizeError(err error, msg string) *models.CrawlError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCrawlError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCrawlError(models.ErrCodeTimeout, "operation canceled", err)
	default:
		return models.NewCrawlError(models.ErrCodeNavigation, msg, err)
	}
}
