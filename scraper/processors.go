package scraper

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	nurl "net/url"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/models"
)

// PageProcessor produces one kind of per-page output artifact. Processors
// run after a page has rendered; a failing processor is logged and skipped,
// it never fails the page.
type PageProcessor interface {
	Name() string
	Process(ctx context.Context, p Page, url, outputDir string) error
}

// Processors assembles the processor chain enabled by the configuration.
func Processors(cfg *config.Config) []PageProcessor {
	var procs []PageProcessor
	if cfg.SaveScreenshots {
		procs = append(procs, &ScreenshotProcessor{
			desktop: cfg.ViewportDesktop,
			mobile:  cfg.ViewportMobile,
		})
	}
	if cfg.SaveHTML {
		procs = append(procs, &HTMLProcessor{})
	}
	if cfg.SaveMarkdown {
		procs = append(procs, NewMarkdownProcessor())
	}
	return procs
}

// ScreenshotProcessor captures full-page screenshots at the desktop and
// mobile viewports. Files land under _screenshots/, named by a short hash of
// the page URL.
type ScreenshotProcessor struct {
	desktop config.Viewport
	mobile  config.Viewport
}

func (*ScreenshotProcessor) Name() string { return "screenshot" }

func (sp *ScreenshotProcessor) Process(ctx context.Context, p Page, url, outputDir string) error {
	ssDir := filepath.Join(outputDir, "_screenshots")
	fname := urlHash(url)

	desktop, err := p.Screenshot(true)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(ssDir, fname+"_desktop.png"), desktop); err != nil {
		return models.NewCrawlError(models.ErrCodeAssetIO, "failed to write desktop screenshot", err)
	}

	// Mobile pass reuses the same tab: switch the viewport, capture, and
	// restore so later processors see the desktop layout again.
	if err := p.SetViewport(sp.mobile.Width, sp.mobile.Height); err != nil {
		return err
	}
	defer func() {
		if restoreErr := p.SetViewport(sp.desktop.Width, sp.desktop.Height); restoreErr != nil {
			slog.Warn("failed to restore desktop viewport", "url", url, "error", restoreErr)
		}
	}()

	mobile, err := p.Screenshot(true)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(ssDir, fname+"_mobile.png"), mobile); err != nil {
		return models.NewCrawlError(models.ErrCodeAssetIO, "failed to write mobile screenshot", err)
	}
	return nil
}

// HTMLProcessor persists the rendered document under the mirrored site tree.
type HTMLProcessor struct{}

func (*HTMLProcessor) Name() string { return "html" }

func (*HTMLProcessor) Process(ctx context.Context, p Page, url, outputDir string) error {
	html, err := p.HTML()
	if err != nil {
		return err
	}
	target, err := assetPath(outputDir, url, "text/html")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(target, []byte(html)); err != nil {
		return models.NewCrawlError(models.ErrCodeAssetIO, "failed to write rendered HTML", err)
	}
	return nil
}

// MarkdownProcessor runs the rendered document through readability and
// converts the main content to Markdown. The converter is created once and
// reused across pages (goroutine-safe).
type MarkdownProcessor struct {
	conv *converter.Converter
}

func NewMarkdownProcessor() *MarkdownProcessor {
	return &MarkdownProcessor{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

func (*MarkdownProcessor) Name() string { return "markdown" }

func (mp *MarkdownProcessor) Process(ctx context.Context, p Page, url, outputDir string) error {
	html, err := p.HTML()
	if err != nil {
		return err
	}

	content := html
	if parsed, parseErr := nurl.Parse(url); parseErr == nil {
		if article, rdErr := readability.FromReader(strings.NewReader(html), parsed); rdErr == nil {
			if strings.TrimSpace(article.Content) != "" {
				content = article.Content
			}
		}
	}

	md, err := mp.conv.ConvertString(content, converter.WithDomain(url))
	if err != nil {
		return models.NewCrawlError(models.ErrCodeExtraction, "markdown conversion failed", err)
	}

	target, err := assetPath(outputDir, url, "text/html")
	if err != nil {
		return err
	}
	target = strings.TrimSuffix(target, ".html") + ".md"
	if err := writeFileAtomic(target, []byte(md)); err != nil {
		return models.NewCrawlError(models.ErrCodeAssetIO, "failed to write markdown", err)
	}
	return nil
}

// urlHash returns a short stable filename stem for a URL.
func urlHash(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}
