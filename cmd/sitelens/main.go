package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/scraper"
	"github.com/use-agent/sitelens/session"
)

var (
	Version = "dev"
)

var (
	outputDir      string
	configFile     string
	saveConfigPath string

	flagMaxPages      int
	flagMaxDepth      int
	flagConcurrency   int
	flagHeadless      bool
	flagNoHeadless    bool
	flagCrossOrigin   bool
	flagRobots        bool
	flagNoScreenshots bool
	flagNoHTML        bool
	flagMarkdown      bool
	flagNoAssets      bool
	flagNoInventory   bool
	flagTimeout       int
	flagDelay         int
	flagUserAgent     string
)

var rootCmd = &cobra.Command{
	Use:   "sitelens [url]",
	Short: "Crawl a site with a real browser and inventory its UI",
	Long: `sitelens renders every page of a site in a headless browser and collects
screenshots, rendered HTML, static assets, and a UI inventory
(fonts, colors, buttons, CSS variables) into an output directory.

Examples:
  sitelens https://example.com -o example_out --max-pages 100
  sitelens https://example.com --config config.yaml
  sitelens --save-config default_config.yaml`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&outputDir, "output", "o", "scrape_output", "output directory")
	f.StringVar(&configFile, "config", "", "configuration file (YAML)")
	f.StringVar(&saveConfigPath, "save-config", "", "write the effective config to a file and exit")

	f.IntVar(&flagMaxPages, "max-pages", 0, "maximum pages to crawl")
	f.IntVar(&flagMaxDepth, "max-depth", 0, "maximum crawl depth")
	f.IntVar(&flagConcurrency, "concurrency", 0, "number of concurrent page workers")

	f.BoolVar(&flagHeadless, "headless", true, "run the browser headless")
	f.BoolVar(&flagNoHeadless, "no-headless", false, "show the browser window")
	f.BoolVar(&flagCrossOrigin, "cross-origin", false, "follow off-site links")
	f.BoolVar(&flagRobots, "respect-robots", false, "respect robots.txt")

	f.BoolVar(&flagNoScreenshots, "no-screenshots", false, "skip screenshots")
	f.BoolVar(&flagNoHTML, "no-html", false, "skip rendered HTML")
	f.BoolVar(&flagNoAssets, "no-assets", false, "skip network assets")
	f.BoolVar(&flagNoInventory, "no-ui-inventory", false, "skip the UI inventory")
	f.BoolVar(&flagMarkdown, "markdown", false, "save extracted page content as Markdown")

	f.IntVar(&flagTimeout, "timeout", 0, "navigation timeout in milliseconds")
	f.IntVar(&flagDelay, "delay", 0, "delay between pages in milliseconds")
	f.StringVar(&flagUserAgent, "user-agent", "", "custom user agent string")
}

func run(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	initLogger(cfg.Log)

	if saveConfigPath != "" {
		if err := cfg.Save(saveConfigPath); err != nil {
			return err
		}
		fmt.Printf("configuration written to %s\n", saveConfigPath)
		return nil
	}

	if len(args) == 0 {
		return errors.New("a start URL is required (or use --save-config)")
	}
	startURL := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink *scraper.AssetSink
	if cfg.SaveAssets {
		if sink, err = scraper.NewAssetSink(outputDir, cfg); err != nil {
			return err
		}
	}

	browser, err := scraper.NewBrowser(cfg, sink)
	if err != nil {
		return err
	}
	defer browser.Close()

	sess, err := session.New(startURL, outputDir, cfg, browser, scraper.Processors(cfg), sink)
	if err != nil {
		return err
	}

	if err := sess.Run(ctx); err != nil {
		// An interrupt still produced complete artifacts; report success.
		if errors.Is(err, context.Canceled) {
			slog.Info("crawl interrupted, artifacts finalized")
			return nil
		}
		return err
	}
	return nil
}

// applyFlags overlays explicitly set command-line flags on the loaded
// configuration. Unset flags leave the file/default values alone.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("max-pages") {
		cfg.MaxPages = flagMaxPages
	}
	if f.Changed("max-depth") {
		cfg.MaxDepth = flagMaxDepth
	}
	if f.Changed("concurrency") {
		cfg.ConcurrencyPages = flagConcurrency
	}
	if f.Changed("headless") {
		cfg.Headless = flagHeadless
	}
	if flagNoHeadless {
		cfg.Headless = false
	}
	if f.Changed("cross-origin") {
		cfg.AllowCrossOrigin = flagCrossOrigin
	}
	if f.Changed("respect-robots") {
		cfg.RespectRobotsTxt = flagRobots
	}
	if flagNoScreenshots {
		cfg.SaveScreenshots = false
	}
	if flagNoHTML {
		cfg.SaveHTML = false
	}
	if flagNoAssets {
		cfg.SaveAssets = false
	}
	if flagNoInventory {
		cfg.CollectUIInventory = false
	}
	if f.Changed("markdown") {
		cfg.SaveMarkdown = flagMarkdown
	}
	if f.Changed("timeout") {
		cfg.NavigationTimeoutMS = flagTimeout
	}
	if f.Changed("delay") {
		cfg.PageDelayMS = flagDelay
	}
	if f.Changed("user-agent") {
		cfg.UserAgent = flagUserAgent
	}
}

// initLogger configures slog from the logging config.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
