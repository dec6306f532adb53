// Package inventory aggregates per-page UI extraction results into the
// session-wide inventory persisted as ui_inventory.json.
package inventory

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/sitelens/models"
)

// Per-page caps keep the inventory bounded regardless of page size.
const (
	maxListPerPage    = 200 // fonts, colors, links
	maxButtonsPerPage = 100
)

// dupDistance is the maximum Hamming distance between DOM fingerprints for
// two pages to count as structural near-duplicates.
const dupDistance = 3

const timeLayout = "2006-01-02 15:04:05"

// Collector is the single owner of the session inventory. All mutation goes
// through Merge; Finalize must be called exactly once, after every worker has
// stopped.
type Collector struct {
	mu sync.Mutex

	fonts  map[string]struct{}
	colors map[string]struct{}
	inv    models.Inventory

	fingerprints []uint64
	duplicates   int

	finalized bool
}

// NewCollector creates a collector for a session starting at seed.
func NewCollector(seed string, start time.Time) *Collector {
	return &Collector{
		fonts:  make(map[string]struct{}),
		colors: make(map[string]struct{}),
		inv: models.Inventory{
			Seed:                seed,
			Pages:               []models.PageRecord{},
			Fonts:               []string{},
			Colors:              []string{},
			Buttons:             []models.Button{},
			Links:               []models.Link{},
			CSSVariables:        make(map[string]string),
			Canvases:            []models.Canvas{},
			InteractiveControls: []models.Control{},
			Components:          []models.Component{},
			Meta: models.InventoryMeta{
				ScrapingStart: start.Format(timeLayout),
			},
		},
	}
}

// Merge folds one page's extraction result into the session inventory.
// Pages are appended in completion order. CSS variables are last-writer-wins;
// there is no ordering guarantee across concurrent workers.
func (c *Collector) Merge(data *models.PageData) {
	if data == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range capStrings(data.Fonts, maxListPerPage) {
		c.fonts[f] = struct{}{}
	}
	for _, col := range capStrings(data.Colors, maxListPerPage) {
		c.colors[col] = struct{}{}
	}

	links := data.Links
	if len(links) > maxListPerPage {
		links = links[:maxListPerPage]
	}
	c.inv.Pages = append(c.inv.Pages, models.PageRecord{
		URL:   data.URL,
		Meta:  data.Meta,
		Links: links,
	})
	c.inv.Meta.TotalPages = len(c.inv.Pages)

	buttons := data.Buttons
	if len(buttons) > maxButtonsPerPage {
		buttons = buttons[:maxButtonsPerPage]
	}
	c.inv.Buttons = append(c.inv.Buttons, buttons...)
	c.inv.Canvases = append(c.inv.Canvases, data.Canvases...)
	c.inv.InteractiveControls = append(c.inv.InteractiveControls, data.Controls...)
	c.inv.Components = append(c.inv.Components, data.Components...)

	for k, v := range data.CSSVariables {
		if v != "" {
			c.inv.CSSVariables[k] = v
		}
	}

	if data.HTML != "" {
		c.recordFingerprint(data.URL, data.HTML)
	}
}

// recordFingerprint flags pages whose DOM structure near-duplicates an
// earlier page. Reporting only: duplicates still count as visited pages.
// Caller must hold c.mu.
func (c *Collector) recordFingerprint(url, htmlStr string) {
	fp := fingerprintDOM(htmlStr)
	if fp == 0 {
		return
	}
	for _, prev := range c.fingerprints {
		if hammingDistance(fp, prev) <= dupDistance {
			c.duplicates++
			slog.Debug("near-duplicate page structure", "url", url)
			break
		}
	}
	c.fingerprints = append(c.fingerprints, fp)
}

// AddAssets records count persisted assets in the inventory metadata.
func (c *Collector) AddAssets(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inv.Meta.TotalAssets += count
}

// DuplicatePages returns the number of pages flagged as structural
// near-duplicates of an earlier page.
func (c *Collector) DuplicatePages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duplicates
}

// Finalize converts the font and color sets into sorted sequences and stamps
// the end time. It must be called exactly once, after all workers stopped.
func (c *Collector) Finalize(end time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized {
		panic("inventory: Finalize called twice")
	}
	c.finalized = true

	c.inv.Fonts = sortedKeys(c.fonts)
	c.inv.Colors = sortedKeys(c.colors)
	c.inv.Meta.ScrapingEnd = end.Format(timeLayout)
}

// Snapshot returns a copy of the current inventory. Only meaningful after
// Finalize for the sorted font/color views.
func (c *Collector) Snapshot() models.Inventory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inv
}

// Save writes the finalized inventory to <outputDir>/ui_inventory.json.
func (c *Collector) Save(outputDir string) error {
	c.mu.Lock()
	inv := c.inv
	c.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(outputDir, "ui_inventory.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	slog.Info("UI inventory saved", "path", path, "pages", inv.Meta.TotalPages)
	return nil
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
