package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/sitelens/models"
)

func testPage(url string) *models.PageData {
	return &models.PageData{
		URL:    url,
		Meta:   models.PageMeta{Title: "Page " + url},
		Fonts:  []string{"Inter", "Arial"},
		Colors: []string{"rgb(0, 0, 0)"},
		Links:  []models.Link{{Text: "home", Href: "/"}},
		Buttons: []models.Button{
			{Text: "Submit", W: 120, H: 40, Classes: "btn"},
		},
		CSSVariables: map[string]string{"--primary": "#336699"},
	}
}

func TestMergeAggregates(t *testing.T) {
	c := NewCollector("https://ex.com/", time.Now())

	c.Merge(testPage("https://ex.com/"))
	p2 := testPage("https://ex.com/about")
	p2.Fonts = []string{"Inter", "Georgia"}
	p2.CSSVariables = map[string]string{"--primary": "#ff0000", "--gap": "8px"}
	c.Merge(p2)

	c.Finalize(time.Now())
	inv := c.Snapshot()

	if inv.Meta.TotalPages != 2 || len(inv.Pages) != 2 {
		t.Fatalf("TotalPages = %d, pages = %d, want 2", inv.Meta.TotalPages, len(inv.Pages))
	}
	if want := []string{"Arial", "Georgia", "Inter"}; !equalStrings(inv.Fonts, want) {
		t.Errorf("Fonts = %v, want %v (deduplicated, sorted)", inv.Fonts, want)
	}
	if len(inv.Buttons) != 2 {
		t.Errorf("Buttons = %d, want 2", len(inv.Buttons))
	}
	// Later pages overwrite shared CSS variable names.
	if inv.CSSVariables["--primary"] != "#ff0000" {
		t.Errorf("--primary = %q, want last writer's value", inv.CSSVariables["--primary"])
	}
	if inv.CSSVariables["--gap"] != "8px" {
		t.Errorf("--gap = %q", inv.CSSVariables["--gap"])
	}
}

func TestMergePerPageCaps(t *testing.T) {
	c := NewCollector("https://ex.com/", time.Now())

	p := testPage("https://ex.com/big")
	p.Fonts = nil
	for i := 0; i < maxListPerPage+50; i++ {
		p.Fonts = append(p.Fonts, fmt.Sprintf("Font-%04d", i))
	}
	p.Links = nil
	for i := 0; i < maxListPerPage+10; i++ {
		p.Links = append(p.Links, models.Link{Href: fmt.Sprintf("/l%d", i)})
	}
	p.Buttons = nil
	for i := 0; i < maxButtonsPerPage+30; i++ {
		p.Buttons = append(p.Buttons, models.Button{Text: fmt.Sprintf("b%d", i)})
	}
	c.Merge(p)
	c.Finalize(time.Now())
	inv := c.Snapshot()

	if len(inv.Fonts) != maxListPerPage {
		t.Errorf("fonts = %d, want cap %d", len(inv.Fonts), maxListPerPage)
	}
	if got := len(inv.Pages[0].Links); got != maxListPerPage {
		t.Errorf("page links = %d, want cap %d", got, maxListPerPage)
	}
	if len(inv.Buttons) != maxButtonsPerPage {
		t.Errorf("buttons = %d, want cap %d", len(inv.Buttons), maxButtonsPerPage)
	}
}

func TestMergeConcurrent(t *testing.T) {
	c := NewCollector("https://ex.com/", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				c.Merge(testPage(fmt.Sprintf("https://ex.com/%d/%d", n, j)))
			}
		}(i)
	}
	wg.Wait()

	c.Finalize(time.Now())
	if got := c.Snapshot().Meta.TotalPages; got != 80 {
		t.Errorf("TotalPages = %d, want 80", got)
	}
}

func TestDuplicateDetection(t *testing.T) {
	c := NewCollector("https://ex.com/", time.Now())

	a := testPage("https://ex.com/post/1")
	a.HTML = templateA
	b := testPage("https://ex.com/post/2")
	b.HTML = templateA2
	other := testPage("https://ex.com/table")
	other.HTML = templateB

	c.Merge(a)
	c.Merge(b)
	c.Merge(other)

	if got := c.DuplicatePages(); got != 1 {
		t.Errorf("DuplicatePages = %d, want 1", got)
	}
	// Duplicates are reported, never dropped.
	c.Finalize(time.Now())
	if got := c.Snapshot().Meta.TotalPages; got != 3 {
		t.Errorf("TotalPages = %d, want 3", got)
	}
}

func TestFinalizeTwicePanics(t *testing.T) {
	c := NewCollector("https://ex.com/", time.Now())
	c.Finalize(time.Now())

	defer func() {
		if recover() == nil {
			t.Error("second Finalize should panic")
		}
	}()
	c.Finalize(time.Now())
}

func TestSaveWritesInventoryJSON(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCollector("https://ex.com/", start)
	c.Merge(testPage("https://ex.com/"))
	c.AddAssets(5)
	c.Finalize(start.Add(30 * time.Second))

	dir := t.TempDir()
	if err := c.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "ui_inventory.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	for _, key := range []string{
		"seed", "pages", "fonts", "colors", "buttons", "links",
		"cssVariables", "canvases", "interactiveControls", "components", "meta",
	} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
	meta := doc["meta"].(map[string]any)
	if meta["totalPages"].(float64) != 1 {
		t.Errorf("totalPages = %v", meta["totalPages"])
	}
	if meta["totalAssets"].(float64) != 5 {
		t.Errorf("totalAssets = %v", meta["totalAssets"])
	}
	if meta["scrapingStart"] != "2026-03-01 12:00:00" {
		t.Errorf("scrapingStart = %v", meta["scrapingStart"])
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
