package models

// Link is a hyperlink observed on a page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Button is a clickable element large enough to be considered a UI button.
type Button struct {
	Text    string  `json:"text"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
	Classes string  `json:"classes,omitempty"`
}

// Canvas records the rendered dimensions of a <canvas> element.
type Canvas struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Control is an interactive form control (input, select, textarea, slider).
type Control struct {
	Type    string `json:"type"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	Classes string `json:"classes,omitempty"`
}

// Component is a recognised higher-level UI component. The extraction
// heuristics are opaque to the engine; the field set is open-ended.
type Component struct {
	Type    string `json:"type,omitempty"`
	Classes string `json:"classes,omitempty"`
}

// PageMeta is the metadata extracted from a page's <head>.
type PageMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	Viewport    string `json:"viewport"`
	Language    string `json:"language"`
}

// PageRecord is the per-page entry in the session inventory. Pages appear in
// completion order, not discovery order.
type PageRecord struct {
	URL   string   `json:"url"`
	Meta  PageMeta `json:"meta"`
	Links []Link   `json:"links"`
}

// PageData is the structured extraction result for a single rendered page,
// produced by the renderer's evaluation scripts and merged into the session
// inventory by the aggregator.
type PageData struct {
	URL          string
	Meta         PageMeta
	Fonts        []string
	Colors       []string
	Links        []Link
	Buttons      []Button
	Canvases     []Canvas
	Controls     []Control
	Components   []Component
	CSSVariables map[string]string

	// HTML is the rendered document, used for structural duplicate
	// detection only; it is never persisted through the inventory.
	HTML string
}

// InventoryMeta summarises the session for the inventory artifact.
type InventoryMeta struct {
	TotalPages    int    `json:"totalPages"`
	TotalAssets   int    `json:"totalAssets"`
	ScrapingStart string `json:"scrapingStart"`
	ScrapingEnd   string `json:"scrapingEnd"`
}

// Inventory is the session-wide aggregate persisted as ui_inventory.json.
// Fonts and colors are deduplicated sets during the crawl and sorted
// sequences after finalization.
type Inventory struct {
	Seed                string            `json:"seed"`
	Pages               []PageRecord      `json:"pages"`
	Fonts               []string          `json:"fonts"`
	Colors              []string          `json:"colors"`
	Buttons             []Button          `json:"buttons"`
	Links               []Link            `json:"links"`
	CSSVariables        map[string]string `json:"cssVariables"`
	Canvases            []Canvas          `json:"canvases"`
	InteractiveControls []Control         `json:"interactiveControls"`
	Components          []Component       `json:"components"`
	Meta                InventoryMeta     `json:"meta"`
}
