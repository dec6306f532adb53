package models

// SummaryConfig is the effective configuration echoed into the summary.
type SummaryConfig struct {
	MaxPages    int `json:"maxPages"`
	MaxDepth    int `json:"maxDepth"`
	Concurrency int `json:"concurrency"`
}

// Summary is the session report persisted as scraping_summary.json.
type Summary struct {
	SessionID       string        `json:"sessionId"`
	StartURL        string        `json:"startUrl"`
	StartTime       string        `json:"startTime"`
	EndTime         string        `json:"endTime"`
	DurationSeconds float64       `json:"durationSeconds"`
	TotalPages      int           `json:"totalPages"`
	DuplicatePages  int           `json:"duplicatePages"`
	FailedURLs      []string      `json:"failedUrls"`
	Configuration   SummaryConfig `json:"configuration"`
}
