package models

// Stable failure codes. They appear verbatim in logs and let callers branch
// on the kind of failure without string-matching the underlying error.
const (
	ErrCodeTimeout      = "NAVIGATION_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeAssetIO      = "ASSET_IO_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeFatal        = "SESSION_FATAL"
)

// CrawlError attaches one of the codes above to a failure, optionally
// wrapping the error that caused it. The wrapped error stays reachable
// through errors.Is and errors.As.
type CrawlError struct {
	Code    string
	Message string
	Err     error
}

func (e *CrawlError) Error() string {
	s := e.Code + ": " + e.Message
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *CrawlError) Unwrap() error { return e.Err }

// NewCrawlError builds a CrawlError around err, which may be nil when the
// failure originates here rather than in a lower layer.
func NewCrawlError(code, message string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, Err: err}
}
