package scraper

import (
	"context"
	"encoding/base64"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/sitelens/config"
	"github.com/use-agent/sitelens/urlutil"
)

// AssetSink captures network responses observed during page loads and
// persists the interesting ones under the output directory, mirroring the
// site's host/path layout. One sink serves all pages of a session; the
// seen-set guarantees each asset URL is written at most once.
type AssetSink struct {
	outputDir    string
	contentTypes []string
	blocklist    urlutil.Blocklist
	fetcher      *httpFetcher

	mu    sync.Mutex
	seen  map[string]struct{}
	saved int
}

// NewAssetSink compiles the host blocklist and prepares the sink.
func NewAssetSink(outputDir string, cfg *config.Config) (*AssetSink, error) {
	blocklist, err := urlutil.CompileBlocklist(cfg.BlockHostPatterns)
	if err != nil {
		return nil, err
	}
	return &AssetSink{
		outputDir:    outputDir,
		contentTypes: cfg.SaveContentTypes,
		blocklist:    blocklist,
		fetcher:      newHTTPFetcher(cfg.UserAgent),
		seen:         make(map[string]struct{}),
	}, nil
}

// Subscribe attaches the sink to a tab's network events. The returned stop
// function detaches it; call it before the tab goes back to the pool.
func (s *AssetSink) Subscribe(page *rod.Page) func() {
	ctx, cancel := context.WithCancel(context.Background())
	bound := page.Context(ctx)

	go bound.EachEvent(func(e *proto.NetworkResponseReceived) {
		resp := e.Response
		if !s.wants(resp.URL, resp.MIMEType) {
			return
		}

		body := s.responseBody(bound, e.RequestID)
		if len(body) == 0 {
			// The browser may have evicted the body already (common for
			// large media). Refetch it directly.
			fetchCtx, fetchCancel := context.WithTimeout(ctx, 15*time.Second)
			defer fetchCancel()
			var err error
			if body, err = s.fetcher.fetch(fetchCtx, resp.URL); err != nil {
				slog.Debug("asset body unavailable", "url", resp.URL, "error", err)
				return
			}
		}

		s.HandleResponse(resp.URL, resp.MIMEType, body)
	})()

	return cancel
}

func (s *AssetSink) responseBody(page *rod.Page, id proto.NetworkRequestID) []byte {
	m, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page)
	if err != nil {
		return nil
	}
	if m.Base64Encoded {
		body, decErr := base64.StdEncoding.DecodeString(m.Body)
		if decErr != nil {
			return nil
		}
		return body
	}
	return []byte(m.Body)
}

// wants reports whether a response URL and content type pass the sink's
// filters: blocked hosts are dropped, a content type is required and must
// match one of the configured prefixes, and repeats are dropped.
func (s *AssetSink) wants(rawURL, contentType string) bool {
	if contentType == "" {
		return false
	}
	if s.blocklist.Matches(rawURL) {
		return false
	}

	match := false
	for _, prefix := range s.contentTypes {
		if strings.HasPrefix(contentType, prefix) {
			match = true
			break
		}
	}
	if !match {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, dup := s.seen[rawURL]
	return !dup
}

// HandleResponse filters and persists one captured response body. It returns
// true when the asset was written. Safe for concurrent use.
func (s *AssetSink) HandleResponse(rawURL, contentType string, body []byte) bool {
	if len(body) == 0 || !s.wants(rawURL, contentType) {
		return false
	}

	target, err := assetPath(s.outputDir, rawURL, contentType)
	if err != nil {
		slog.Debug("asset path rejected", "url", rawURL, "error", err)
		return false
	}

	// Claim the URL before the write so a concurrent duplicate gives up.
	s.mu.Lock()
	if _, dup := s.seen[rawURL]; dup {
		s.mu.Unlock()
		return false
	}
	s.seen[rawURL] = struct{}{}
	s.mu.Unlock()

	if err := writeFileAtomic(target, body); err != nil {
		slog.Error("failed to save asset", "url", rawURL, "error", err)
		s.mu.Lock()
		delete(s.seen, rawURL)
		s.mu.Unlock()
		return false
	}

	s.mu.Lock()
	s.saved++
	s.mu.Unlock()
	slog.Debug("asset saved", "url", rawURL, "path", target)
	return true
}

// Count returns how many assets have been written so far.
func (s *AssetSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// assetPath maps an asset URL onto the output tree: the host (with ":"
// replaced for Windows-safe directory names) becomes the top directory and
// the URL path is preserved below it. Directory-like paths get index.html,
// HTML content always carries a .html extension, and extensionless files get
// one inferred from the content type.
func assetPath(baseDir, rawURL, contentType string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	host := strings.ReplaceAll(u.Host, ":", "_")
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	target := filepath.Join(baseDir, host, strings.TrimPrefix(p, "/"))

	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	ext := filepath.Ext(target)
	switch {
	case strings.HasPrefix(mediaType, "text/html"):
		if !strings.HasSuffix(target, ".html") {
			target = strings.TrimSuffix(target, ext) + ".html"
		}
	case ext == "":
		target += guessExtension(mediaType)
	}
	return target, nil
}

// preferredExtensions pins extensions for common asset types where
// mime.ExtensionsByType is platform-dependent or picks an oddball first
// (image/jpeg yields ".jpe" on some systems).
var preferredExtensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"image/x-icon":             ".ico",
	"text/css":                 ".css",
	"application/javascript":   ".js",
	"application/x-javascript": ".js",
	"text/javascript":          ".js",
	"font/woff":                ".woff",
	"font/woff2":               ".woff2",
	"font/ttf":                 ".ttf",
}

func guessExtension(mediaType string) string {
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// writeFileAtomic writes through a temp file and renames it into place so a
// crashed write never leaves a truncated asset behind.
func writeFileAtomic(target string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".asset-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}
