package fetch

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// defaultShellKeywords are phrases that mark a body as a JS loading shell.
var defaultShellKeywords = []string{
	"enable javascript",
	"javascript is required",
	"loading...",
}

// ShellDetector decides whether a fetched body is a JS shell that needs a
// headless render before extraction, using cheap HTML signals.
type ShellDetector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// NewShellDetector constructs a detector with the configured thresholds.
// Empty keywords fall back to the built-in phrase list.
func NewShellDetector(minBytes int, selectors, keywords []string) *ShellDetector {
	if len(keywords) == 0 {
		keywords = defaultShellKeywords
	}
	lowerKeywords := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowerKeywords = append(lowerKeywords, bytes.ToLower([]byte(kw)))
	}
	return &ShellDetector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
		keywords:     lowerKeywords,
	}
}

// NeedsRender inspects the body for signals that indicate a headless pass
// is required.
func (d *ShellDetector) NeedsRender(body []byte) bool {
	if d == nil {
		return false
	}
	switch {
	case d.bodyBelowThreshold(body):
		return true
	case d.containsKeywords(body):
		return true
	default:
		return d.missingSelectors(body)
	}
}

func (d *ShellDetector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *ShellDetector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *ShellDetector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}
