package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const fullPage = `<html><head><title>Annual Report</title></head>
<body><main class="content"><h1>Expansion announced</h1>
<p>The group confirmed a new regional logistics hub serving Gulf customers,
with commissioning expected in the second half of the year.</p></main></body></html>`

func TestDetectorFlagsTinyBody(t *testing.T) {
	d := NewShellDetector(256, nil, nil)

	assert.True(t, d.NeedsRender([]byte("<html></html>")))
	assert.False(t, d.NeedsRender([]byte(fullPage)))
}

func TestDetectorFlagsShellKeywords(t *testing.T) {
	d := NewShellDetector(0, nil, nil)

	shell := []byte("<html><body><noscript>Please Enable JavaScript to view this site.</noscript></body></html>")
	assert.True(t, d.NeedsRender(shell))
	assert.False(t, d.NeedsRender([]byte(fullPage)))
}

func TestDetectorFlagsMissingSelector(t *testing.T) {
	d := NewShellDetector(0, []string{"main.content"}, []string{"never-matches"})

	assert.False(t, d.NeedsRender([]byte(fullPage)))
	assert.True(t, d.NeedsRender([]byte("<html><body><div id=\"root\"></div>padding padding padding</body></html>")))
}

func TestDetectorNilIsDisabled(t *testing.T) {
	var d *ShellDetector

	assert.False(t, d.NeedsRender([]byte("<html></html>")))
}

func TestDetectorEmptyBodyWithoutThreshold(t *testing.T) {
	d := NewShellDetector(0, []string{"main"}, nil)

	assert.False(t, d.NeedsRender(nil))
}
