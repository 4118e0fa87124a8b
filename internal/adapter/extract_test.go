package adapter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

var testHints = []RegionHint{
	{Name: "Saudi Arabia", Terms: []string{"saudi", "riyadh", "jeddah", "ksa"}},
	{Name: "UAE", Terms: []string{"uae", "dubai", "abu dhabi"}},
	{Name: "Qatar", Terms: []string{"qatar", "doha"}},
}

func rejectIntegrators(name string) bool {
	return strings.Contains(strings.ToLower(name), "accenture")
}

func TestExtractEntityNameAdoptionVerb(t *testing.T) {
	name := ExtractEntityName("Gulf Harbor Logistics goes live with Meridian Suite", "Meridian", nil)
	assert.Equal(t, "Gulf Harbor Logistics", name)
}

func TestExtractEntityNameVendorAnchor(t *testing.T) {
	name := ExtractEntityName("Doha Port Authority and Meridian announce rollout", "Meridian", nil)
	assert.Equal(t, "Doha Port Authority", name)
}

func TestExtractEntityNameHowPhrasing(t *testing.T) {
	name := ExtractEntityName("How Doha Transit adopted Meridian across its fleet", "Meridian", nil)
	assert.Equal(t, "Doha Transit", name)
}

func TestExtractEntityNameRejectedMatchFallsThrough(t *testing.T) {
	title := "Accenture deploys Meridian for regional clients"
	name := ExtractEntityName(title, "Meridian", rejectIntegrators)
	// The pattern match is rejected, so the clipped title comes back.
	assert.Equal(t, title, name)
}

func TestExtractEntityNameFallbackClipsTitle(t *testing.T) {
	long := strings.Repeat("margin notes on quarterly reviews ", 4)
	name := ExtractEntityName(long, "", nil)
	assert.LessOrEqual(t, len(name), maxTitleLen)
}

func TestExtractEntityNameClipsOnRuneBoundary(t *testing.T) {
	// Arabic-script titles are routine for this domain; the clip must
	// never split a multi-byte rune.
	long := "a" + strings.Repeat("é", maxTitleLen)
	name := ExtractEntityName(long, "", nil)
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, maxTitleLen, utf8.RuneCountInString(name))

	arabic := strings.Repeat("شركة الموانئ ", 10)
	name = ExtractHiringEntity(arabic, "", nil)
	assert.True(t, utf8.ValidString(name))
	assert.LessOrEqual(t, utf8.RuneCountInString(name), maxTitleLen)
}

func TestExtractHiringEntityFromTitle(t *testing.T) {
	name := ExtractHiringEntity("Meridian ERP Lead at Gulf Harbor Logistics - Doha", "", nil)
	assert.Equal(t, "Gulf Harbor Logistics", name)
}

func TestExtractHiringEntityFromSnippet(t *testing.T) {
	name := ExtractHiringEntity("Senior Systems Engineer", "Exciting role at Doha Port Authority, apply today", nil)
	assert.Equal(t, "Doha Port Authority", name)
}

func TestExtractTenderOrg(t *testing.T) {
	assert.Equal(t, "Doha Port Authority",
		ExtractTenderOrg("Doha Port Authority tender for ERP platform upgrade"))
	assert.Equal(t, "Utility Regulator",
		ExtractTenderOrg("Utility Regulator awards systems contract"))
}

func TestExtractSpeakerOrg(t *testing.T) {
	name := ExtractSpeakerOrg("Panel with leaders from Doha Port Authority, on platform modernization", nil)
	assert.Equal(t, "Doha Port Authority", name)
}

func TestDetectTags(t *testing.T) {
	vocab := []string{"Meridian Suite", "Meridian Pay", "Meridian Analytics"}
	tags := DetectTags("Gulf Harbor rolls out MERIDIAN SUITE and Meridian Analytics", vocab)
	assert.Equal(t, []string{"Meridian Suite", "Meridian Analytics"}, tags)
}

func TestDetectTagsEmpty(t *testing.T) {
	assert.Nil(t, DetectTags("", []string{"x"}))
	assert.Nil(t, DetectTags("text", nil))
}

func TestDetectRoleTags(t *testing.T) {
	roles := []RoleTag{
		{Keyword: "erp", Tag: "Meridian Core"},
		{Keyword: "payroll", Tag: "Meridian Pay"},
	}
	tags := DetectRoleTags("ERP and payroll administrator, ERP focus", roles, "Meridian (unspecified)")
	assert.Equal(t, []string{"Meridian Core", "Meridian Pay"}, tags)
}

func TestDetectRoleTagsFallback(t *testing.T) {
	tags := DetectRoleTags("general systems role", nil, "Meridian (unspecified)")
	assert.Equal(t, []string{"Meridian (unspecified)"}, tags)
}

func TestInferRegion(t *testing.T) {
	assert.Equal(t, "Qatar", InferRegion("New logistics hub in DOHA announced", testHints, ""))
	assert.Equal(t, "UAE", InferRegion("Expansion across Dubai and beyond", testHints, ""))
	assert.Equal(t, "GCC", InferRegion("Regional expansion continues", testHints, "GCC"))
}

func TestInferRegionFirstHintWins(t *testing.T) {
	assert.Equal(t, "Saudi Arabia", InferRegion("Offices in Riyadh and Doha", testHints, ""))
}
