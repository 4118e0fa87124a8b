package adapter

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// Extraction caps keep junk matches from ballooning into entity names.
const (
	maxNameLen  = 80
	maxTitleLen = 60
)

// adoption patterns pull the acting organization out of an announcement
// title, e.g. "Acme Energy goes live with ...". Vendor-anchored variants
// are compiled per vendor and cached.
var adoptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+?)\s+(?:selects|chooses|deploys|implements|goes live|adopts|migrates|transforms|runs|standardizes|accelerates)`),
}

var vendorPatternCache sync.Map

func vendorPatterns(vendor string) []*regexp.Regexp {
	if vendor == "" {
		return nil
	}
	if cached, ok := vendorPatternCache.Load(vendor); ok {
		return cached.([]*regexp.Regexp)
	}
	v := regexp.QuoteMeta(vendor)
	pats := []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(.+?)\s+(?:and ` + v + `|with ` + v + `|partners with ` + v + `)`),
		regexp.MustCompile(`(?i)(?:how|why|when)\s+(.+?)\s+(?:chose|selected|deployed|implemented|uses|leverages|adopted)\s+` + v),
	}
	vendorPatternCache.Store(vendor, pats)
	return pats
}

var hiringPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:at|@)\s+(.+?)(?:\s*[-–|,]|\s*$)`),
	regexp.MustCompile(`(?i)[-–|]\s*(.+?)(?:\s*[-–|,]|\s*$)`),
	regexp.MustCompile(`(?i)^(.+?)\s+(?:is hiring|is looking|seeks|recruiting|careers)`),
}

var tenderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+?)\s+(?:tender|procurement|rfp|bid|contract)`),
	regexp.MustCompile(`(?i)^(.+?)\s+(?:awards|issues|publishes)`),
}

var speakerPattern = regexp.MustCompile(`(?i)(?:from|of|at)\s+(.+?)(?:\s*[-–|,.]|\s+(?:speaks|presents|discusses|shares))`)

var leadingFiller = regexp.MustCompile(`(?i)^(how|why|when|as)\s+`)

// RejectFunc reports whether an extracted name is noise (excluded vendor,
// integrator, or filler) and a later pattern should be tried instead.
type RejectFunc func(string) bool

func neverReject(string) bool { return false }

// ExtractEntityName pulls the subject organization from an announcement or
// story title. Patterns are tried in order; a rejected or too-short match
// falls through to the next pattern, and the truncated title is the last
// resort. vendor anchors the "X and <vendor>" phrasings and may be empty.
func ExtractEntityName(title, vendor string, reject RejectFunc) string {
	if reject == nil {
		reject = neverReject
	}
	patterns := append(append([]*regexp.Regexp(nil), adoptionPatterns...), vendorPatterns(vendor)...)
	for _, pat := range patterns {
		m := pat.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		name := leadingFiller.ReplaceAllString(strings.TrimSpace(m[1]), "")
		name = strings.TrimSpace(name)
		if utf8.RuneCountInString(name) > 2 && !reject(name) {
			return clip(name, maxNameLen)
		}
	}
	return clip(title, maxTitleLen)
}

// ExtractHiringEntity pulls the employer out of a job posting title, then
// its snippet. Job titles usually read "SAP Lead at Acme Energy - Doha".
func ExtractHiringEntity(title, snippet string, reject RejectFunc) string {
	if reject == nil {
		reject = neverReject
	}
	for _, pat := range hiringPatterns {
		if name := matchName(pat, title, reject); name != "" {
			return name
		}
	}
	for _, pat := range hiringPatterns[:2] {
		if name := matchName(pat, snippet, reject); name != "" {
			return name
		}
	}
	return clip(title, maxTitleLen)
}

// ExtractTenderOrg pulls the issuing body from a procurement notice title.
func ExtractTenderOrg(title string) string {
	for _, pat := range tenderPatterns {
		if m := pat.FindStringSubmatch(title); m != nil {
			return clip(strings.TrimSpace(m[1]), maxNameLen)
		}
	}
	return clip(title, 70)
}

// ExtractSpeakerOrg pulls the speaker's organization from an agenda line.
func ExtractSpeakerOrg(text string, reject RejectFunc) string {
	if reject == nil {
		reject = neverReject
	}
	if name := matchName(speakerPattern, text, reject); name != "" {
		return name
	}
	return clip(text, maxTitleLen)
}

func matchName(pat *regexp.Regexp, text string, reject RejectFunc) string {
	m := pat.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	if utf8.RuneCountInString(name) > 3 && !reject(name) {
		return clip(name, maxNameLen)
	}
	return ""
}

// DetectTags returns the vocabulary entries present in the text,
// case-insensitively, preserving vocabulary order.
func DetectTags(text string, vocabulary []string) []string {
	if text == "" || len(vocabulary) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	var tags []string
	for _, v := range vocabulary {
		if v == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(v)) {
			tags = append(tags, v)
		}
	}
	return tags
}

// DetectRoleTags maps role keywords found in a job text to attribute tags.
// Iteration follows the order of keys; duplicates collapse.
func DetectRoleTags(text string, roles []RoleTag, fallback string) []string {
	lower := strings.ToLower(text)
	var tags []string
	seen := make(map[string]struct{})
	for _, role := range roles {
		if role.Keyword == "" || role.Tag == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(role.Keyword)) {
			continue
		}
		if _, dup := seen[role.Tag]; dup {
			continue
		}
		seen[role.Tag] = struct{}{}
		tags = append(tags, role.Tag)
	}
	if len(tags) == 0 && fallback != "" {
		return []string{fallback}
	}
	return tags
}

// RoleTag maps a keyword found in job text to an attribute tag.
type RoleTag struct {
	Keyword string `mapstructure:"keyword" yaml:"keyword"`
	Tag     string `mapstructure:"tag" yaml:"tag"`
}

// RegionHint names a region and the place terms that imply it.
type RegionHint struct {
	Name  string   `mapstructure:"name" yaml:"name"`
	Terms []string `mapstructure:"terms" yaml:"terms"`
}

// InferRegion returns the first hinted region whose terms appear in the
// text, or fallback when none match.
func InferRegion(text string, hints []RegionHint, fallback string) string {
	lower := strings.ToLower(text)
	for _, hint := range hints {
		for _, term := range hint.Terms {
			if term == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(term)) {
				return hint.Name
			}
		}
	}
	return fallback
}

// clip bounds s to n runes. Titles here are frequently non-ASCII, so the
// cut must never land inside a multi-byte rune.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
