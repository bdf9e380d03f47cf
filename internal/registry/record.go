package registry

import (
	"regexp"
	"strings"
)

// Taxonomy labels as printed on the registry page, from broadest to narrowest
const (
	LabelMajor  = "대분류"
	LabelMiddle = "중분류"
	LabelMinor  = "소분류"
	LabelSub    = "세분류"
	LabelSubSub = "세세분류"
)

var taxonomyLabels = []string{LabelMajor, LabelMiddle, LabelMinor, LabelSub, LabelSubSub}

// Each level captures up to the next label or the end of the line.
var (
	majorPattern  = regexp.MustCompile(`(?m)대분류\s*:\s*(.*?)(?:\s*중분류|$)`)
	middlePattern = regexp.MustCompile(`(?m)중분류\s*:\s*(.*?)(?:\s*소분류|$)`)
	minorPattern  = regexp.MustCompile(`(?m)소분류\s*:\s*(.*?)(?:\s*세분류|$)`)
	subPattern    = regexp.MustCompile(`(?m)세분류\s*:\s*(.*?)(?:\s*세세분류|$)`)
	subSubPattern = regexp.MustCompile(`세세분류\s*:\s*(.*)`)
)

// CategoryRecord is the registry's industry classification for one business
type CategoryRecord struct {
	ShopName string  `json:"상호명"`
	Major    *string `json:"대분류"`
	Middle   *string `json:"중분류"`
	Minor    *string `json:"소분류"`
	Sub      *string `json:"세분류"`
	SubSub   *string `json:"세세분류"`
}

// Records maps each business number, as extracted, to its record.
// A nil record means the lookup produced no data.
type Records map[string]*CategoryRecord

// HasAllLabels reports whether text mentions every taxonomy level
func HasAllLabels(text string) bool {
	for _, label := range taxonomyLabels {
		if !strings.Contains(text, label) {
			return false
		}
	}
	return true
}

// ParseTaxonomy reads the five levels out of a category block.
// Levels that are missing stay nil.
func ParseTaxonomy(shopName, text string) *CategoryRecord {
	return &CategoryRecord{
		ShopName: shopName,
		Major:    capture(majorPattern, text),
		Middle:   capture(middlePattern, text),
		Minor:    capture(minorPattern, text),
		Sub:      capture(subPattern, text),
		SubSub:   capture(subSubPattern, text),
	}
}

func capture(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v := strings.TrimSpace(m[1])
	return &v
}
