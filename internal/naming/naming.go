// Package naming implements the filename conventions used across the
// pipeline: stage suffix tags, date extraction, and slug cleaning.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// Stage suffix tags appended to a document's base name before the extension.
const (
	TagCollected = "_d"
	TagRenamed   = "_r"
	TagEnhanced  = "_o"
	TagExtracted = "_c"
	TagCorrected = "_f"
)

// knownTags lists every suffix ever produced by this pipeline or its
// predecessors. Retag strips the first match before appending a new tag.
var knownTags = []string{"_o", "_d", "_r", "_a", "_t", "_c", "_f", "_v21", "_v22", "_v31"}

// StripTag removes a single trailing stage tag from stem, if present.
func StripTag(stem string) string {
	for _, tag := range knownTags {
		if strings.HasSuffix(stem, tag) {
			return strings.TrimSuffix(stem, tag)
		}
	}
	return stem
}

// Retag strips any known stage tag from stem and appends tag. Total and
// deterministic: an unrecognized stem is treated as a raw origin name.
func Retag(stem, tag string) string {
	return StripTag(stem) + tag
}

var (
	dottedDatePattern = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{2})`)
	isoDatePattern    = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	datePrefixPattern = regexp.MustCompile(`^\d{8}_`)
)

// DateFromName extracts a YYYYMMDD date from filename patterns like
// "1.31.22" or "2025-02-26". Returns false if no pattern matches.
func DateFromName(name string) (string, bool) {
	if m := dottedDatePattern.FindStringSubmatch(name); m != nil {
		return fmt.Sprintf("20%s%s%s", m[3], pad2(m[1]), pad2(m[2])), true
	}
	if m := isoDatePattern.FindStringSubmatch(name); m != nil {
		return m[1] + m[2] + m[3], true
	}
	return "", false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// HasDatePrefix reports whether name already starts with a YYYYMMDD_ prefix.
func HasDatePrefix(name string) bool {
	return datePrefixPattern.MatchString(name)
}

var (
	leadingNumberPattern  = regexp.MustCompile(`^\d{1,4}\s*-\s*`)
	leadingDottedPattern  = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{2,4}\s*-\s*`)
	leadingISOPattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s*-\s*`)
	timestampPattern      = regexp.MustCompile(`\d{2}-\d{2}T\d{2}-\d{2}`)
	anyDottedDatePattern  = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{2,4}`)
	anyISODatePattern     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	bracketedEmailPattern = regexp.MustCompile(`\[[\w.\-]+@[\w.\-]+\]`)
	googleSheetsPattern   = regexp.MustCompile(`(?i)\s*-?\s*Google\s+Sheets\s*`)
	doubleDashPattern     = regexp.MustCompile(`\s*-\s*-\s*`)
	multiSpacePattern     = regexp.MustCompile(`\s{2,}`)
	spaceDashPattern      = regexp.MustCompile(`[\s\-]+`)
	edgeUnderscorePattern = regexp.MustCompile(`^_+|_+$`)
	multiUnderscorePat    = regexp.MustCompile(`_{2,}`)
)

// CleanBase normalizes a descriptive base name: strips leading dates and
// counters, embedded dates, timestamps, bracketed email addresses, and
// platform suffixes, then collapses whitespace and dashes to underscores.
func CleanBase(name string) string {
	name = leadingNumberPattern.ReplaceAllString(name, "")
	name = leadingDottedPattern.ReplaceAllString(name, "")
	name = leadingISOPattern.ReplaceAllString(name, "")
	name = timestampPattern.ReplaceAllString(name, "")
	name = anyDottedDatePattern.ReplaceAllString(name, "")
	name = anyISODatePattern.ReplaceAllString(name, "")
	name = bracketedEmailPattern.ReplaceAllString(name, "")
	name = googleSheetsPattern.ReplaceAllString(name, "")
	name = doubleDashPattern.ReplaceAllString(name, "_")
	name = multiSpacePattern.ReplaceAllString(name, " ")
	name = spaceDashPattern.ReplaceAllString(name, "_")
	name = edgeUnderscorePattern.ReplaceAllString(name, "")
	name = multiUnderscorePat.ReplaceAllString(name, "_")
	return name
}
