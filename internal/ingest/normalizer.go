package ingest

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	bulletRe   = regexp.MustCompile(`^[•◦▪‣·∙*]\s+`)
	dashRe     = regexp.MustCompile(`^[–—]\s+`)
	numberedRe = regexp.MustCompile(`^(\d+)\s*[.)\-°]\s+`)
)

// headingKeywords are the structural markers found in French legal and
// contractual documents. A line opening with one of these is promoted to
// a heading.
var headingKeywords = []string{
	"article", "chapitre", "section", "titre", "annexe", "partie", "préambule", "preambule",
}

// Normalize turns raw extracted text into heading-aware markdown: it folds
// non-breaking spaces, unifies list markers, promotes likely headings and
// collapses runs of blank lines. Heuristic, best effort.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, " ", " ")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		switch {
		case bulletRe.MatchString(trimmed):
			trimmed = "- " + bulletRe.ReplaceAllString(trimmed, "")
		case dashRe.MatchString(trimmed):
			trimmed = "- " + dashRe.ReplaceAllString(trimmed, "")
		case numberedRe.MatchString(trimmed):
			trimmed = numberedRe.ReplaceAllString(trimmed, "$1. ")
		case isHeadingLine(trimmed):
			if !blank {
				out = append(out, "")
			}
			out = append(out, "## "+strings.TrimSuffix(trimmed, ":"))
			out = append(out, "")
			blank = true
			continue
		}
		out = append(out, trimmed)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func isHeadingLine(line string) bool {
	if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "- ") {
		return false
	}
	if len(line) > 80 {
		return false
	}
	lower := strings.ToLower(line)
	for _, kw := range headingKeywords {
		if strings.HasPrefix(lower, kw+" ") || lower == kw {
			return true
		}
	}
	if isAllCaps(line) {
		return true
	}
	if strings.HasSuffix(line, ":") {
		return true
	}
	words := strings.Fields(line)
	if len(words) <= 6 && len(line) <= 48 && !strings.HasSuffix(line, ".") {
		first := []rune(words[0])
		if unicode.IsUpper(first[0]) {
			return true
		}
	}
	return false
}

func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return letters >= 3
}
