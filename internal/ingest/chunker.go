package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphRe = regexp.MustCompile(`\n\s*\n`)

// Chunk splits normalized text into overlapping, character-budgeted pieces.
// Paragraphs accumulate into a buffer; when the next paragraph would push
// the buffer past maxChars the buffer is flushed and the new buffer seeds
// with the last overlapChars characters of the flushed chunk, never cutting
// mid-word. A paragraph that cannot fit even alone is force-sliced at the
// nearest preceding space. Input order is preserved.
func Chunk(text string, maxChars, overlapChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		return []string{text}
	}

	paras := paragraphRe.Split(text, -1)
	var chunks []string
	var buf string
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if buf == "" {
			buf = p
		} else if len(buf)+2+len(p) <= maxChars {
			buf = buf + "\n\n" + p
		} else {
			chunks = append(chunks, buf)
			seed := overlapTail(buf, overlapChars)
			if seed != "" {
				buf = seed + "\n\n" + p
			} else {
				buf = p
			}
		}
		if len(buf) > maxChars {
			pieces := forceSlice(buf, maxChars)
			chunks = append(chunks, pieces[:len(pieces)-1]...)
			buf = pieces[len(pieces)-1]
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// overlapTail returns the last n characters of s, advanced to the next
// word boundary so the seed never starts mid-word.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	if s[start-1] != ' ' && s[start-1] != '\n' {
		idx := strings.IndexAny(s[start:], " \n")
		if idx < 0 {
			return ""
		}
		start += idx + 1
	}
	return strings.TrimSpace(s[start:])
}

// forceSlice cuts s into pieces of at most maxChars, each cut placed at the
// nearest space preceding the budget. Only when a span holds no space at
// all is it cut hard, backed off to a rune boundary so accented text never
// splits mid-rune.
func forceSlice(s string, maxChars int) []string {
	var pieces []string
	for len(s) > maxChars {
		cut := strings.LastIndexAny(s[:maxChars+1], " \n")
		if cut <= 0 {
			cut = maxChars
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxChars
			}
		}
		pieces = append(pieces, strings.TrimSpace(s[:cut]))
		s = strings.TrimLeft(s[cut:], " \n")
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}
