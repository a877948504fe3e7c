package provider

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/theimaginaryfoundation/ask-scriptures/insight"
)

var (
	chapterVerseRe = regexp.MustCompile(`(?i)chapter\s+(\d{1,2}),?\s+verses?\s+(\d{1,3})(?:\s*[-–]\s*(\d{1,3}))?`)
	shortRefRe     = regexp.MustCompile(`(?i)\b(?:bg|gita)\s*(\d{1,2})[.:](\d{1,3})(?:\s*[-–]\s*(\d{1,3}))?`)
)

const gitaChapters = 18

// ExtractVerseReferences finds Gita verse citations in text and returns them as "BG c.v" or
// "BG c.v-w", in order of appearance without duplicates.
func ExtractVerseReferences(text string) []string {
	type hit struct {
		pos int
		ref string
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{chapterVerseRe, shortRefRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			end := ""
			if m[6] >= 0 {
				end = text[m[6]:m[7]]
			}
			if ref, ok := formatRef(text[m[2]:m[3]], text[m[4]:m[5]], end); ok {
				hits = append(hits, hit{m[0], ref})
			}
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	refs := make([]string, 0, len(hits))
	for _, h := range hits {
		refs = append(refs, h.ref)
	}
	return insight.DedupeStrings(refs)
}

// NormalizeVerseReferences rewrites model-supplied citations into the "BG c.v" form, dropping
// anything that does not parse.
func NormalizeVerseReferences(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, ExtractVerseReferences("BG "+s)...)
		out = append(out, ExtractVerseReferences(s)...)
	}
	return insight.DedupeStrings(out)
}

func formatRef(chapter, verse, end string) (string, bool) {
	c, err := strconv.Atoi(chapter)
	if err != nil || c < 1 || c > gitaChapters {
		return "", false
	}
	v, err := strconv.Atoi(verse)
	if err != nil || v < 1 {
		return "", false
	}
	if end != "" {
		if w, err := strconv.Atoi(end); err == nil && w > v {
			return fmt.Sprintf("BG %d.%d-%d", c, v, w), true
		}
	}
	return fmt.Sprintf("BG %d.%d", c, v), true
}
