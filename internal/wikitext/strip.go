package wikitext

import (
	"regexp"
	"sort"
	"strings"
)

var (
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

	// Self-closing refs go first so a paired match cannot start on one.
	refSelfRe     = regexp.MustCompile(`(?i)<ref\b[^>]*/>`)
	refPairRe     = regexp.MustCompile(`(?is)<ref\b[^>]*>.*?</ref\s*>`)
	referencesRe  = regexp.MustCompile(`(?is)<references\b[^>]*/>|<references\b[^>]*>.*?</references\s*>`)
	galleryRe     = regexp.MustCompile(`(?is)<gallery\b[^>]*>.*?</gallery\s*>`)
	tplStylesRe   = regexp.MustCompile(`(?i)<templatestyles\b[^>]*/>`)
	behaviorSwRe  = regexp.MustCompile(`__[A-Z]+__`)
	tagRemovalSeq = []*regexp.Regexp{commentRe, refSelfRe, refPairRe, referencesRe, galleryRe, tplStylesRe, behaviorSwRe}
)

// noisePrefixWindow bounds how much of a block's interior is inspected.
const noisePrefixWindow = 40

// bracePrefixes name {{...}} blocks that carry metadata rather than prose.
var bracePrefixes = []string{
	"infobox", "citation needed", "citation", "cite", "navbox", "sfnp", "sfn",
	"harvnb", "reflist", "short description", "use dmy dates", "use mdy dates",
	"authority control", "taxobox", "automatic taxobox", "speciesbox", "sidebar",
	"coord", "main", "see also", "further", "refimprove", "more citations needed",
	"cn", "portal", "commons", "redirect", "about", "good article",
	"featured article", "pp-", "engvar", "use british english",
	"use american english", "defaultsort", "multiple issues", "clarify",
	"file:", "image:", "dead link", "unreferenced", "other uses", "distinguish",
	"for", "hatnote",
}

// bracketPrefixes name [[...]] blocks that are embeds, not links.
var bracketPrefixes = []string{"file:", "image:"}

type span struct {
	start, end int
}

// Strip removes comments, reference tags and noise blocks from raw wikitext.
// Unbalanced openers are left in place.
func Strip(raw string) string {
	s := raw
	for _, re := range tagRemovalSeq {
		s = re.ReplaceAllString(s, "")
	}
	return stripBlocks(s)
}

// stripBlocks makes one pass over s with separate stacks for {{ and [[,
// marking every closed block whose interior starts with a noise prefix.
func stripBlocks(s string) string {
	var (
		braces   []int
		brackets []int
		ranges   []span
	)
	for i := 0; i+1 < len(s); {
		switch {
		case s[i] == '{' && s[i+1] == '{':
			braces = append(braces, i)
			i += 2
		case s[i] == '[' && s[i+1] == '[':
			brackets = append(brackets, i)
			i += 2
		case s[i] == '}' && s[i+1] == '}':
			if n := len(braces); n > 0 {
				start := braces[n-1]
				braces = braces[:n-1]
				if hasNoisePrefix(s[start+2:i], bracePrefixes) {
					ranges = append(ranges, span{start, i + 2})
				}
			}
			i += 2
		case s[i] == ']' && s[i+1] == ']':
			if n := len(brackets); n > 0 {
				start := brackets[n-1]
				brackets = brackets[:n-1]
				if hasNoisePrefix(s[start+2:i], bracketPrefixes) {
					ranges = append(ranges, span{start, i + 2})
				}
			}
			i += 2
		default:
			i++
		}
	}
	if len(ranges) == 0 {
		return s
	}
	return removeRanges(s, ranges)
}

func hasNoisePrefix(inner string, prefixes []string) bool {
	head := strings.TrimLeft(inner, " \t\n")
	if len(head) > noisePrefixWindow {
		head = head[:noisePrefixWindow]
	}
	head = strings.ReplaceAll(strings.ToLower(head), "_", " ")
	head = strings.TrimPrefix(head, "template:")
	for _, p := range prefixes {
		if !strings.HasPrefix(head, p) {
			continue
		}
		last := p[len(p)-1]
		if !isASCIILetter(last) || len(head) == len(p) || !isWordByte(head[len(p)]) {
			return true
		}
	}
	return false
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isASCIILetter(c) || (c >= '0' && c <= '9') || c >= 0x80
}

// removeRanges deletes the merged union of ranges from s. A range that
// begins a line also takes the horizontal whitespace that follows it, so
// the remaining text does not turn into an indented line.
func removeRanges(s string, ranges []span) string {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	merged := ranges[:1]
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}

	var b strings.Builder
	b.Grow(len(s))
	pos := 0
	for _, r := range merged {
		if r.start < pos {
			continue
		}
		b.WriteString(s[pos:r.start])
		end := r.end
		if r.start == 0 || s[r.start-1] == '\n' {
			for end < len(s) && (s[end] == ' ' || s[end] == '\t') {
				end++
			}
		}
		pos = end
	}
	b.WriteString(s[pos:])
	return b.String()
}
