package pii

import (
	"regexp"
	"sort"
	"strings"
)

// RedactedPlaceholder replaces every recognized sensitive substring.
const RedactedPlaceholder = "[REDACTED]"

// patternClass is one recognized family of sensitive data. Order in the
// classes slice is the matching priority: when matches from two classes
// overlap, the higher-priority class claims the span and the lower-priority
// match is discarded entirely, so no character is redacted twice and no
// overlapping match is partially consumed.
type patternClass struct {
	name string
	re   *regexp.Regexp
}

var classes = []patternClass{
	// Emails first: the local part may embed digit runs that the phone or
	// IP patterns would otherwise bite into.
	{"email", regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	// SSN-shaped 3-2-4 groups before phones, so 123-45-6789 is never
	// half-eaten by the short phone form.
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	// Phones: full 10-digit forms with common separators, plus the short
	// 3-4 form like 555-0199. The separator after the country prefix is
	// only valid inside the prefix group, so a match never starts on the
	// whitespace before the number. The four-consecutive-digit tail keeps
	// this class from consuming dot-separated IPv4 octet sequences.
	{"phone", regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b|\b\d{3}[-.\s]\d{4}\b`)},
	// IPv4 last: four dot-separated octets.
	{"ipv4", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
}

// Redactor scrubs recognized sensitive-data patterns from log text.
type Redactor struct {
	classes []patternClass
}

// NewRedactor returns a redactor with the standard pattern classes.
func NewRedactor() *Redactor {
	return &Redactor{classes: classes}
}

type span struct {
	start, end int
}

// Redact replaces every recognized sensitive substring with the fixed
// placeholder and leaves all other content untouched, whitespace and
// punctuation included. It is idempotent: the placeholder itself matches
// no pattern class, so redacting twice is a no-op.
func (r *Redactor) Redact(text string) string {
	var claimed []span
	for _, class := range r.classes {
		for _, m := range class.re.FindAllStringIndex(text, -1) {
			if overlapsAny(claimed, m[0], m[1]) {
				continue
			}
			claimed = append(claimed, span{m[0], m[1]})
		}
	}

	if len(claimed) == 0 {
		return text
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, s := range claimed {
		b.WriteString(text[prev:s.start])
		b.WriteString(RedactedPlaceholder)
		prev = s.end
	}
	b.WriteString(text[prev:])
	return b.String()
}

func overlapsAny(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}
