// Package pattern holds the line-anchored textual patterns used to pull
// structure out of header sources: quoted (local) includes, angle-bracket
// (external) includes, and `[tag:name:action]` region markers.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultTag is the marker tag used by the library sources.
const DefaultTag = "CLI11"

// EndAction closes a region opened with the same name.
const EndAction = "end"

var (
	ErrUnterminatedRegion = errors.New("unterminated region")
	ErrUnexpectedEnd      = errors.New("end marker without matching begin")
)

var (
	localIncludeRe    = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include[ \t]*"([^"\n]+)"`)
	externalIncludeRe = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include[ \t]*<([^>\n]+)>`)
)

// Region is one marker-delimited span found in a text.
type Region struct {
	Tag     string
	Name    string
	Action  string
	Content string // raw text between the begin and end marker lines
	Start   int    // offset of the begin marker line
	End     int    // offset just past the end marker line (and its newline)
}

// Matcher is the narrow interface the rest of the tool uses to recognize
// structure, so the matching strategy can be swapped independently.
type Matcher interface {
	FindLocalIncludes(text string) []string
	FindExternalIncludes(text string) []string
	FindVerbatimRegions(text string) ([]Region, error)
	HasVerbatimHint(text string) bool
}

// Strict matches regions by a begin marker and a later end marker carrying
// the same name.
type Strict struct {
	tag      string
	markerRe *regexp.Regexp
	hint     string
}

var _ Matcher = (*Strict)(nil)

// NewMatcher returns the strict name-matched matcher for tag.
func NewMatcher(tag string) *Strict {
	if tag == "" {
		tag = DefaultTag
	}
	re := regexp.MustCompile(`(?m)^[ \t]*(?:/[/*]+|\*+)?[ \t]*\[` + regexp.QuoteMeta(tag) + `:(\w+):(\w+)\][^\n]*$`)
	return &Strict{tag: tag, markerRe: re, hint: "[" + tag + ":"}
}

// Tag returns the marker tag this matcher recognizes.
func (s *Strict) Tag() string { return s.tag }

// FindLocalIncludes returns quoted include targets in order of appearance.
func (s *Strict) FindLocalIncludes(text string) []string {
	var res []string
	for _, m := range localIncludeRe.FindAllStringSubmatch(text, -1) {
		res = append(res, m[1])
	}
	return res
}

// FindExternalIncludes returns the sorted, deduplicated angle-bracket include targets.
func (s *Strict) FindExternalIncludes(text string) []string {
	seen := make(map[string]bool)
	res := []string{}
	for _, m := range externalIncludeRe.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		res = append(res, m[1])
	}
	sort.Strings(res)
	return res
}

// HasVerbatimHint reports whether text mentions the marker tag at all.
func (s *Strict) HasVerbatimHint(text string) bool {
	return strings.Contains(text, s.hint)
}

type marker struct {
	name, action string
	start, end   int // line span, end includes the trailing newline
}

// FindVerbatimRegions returns the regions of text in source order.
// A region opened by [tag:name:action] is closed by the next marker with the
// same name and action "end", or by a repeat of the opening marker. Markers
// for other names inside an open region are treated as content.
func (s *Strict) FindVerbatimRegions(text string) ([]Region, error) {
	var markers []marker
	for _, loc := range s.markerRe.FindAllStringSubmatchIndex(text, -1) {
		end := loc[1]
		if end < len(text) && text[end] == '\n' {
			end++
		}
		markers = append(markers, marker{
			name:   text[loc[2]:loc[3]],
			action: text[loc[4]:loc[5]],
			start:  loc[0],
			end:    end,
		})
	}
	var regions []Region
	var open *marker
	for i := range markers {
		mk := markers[i]
		if open == nil {
			if mk.action == EndAction {
				return nil, fmt.Errorf("[%s:%s:%s] at offset %d: %w", s.tag, mk.name, mk.action, mk.start, ErrUnexpectedEnd)
			}
			open = &markers[i]
			continue
		}
		if mk.name != open.name || (mk.action != EndAction && mk.action != open.action) {
			continue
		}
		regions = append(regions, Region{
			Tag:     s.tag,
			Name:    open.name,
			Action:  open.action,
			Content: text[open.end:mk.start],
			Start:   open.start,
			End:     mk.end,
		})
		open = nil
	}
	if open != nil {
		return nil, fmt.Errorf("[%s:%s:%s] at offset %d: %w", s.tag, open.name, open.action, open.start, ErrUnterminatedRegion)
	}
	return regions, nil
}

// Matcher kinds accepted by New.
const (
	KindStrict = "strict"
	KindLegacy = "legacy"
)

var ErrUnknownMatcher = errors.New("unknown matcher")

// New returns the matcher of the given kind for tag; "" means strict.
func New(kind, tag string) (Matcher, error) {
	switch kind {
	case "", KindStrict:
		return NewMatcher(tag), nil
	case KindLegacy:
		return NewLegacyMatcher(tag), nil
	}
	return nil, fmt.Errorf("%q (want %s or %s): %w", kind, KindStrict, KindLegacy, ErrUnknownMatcher)
}

// Legacy matches the older single-tag markup, where each region is a pair of
// identical [tag:verbatim] lines. Regions are anonymous and always verbatim.
type Legacy struct {
	*Strict
	pairRe *regexp.Regexp
}

var _ Matcher = (*Legacy)(nil)

// LegacyAction is the only action the legacy markup knows.
const LegacyAction = "verbatim"

// NewLegacyMatcher returns the pair-matched matcher for tag.
func NewLegacyMatcher(tag string) *Legacy {
	s := NewMatcher(tag)
	re := regexp.MustCompile(`(?m)^[ \t]*(?:/[/*]+|\*+)?[ \t]*\[` + regexp.QuoteMeta(s.tag) + `:` + LegacyAction + `\][^\n]*$`)
	return &Legacy{Strict: s, pairRe: re}
}

// FindVerbatimRegions pairs consecutive markers in source order.
func (l *Legacy) FindVerbatimRegions(text string) ([]Region, error) {
	locs := l.pairRe.FindAllStringIndex(text, -1)
	if len(locs)%2 != 0 {
		last := locs[len(locs)-1]
		return nil, fmt.Errorf("[%s:%s] at offset %d: %w", l.tag, LegacyAction, last[0], ErrUnterminatedRegion)
	}
	lineEnd := func(end int) int {
		if end < len(text) && text[end] == '\n' {
			return end + 1
		}
		return end
	}
	regions := make([]Region, 0, len(locs)/2)
	for i := 0; i < len(locs); i += 2 {
		begin, end := locs[i], locs[i+1]
		regions = append(regions, Region{
			Tag:     l.tag,
			Action:  LegacyAction,
			Content: text[lineEnd(begin[1]):end[0]],
			Start:   begin[0],
			End:     lineEnd(end[1]),
		})
	}
	return regions, nil
}
