// Package header turns one header source into a Unit: its external
// dependencies, its tagged regions and its body. Units combine with Merge,
// an associative order-preserving operation whose identity is Unit{}.
package header

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"fortio.org/log"

	"github.com/ldemailly/singleheader/pattern"
)

// Region actions.
const (
	ActionVerbatim = "verbatim"
	ActionSet      = "set"
)

// DefaultAnchor is the text where a file's body starts.
const DefaultAnchor = "namespace"

var (
	ErrMissingAnchor   = errors.New("body anchor not found")
	ErrDuplicateRegion = errors.New("duplicate verbatim region")
	ErrActionConflict  = errors.New("region name used with conflicting actions")
	ErrUnknownAction   = errors.New("unknown region action")
)

// Region is a named block that is emitted apart from the bodies.
type Region struct {
	Tag     string
	Name    string
	Action  string
	Content string   // verbatim text, exactly as found
	Lines   []string // accumulated lines for ActionSet
}

// Text renders the region for the output document.
func (r Region) Text() string {
	if r.Action == ActionSet {
		if len(r.Lines) == 0 {
			return ""
		}
		return strings.Join(r.Lines, "\n") + "\n"
	}
	return r.Content
}

// Unit is one file's (or, after merging, several files') contribution.
type Unit struct {
	Files    []string
	Deps     []string // sorted, unique
	Regions  []Region
	Body     string
	Warnings []string
}

// Merge combines a and b, a first. Neither input is modified.
func Merge(a, b Unit) Unit {
	return Unit{
		Files:    concat(a.Files, b.Files),
		Deps:     unionSorted(a.Deps, b.Deps),
		Regions:  mergeRegions(a.Regions, b.Regions),
		Body:     a.Body + b.Body,
		Warnings: concat(a.Warnings, b.Warnings),
	}
}

// Fold merges units left to right.
func Fold(units ...Unit) Unit {
	var acc Unit
	for _, u := range units {
		acc = Merge(acc, u)
	}
	return acc
}

func concat(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}
	res := make([]string, 0, len(a)+len(b))
	res = append(res, a...)
	return append(res, b...)
}

func unionSorted(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	res := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				res = append(res, s)
			}
		}
	}
	sort.Strings(res)
	return res
}

// appendUnique appends the entries of add missing from base, keeping first-seen order.
func appendUnique(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	res := make([]string, 0, len(base)+len(add))
	for _, s := range base {
		seen[s] = true
		res = append(res, s)
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			res = append(res, s)
		}
	}
	return res
}

// mergeRegions appends b to a; a set region whose name is already present
// folds its lines into the earlier one.
func mergeRegions(a, b []Region) []Region {
	if len(a)+len(b) == 0 {
		return nil
	}
	res := make([]Region, 0, len(a)+len(b))
	setIdx := make(map[string]int)
	for _, list := range [][]Region{a, b} {
		for _, r := range list {
			if r.Action == ActionSet {
				if i, ok := setIdx[r.Name]; ok {
					res[i].Lines = appendUnique(res[i].Lines, r.Lines)
					continue
				}
				setIdx[r.Name] = len(res)
				r.Lines = appendUnique(nil, r.Lines)
			}
			res = append(res, r)
		}
	}
	return res
}

// Registry records which action each region name was first seen with.
// It is immutable: With returns an updated copy.
type Registry struct {
	names map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() Registry {
	return Registry{}
}

// Lookup returns the action registered for name.
func (r Registry) Lookup(name string) (string, bool) {
	a, ok := r.names[name]
	return a, ok
}

// Len returns the number of registered names.
func (r Registry) Len() int { return len(r.names) }

// With returns a copy of r with name registered for action.
func (r Registry) With(name, action string) Registry {
	names := make(map[string]string, len(r.names)+1)
	for k, v := range r.names {
		names[k] = v
	}
	names[name] = action
	return Registry{names: names}
}

// Check validates a region against the registry and returns the updated registry.
func (r Registry) Check(name, action string) (Registry, error) {
	switch action {
	case ActionVerbatim, ActionSet:
	default:
		return r, fmt.Errorf("%q in region %q: %w", action, name, ErrUnknownAction)
	}
	prev, ok := r.Lookup(name)
	if !ok {
		return r.With(name, action), nil
	}
	if prev != action {
		return r, fmt.Errorf("%q is %s and %s: %w", name, prev, action, ErrActionConflict)
	}
	if action == ActionVerbatim {
		return r, fmt.Errorf("%q: %w", name, ErrDuplicateRegion)
	}
	return r, nil
}

// Build extracts the Unit for the file at path. reg carries the region
// names seen in earlier files; the updated registry is returned.
func Build(m pattern.Matcher, path, text string, reg Registry, anchor string) (Unit, Registry, error) {
	if anchor == "" {
		anchor = DefaultAnchor
	}
	found, err := m.FindVerbatimRegions(text)
	if err != nil {
		return Unit{}, reg, fmt.Errorf("%s: %w", path, err)
	}
	u := Unit{Files: []string{path}}
	if len(found) == 0 && m.HasVerbatimHint(text) {
		msg := fmt.Sprintf("%s: region marker hint found but no matching begin/end markers", path)
		log.Warnf("%s", msg)
		u.Warnings = append(u.Warnings, msg)
	}
	var stripped strings.Builder
	last := 0
	for _, f := range found {
		if f.Name == "" {
			// Anonymous (legacy) regions are never shared across files.
			if f.Action != ActionVerbatim {
				return Unit{}, reg, fmt.Errorf("%s: %q in anonymous region: %w", path, f.Action, ErrUnknownAction)
			}
		} else if reg, err = reg.Check(f.Name, f.Action); err != nil {
			return Unit{}, reg, fmt.Errorf("%s: %w", path, err)
		}
		r := Region{Tag: f.Tag, Name: f.Name, Action: f.Action, Content: f.Content}
		if f.Action == ActionSet {
			r.Content = ""
			r.Lines = setLines(f.Content)
		}
		u = Merge(u, Unit{Regions: []Region{r}})
		log.LogVf("  %s: region %s:%s (%d bytes)", path, f.Name, f.Action, len(f.Content))
		stripped.WriteString(text[last:f.Start])
		last = f.End
	}
	stripped.WriteString(text[last:])
	rest := stripped.String()

	u.Deps = m.FindExternalIncludes(rest)
	idx := strings.Index(rest, anchor)
	if idx < 0 {
		return Unit{}, reg, fmt.Errorf("%s: %q: %w", path, anchor, ErrMissingAnchor)
	}
	u.Body = "\n// From " + path + "\n\n" + rest[idx:]
	return u, reg, nil
}

func setLines(content string) []string {
	var lines []string
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(l, " \t\r"))
	}
	return lines
}
