// Package graph resolves the ordered list of local headers to amalgamate,
// starting from an entry header, and keeps the include edges it saw.
package graph

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"fortio.org/log"
)

var ErrCycle = errors.New("include cycle")

// IncludeFinder returns the local include targets of a text, in order.
type IncludeFinder func(text string) []string

// Node is one header file.
type Node struct {
	Path       string
	Order      int  // position in the resolved list, -1 if not emitted
	PartOfLoop bool // set on the nodes of a rejected cycle
}

// Edge is an include directive from one header to another.
type Edge struct {
	From *Node // never nil
	To   *Node
}

// Cycle is a chain of includes leading back to its first node.
type Cycle struct {
	Nodes []*Node
}

func (c Cycle) String() string {
	parts := make([]string, 0, len(c.Nodes)+1)
	for _, n := range c.Nodes {
		parts = append(parts, n.Path)
	}
	if len(c.Nodes) > 0 {
		parts = append(parts, c.Nodes[0].Path)
	}
	return strings.Join(parts, " -> ")
}

// Graph is the include graph reachable from one entry header.
type Graph struct {
	Entry  string
	nodes  map[string]*Node
	edges  []Edge
	cycles []Cycle
	order  []string
	texts  map[string]string
}

// Order returns the resolved file list.
func (g *Graph) Order() []string { return g.order }

// Text returns the content read for p during resolution.
func (g *Graph) Text(p string) (string, bool) {
	t, ok := g.texts[p]
	return t, ok
}

// Cycles returns the cycles found (at most one, since a cycle aborts resolution).
func (g *Graph) Cycles() []Cycle { return g.cycles }

func (g *Graph) node(p string) *Node {
	n, ok := g.nodes[p]
	if !ok {
		n = &Node{Path: p, Order: -1}
		g.nodes[p] = n
	}
	return n
}

func (g *Graph) read(fsys fs.FS, p string) (string, error) {
	if t, ok := g.texts[p]; ok {
		return t, nil
	}
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return "", err
	}
	g.texts[p] = string(data)
	return g.texts[p], nil
}

// resolvePath maps an include target to a file in fsys: first relative to
// the root, then relative to the including file's directory.
func resolvePath(fsys fs.FS, from, target string) (string, bool) {
	candidates := []string{path.Clean(target)}
	if dir := path.Dir(from); dir != "." {
		candidates = append(candidates, path.Join(dir, target))
	}
	for _, c := range candidates {
		if !fs.ValidPath(c) {
			continue
		}
		if st, err := fs.Stat(fsys, c); err == nil && !st.IsDir() {
			return c, true
		}
	}
	return "", false
}

// Resolve reads entry from fsys and returns the graph of headers it pulls in.
// In flat mode only the entry's own includes are used, in declared order;
// a repeated include is used once (with a warning), so it never trips the
// duplicate verbatim region check.
// In transitive mode every header's includes are expanded depth-first ahead
// of the header itself, each header appears once, and a cycle is an error.
// On ErrCycle the partial graph is returned too, with the cycle marked, so
// it can still be rendered.
func Resolve(fsys fs.FS, entry string, find IncludeFinder, transitive bool) (*Graph, error) {
	g := &Graph{
		Entry: entry,
		nodes: make(map[string]*Node),
		texts: make(map[string]string),
	}
	text, err := g.read(fsys, entry)
	if err != nil {
		return nil, fmt.Errorf("reading entry header: %w", err)
	}
	root := g.node(entry)
	if !transitive {
		seen := make(map[string]bool)
		for _, inc := range find(text) {
			p := path.Clean(inc)
			g.edges = append(g.edges, Edge{From: root, To: g.node(p)})
			if seen[p] {
				log.Warnf("%s includes %s more than once; using it once", entry, p)
				continue
			}
			seen[p] = true
			if _, err := g.read(fsys, p); err != nil {
				return nil, fmt.Errorf("reading %s (from %s): %w", p, entry, err)
			}
			g.emit(p)
		}
		return g, nil
	}
	state := make(map[string]int) // 0 unvisited, 1 in progress, 2 done
	var stack []*Node
	var visit func(p, text string) error
	visit = func(p, text string) error {
		n := g.node(p)
		state[p] = 1
		stack = append(stack, n)
		for _, inc := range find(text) {
			target, ok := resolvePath(fsys, p, inc)
			if !ok {
				if p == entry {
					return fmt.Errorf("reading %s (from %s): %w", inc, p, fs.ErrNotExist)
				}
				log.LogVf("  %s: include %q not found under the include root, left as is", p, inc)
				continue
			}
			to := g.node(target)
			g.edges = append(g.edges, Edge{From: n, To: to})
			switch state[target] {
			case 2:
				continue
			case 1:
				return g.cycleError(stack, to)
			}
			childText, err := g.read(fsys, target)
			if err != nil {
				return fmt.Errorf("reading %s (from %s): %w", target, p, err)
			}
			if err := visit(target, childText); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[p] = 2
		if p != entry {
			g.emit(p)
		}
		return nil
	}
	if err := visit(entry, text); err != nil {
		if errors.Is(err, ErrCycle) {
			return g, err
		}
		return nil, err
	}
	return g, nil
}

func (g *Graph) emit(p string) {
	g.node(p).Order = len(g.order)
	g.order = append(g.order, p)
	log.LogVf("  [%d] %s", len(g.order), p)
}

func (g *Graph) cycleError(stack []*Node, to *Node) error {
	start := 0
	for i, n := range stack {
		if n == to {
			start = i
			break
		}
	}
	c := Cycle{Nodes: append([]*Node(nil), stack[start:]...)}
	for _, n := range c.Nodes {
		n.PartOfLoop = true
	}
	g.cycles = append(g.cycles, c)
	log.Warnf("Cycle detected in includes: %s", c)
	return fmt.Errorf("%s: %w", c, ErrCycle)
}

// WriteDOT writes the include graph in graphviz DOT format. Emitted headers
// are labeled with their position; cycle members get a red border.
func (g *Graph) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph includes {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=filled];\n")
	paths := make([]string, 0, len(g.nodes))
	for p := range g.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		n := g.nodes[p]
		label := p
		color := "lightblue"
		switch {
		case p == g.Entry:
			color = "lightgoldenrodyellow"
		case n.Order >= 0:
			label = fmt.Sprintf("%d: %s", n.Order+1, p)
		default:
			color = "lightgrey"
		}
		attrs := fmt.Sprintf("label=%q, fillcolor=%q", label, color)
		if n.PartOfLoop {
			attrs += `, color="red", penwidth=2`
		}
		fmt.Fprintf(&b, "  %q [%s];\n", p, attrs)
	}
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.From.Path, e.To.Path)
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
