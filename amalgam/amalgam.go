// Package amalgam folds the headers listed by an entry header into a single
// Aggregate ready to be rendered.
package amalgam

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"fortio.org/log"

	"github.com/ldemailly/singleheader/graph"
	"github.com/ldemailly/singleheader/header"
	"github.com/ldemailly/singleheader/pattern"
	"github.com/ldemailly/singleheader/revision"
)

// Options configures one amalgamation run.
type Options struct {
	IncludeRoot string
	FS          fs.FS // defaults to os.DirFS(IncludeRoot)
	Entry       string
	Anchor      string
	Matcher     pattern.Matcher
	Transitive  bool
	Describer   revision.Describer // defaults to revision.Git{}

	// Substitution context passed through to the banner and the emitter.
	Library         string
	SourceNamespace string
	Namespace       string
}

// Aggregate is everything the emitter needs.
type Aggregate struct {
	Unit            header.Unit
	Graph           *graph.Graph
	Revision        string
	Version         string
	Library         string
	SourceNamespace string
	Namespace       string
}

// Amalgamate reads opts.Entry, resolves its local includes and folds the
// resulting header units in include order. When resolution fails on an
// include cycle the returned Aggregate carries only the partial Graph.
func Amalgamate(ctx context.Context, opts Options) (*Aggregate, error) {
	fsys := opts.FS
	if fsys == nil {
		if opts.IncludeRoot == "" {
			return nil, errors.New("no include root given")
		}
		fsys = os.DirFS(opts.IncludeRoot)
	}
	m := opts.Matcher
	if m == nil {
		m = pattern.NewMatcher(pattern.DefaultTag)
	}
	log.Infof("Resolving includes of %s (transitive=%v)", opts.Entry, opts.Transitive)
	g, err := graph.Resolve(fsys, opts.Entry, m.FindLocalIncludes, opts.Transitive)
	if err != nil {
		if g != nil {
			return &Aggregate{Graph: g}, err
		}
		return nil, err
	}
	files := g.Order()
	log.Infof("Amalgamating %d headers", len(files))

	reg := header.NewRegistry()
	var acc header.Unit
	for _, f := range files {
		text, _ := g.Text(f)
		var u header.Unit
		u, reg, err = header.Build(m, f, text, reg, opts.Anchor)
		if err != nil {
			return nil, err
		}
		log.LogVf("  %s: %d deps, %d regions, %d body bytes", f, len(u.Deps), len(u.Regions), len(u.Body))
		acc = header.Merge(acc, u)
	}

	d := opts.Describer
	if d == nil {
		d = revision.Git{}
	}
	rev, ok := d.Describe(ctx, opts.IncludeRoot)
	if !ok {
		rev = ""
	}
	agg := &Aggregate{
		Unit:            acc,
		Graph:           g,
		Revision:        rev,
		Version:         revision.Version(rev),
		Library:         opts.Library,
		SourceNamespace: opts.SourceNamespace,
		Namespace:       opts.Namespace,
	}
	log.Infof("Collected %d external includes, %d regions (revision %q)", len(acc.Deps), len(acc.Regions), rev)
	return agg, nil
}
