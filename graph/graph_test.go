package graph

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldemailly/singleheader/pattern"
)

func file(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }

var find = pattern.NewMatcher("").FindLocalIncludes

func TestResolveFlat(t *testing.T) {
	fsys := fstest.MapFS{
		"CLI/CLI.hpp":    file("#include \"CLI/C.hpp\"\n#include \"CLI/A.hpp\"\n#include \"CLI/B.hpp\"\n#include \"CLI/A.hpp\"\n"),
		"CLI/A.hpp":      file("#include \"CLI/Nested.hpp\"\nnamespace CLI {}\n"),
		"CLI/B.hpp":      file("namespace CLI {}\n"),
		"CLI/C.hpp":      file("namespace CLI {}\n"),
		"CLI/Nested.hpp": file("namespace CLI {}\n"),
	}
	g, err := Resolve(fsys, "CLI/CLI.hpp", find, false)
	require.NoError(t, err)
	// Declared order, repeats dropped, nested includes not expanded.
	assert.Equal(t, []string{"CLI/C.hpp", "CLI/A.hpp", "CLI/B.hpp"}, g.Order())
	text, ok := g.Text("CLI/A.hpp")
	assert.True(t, ok)
	assert.Contains(t, text, "Nested")
	assert.Empty(t, g.Cycles())
	// The repeat still shows up as an edge.
	var buf bytes.Buffer
	require.NoError(t, g.WriteDOT(&buf))
	assert.Equal(t, 2, strings.Count(buf.String(), `"CLI/CLI.hpp" -> "CLI/A.hpp";`))
}

func TestResolveFlatMissing(t *testing.T) {
	fsys := fstest.MapFS{"CLI/CLI.hpp": file("#include \"CLI/Gone.hpp\"\n")}
	_, err := Resolve(fsys, "CLI/CLI.hpp", find, false)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "CLI/Gone.hpp")

	_, err = Resolve(fsys, "CLI/Nope.hpp", find, false)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestResolveTransitive(t *testing.T) {
	fsys := fstest.MapFS{
		"CLI/CLI.hpp":              file("#include \"CLI/App.hpp\"\n#include \"CLI/Error.hpp\"\n"),
		"CLI/App.hpp":              file("#include \"CLI/Error.hpp\"\n#include \"impl/App_inl.hpp\"\nnamespace CLI {}\n"),
		"CLI/impl/App_inl.hpp":     file("#include \"CLI/StringTools.hpp\"\n#include \"system_only.hpp\"\nnamespace CLI {}\n"),
		"CLI/Error.hpp":            file("#include \"CLI/StringTools.hpp\"\nnamespace CLI {}\n"),
		"CLI/StringTools.hpp":      file("namespace CLI {}\n"),
		"CLI/Unreferenced_inl.hpp": file("namespace CLI {}\n"),
	}
	g, err := Resolve(fsys, "CLI/CLI.hpp", find, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CLI/StringTools.hpp",
		"CLI/Error.hpp",
		"CLI/impl/App_inl.hpp",
		"CLI/App.hpp",
	}, g.Order())
}

func TestResolveTransitiveCycle(t *testing.T) {
	fsys := fstest.MapFS{
		"CLI/CLI.hpp": file("#include \"CLI/A.hpp\"\n"),
		"CLI/A.hpp":   file("#include \"CLI/B.hpp\"\nnamespace CLI {}\n"),
		"CLI/B.hpp":   file("#include \"CLI/A.hpp\"\nnamespace CLI {}\n"),
	}
	g, err := Resolve(fsys, "CLI/CLI.hpp", find, true)
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "CLI/A.hpp -> CLI/B.hpp -> CLI/A.hpp")

	// The partial graph comes back with the cycle marked.
	require.NotNil(t, g)
	require.Len(t, g.Cycles(), 1)
	assert.Equal(t, "CLI/A.hpp -> CLI/B.hpp -> CLI/A.hpp", g.Cycles()[0].String())
	var buf bytes.Buffer
	require.NoError(t, g.WriteDOT(&buf))
	out := buf.String()
	assert.Contains(t, out, `"CLI/A.hpp" [label="CLI/A.hpp", fillcolor="lightgrey", color="red", penwidth=2];`)
	assert.Contains(t, out, `"CLI/B.hpp" [label="CLI/B.hpp", fillcolor="lightgrey", color="red", penwidth=2];`)
	assert.Contains(t, out, `"CLI/B.hpp" -> "CLI/A.hpp";`)
	assert.NotContains(t, out, `"CLI/CLI.hpp" [label="CLI/CLI.hpp", fillcolor="lightgoldenrodyellow", color="red"`)

	// The same tree is fine in flat mode.
	g, err = Resolve(fsys, "CLI/CLI.hpp", find, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"CLI/A.hpp"}, g.Order())
}

func TestResolveTransitiveMissingFromEntry(t *testing.T) {
	fsys := fstest.MapFS{"CLI/CLI.hpp": file("#include \"CLI/Gone.hpp\"\n")}
	_, err := Resolve(fsys, "CLI/CLI.hpp", find, true)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWriteDOT(t *testing.T) {
	fsys := fstest.MapFS{
		"CLI/CLI.hpp": file("#include \"CLI/B.hpp\"\n#include \"CLI/A.hpp\"\n"),
		"CLI/A.hpp":   file("namespace CLI {}\n"),
		"CLI/B.hpp":   file("namespace CLI {}\n"),
	}
	g, err := Resolve(fsys, "CLI/CLI.hpp", find, false)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, g.WriteDOT(&buf))
	out := buf.String()
	assert.Contains(t, out, "digraph includes {")
	assert.Contains(t, out, `"CLI/A.hpp" [label="2: CLI/A.hpp", fillcolor="lightblue"];`)
	assert.Contains(t, out, `"CLI/B.hpp" [label="1: CLI/B.hpp", fillcolor="lightblue"];`)
	assert.Contains(t, out, `"CLI/CLI.hpp" -> "CLI/B.hpp";`)
	// Deterministic.
	var again bytes.Buffer
	require.NoError(t, g.WriteDOT(&again))
	assert.Equal(t, out, again.String())
}
