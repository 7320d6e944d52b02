package header

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// unitFrom builds a normalized unit whose deps, set lines and body all
// derive from words.
func unitFrom(name string, words []string) Unit {
	body := "\n// From " + name + "\n\n" + strings.Join(words, " ") + "\n"
	return Unit{
		Files: []string{name},
		Deps:  unionSorted(words, nil),
		Regions: []Region{
			{Name: "shared", Action: ActionSet, Lines: appendUnique(nil, words)},
			{Name: name + "_hpp", Action: ActionVerbatim, Content: body},
		},
		Body: body,
	}
}

// pairwise reduces units by splitting them in halves.
func pairwise(units []Unit) Unit {
	switch len(units) {
	case 0:
		return Unit{}
	case 1:
		return units[0]
	}
	mid := len(units) / 2
	return Merge(pairwise(units[:mid]), pairwise(units[mid:]))
}

func TestMergeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	words := gen.SliceOf(gen.AlphaString())

	properties.Property("merge is associative", prop.ForAll(
		func(a, b, c []string) bool {
			x, y, z := unitFrom("a", a), unitFrom("b", b), unitFrom("c", c)
			return reflect.DeepEqual(Merge(Merge(x, y), z), Merge(x, Merge(y, z)))
		},
		words, words, words,
	))

	properties.Property("empty unit is the identity", prop.ForAll(
		func(a []string) bool {
			x := unitFrom("a", a)
			return reflect.DeepEqual(Merge(Unit{}, x), x) && reflect.DeepEqual(Merge(x, Unit{}), x)
		},
		words,
	))

	properties.Property("pairwise reduce matches sequential fold", prop.ForAll(
		func(a, b, c, d []string) bool {
			units := []Unit{unitFrom("a", a), unitFrom("b", b), unitFrom("c", c), unitFrom("d", d)}
			return reflect.DeepEqual(pairwise(units), Fold(units...))
		},
		words, words, words, words,
	))

	properties.Property("bodies keep traversal order", prop.ForAll(
		func(a, b, c []string) bool {
			got := Fold(unitFrom("a", a), unitFrom("b", b), unitFrom("c", c)).Body
			ia := strings.Index(got, "// From a\n")
			ib := strings.Index(got, "// From b\n")
			ic := strings.Index(got, "// From c\n")
			return ia >= 0 && ia < ib && ib < ic
		},
		words, words, words,
	))

	properties.Property("deps are sorted and unique", prop.ForAll(
		func(a, b []string) bool {
			deps := Merge(unitFrom("a", a), unitFrom("b", b)).Deps
			for i := 1; i < len(deps); i++ {
				if deps[i-1] >= deps[i] {
					return false
				}
			}
			return true
		},
		words, words,
	))

	properties.TestingRun(t)
}
