// splitheader cuts an amalgamated single header read from stdin back into
// one file per original header, using the "// From <path>" section markers.
package main

import (
	"flag"
	"os"
	"strings"

	"fortio.org/cli"
	"fortio.org/log"

	"github.com/ldemailly/singleheader/split"
)

var (
	dryRun     = flag.Bool("dry-run", false, "Only list the sections that would be written")
	formatFlag = flag.String("format", "", "Formatter `command` to run on each written file, e.g. \"clang-format -i\"")
)

func main() {
	cli.ArgsHelp = "output-dir < amalgamated.hpp"
	cli.MinArgs = 1
	cli.MaxArgs = 1
	cli.Main()

	dir := flag.Arg(0)
	log.Printf("Reading amalgamated header from stdin...")
	doc, err := split.Parse(os.Stdin)
	if err != nil {
		log.Fatalf("%v", err)
	}
	written, err := split.WriteSections(dir, doc, split.Options{
		DryRun: *dryRun,
		Format: strings.Fields(*formatFlag),
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Infof("Done: %d sections (%d bytes of preamble skipped).", len(written), len(doc.Preamble))
}
