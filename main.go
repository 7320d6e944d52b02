// singleheader flattens the headers listed by an entry header into one
// self-contained file.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"

	"fortio.org/cli"
	"fortio.org/log"

	"github.com/ldemailly/singleheader/amalgam"
	"github.com/ldemailly/singleheader/config"
	"github.com/ldemailly/singleheader/emit"
	"github.com/ldemailly/singleheader/pattern"
	"github.com/ldemailly/singleheader/revision"
)

var defaults = config.Default()

var (
	entryFlag      = flag.String("entry", defaults.Entry, "Entry `header`, relative to the include root")
	includeFlag    = flag.String("include", defaults.IncludeRoot, "Include root `directory`")
	tagFlag        = flag.String("tag", defaults.Tag, "Region marker `tag`, as in [tag:name:action]")
	matcherFlag    = flag.String("matcher", defaults.Matcher, "Region marker `style`: strict ([tag:name:action] ... [tag:name:end]) or legacy ([tag:verbatim] pairs)")
	anchorFlag     = flag.String("anchor", defaults.Anchor, "Text marking the start of each header's body")
	libraryFlag    = flag.String("library", defaults.Library, "Library name used in the banner")
	srcNSFlag      = flag.String("source-namespace", defaults.SourceNamespace, "Namespace used in the sources")
	namespaceFlag  = flag.String("namespace", defaults.Namespace, "Rename the source namespace to this `name` in the output")
	transitiveFlag = flag.Bool("transitive", defaults.Transitive, "Also expand the includes of included headers, cycles are errors (default: only the entry's includes, each once)")
	configFlag     = flag.String("config", "", "Optional YAML config `file`")
	dotFlag        = flag.String("dot", defaults.Dot, "Also write the include graph in DOT format to this `file`, even when an include cycle aborts the run")
)

func main() {
	cli.ArgsHelp = "[output]" // stdout when omitted
	cli.MinArgs = 0
	cli.MaxArgs = 1
	cli.Main()

	cfg, err := loadConfig(flag.Args())
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if err := run(context.Background(), cfg, revision.Git{}, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

// loadConfig layers defaults, the -config file, the environment and the
// flags that were explicitly set, in that order.
func loadConfig(args []string) (config.Config, error) {
	cfg := config.Default()
	if *configFlag != "" {
		if err := config.LoadFile(*configFlag, &cfg); err != nil {
			return cfg, err
		}
	}
	config.LoadDotEnv()
	if err := config.ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "entry":
			cfg.Entry = *entryFlag
		case "include":
			cfg.IncludeRoot = *includeFlag
		case "tag":
			cfg.Tag = *tagFlag
		case "anchor":
			cfg.Anchor = *anchorFlag
		case "library":
			cfg.Library = *libraryFlag
		case "source-namespace":
			cfg.SourceNamespace = *srcNSFlag
		case "namespace":
			cfg.Namespace = *namespaceFlag
		case "transitive":
			cfg.Transitive = *transitiveFlag
		case "matcher":
			cfg.Matcher = *matcherFlag
		case "dot":
			cfg.Dot = *dotFlag
		}
	})
	if len(args) > 0 {
		cfg.Output = args[0]
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, describer revision.Describer, stdout io.Writer) error {
	banner, err := emit.ParseBanner(cfg.Banner, cfg.License)
	if err != nil {
		return err
	}
	matcher, err := pattern.New(cfg.Matcher, cfg.Tag)
	if err != nil {
		return err
	}
	agg, err := amalgam.Amalgamate(ctx, amalgam.Options{
		IncludeRoot:     cfg.IncludeRoot,
		Entry:           cfg.Entry,
		Anchor:          cfg.Anchor,
		Matcher:         matcher,
		Transitive:      cfg.Transitive,
		Describer:       describer,
		Library:         cfg.Library,
		SourceNamespace: cfg.SourceNamespace,
		Namespace:       cfg.Namespace,
	})
	if agg != nil && cfg.Dot != "" {
		if dotErr := writeDOT(cfg.Dot, agg); dotErr != nil {
			return dotErr
		}
	}
	if err != nil {
		return err
	}
	doc, err := emit.Render(agg, banner)
	if err != nil {
		return err
	}
	res, err := emit.Write(cfg.Output, doc, stdout)
	if err != nil {
		return err
	}
	if n := len(agg.Unit.Warnings); n > 0 {
		log.Warnf("%d warning(s) while amalgamating", n)
	}
	switch res {
	case emit.Written:
		log.Infof("Created %s", cfg.Output)
	case emit.Unchanged:
		log.Infof("Created %s (unchanged)", cfg.Output)
	case emit.Stdout:
		log.Infof("Wrote %d bytes to stdout", len(doc))
	}
	return nil
}

// writeDOT writes the include graph, including a partial graph with the
// offending cycle marked when resolution failed.
func writeDOT(dest string, agg *amalgam.Aggregate) error {
	var dot bytes.Buffer
	if err := agg.Graph.WriteDOT(&dot); err != nil {
		return err
	}
	if err := emit.WriteFileAtomic(dest, dot.Bytes(), 0o644); err != nil {
		return err
	}
	log.Infof("Wrote include graph to %s", dest)
	return nil
}
