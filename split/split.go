// Package split reverses an amalgamation: it cuts a single-file document
// back into the per-header sections marked by "// From <path>" lines.
package split

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"fortio.org/log"

	"github.com/ldemailly/singleheader/emit"
)

// MarkerPrefix starts the line that opens each section.
const MarkerPrefix = "// From "

var ErrPathInvalid = errors.New("invalid section path")

// Section is the body of one original header.
type Section struct {
	Path    string
	Content string
}

// Document is a parsed amalgamation.
type Document struct {
	Preamble string // banner, includes and verbatim block
	Sections []Section
}

// Parse reads an amalgamated document from r. A section starts at a
// "// From <path>" line that sits between two blank lines, which is the
// shape the emitter writes; any other "// From" line is ordinary content.
func Parse(r io.Reader) (*Document, error) {
	var all []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading input: %w", err)
	}

	doc := &Document{}
	var pre strings.Builder
	var cur *Section
	var lines []string
	flush := func() {
		if cur == nil {
			return
		}
		if len(lines) > 0 && lines[0] == "" {
			lines = lines[1:]
		}
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		cur.Content = strings.Join(lines, "\n")
		if len(lines) > 0 {
			cur.Content += "\n"
		}
		doc.Sections = append(doc.Sections, *cur)
		lines = nil
	}
	for i, line := range all {
		if name, ok := sectionPath(all, i); ok {
			flush()
			cur = &Section{Path: name}
			continue
		}
		if cur == nil {
			pre.WriteString(line)
			pre.WriteString("\n")
			continue
		}
		lines = append(lines, line)
	}
	flush()
	doc.Preamble = strings.TrimRight(pre.String(), "\n")
	if doc.Preamble != "" {
		doc.Preamble += "\n"
	}
	return doc, nil
}

// sectionPath reports whether line i of lines opens a section, and its path.
func sectionPath(lines []string, i int) (string, bool) {
	line := lines[i]
	if !strings.HasPrefix(line, MarkerPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(line, MarkerPrefix)
	if name == "" || strings.ContainsAny(name, " \t\r") {
		log.LogVf("Line %d looks like a section marker but has no usable path: %q", i+1, line)
		return "", false
	}
	if i > 0 && lines[i-1] != "" {
		return "", false
	}
	if i+1 >= len(lines) || lines[i+1] != "" {
		return "", false
	}
	return name, true
}

// Target maps a section path to a file under dir, rejecting paths that
// would escape it.
func Target(dir, p string) (string, error) {
	if p == "" || strings.ContainsAny(p, " \t\r\n") {
		return "", fmt.Errorf("%q: %w", p, ErrPathInvalid)
	}
	rel := filepath.Clean(filepath.FromSlash(p))
	if rel == "." || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%q: %w", p, ErrPathInvalid)
	}
	return filepath.Join(dir, rel), nil
}

// Options controls WriteSections.
type Options struct {
	DryRun bool
	Format []string // optional formatter command run on each written file, e.g. clang-format -i
}

// WriteSections writes each section to its own file under dir and returns
// the written paths.
func WriteSections(dir string, doc *Document, opts Options) ([]string, error) {
	var written []string
	for _, s := range doc.Sections {
		dest, err := Target(dir, s.Path)
		if err != nil {
			return written, err
		}
		if opts.DryRun {
			log.Infof("  Would extract %s (%d bytes)", dest, len(s.Content))
			written = append(written, dest)
			continue
		}
		log.Infof("  Extracting %s...", dest)
		if err := emit.WriteFileAtomic(dest, []byte(s.Content), 0o644); err != nil {
			return written, err
		}
		written = append(written, dest)
		runFormatter(opts.Format, dest)
	}
	return written, nil
}

// runFormatter runs the formatter command on filename. Failures are logged, not returned.
func runFormatter(command []string, filename string) {
	if len(command) == 0 {
		return
	}
	args := append(append([]string(nil), command[1:]...), filename)
	log.LogVf("  Running %s on %s...", command[0], filename)
	output, err := exec.Command(command[0], args...).CombinedOutput()
	if err != nil {
		log.Warnf("  %s failed for %s: %v\nOutput:\n%s", command[0], filename, err, string(output))
	} else if len(output) > 0 {
		log.LogVf("  %s output for %s:\n%s", command[0], filename, string(output))
	}
}
