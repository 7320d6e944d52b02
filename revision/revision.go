// Package revision looks up the provenance tag stamped into the output.
package revision

import (
	"context"
	"os/exec"
	"strings"

	"fortio.org/log"
	"golang.org/x/mod/semver"
)

// Describer returns a short label for the source revision found in dir.
// ok is false when no label could be determined; that is never an error.
type Describer interface {
	Describe(ctx context.Context, dir string) (label string, ok bool)
}

// Static always returns the same label. An empty label reports not ok.
type Static string

// Describe implements Describer.
func (s Static) Describe(context.Context, string) (string, bool) {
	return string(s), s != ""
}

// Git runs `git describe` in the directory being amalgamated.
type Git struct {
	Command string   // defaults to "git"
	Args    []string // defaults to describe --tags --always --dirty
}

// Describe implements Describer.
func (g Git) Describe(ctx context.Context, dir string) (string, bool) {
	command := g.Command
	if command == "" {
		command = "git"
	}
	args := g.Args
	if len(args) == 0 {
		args = []string{"describe", "--tags", "--always", "--dirty"}
	}
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		log.LogVf("Revision lookup (%s %s) in %q failed, using empty tag: %v", command, strings.Join(args, " "), dir, err)
		return "", false
	}
	label := strings.TrimSpace(string(out))
	return label, label != ""
}

// Version returns the semantic version named by a revision label such as
// "v2.3.1", "2.3.1" or "v2.3.1-4-gdeadbee", or "" if there is none.
func Version(label string) string {
	if label == "" {
		return ""
	}
	v := label
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
