// Package emit renders an amalgamation into the final single-file document
// and writes it out.
package emit

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/ldemailly/singleheader/amalgam"
)

// DefaultBanner is the banner template placed at the top of the output.
const DefaultBanner = `#pragma once

// {{.Library}}: single-header amalgamation{{with .Version}}, version {{.}}{{end}}
{{- range .License}}
// {{.}}
{{- end}}

// This file was generated by singleheader{{with .Revision}} from: {{.}}{{end}}
// This has the complete {{.Library}} library in one file.
`

// DefaultLicense is the license text quoted in the banner.
var DefaultLicense = []string{
	"Distributed under the 3-Clause BSD License.  See accompanying",
	"file LICENSE or https://github.com/CLIUtils/CLI11 for details.",
}

// BannerData is what the banner template sees.
type BannerData struct {
	Library   string
	Revision  string
	Version   string
	Namespace string
	License   []string
}

// Banner is a parsed banner template plus its license lines.
type Banner struct {
	tmpl    *template.Template
	License []string
}

// ParseBanner parses text (DefaultBanner if empty) as a banner template.
func ParseBanner(text string, license []string) (*Banner, error) {
	if text == "" {
		text = DefaultBanner
	}
	if license == nil {
		license = DefaultLicense
	}
	t, err := template.New("banner").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing banner template: %w", err)
	}
	return &Banner{tmpl: t, License: license}, nil
}

// Render produces the output document: banner, sorted external includes,
// the verbatim block and then the bodies, all in traversal order.
func Render(agg *amalgam.Aggregate, banner *Banner) ([]byte, error) {
	if banner == nil {
		var err error
		if banner, err = ParseBanner("", nil); err != nil {
			return nil, err
		}
	}
	ns := agg.Namespace
	if ns == "" {
		ns = agg.SourceNamespace
	}
	var out bytes.Buffer
	err := banner.tmpl.Execute(&out, BannerData{
		Library:   agg.Library,
		Revision:  agg.Revision,
		Version:   agg.Version,
		Namespace: ns,
		License:   banner.License,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering banner: %w", err)
	}
	ensureNewline(&out)
	out.WriteString("\n")

	u := agg.Unit
	for _, d := range u.Deps {
		fmt.Fprintf(&out, "#include <%s>\n", d)
	}
	if len(u.Deps) > 0 {
		out.WriteString("\n")
	}

	var code strings.Builder
	for _, r := range u.Regions {
		t := r.Text()
		if t == "" {
			continue
		}
		code.WriteString(t)
		if !strings.HasSuffix(t, "\n") {
			code.WriteString("\n")
		}
	}
	code.WriteString(u.Body)
	out.WriteString(Substitute(code.String(), agg.SourceNamespace, agg.Namespace))
	ensureNewline(&out)
	return out.Bytes(), nil
}

func ensureNewline(b *bytes.Buffer) {
	if b.Len() > 0 && b.Bytes()[b.Len()-1] != '\n' {
		b.WriteByte('\n')
	}
}

// Substitute renames namespace from to namespace to: both the namespace
// declarations and qualified uses (from::).
func Substitute(text, from, to string) string {
	if from == "" || to == "" || from == to {
		return text
	}
	q := regexp.QuoteMeta(from)
	text = regexp.MustCompile(`\bnamespace(\s+)`+q+`\b`).ReplaceAllString(text, "namespace${1}"+to)
	return regexp.MustCompile(`\b`+q+`::`).ReplaceAllLiteralString(text, to+"::")
}
