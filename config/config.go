// Package config gathers the settings of a run: built-in defaults, an
// optional YAML file, the environment (including a .env file) and flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"fortio.org/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ldemailly/singleheader/pattern"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "SINGLEHEADER_"

// Config is the full set of settings for one amalgamation.
type Config struct {
	Entry           string   `yaml:"entry"`
	IncludeRoot     string   `yaml:"include_root"`
	Tag             string   `yaml:"tag"`
	Matcher         string   `yaml:"matcher"` // strict or legacy
	Anchor          string   `yaml:"anchor"`
	Library         string   `yaml:"library"`
	SourceNamespace string   `yaml:"source_namespace"`
	Namespace       string   `yaml:"namespace"`
	Transitive      bool     `yaml:"transitive"`
	Banner          string   `yaml:"banner"`
	License         []string `yaml:"license"`
	Output          string   `yaml:"output"`
	Dot             string   `yaml:"dot"`
}

// Default returns the settings used for the library's own tree.
func Default() Config {
	return Config{
		Entry:           "CLI/CLI.hpp",
		IncludeRoot:     "include",
		Tag:             "CLI11",
		Matcher:         pattern.KindStrict,
		Anchor:          "namespace",
		Library:         "CLI11",
		SourceNamespace: "CLI",
	}
}

// LoadFile overlays the YAML file at path onto cfg. Unknown keys are errors.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
	}
	log.LogVf("Loaded config from %s", path)
	return nil
}

// LoadDotEnv loads a .env file from the working directory if there is one.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Ignoring .env: %v", err)
	}
}

// ApplyEnv overlays SINGLEHEADER_* variables onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	str := map[string]*string{
		"ENTRY":            &cfg.Entry,
		"INCLUDE":          &cfg.IncludeRoot,
		"TAG":              &cfg.Tag,
		"MATCHER":          &cfg.Matcher,
		"ANCHOR":           &cfg.Anchor,
		"LIBRARY":          &cfg.Library,
		"SOURCE_NAMESPACE": &cfg.SourceNamespace,
		"NAMESPACE":        &cfg.Namespace,
		"OUTPUT":           &cfg.Output,
		"DOT":              &cfg.Dot,
	}
	for k, dst := range str {
		if v := strings.TrimSpace(getenv(EnvPrefix + k)); v != "" {
			*dst = v
		}
	}
	if v := strings.TrimSpace(getenv(EnvPrefix + "TRANSITIVE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTRANSITIVE=%q: %w", EnvPrefix, v, err)
		}
		cfg.Transitive = b
	}
	return nil
}

// Validate checks that cfg can drive a run.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Entry) == "" {
		errs = append(errs, errors.New("entry header is required"))
	}
	if strings.TrimSpace(c.IncludeRoot) == "" {
		errs = append(errs, errors.New("include root is required"))
	}
	if strings.TrimSpace(c.Tag) == "" {
		errs = append(errs, errors.New("marker tag is required"))
	}
	if _, err := pattern.New(c.Matcher, c.Tag); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Anchor) == "" {
		errs = append(errs, errors.New("body anchor is required"))
	}
	if c.Banner != "" {
		if _, err := template.New("banner").Parse(c.Banner); err != nil {
			errs = append(errs, fmt.Errorf("invalid banner template: %w", err))
		}
	}
	return errors.Join(errs...)
}
