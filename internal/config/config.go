// Package config reads the YAML description of a container: which
// distribution it is based on and the steps which materialize its root file
// system.
package config

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// DefaultTarInstallScript is run by TarInstall steps which do not specify a
// script.
const DefaultTarInstallScript = "./configure --prefix=/usr\nmake\nmake install\n"

// Container is the top-level configuration.
type Container struct {
	// Distribution is the native package backend: alpine or ubuntu.
	Distribution string      `yaml:"distribution"`
	GemSettings  GemSettings `yaml:"gem-settings"`
	Setup        []Step      `yaml:"setup"`
}

// GemSettings configures the gem/bundler steps.
type GemSettings struct {
	// InstallRuby installs ruby and its headers through the distribution.
	InstallRuby bool `yaml:"install-ruby"`
	// GemExe overrides the gem executable (default /usr/bin/gem).
	GemExe string `yaml:"gem-exe"`
	// UpdateGem runs “gem update --system” before installing gems. It only
	// has an effect when GemExe is unset.
	UpdateGem bool `yaml:"update-gem"`
}

// DefaultGemSettings returns the settings used when gem-settings is absent.
func DefaultGemSettings() GemSettings {
	return GemSettings{
		InstallRuby: true,
		UpdateGem:   true,
	}
}

// UnmarshalYAML applies the defaults for keys which are not present.
func (g *GemSettings) UnmarshalYAML(value *yaml.Node) error {
	type plain GemSettings
	raw := plain(DefaultGemSettings())
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*g = GemSettings(raw)
	return nil
}

// Tar extracts (a subdirectory of) an archive into the container.
type Tar struct {
	// URL is either a path relative to the project directory (starting with
	// a dot) or a remote URL.
	URL string `yaml:"url"`
	// Path is the absolute destination directory within the container.
	Path string `yaml:"path"`
	// Subdir selects the archive subtree to extract. "." extracts everything.
	Subdir string `yaml:"subdir"`
}

// TarInstall extracts an archive into a temporary directory and runs Script
// within it.
type TarInstall struct {
	URL string `yaml:"url"`
	// Subdir is the directory (relative to the archive root) to run the script
	// in. If empty, the archive must contain exactly one top-level entry.
	Subdir string `yaml:"subdir"`
	Script string `yaml:"script"`
}

// GemInstall installs gems by name.
type GemInstall struct {
	Packages []string
}

// GemBundle runs “bundle install” for a Gemfile.
type GemBundle struct {
	Gemfile     string   `yaml:"gemfile"`
	Without     []string `yaml:"without"`
	TrustPolicy string   `yaml:"trust-policy"`
}

// Step is one build step. Exactly one field is set.
type Step struct {
	Tar        *Tar
	TarInstall *TarInstall
	GemInstall *GemInstall
	GemBundle  *GemBundle
}

// Kind returns the name of the step as written in the configuration.
func (s *Step) Kind() string {
	switch {
	case s.Tar != nil:
		return "Tar"
	case s.TarInstall != nil:
		return "TarInstall"
	case s.GemInstall != nil:
		return "GemInstall"
	case s.GemBundle != nil:
		return "GemBundle"
	}
	return ""
}

// UnmarshalYAML decodes the single-key form, e.g.:
//
//	- Tar: {url: ./pkg.tar.gz, path: /opt, subdir: pkg-1.0}
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: a step must be a mapping with exactly one key", value.Line)
	}
	key, body := value.Content[0].Value, value.Content[1]
	switch key {
	case "Tar":
		t := Tar{Path: "/", Subdir: "."}
		if err := body.Decode(&t); err != nil {
			return err
		}
		if t.URL == "" {
			return fmt.Errorf("line %d: Tar: url must be set", body.Line)
		}
		if !filepath.IsAbs(t.Path) {
			return fmt.Errorf("line %d: Tar: path %q must be absolute", body.Line, t.Path)
		}
		s.Tar = &t

	case "TarInstall":
		t := TarInstall{Script: DefaultTarInstallScript}
		if err := body.Decode(&t); err != nil {
			return err
		}
		if t.URL == "" {
			return fmt.Errorf("line %d: TarInstall: url must be set", body.Line)
		}
		s.TarInstall = &t

	case "GemInstall":
		var g GemInstall
		if err := body.Decode(&g.Packages); err != nil {
			return err
		}
		s.GemInstall = &g

	case "GemBundle":
		g := GemBundle{Gemfile: "Gemfile"}
		if err := body.Decode(&g); err != nil {
			return err
		}
		s.GemBundle = &g

	default:
		return fmt.Errorf("line %d: unknown step %q", value.Line, key)
	}
	return nil
}

// Parse parses the container configuration in b.
func Parse(b []byte) (*Container, error) {
	c := Container{GemSettings: DefaultGemSettings()}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	switch c.Distribution {
	case "", "alpine", "ubuntu":
	default:
		return nil, xerrors.Errorf("unsupported distribution %q (want alpine or ubuntu)", c.Distribution)
	}
	return &c, nil
}

// Load reads and parses the configuration file fn.
func Load(fn string) (*Container, error) {
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", fn, err)
	}
	return c, nil
}
