// Package gem installs Ruby gems into the container, either by name or from
// a Gemfile using bundler.
package gem

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/distr1/rootfs/internal/build"
	"github.com/distr1/rootfs/internal/config"
	"github.com/distr1/rootfs/internal/distrib"
	"github.com/distr1/rootfs/internal/trace"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

const (
	DefaultGemExe = "/usr/bin/gem"
	BinDir        = "/usr/local/bin"

	// gem versions starting with 2.0 accept --no-document.
	noDocumentVersion = 2.0
)

var validTrustPolicies = []string{"LowSecurity", "MediumSecurity", "HighSecurity"}

var (
	versionRe = regexp.MustCompile(`^(\d+?\.\d+?)\.`)
	gitRe     = regexp.MustCompile(`(git .*? do)|(:(git|github|gist|bitbucket) =>)|(git_source\(.*?\))`)
)

func gemExe(c *build.Ctx) string {
	if exe := c.GemSettings.GemExe; exe != "" {
		return exe
	}
	return DefaultGemExe
}

func gemVersion(c *build.Ctx) (float64, error) {
	cmd, err := c.Command(gemExe(c), "--version")
	if err != nil {
		return 0, err
	}
	out, err := c.Capture(cmd)
	if err != nil {
		return 0, xerrors.Errorf("getting gem version: %w", err)
	}
	m := versionRe.FindSubmatch(bytes.TrimSpace(out))
	if m == nil {
		return 0, xerrors.Errorf("gem version not found in %q", out)
	}
	v, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, xerrors.Errorf("parsing gem version: %w", err)
	}
	return v, nil
}

func docArgs(version float64) []string {
	if version < noDocumentVersion {
		return []string{"--no-rdoc", "--no-ri"}
	}
	return []string{"--no-document"}
}

// noDocArgs returns the flags which disable documentation generation. An
// updated gem always understands --no-document.
func noDocArgs(c *build.Ctx) ([]string, error) {
	if c.GemSettings.UpdateGem {
		return []string{"--no-document"}, nil
	}
	v, err := gemVersion(c)
	if err != nil {
		return nil, err
	}
	return docArgs(v), nil
}

func cacheDir(c *build.Ctx) (string, error) {
	cmd, err := c.Command(gemExe(c), "env", "gemdir")
	if err != nil {
		return "", err
	}
	out, err := c.Capture(cmd)
	if err != nil {
		return "", xerrors.Errorf("getting gem dir: %w", err)
	}
	return filepath.Join(strings.TrimSpace(string(out)), "cache"), nil
}

// requiresGit reports whether gemfile (relative to c.WorkDir) references gems
// from git repositories.
func requiresGit(c *build.Ctx, gemfile string) (bool, error) {
	fn := filepath.Join(c.WorkDir, gemfile)
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return false, xerrors.Errorf("reading Gemfile: %w", err)
	}
	return gitRe.Match(b), nil
}

func scanFeatures(c *build.Ctx, bundle *config.GemBundle) ([]distrib.Package, error) {
	res := []distrib.Package{distrib.BuildEssential}
	if c.GemSettings.InstallRuby {
		res = append(res, distrib.Ruby, distrib.RubyDev)
	}
	res = append(res, distrib.Bundler)
	if bundle != nil {
		git, err := requiresGit(c, bundle.Gemfile)
		if err != nil {
			return nil, err
		}
		if git {
			res = append(res, distrib.Git)
		}
	}
	return res, nil
}

// EnsurePackages installs pkgs through d, falling back to gem for packages d
// does not provide.
func EnsurePackages(d distrib.Distribution, c *build.Ctx, pkgs []distrib.Package) error {
	leftover, err := d.EnsurePackages(c, pkgs)
	if err != nil {
		return err
	}
	for _, p := range leftover {
		switch p {
		case distrib.Bundler:
			if err := SetupBundler(c); err != nil {
				return err
			}
		default:
			return xerrors.Errorf("%s does not provide %v", d.Name(), p)
		}
	}
	return nil
}

// Install installs the named gems (and the toolchain they need) into BinDir.
func Install(d distrib.Distribution, c *build.Ctx, step *config.GemInstall) error {
	ev := trace.Event("step", "GemInstall", "packages", strings.Join(step.Packages, " "))
	defer ev.Done()

	features, err := scanFeatures(c, nil)
	if err != nil {
		return err
	}
	if err := EnsurePackages(d, c, features); err != nil {
		return err
	}
	if err := Configure(c); err != nil {
		return err
	}
	if len(step.Packages) == 0 {
		return nil
	}
	noDoc, err := noDocArgs(c)
	if err != nil {
		return err
	}
	args := append([]string{"install", "--bindir", BinDir}, noDoc...)
	cmd, err := c.Command(gemExe(c), append(args, step.Packages...)...)
	if err != nil {
		return err
	}
	return c.Run(cmd)
}

// Bundle runs “bundle install” for step.Gemfile, installing binstubs into
// BinDir.
func Bundle(d distrib.Distribution, c *build.Ctx, step *config.GemBundle) error {
	ev := trace.Event("step", "GemBundle", "gemfile", step.Gemfile)
	defer ev.Done()

	if tp := step.TrustPolicy; tp != "" && !validTrustPolicy(tp) {
		return xerrors.Errorf("GemBundle: trust-policy must be one of %s, not %q",
			strings.Join(validTrustPolicies, ", "), tp)
	}
	features, err := scanFeatures(c, step)
	if err != nil {
		return err
	}
	if err := EnsurePackages(d, c, features); err != nil {
		return err
	}
	if err := Configure(c); err != nil {
		return err
	}

	args := []string{"install", "--system", "--binstubs", BinDir, "--gemfile", step.Gemfile}
	if len(step.Without) > 0 {
		args = append(args, "--without")
		args = append(args, step.Without...)
	}
	if step.TrustPolicy != "" {
		args = append(args, "--trust-policy", step.TrustPolicy)
	}
	cmd, err := c.Command("bundle", args...)
	if err != nil {
		return err
	}
	return c.Run(cmd)
}

func validTrustPolicy(tp string) bool {
	for _, v := range validTrustPolicies {
		if tp == v {
			return true
		}
	}
	return false
}

// Configure updates the default gem executable (if configured to) and
// registers the gem cache as a shared cache directory.
func Configure(c *build.Ctx) error {
	if c.GemSettings.GemExe == "" && c.GemSettings.UpdateGem {
		v, err := gemVersion(c)
		if err != nil {
			return err
		}
		args := append([]string{"update", "--system"}, docArgs(v)...)
		cmd, err := c.Command(DefaultGemExe, args...)
		if err != nil {
			return err
		}
		// Debian-based distributions refuse to update gem without it.
		cmd.Env = append(cmd.Env, "REALLY_GEM_UPDATE_SYSTEM=1")
		if err := c.Run(cmd); err != nil {
			return err
		}
	}
	dir, err := cacheDir(c)
	if err != nil {
		return err
	}
	return c.AddCacheDir(dir, "gems-cache")
}

// SetupBundler installs bundler using gem.
func SetupBundler(c *build.Ctx) error {
	if err := Configure(c); err != nil {
		return err
	}
	noDoc, err := noDocArgs(c)
	if err != nil {
		return err
	}
	cmd, err := c.Command(gemExe(c), append([]string{"install", "bundler"}, noDoc...)...)
	if err != nil {
		return err
	}
	return c.Run(cmd)
}

// List writes the output of “gem list --local” to gems-list.txt in
// c.ContainerDir.
func List(c *build.Ctx) error {
	cmd, err := c.Command(gemExe(c), "list", "--local")
	if err != nil {
		return err
	}
	out, err := c.Capture(cmd)
	if err != nil {
		return err
	}
	fn := filepath.Join(c.ContainerDir, "gems-list.txt")
	if err := renameio.WriteFile(fn, out, 0644); err != nil {
		return xerrors.Errorf("dumping gem package list: %w", err)
	}
	return nil
}
