// Package distrib installs native packages through the package manager of the
// distribution the container is based on.
package distrib

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/distr1/rootfs/internal/build"
	"github.com/distr1/rootfs/internal/trace"
	"golang.org/x/xerrors"
)

// Package is a distribution-independent capability which build steps require.
type Package int

const (
	BuildEssential Package = iota
	Ruby
	RubyDev
	Bundler
	Git
)

var packageNames = map[Package]string{
	BuildEssential: "BuildEssential",
	Ruby:           "Ruby",
	RubyDev:        "RubyDev",
	Bundler:        "Bundler",
	Git:            "Git",
}

func (p Package) String() string {
	if name, ok := packageNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Package(%d)", int(p))
}

// Distribution is a native package backend.
type Distribution interface {
	Name() string

	// EnsurePackages installs the native packages providing pkgs, unless
	// they were installed before. Packages which the distribution does not
	// provide natively are returned, for the caller to install by other
	// means.
	EnsurePackages(c *build.Ctx, pkgs []Package) (leftover []Package, _ error)
}

// ForName returns the Distribution called name.
func ForName(name string) (Distribution, error) {
	switch name {
	case "alpine":
		return NewAlpine(), nil
	case "ubuntu":
		return NewUbuntu(), nil
	}
	return nil, xerrors.Errorf("unknown distribution %q", name)
}

// backend holds what differs between package managers.
type backend struct {
	name      string
	native    map[Package]string // packages not listed here are leftover
	cachePath string             // within the container
	cacheName string
	install   func(c *build.Ctx, names []string) error
}

// packageManager tracks which packages were installed during this build.
type packageManager struct {
	backend
	installed map[string]bool
}

func (pm *packageManager) Name() string { return pm.name }

func (pm *packageManager) EnsurePackages(c *build.Ctx, pkgs []Package) ([]Package, error) {
	var (
		leftover []Package
		missing  []string
		seen     = make(map[string]bool)
	)
	for _, p := range pkgs {
		name, ok := pm.native[p]
		if !ok {
			leftover = append(leftover, p)
			continue
		}
		if pm.installed[name] || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return leftover, nil
	}
	sort.Strings(missing)

	ev := trace.Event("distrib", "EnsurePackages", "distribution", pm.name, "packages", strings.Join(missing, " "))
	defer ev.Done()

	if err := c.AddCacheDir(pm.cachePath, pm.cacheName); err != nil {
		return nil, err
	}
	log.Printf("%s: installing %v", pm.name, missing)
	if err := pm.install(c, missing); err != nil {
		return nil, xerrors.Errorf("%s: installing %v: %w", pm.name, missing, err)
	}
	if pm.installed == nil {
		pm.installed = make(map[string]bool)
	}
	for _, name := range missing {
		pm.installed[name] = true
	}
	return leftover, nil
}
