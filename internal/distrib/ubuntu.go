package distrib

import (
	"github.com/distr1/rootfs/internal/build"
)

// NewUbuntu returns a Distribution installing packages with apt-get. Bundler
// is returned as leftover and installed through gem.
func NewUbuntu() Distribution {
	var updated bool
	return &packageManager{backend: backend{
		name: "ubuntu",
		native: map[Package]string{
			BuildEssential: "build-essential",
			Ruby:           "ruby",
			RubyDev:        "ruby-dev",
			Git:            "git",
		},
		cachePath: "/var/cache/apt/archives",
		cacheName: "apt-cache",
		install: func(c *build.Ctx, names []string) error {
			if !updated {
				if err := aptGet(c, "update"); err != nil {
					return err
				}
				updated = true
			}
			return aptGet(c, append([]string{"install", "-y", "--no-install-recommends"}, names...)...)
		},
	}}
}

func aptGet(c *build.Ctx, args ...string) error {
	cmd, err := c.Command("apt-get", args...)
	if err != nil {
		return err
	}
	cmd.Env = append(cmd.Env, "DEBIAN_FRONTEND=noninteractive")
	return c.Run(cmd)
}
