package distrib

import "github.com/distr1/rootfs/internal/build"

// NewAlpine returns a Distribution installing packages with apk.
func NewAlpine() Distribution {
	return &packageManager{backend: backend{
		name: "alpine",
		native: map[Package]string{
			BuildEssential: "build-base",
			Ruby:           "ruby",
			RubyDev:        "ruby-dev",
			Bundler:        "ruby-bundler",
			Git:            "git",
		},
		cachePath: "/var/cache/apk",
		cacheName: "alpine-cache",
		install: func(c *build.Ctx, names []string) error {
			cmd, err := c.Command("apk", append([]string{"add"}, names...)...)
			if err != nil {
				return err
			}
			return c.Run(cmd)
		},
	}}
}
