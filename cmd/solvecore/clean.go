package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type cleanCommand struct {
	all bool
}

func (c *cleanCommand) Name() string      { return "clean" }
func (c *cleanCommand) Args() string      { return "" }
func (c *cleanCommand) ShortHelp() string { return "remove cached package archives and extracted trees" }
func (c *cleanCommand) LongHelp() string {
	return `Remove everything under the package cache: downloaded archives, extracted
package trees, and stale lock sidecars.`
}

func (c *cleanCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.all, "all", true, "remove archives and extracted trees (currently the only mode)")
}

func (c *cleanCommand) Run(appCtx *Context, log logrus.FieldLogger, args []string) error {
	root := appCtx.PkgCacheDir()
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "clean: listing package cache")
	}

	var freed int
	for _, e := range entries {
		full := filepath.Join(root, e.Name())
		if err := os.RemoveAll(full); err != nil {
			log.WithError(err).WithField("path", full).Warn("clean: failed to remove cache entry")
			continue
		}
		freed++
	}
	fmt.Printf("removed %d cache entries from %s\n", freed, root)
	return nil
}
