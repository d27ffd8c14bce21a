package main

import (
	"flag"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/solver"
)

type updateCommand struct {
	prefix    string
	name      string
	channels  channelList
	all       bool
	cleanDeps bool
}

func (c *updateCommand) Name() string      { return "update" }
func (c *updateCommand) Args() string      { return "[<spec>...]" }
func (c *updateCommand) ShortHelp() string { return "update one, many, or all installed packages" }
func (c *updateCommand) LongHelp() string {
	return `Update the named packages (or every installed package with -all) to the newest version the channels allow.`
}

func (c *updateCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "target prefix path")
	fs.StringVar(&c.name, "n", "", "target environment name")
	fs.Var(&c.channels, "c", "channel subdir URL (repeatable)")
	fs.BoolVar(&c.all, "all", false, "update every installed package")
	fs.BoolVar(&c.cleanDeps, "prune", false, "also remove orphaned dependencies")
}

func (c *updateCommand) Run(appCtx *Context, log logrus.FieldLogger, args []string) error {
	prefixPath := resolvePrefix(appCtx, c.prefix, c.name)

	req := &solver.Request{}
	if c.all {
		req.UpdateAll(c.cleanDeps)
	} else {
		for _, spec := range args {
			req.Update(spec)
		}
	}

	return runTransaction(appCtx, log, prefixPath, c.channels.orDefault(), *req, 0, args, nil, "solvecore update "+strings.Join(args, " "))
}
