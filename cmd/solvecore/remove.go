package main

import (
	"flag"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/solver"
)

type removeCommand struct {
	prefix    string
	name      string
	cleanDeps bool
}

func (c *removeCommand) Name() string      { return "remove" }
func (c *removeCommand) Args() string      { return "<spec>..." }
func (c *removeCommand) ShortHelp() string { return "remove one or more packages from a prefix" }
func (c *removeCommand) LongHelp() string {
	return `Remove the named packages from a prefix. A removed package's dependencies are left
in place unless -prune is given.`
}

func (c *removeCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "target prefix path")
	fs.StringVar(&c.name, "n", "", "target environment name")
	fs.BoolVar(&c.cleanDeps, "prune", false, "also remove now-orphaned dependencies")
}

func (c *removeCommand) Run(appCtx *Context, log logrus.FieldLogger, args []string) error {
	prefixPath := resolvePrefix(appCtx, c.prefix, c.name)

	req := &solver.Request{}
	for _, spec := range args {
		req.Remove(spec, c.cleanDeps)
	}

	// A remove never needs a channel: every candidate it might fall back
	// on is already installed. An empty channel list keeps runTransaction
	// from doing any network I/O for this command.
	return runTransaction(appCtx, log, prefixPath, nil, *req, 0, nil, args, "solvecore remove "+strings.Join(args, " "))
}
