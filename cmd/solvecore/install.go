package main

import (
	"flag"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/solver"
)

type installCommand struct {
	prefix   string
	name     string
	channels channelList
}

func (c *installCommand) Name() string      { return "install" }
func (c *installCommand) Args() string      { return "<spec>..." }
func (c *installCommand) ShortHelp() string { return "install one or more packages into a prefix" }
func (c *installCommand) LongHelp() string {
	return `Solve and install one or more match-specs into a prefix, creating it if absent.`
}

func (c *installCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "target prefix path")
	fs.StringVar(&c.name, "n", "", "target environment name")
	fs.Var(&c.channels, "c", "channel subdir URL (repeatable)")
}

func (c *installCommand) Run(appCtx *Context, log logrus.FieldLogger, args []string) error {
	prefixPath := resolvePrefix(appCtx, c.prefix, c.name)

	req := &solver.Request{}
	for _, spec := range args {
		req.Install(spec)
	}

	return runTransaction(appCtx, log, prefixPath, c.channels.orDefault(), *req, 0, args, nil, "solvecore install "+strings.Join(args, " "))
}
