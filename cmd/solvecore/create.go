package main

import (
	"flag"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/solver"
)

type createCommand struct {
	prefix   string
	name     string
	channels channelList
}

func (c *createCommand) Name() string      { return "create" }
func (c *createCommand) Args() string      { return "<spec>..." }
func (c *createCommand) ShortHelp() string { return "create a new prefix with the given packages" }
func (c *createCommand) LongHelp() string {
	return `Create a fresh prefix (conda-meta/ magic directory) and solve/install the given specs into it.`
}

func (c *createCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefix, "p", "", "target prefix path")
	fs.StringVar(&c.name, "n", "", "target environment name")
	fs.Var(&c.channels, "c", "channel subdir URL (repeatable)")
}

func (c *createCommand) Run(appCtx *Context, log logrus.FieldLogger, args []string) error {
	prefixPath := resolvePrefix(appCtx, c.prefix, c.name)

	if _, err := os.Stat(prefixPath); err == nil {
		return errors.Errorf("create: prefix %q already exists", prefixPath)
	}
	if err := os.MkdirAll(prefixPath, 0o755); err != nil {
		return errors.Wrapf(err, "create: making prefix %q", prefixPath)
	}
	// conda-meta/ is the magic directory marking a conda environment, per
	// spec.md §6; an empty prefix has no records yet so it's created here
	// rather than left to the first WriteRecord call.
	if err := os.MkdirAll(prefixPath+"/conda-meta", 0o755); err != nil {
		return errors.Wrapf(err, "create: making conda-meta in %q", prefixPath)
	}

	req := &solver.Request{}
	for _, spec := range args {
		req.Install(spec)
	}

	return runTransaction(appCtx, log, prefixPath, c.channels.orDefault(), *req, 0, args, nil, "solvecore create "+strings.Join(args, " "))
}
