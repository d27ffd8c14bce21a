package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/prefix"
)

type listCommand struct {
	prefixFlag string
	name       string
}

func (c *listCommand) Name() string      { return "list" }
func (c *listCommand) Args() string      { return "" }
func (c *listCommand) ShortHelp() string { return "list packages installed in a prefix" }
func (c *listCommand) LongHelp() string  { return `List every package recorded in a prefix's conda-meta/.` }

func (c *listCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefixFlag, "p", "", "target prefix path")
	fs.StringVar(&c.name, "n", "", "target environment name")
}

func (c *listCommand) Run(appCtx *Context, log logrus.FieldLogger, args []string) error {
	prefixPath := resolvePrefix(appCtx, c.prefixFlag, c.name)
	recs, err := prefix.ListRecords(prefixPath)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Printf("%-30s %-15s %s\n", r.Name, r.Version, r.Build)
	}
	return nil
}
