package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/prefix"
)

type infoCommand struct {
	prefixFlag string
	name       string
}

func (c *infoCommand) Name() string      { return "info" }
func (c *infoCommand) Args() string      { return "" }
func (c *infoCommand) ShortHelp() string { return "show prefix and package count information" }
func (c *infoCommand) LongHelp() string {
	return `Report whether a path is a valid conda environment and summarize its contents.`
}

func (c *infoCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.prefixFlag, "p", "", "target prefix path")
	fs.StringVar(&c.name, "n", "", "target environment name")
}

func (c *infoCommand) Run(appCtx *Context, log logrus.FieldLogger, args []string) error {
	prefixPath := resolvePrefix(appCtx, c.prefixFlag, c.name)

	fmt.Printf("root prefix     : %s\n", appCtx.RootPrefix)
	fmt.Printf("active prefix   : %s\n", prefixPath)

	magic := filepath.Join(prefixPath, "conda-meta")
	fi, err := os.Stat(magic)
	if err != nil || !fi.IsDir() {
		fmt.Println("environment     : not a conda environment (conda-meta/ missing)")
		return nil
	}

	recs, err := prefix.ListRecords(prefixPath)
	if err != nil {
		return err
	}
	fmt.Printf("packages        : %d\n", len(recs))
	return nil
}
