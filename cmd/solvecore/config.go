package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"
)

// configCommand reports the effective configuration resolved from
// environment variables (spec.md §6), the read-only counterpart of a real
// config command's ability to mutate a user config file — out of scope
// here, since solvecore's Context has no persisted config layer, only
// environment-derived defaults.
type configCommand struct{}

func (c *configCommand) Name() string      { return "config" }
func (c *configCommand) Args() string      { return "" }
func (c *configCommand) ShortHelp() string { return "show the effective configuration" }
func (c *configCommand) LongHelp() string {
	return `Print the configuration solvecore resolved from its environment variables.`
}

func (c *configCommand) Register(fs *flag.FlagSet) {}

func (c *configCommand) Run(appCtx *Context, log logrus.FieldLogger, args []string) error {
	fmt.Printf("root_prefix            : %s\n", appCtx.RootPrefix)
	fmt.Printf("envs_dirs              : %v\n", appCtx.EnvsDirs)
	fmt.Printf("http_timeout           : %s\n", appCtx.HTTPTimeout)
	fmt.Printf("max_parallel_downloads : %d\n", appCtx.MaxParallelDownloads)
	fmt.Printf("ssl_verify             : %t\n", appCtx.SSLVerify)
	fmt.Printf("no_progress            : %t\n", appCtx.NoProgress)
	fmt.Printf("always_yes             : %t\n", appCtx.AlwaysYes)
	return nil
}
