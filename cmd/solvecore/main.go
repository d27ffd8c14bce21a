// Command solvecore is a thin CLI wiring layer over the pool, repo loader,
// solver, package cache, fetcher, and transaction packages. It is not a
// rewrite of the teacher's project-manifest workflow: the command surface
// (create/install/update/remove/list/info/clean/config) follows spec.md
// §6, but the dispatch shape — a command interface registered against a
// flag.FlagSet, not a third-party CLI framework — is the teacher's
// cmd/dep/main.go pattern.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
)

// command is one solvecore subcommand, mirroring the teacher's command
// interface in cmd/dep/main.go.
type command interface {
	Name() string
	Args() string
	ShortHelp() string
	LongHelp() string
	Register(*flag.FlagSet)
	Run(ctx *Context, log logrus.FieldLogger, args []string) error
}

func main() {
	c := &Config{
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Env:    os.Environ(),
	}
	os.Exit(c.Run())
}

// Config specifies one solvecore process invocation.
type Config struct {
	Args           []string
	Env            []string
	Stdout, Stderr io.Writer
}

// Run dispatches to the named subcommand and returns the process exit
// code per spec.md §6: 0 success, 1 runtime failure, 2 cancellation, 3
// unsatisfiable constraints.
func (c *Config) Run() int {
	commands := []command{
		&createCommand{},
		&installCommand{},
		&updateCommand{},
		&removeCommand{},
		&listCommand{},
		&infoCommand{},
		&cleanCommand{},
		&configCommand{},
	}

	errLogger := log.New(c.Stderr, "", 0)

	usage := func() {
		errLogger.Println("solvecore is a conda-compatible package manager core")
		errLogger.Println()
		errLogger.Println("Usage: solvecore <command> [flags] [args]")
		errLogger.Println()
		errLogger.Println("Commands:")
		errLogger.Println()
		w := tabwriter.NewWriter(c.Stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
		}
		w.Flush()
	}

	cmdName, printCommandHelp, exit := parseArgs(c.Args)
	if exit {
		usage()
		return 1
	}

	for _, cmd := range commands {
		if cmd.Name() != cmdName {
			continue
		}

		fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		fs.SetOutput(c.Stderr)
		verbose := fs.Bool("v", false, "enable verbose logging")
		cmd.Register(fs)
		resetUsage(errLogger, fs, cmdName, cmd.Args(), cmd.LongHelp())

		if printCommandHelp {
			fs.Usage()
			return 1
		}
		if err := fs.Parse(c.Args[2:]); err != nil {
			return 1
		}

		appCtx := NewContext(c.Env)
		fieldLog := newLogger(c.Stderr, *verbose)

		err := cmd.Run(appCtx, fieldLog, fs.Args())
		return exitCodeFor(err, errLogger)
	}

	errLogger.Printf("solvecore: %s: no such command\n", cmdName)
	usage()
	return 1
}

func newLogger(out io.Writer, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.Out = out
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

func resetUsage(logger *log.Logger, fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags  bool
		flagBlock bytes.Buffer
		fw        = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		def := f.DefValue
		if def == "" {
			def = "<none>"
		}
		fmt.Fprintf(fw, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, def)
	})
	fw.Flush()
	fs.Usage = func() {
		logger.Printf("Usage: solvecore %s %s\n", name, args)
		logger.Println()
		logger.Println(strings.TrimSpace(longHelp))
		if hasFlags {
			logger.Println()
			logger.Println("Flags:")
			logger.Println()
			logger.Println(flagBlock.String())
		}
	}
}

// parseArgs determines the subcommand name and whether help was requested,
// matching the teacher's main.go parseArgs.
func parseArgs(args []string) (cmdName string, printCmdUsage bool, exit bool) {
	isHelp := func(a string) bool {
		return strings.Contains(strings.ToLower(a), "help") || strings.ToLower(a) == "-h"
	}
	switch len(args) {
	case 0, 1:
		exit = true
	case 2:
		if isHelp(args[1]) {
			exit = true
		}
		cmdName = args[1]
	default:
		if isHelp(args[1]) {
			cmdName = args[2]
			printCmdUsage = true
		} else {
			cmdName = args[1]
		}
	}
	return cmdName, printCmdUsage, exit
}
