package main

import (
	"context"
	"errors"
	"log"

	"github.com/mamba-org/solvecore/internal/solver"
)

// exitCodeFor maps a subcommand's returned error to the process exit code
// spec.md §6 assigns: 0 success, 1 any other runtime failure, 2 user
// cancellation, 3 unsatisfiable constraints. Nothing is logged for a nil
// error; otherwise a one-line summary goes to errLogger, matching the
// teacher's main.go "errLogger.Printf(\"%v\\n\", err)" convention.
func exitCodeFor(err error, errLogger *log.Logger) int {
	if err == nil {
		return 0
	}
	errLogger.Printf("%v\n", err)

	var unsolvable *solver.UnsolvableError
	if errors.As(err, &unsolvable) {
		return 3
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, errCancelled) {
		return 2
	}
	return 1
}

// errCancelled is returned by a command's Run when the user declined the
// transaction prompt, distinct from context.Canceled (a programmatic
// interruption) but mapped to the same exit code per spec.md §6.
var errCancelled = errors.New("solvecore: cancelled by user")
