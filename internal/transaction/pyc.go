package transaction

import (
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// PycCompiler feeds newly linked python source paths to a single long-lived
// python subprocess over stdin, per spec.md §4.F's pyc compilation hook.
// Failures are non-fatal and logged, never aborting the transaction.
type PycCompiler struct {
	PythonExe string
	log       logrus.FieldLogger
}

// NewPycCompiler constructs a compiler bound to the python interpreter
// discovered in the target prefix.
func NewPycCompiler(pythonExe string, log logrus.FieldLogger) *PycCompiler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PycCompiler{PythonExe: pythonExe, log: log}
}

// CompileAll compiles every .py path in sources to .pyc via `python -m
// py_compile`, fed one path per line over stdin to a single subprocess
// rather than one process per file.
func (c *PycCompiler) CompileAll(sources []string) {
	if len(sources) == 0 {
		return
	}
	cmd := exec.Command(c.PythonExe, "-m", "py_compile", "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.log.WithError(err).Warn("transaction: pyc compile: stdin pipe")
		return
	}
	if err := cmd.Start(); err != nil {
		c.log.WithError(err).Warn("transaction: pyc compile: start")
		return
	}

	if err := drainTo(stdin, strings.NewReader(strings.Join(sources, "\n")+"\n")); err != nil {
		c.log.WithError(err).Warn("transaction: pyc compile: write sources")
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		c.log.WithError(err).Warn("transaction: pyc compile: non-zero exit")
	}
}
