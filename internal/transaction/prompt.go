package transaction

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompt renders a summary of t's classification and asks for
// confirmation on stdio, per spec.md §4.F's prompt(stdio) -> bool
// contract. alwaysYes short-circuits to true without reading input.
func (t *Transaction) Prompt(in io.Reader, out io.Writer, alwaysYes bool) bool {
	counts := t.Classify()
	fmt.Fprintln(out, "Transaction summary:")
	for _, a := range []Action{ActionInstall, ActionRemove, ActionUpdate, ActionDowngrade, ActionReinstall, ActionChange} {
		if n := counts[a]; n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", a, n)
		}
	}
	if alwaysYes {
		fmt.Fprintln(out, "Proceed ([y]/n)? y")
		return true
	}

	fmt.Fprint(out, "Proceed ([y]/n)? ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "" || line == "y" || line == "yes"
}
