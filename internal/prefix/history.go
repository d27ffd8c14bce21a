package prefix

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// HistoryEntry is one user request recorded in conda-meta/history: a
// command invocation plus the dists it linked/unlinked and the specs the
// user asked for, per spec.md §4.F.
type HistoryEntry struct {
	Timestamp     time.Time
	Command       string
	ToolVersion   string
	Unlinked      []string // "-<dist>" lines
	Linked        []string // "+<dist>" lines
	UpdateSpecs   []string
	RemoveSpecs   []string
	NeuteredSpecs []string
}

func historyPath(prefixPath string) string {
	return filepath.Join(metaDir(prefixPath), "history")
}

// AppendHistory appends entry to conda-meta/history, per spec.md §4.F: the
// file is append-only, one entry per successful transaction execute().
func AppendHistory(prefixPath string, entry HistoryEntry) error {
	if err := os.MkdirAll(metaDir(prefixPath), 0o755); err != nil {
		return errors.Wrap(err, "prefix: append history")
	}
	f, err := os.OpenFile(historyPath(prefixPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "prefix: open history")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "==> %s <==\n", entry.Timestamp.Format(historyTimeFormat))
	fmt.Fprintf(w, "# cmd: %s\n", entry.Command)
	if entry.ToolVersion != "" {
		fmt.Fprintf(w, "# conda version: %s\n", entry.ToolVersion)
	}
	for _, dist := range entry.Unlinked {
		fmt.Fprintf(w, "-%s\n", dist)
	}
	for _, dist := range entry.Linked {
		fmt.Fprintf(w, "+%s\n", dist)
	}
	if len(entry.UpdateSpecs) > 0 {
		fmt.Fprintf(w, "# update specs: %s\n", formatSpecList(entry.UpdateSpecs))
	}
	if len(entry.RemoveSpecs) > 0 {
		fmt.Fprintf(w, "# remove specs: %s\n", formatSpecList(entry.RemoveSpecs))
	}
	if len(entry.NeuteredSpecs) > 0 {
		fmt.Fprintf(w, "# neutered specs: %s\n", formatSpecList(entry.NeuteredSpecs))
	}
	return w.Flush()
}

func formatSpecList(specs []string) string {
	return "[" + strings.Join(quoteAll(specs), ", ") + "]"
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = `'` + s + `'`
	}
	return out
}

// ReadHistory parses conda-meta/history into its sequence of entries, per
// spec.md §4.F. A missing file yields an empty history, not an error: a
// freshly created prefix has none yet.
func ReadHistory(prefixPath string) ([]HistoryEntry, error) {
	f, err := os.Open(historyPath(prefixPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "prefix: read history")
	}
	defer f.Close()

	var entries []HistoryEntry
	var cur *HistoryEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "==> ") && strings.HasSuffix(line, " <=="):
			if cur != nil {
				entries = append(entries, *cur)
			}
			ts, _ := time.Parse(historyTimeFormat, strings.TrimSuffix(strings.TrimPrefix(line, "==> "), " <=="))
			cur = &HistoryEntry{Timestamp: ts}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "# cmd: "):
			cur.Command = strings.TrimPrefix(line, "# cmd: ")
		case strings.HasPrefix(line, "# conda version: "):
			cur.ToolVersion = strings.TrimPrefix(line, "# conda version: ")
		case strings.HasPrefix(line, "# update specs: "):
			cur.UpdateSpecs = parseSpecList(strings.TrimPrefix(line, "# update specs: "))
		case strings.HasPrefix(line, "# remove specs: "):
			cur.RemoveSpecs = parseSpecList(strings.TrimPrefix(line, "# remove specs: "))
		case strings.HasPrefix(line, "# neutered specs: "):
			cur.NeuteredSpecs = parseSpecList(strings.TrimPrefix(line, "# neutered specs: "))
		case strings.HasPrefix(line, "-"):
			cur.Unlinked = append(cur.Unlinked, line[1:])
		case strings.HasPrefix(line, "+"):
			cur.Linked = append(cur.Linked, line[1:])
		}
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "prefix: scan history")
	}
	return entries, nil
}

func parseSpecList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ", ") {
		out = append(out, strings.Trim(part, "'"))
	}
	return out
}

// RequestedSpecsMap replays history into the last-writer-wins projection
// spec.md §4.F hands future solves as Keep jobs: for every name ever named
// in an update or remove spec, the most recent entry to mention it decides
// whether it's still requested (update) or was dropped (remove).
func RequestedSpecsMap(entries []HistoryEntry) map[string]string {
	out := make(map[string]string)
	for _, e := range entries {
		for _, spec := range e.UpdateSpecs {
			out[specName(spec)] = spec
		}
		for _, spec := range e.RemoveSpecs {
			delete(out, specName(spec))
		}
		for _, spec := range e.NeuteredSpecs {
			out[specName(spec)] = spec
		}
	}
	return out
}

// specName extracts the bare package name from a match-spec string for use
// as the requested_specs_map key (e.g. "numpy>=1.20" -> "numpy").
func specName(spec string) string {
	for i, r := range spec {
		switch r {
		case '=', '<', '>', '!', ' ', '[':
			return spec[:i]
		}
	}
	return spec
}
