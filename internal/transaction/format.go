package transaction

import (
	"bytes"
	"sort"

	"github.com/pelletier/go-toml"

	"github.com/mamba-org/solvecore/internal/pool"
)

// planEntry is one name's before/after summary, the per-name unit
// Format serializes, mirroring the teacher's LockedProjectDiff
// (txn_writer.go).
type planEntry struct {
	Name      string `toml:"name"`
	Action    string `toml:"action"`
	Requested bool   `toml:"requested,omitempty"`
}

type rawPlan struct {
	Packages []planEntry `toml:"packages"`
}

// Format renders t's per-name action classification as TOML, the same
// structured-diff shape the teacher's LockDiff.Format produces for a
// manifest/lock update, used here for a transaction plan instead of a
// lock file.
func (t *Transaction) Format() (string, error) {
	counts := t.Classify()
	if len(counts) == 0 {
		return "", nil
	}

	requested := make(map[string]bool, len(t.RequestedSpecs))
	for _, s := range t.RequestedSpecs {
		requested[s] = true
	}

	names := make([]pool.StringID, 0, len(t.actions))
	for name := range t.actions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return t.p.String(names[i]) < t.p.String(names[j]) })

	entries := make([]planEntry, 0, len(names))
	for _, name := range names {
		action := t.actions[name]
		if action == ActionNoop {
			continue
		}
		n := t.p.String(name)
		entries = append(entries, planEntry{
			Name:      n,
			Action:    action.String(),
			Requested: requested[n],
		})
	}

	chunk, err := toml.Marshal(rawPlan{Packages: entries})
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.Write(chunk)
	return buf.String(), nil
}
