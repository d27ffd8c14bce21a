package transaction

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mamba-org/solvecore/internal/prefix"
)

// UnlinkPackage removes every path listed in the old PrefixRecord, then
// prunes now-empty parent directories up to but not including the prefix
// root, per spec.md §4.F's unlink step semantics. The conda-meta record
// itself is removed last, by the caller, after every path is gone.
func UnlinkPackage(prefixPath string, rec prefix.PrefixRecord) error {
	for _, p := range rec.Paths {
		full := filepath.Join(prefixPath, p.Path)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "transaction: unlink %q", p.Path)
		}
		pruneEmptyParents(prefixPath, filepath.Dir(full))
	}
	return nil
}

// pruneEmptyParents removes dir and its ancestors while they are empty,
// stopping at (and never removing) prefixRoot.
func pruneEmptyParents(prefixRoot, dir string) {
	for {
		if dir == prefixRoot || !withinPrefix(prefixRoot, dir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func withinPrefix(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[:2] == ".."
}

// removeQuiet removes path, treating an already-missing file as success.
func removeQuiet(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
