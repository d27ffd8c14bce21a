package transaction

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/prefix"
)

// PackageSource resolves a solvable to its locally available extracted
// directory and per-file manifest, fetching and extracting through the
// package cache if necessary. Kept as a narrow interface so this package
// doesn't need to import pkgcache/fetch directly — the production
// implementation composes both, per spec.md §4.F's execute(prefix_data,
// package_cache, fetcher) contract.
type PackageSource interface {
	Ensure(ctx context.Context, sv *pool.Solvable) (extractedDir string, paths []PathSpec, err error)
}

// ExecOptions configures one Execute call.
type ExecOptions struct {
	Policy          LinkPolicy
	CompilePyc      bool
	PythonExe       string // required when CompilePyc is true
	SitePackagesDir string // prefix-relative, e.g. "lib/python3.11/site-packages"
	BinDir          string // prefix-relative, e.g. "bin"
	Command         string // recorded verbatim in the history entry
	ToolVersion     string
	Log             logrus.FieldLogger
}

// linkedFile is one path this Execute call materialized, tracked so a
// mid-transaction failure can roll it back.
type linkedFile struct {
	step  int
	dist  string
	entry PathEntry
}

// Execute runs t's steps against prefixPath in order, per spec.md §4.F.
// It is one-shot: calling it twice on the same Transaction is an error.
// On a link failure it attempts to roll back every file this call linked,
// best-effort, per spec.md §4.F's failure semantics.
func (t *Transaction) Execute(ctx context.Context, prefixPath string, src PackageSource, opts ExecOptions) error {
	if t.executed {
		return errors.New("transaction: execute: already executed")
	}
	t.executed = true
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	var linked []linkedFile
	var linkedDists []string
	var unlinkedDists []string
	var pycSources []string

	rollback := func() {
		for i := len(linked) - 1; i >= 0; i-- {
			lf := linked[i]
			full := filepath.Join(prefixPath, lf.entry.Path)
			if err := removeQuiet(full); err != nil {
				opts.Log.WithError(err).WithField("path", lf.entry.Path).Warn("transaction: rollback: failed to remove linked file")
			}
		}
		for _, dist := range dedupDists(linked) {
			if err := prefix.RemoveRecord(prefixPath, dist); err != nil {
				opts.Log.WithError(err).WithField("dist", dist).Warn("transaction: rollback: failed to remove record")
			}
		}
	}

	for i, step := range t.Steps {
		if err := ctx.Err(); err != nil {
			rollback()
			return errors.Wrap(err, "transaction: execute: cancelled")
		}

		switch step.Kind {
		case StepUnlink:
			if err := t.executeUnlink(prefixPath, step); err != nil {
				// Removals that have already happened are not undone; per
				// spec.md §4.F a mid-transaction failure's rollback only
				// unlinks what this call linked.
				rollback()
				return errors.Wrapf(err, "transaction: execute: unlink step %d", i)
			}
			unlinkedDists = append(unlinkedDists, step.OldDist)

		case StepLink:
			dist, entries, pySrc, err := t.executeLink(ctx, prefixPath, step, src, opts)
			if err != nil {
				// Files this step linked before failing are rolled back too.
				for _, e := range entries {
					linked = append(linked, linkedFile{step: i, dist: dist, entry: e})
				}
				rollback()
				return errors.Wrapf(err, "transaction: execute: link step %d", i)
			}
			for _, e := range entries {
				linked = append(linked, linkedFile{step: i, dist: dist, entry: e})
			}
			linkedDists = append(linkedDists, dist)
			pycSources = append(pycSources, pySrc...)
		}
	}

	if opts.CompilePyc && len(pycSources) > 0 && opts.PythonExe != "" {
		NewPycCompiler(opts.PythonExe, opts.Log).CompileAll(pycSources)
	}

	return prefix.AppendHistory(prefixPath, prefix.HistoryEntry{
		Timestamp:     execNow(),
		Command:       opts.Command,
		ToolVersion:   opts.ToolVersion,
		Linked:        linkedDists,
		Unlinked:      unlinkedDists,
		UpdateSpecs:   t.RequestedSpecs,
		RemoveSpecs:   t.RemoveSpecs,
		NeuteredSpecs: t.NeuteredSpecs,
	})
}

// execNow is a var so tests can pin the history timestamp.
var execNow = time.Now

func (t *Transaction) executeUnlink(prefixPath string, step Step) error {
	rec, err := prefix.ReadRecord(prefixPath, step.OldDist)
	if err != nil {
		return err
	}
	if err := UnlinkPackage(prefixPath, rec); err != nil {
		return err
	}
	return prefix.RemoveRecord(prefixPath, step.OldDist)
}

func (t *Transaction) executeLink(ctx context.Context, prefixPath string, step Step, src PackageSource, opts ExecOptions) (string, []PathEntry, []string, error) {
	sv := t.p.Solvable(step.Solvable)
	if sv == nil {
		return "", nil, nil, errors.New("transaction: link step refers to a solvable no longer in the pool")
	}

	extractedDir, paths, err := src.Ensure(ctx, sv)
	if err != nil {
		return "", nil, nil, errors.Wrap(err, "ensure package available")
	}

	entries := make([]PathEntry, 0, len(paths))
	var pySrcs []string
	for _, ps := range paths {
		entry, err := LinkFile(extractedDir, prefixPath, ps, opts.Policy, step.NoarchPython, opts.SitePackagesDir, opts.BinDir)
		if err != nil {
			return "", entries, pySrcs, err
		}
		entries = append(entries, entry)
		if strings.HasSuffix(entry.Path, ".py") {
			pySrcs = append(pySrcs, filepath.Join(prefixPath, entry.Path))
		}
	}

	rec := prefix.PrefixRecord{
		Name:        t.p.String(sv.Name),
		Version:     sv.Version.String(),
		Build:       sv.Build,
		BuildNumber: sv.BuildNumber,
		Channel:     sv.Channel,
		Subdir:      sv.Subdir,
		Fn:          sv.Filename,
		Paths:       entries,
	}
	if err := prefix.WriteRecord(prefixPath, rec); err != nil {
		return "", entries, pySrcs, err
	}
	return rec.Dist(), entries, pySrcs, nil
}

func dedupDists(linked []linkedFile) []string {
	seen := make(map[string]bool)
	var out []string
	for _, lf := range linked {
		if !seen[lf.dist] {
			seen[lf.dist] = true
			out = append(out, lf.dist)
		}
	}
	return out
}
