package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/fetch"
	"github.com/mamba-org/solvecore/internal/pkgcache"
	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/prefix"
	"github.com/mamba-org/solvecore/internal/repodata"
	"github.com/mamba-org/solvecore/internal/solver"
	"github.com/mamba-org/solvecore/internal/transaction"
	"github.com/mamba-org/solvecore/internal/version"
)

// lockTimeout bounds how long a package cache slot reservation blocks on a
// concurrently held lock, independent of appCtx.HTTPTimeout (which bounds a
// single transfer, not lock acquisition).
const lockTimeout = 30 * time.Second

// loadInstalled seeds p with an "installed" repo from prefixPath's
// conda-meta records, per spec.md §4.A/§4.F: the solver and the
// transaction engine both need the previously-installed name->solvable
// (and name->dist) maps as their baseline.
func loadInstalled(p *pool.Pool, prefixPath string) (installedRepo pool.RepoID, byName map[pool.StringID]pool.SolvableID, dist map[pool.StringID]string, err error) {
	recs, err := prefix.ListRecords(prefixPath)
	if err != nil {
		return 0, nil, nil, errors.Wrap(err, "solve: listing installed records")
	}

	installedRepo = p.AddRepo("installed")
	byName = make(map[pool.StringID]pool.SolvableID, len(recs))
	dist = make(map[pool.StringID]string, len(recs))

	for _, rec := range recs {
		sv, err := p.AddSolvable(installedRepo)
		if err != nil {
			return 0, nil, nil, err
		}
		v, err := version.Parse(rec.Version)
		if err != nil {
			return 0, nil, nil, errors.Wrapf(err, "solve: parsing installed version for %s", rec.Name)
		}
		sv.Name = p.InternString(rec.Name)
		sv.Version = v
		sv.Build = rec.Build
		sv.BuildNumber = rec.BuildNumber
		sv.Channel = rec.Channel
		sv.Subdir = rec.Subdir
		sv.Filename = rec.Fn

		byName[sv.Name] = sv.ID()
		dist[sv.Name] = rec.Dist()
	}

	p.Internalize(installedRepo)
	if err := p.MarkInstalled(installedRepo); err != nil {
		return 0, nil, nil, err
	}
	return installedRepo, byName, dist, nil
}

// loadChannels loads every configured channel subdir URL into its own
// Repo, in priority order (first wins ties under StrictRepoPriority).
func loadChannels(ctx context.Context, p *pool.Pool, channels []string, bc *repodata.BoltCache, f *fetch.Fetcher, log logrus.FieldLogger) error {
	for _, ch := range channels {
		repoID := p.AddRepo(ch)
		if err := loadChannel(ctx, p, repoID, ch, bc, f, log); err != nil {
			return errors.Wrapf(err, "solve: loading channel %s", ch)
		}
		p.Internalize(repoID)
	}
	return nil
}

// buildEnvironment wires a Fetcher and package cache from appCtx, matching
// spec.md §4.D/§4.E's defaults (bounded concurrency, exponential backoff).
func buildEnvironment(appCtx *Context, log logrus.FieldLogger) (*pkgcache.Cache, *fetch.Fetcher) {
	cache := pkgcache.New(appCtx.PkgCacheDir(), log, lockTimeout)
	transport := fetch.NewHTTPTransport(appCtx.PkgCacheDir())
	// Replace the shared http.DefaultClient NewHTTPTransport starts with a
	// dedicated client: appCtx's timeout/SSL-verify settings are per
	// process, not global state to mutate on the package-level default.
	rt := http.DefaultTransport
	if !appCtx.SSLVerify {
		rt = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	transport.Client = &http.Client{Timeout: appCtx.HTTPTimeout, Transport: rt}
	f := fetch.New(fetch.Options{
		MaxConcurrency: appCtx.MaxParallelDownloads,
		MaxRetries:     3,
		Transport:      transport,
		Log:            log,
	})
	return cache, f
}

// runTransaction is the shared solve-then-execute path for
// create/install/update/remove: it loads the prefix's current state and
// the requested channels, solves req, prompts for confirmation, and
// executes the resulting Transaction.
func runTransaction(appCtx *Context, log logrus.FieldLogger, prefixPath string, channels []string, req solver.Request, flags solver.Flags, requestedSpecs, removeSpecs []string, command string) error {
	p := pool.New(pool.Options{Logger: log})

	_, installed, installedDist, err := loadInstalled(p, prefixPath)
	if err != nil {
		return err
	}

	cache, f := buildEnvironment(appCtx, log)
	bc, err := repodata.OpenBoltCache(appCtx.CacheRoot(), log)
	if err != nil {
		log.WithError(err).Warn("solve: opening binary repodata cache failed, continuing without it")
		bc = nil
	} else {
		defer bc.Close()
	}

	ctx, stop := interruptContext(context.Background())
	defer stop()

	if err := loadChannels(ctx, p, channels, bc, f, log); err != nil {
		return err
	}
	p.CreateWhatprovides()

	s := solver.New(p, flags)
	if err := s.AddRequest(req); err != nil {
		return err
	}
	decision, err := s.Solve()
	if err != nil {
		return err
	}

	tx := transaction.FromSolver(p, decision, installed, installedDist)
	tx.RequestedSpecs = requestedSpecs
	tx.RemoveSpecs = removeSpecs

	if plan, err := tx.Format(); err == nil && plan != "" {
		log.WithField("plan", plan).Debug("solve: transaction plan")
	}

	if !tx.Prompt(os.Stdin, os.Stdout, appCtx.AlwaysYes) {
		return errCancelled
	}

	src := newCacheSource(cache, f, p, log)
	return tx.Execute(ctx, prefixPath, src, transaction.ExecOptions{
		Policy:      transaction.LinkAuto,
		Command:     command,
		ToolVersion: toolVersion,
		Log:         log,
	})
}
