package main

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/fetch"
	"github.com/mamba-org/solvecore/internal/pool"
	"github.com/mamba-org/solvecore/internal/repodata"
)

// bufDestination buffers a fetched body in memory, used for the small
// repodata.json/repodata.json.zst payloads (as opposed to package
// archives, which go through pkgcache.Slot).
type bufDestination struct {
	key string
	buf []byte
}

func (d *bufDestination) Key() string { return d.key }
func (d *bufDestination) Write(body io.Reader) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	d.buf = b
	return nil
}

// loadChannel populates repoID from channelURL's repodata.json, per spec.md
// §4.B: try the binary solv cache first, downgrade to a JSON fetch (and
// re-populate the cache) on a miss or a corrupt cache. The validation tuple
// is only the tool version and URL here: a production HTTP transport would
// also carry the server's etag/last-modified from a conditional request,
// but fetch.Transport (spec.md §4.E) has no HEAD-only verb to surface them.
func loadChannel(ctx context.Context, p *pool.Pool, repoID pool.RepoID, channelURL string, bc *repodata.BoltCache, f *fetch.Fetcher, log logrus.FieldLogger) error {
	repoKey := channelURL
	meta := repodata.HTTPMetadata{ToolVersion: toolVersion, URL: channelURL}

	if bc != nil {
		loadErr := bc.LoadFromCache(p, repoID, repoKey, meta)
		if loadErr == nil {
			return nil
		}
		if !repodata.IsCacheMiss(loadErr) {
			log.WithError(loadErr).Warn("repo: binary cache corrupt, downgrading to JSON fetch")
		}
	}

	data, err := fetchRepodataJSON(ctx, f, channelURL, log)
	if err != nil {
		return errors.Wrapf(err, "repo: fetching repodata.json for %s", channelURL)
	}

	if err := repodata.LoadFromJSON(p, repoID, data, channelURL, meta, repodata.Options{AddPipAsPythonDependency: true}); err != nil {
		return err
	}

	if bc != nil {
		if err := bc.WriteCache(p, repoID, repoKey, meta); err != nil {
			log.WithError(err).Warn("repo: failed to write binary cache")
		}
	}
	return nil
}

func fetchRepodataJSON(ctx context.Context, f *fetch.Fetcher, channelURL string, log logrus.FieldLogger) ([]byte, error) {
	u, err := url.Parse(channelURL)
	if err != nil {
		return nil, errors.Wrapf(err, "repo: invalid channel URL %q", channelURL)
	}

	dest := &bufDestination{key: channelURL + "/repodata.json"}
	req := fetch.Request{
		Mirrors: []*fetch.Mirror{fetch.NewMirror(u.Host, channelURL, 4)},
		Path:    "repodata.json",
		Dest:    dest,
	}

	results, err := f.Run(ctx, []fetch.Request{req})
	if err != nil {
		return nil, err
	}
	res := results[0]
	if res.Err != nil {
		return nil, errors.Wrapf(res.Err, "repo: fetching %s/repodata.json", channelURL)
	}
	return dest.buf, nil
}

const toolVersion = "solvecore/1"

// subdirURL joins a channel base (e.g. "https://repo.example.org/main")
// with a platform subdir (e.g. "linux-64"), the way every conda channel
// lays repodata.json out.
func subdirURL(base, subdir string) string {
	return fmt.Sprintf("%s/%s", base, subdir)
}
