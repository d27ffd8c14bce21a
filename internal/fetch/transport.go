package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
)

// HTTPTransport is the production Transport: plain HTTP(S), file://, and
// VCS-backed mirrors (a local clone of a channel, common for air-gapped
// conda deployments), the latter wrapped with github.com/Masterminds/vcs
// the way the teacher's vcs_repo.go wraps it for Git/Hg/Bzr/Svn remotes.
type HTTPTransport struct {
	Client *http.Client
	// VCSCacheDir is where VCS-backed mirrors are checked out locally
	// before their files are served from disk.
	VCSCacheDir string
}

// NewHTTPTransport constructs an HTTPTransport with a sane default client.
func NewHTTPTransport(vcsCacheDir string) *HTTPTransport {
	return &HTTPTransport{Client: http.DefaultClient, VCSCacheDir: vcsCacheDir}
}

func (t *HTTPTransport) Fetch(ctx context.Context, mirror *Mirror, path string) (io.ReadCloser, error) {
	u, err := url.Parse(mirror.Base)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch: invalid mirror base %q", mirror.Base)
	}

	switch u.Scheme {
	case "", "file":
		rc, err := t.fetchFile(filepath.Join(u.Path, path))
		if err != nil {
			return nil, &fileSchemeError{err}
		}
		return rc, nil
	case "vcs+git", "vcs+hg", "vcs+bzr", "vcs+svn":
		return t.fetchVCS(ctx, u, mirror, path)
	default:
		return t.fetchHTTP(ctx, mirror, path)
	}
}

func (t *HTTPTransport) fetchFile(full string) (io.ReadCloser, error) {
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (t *HTTPTransport) fetchHTTP(ctx context.Context, mirror *Mirror, path string) (io.ReadCloser, error) {
	full := mirror.Base
	if len(full) == 0 || full[len(full)-1] != '/' {
		full += "/"
	}
	full += path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &httpStatusError{StatusCode: resp.StatusCode, URL: full}
	}
	return resp.Body, nil
}

// fetchVCS checks out (or updates) mirror's repository into VCSCacheDir and
// serves path relative to the working copy root. Grounded on the teacher's
// vcs_repo.go Get()/Update() pattern, generalized across vcs.NewRepo's
// git/hg/bzr/svn backends instead of hardcoding git.
func (t *HTTPTransport) fetchVCS(ctx context.Context, u *url.URL, mirror *Mirror, path string) (io.ReadCloser, error) {
	kind := u.Scheme[len("vcs+"):]
	remote := *u
	remote.Scheme = kind

	local := filepath.Join(t.VCSCacheDir, mirror.Name)
	repo, err := vcs.NewRepo(remote.String(), local)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch: vcs mirror %q", mirror.Name)
	}

	if !repo.CheckLocal() {
		if err := repo.Get(); err != nil {
			return nil, errors.Wrapf(err, "fetch: vcs clone %q", mirror.Name)
		}
	} else {
		if err := repo.Update(); err != nil {
			return nil, errors.Wrapf(err, "fetch: vcs update %q", mirror.Name)
		}
	}

	f, err := os.Open(filepath.Join(local, path))
	if err != nil {
		return nil, err
	}
	return f, nil
}
