package main

import (
	"archive/tar"
	"compress/bzip2"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mamba-org/solvecore/internal/transaction"
)

// extractTarBz2 unpacks a legacy .tar.bz2 conda package archive into
// destDir, matching pkgcache.Cache.Extract's extractFn contract. bzip2 has
// no third-party decompressor in the retrieval pack (compress/bzip2 is the
// only decoder in the corpus's transitive closure, and the stdlib only
// reads bzip2, never writes it, so there is nothing to wire a library
// against) — see DESIGN.md.
func extractTarBz2(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "extract: open archive")
	}
	defer f.Close()

	tr := tar.NewReader(bzip2.NewReader(f))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "extract: read tar entry")
		}
		if err := writeTarEntry(destDir, hdr, tr); err != nil {
			return err
		}
	}
}

func writeTarEntry(destDir string, hdr *tar.Header, r io.Reader) error {
	target := filepath.Join(destDir, hdr.Name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(filepath.Separator)) {
		return errors.Errorf("extract: tar entry %q escapes destination", hdr.Name)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0o755)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
		if err != nil {
			return errors.Wrapf(err, "extract: create %q", hdr.Name)
		}
		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			return errors.Wrapf(err, "extract: write %q", hdr.Name)
		}
		return out.Close()
	default:
		return nil
	}
}

// pathsJSONEntry is one entry of a conda package's info/paths.json,
// spec.md §6's per-file manifest shape.
type pathsJSONEntry struct {
	Path              string `json:"_path"`
	PathType          string `json:"path_type"`
	SHA256            string `json:"sha256"`
	SizeBytes         int64  `json:"size_in_bytes"`
	FileMode          string `json:"file_mode,omitempty"`
	PrefixPlaceholder string `json:"prefix_placeholder,omitempty"`
	NoLink            bool   `json:"no_link,omitempty"`
}

type pathsJSON struct {
	PathsVersion int              `json:"paths_version"`
	Paths        []pathsJSONEntry `json:"paths"`
}

// readPathsJSON reads and converts an extracted package's info/paths.json
// into the []transaction.PathSpec shape the link step consumes.
func readPathsJSON(extractedDir string) ([]transaction.PathSpec, error) {
	data, err := os.ReadFile(filepath.Join(extractedDir, "info", "paths.json"))
	if err != nil {
		return nil, errors.Wrap(err, "extract: reading info/paths.json")
	}
	var pj pathsJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, errors.Wrap(err, "extract: malformed info/paths.json")
	}

	out := make([]transaction.PathSpec, 0, len(pj.Paths))
	for _, e := range pj.Paths {
		out = append(out, transaction.PathSpec{
			RelPath:           e.Path,
			PrefixPlaceholder: e.PrefixPlaceholder,
			FileMode:          e.FileMode,
			SHA256:            e.SHA256,
			Size:              e.SizeBytes,
		})
	}
	return out, nil
}
