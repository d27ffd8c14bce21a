// Package prefix implements the installed-environment side-state from
// spec.md §4.F: per-package PrefixRecord metadata under conda-meta/, and
// the append-only conda-meta/history journal the solver's Keep jobs read
// back as requested_specs_map.
//
// Grounded on the teacher's txn_writer.go, which treats a project's
// on-disk metadata (manifest/lock) the same way this package treats a
// PrefixRecord: serialize to a temp location, then atomically swap it into
// place.
package prefix

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// PathEntry is one linked file's recorded identity, written after Link
// completes per spec.md §4.F.
type PathEntry struct {
	Path      string `json:"path"`
	PathType  string `json:"path_type"` // "hardlink", "softlink", or "copy"
	SHA256    string `json:"sha256,omitempty"`
	SizeBytes int64  `json:"size_in_bytes,omitempty"`
}

// PrefixRecord is the conda-meta/<name>-<version>-<build>.json record for
// one linked package.
type PrefixRecord struct {
	Name         string      `json:"name"`
	Version      string      `json:"version"`
	Build        string      `json:"build"`
	BuildNumber  int         `json:"build_number"`
	Channel      string      `json:"channel"`
	Subdir       string      `json:"subdir"`
	Fn           string      `json:"fn"`
	RequestedSpec string     `json:"requested_spec,omitempty"`
	Paths        []PathEntry `json:"paths_data"`
}

// Dist is the `<name>-<version>-<build>` identifier used in history lines
// and as the default record filename stem.
func (r PrefixRecord) Dist() string {
	return r.Name + "-" + r.Version + "-" + r.Build
}

func metaDir(prefixPath string) string { return filepath.Join(prefixPath, "conda-meta") }

func recordPath(prefixPath string, r PrefixRecord) string {
	return filepath.Join(metaDir(prefixPath), r.Dist()+".json")
}

// WriteRecord serializes r to conda-meta/<dist>.json, writing to a sibling
// temp file first so a crash mid-write never leaves a truncated record,
// mirroring the teacher's write-to-temp-then-rename pattern in
// txn_writer.go's SafeWriter.Write.
func WriteRecord(prefixPath string, r PrefixRecord) error {
	if err := os.MkdirAll(metaDir(prefixPath), 0o755); err != nil {
		return errors.Wrap(err, "prefix: write record")
	}
	dest := recordPath(prefixPath, r)
	tmp := dest + ".tmp"

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "prefix: marshal record")
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "prefix: write record temp file")
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "prefix: rename record into place")
	}
	return nil
}

// ReadRecord loads the PrefixRecord for dist, per spec.md §4.F's unlink
// step needing the old record's paths.
func ReadRecord(prefixPath, dist string) (PrefixRecord, error) {
	var r PrefixRecord
	data, err := os.ReadFile(filepath.Join(metaDir(prefixPath), dist+".json"))
	if err != nil {
		return r, errors.Wrap(err, "prefix: read record")
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, errors.Wrap(err, "prefix: unmarshal record")
	}
	return r, nil
}

// RemoveRecord deletes dist's conda-meta JSON record. Per spec.md §4.F this
// must happen last in an unlink step, after every listed path is removed.
func RemoveRecord(prefixPath, dist string) error {
	err := os.Remove(filepath.Join(metaDir(prefixPath), dist+".json"))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "prefix: remove record")
	}
	return nil
}

// ListRecords returns every currently installed PrefixRecord under prefixPath.
func ListRecords(prefixPath string) ([]PrefixRecord, error) {
	entries, err := os.ReadDir(metaDir(prefixPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "prefix: list records")
	}
	var out []PrefixRecord
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		dist := e.Name()[:len(e.Name())-len(".json")]
		r, err := ReadRecord(prefixPath, dist)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
