// Package repodata implements the Repo Loader (spec.md §4.B): loading a
// channel's repodata JSON into a pool.Pool as one Repo, plus a binary
// solv-cache fast path keyed by (url, etag, last_modified, tool_version,
// pip_added), grounded on the teacher's boltCache
// (internal/gps/source_cache_bolt.go).
package repodata

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/mamba-org/solvecore/internal/pool"
)

// packageRecord is the on-the-wire shape of one entry in "packages" or
// "packages.conda", per spec.md §6.
type packageRecord struct {
	Name          string      `json:"name"`
	Version       string      `json:"version"`
	Build         string      `json:"build"`
	BuildNumber   int         `json:"build_number"`
	Depends       []string    `json:"depends"`
	Constrains    []string    `json:"constrains"`
	Subdir        string      `json:"subdir"`
	License       string      `json:"license"`
	MD5           string      `json:"md5"`
	SHA256        string      `json:"sha256"`
	Size          int64       `json:"size"`
	Timestamp     int64       `json:"timestamp"`
	TrackFeatures interface{} `json:"track_features"`
	Noarch        interface{} `json:"noarch"`
	Signatures    interface{} `json:"signatures"`
}

type repodataJSON struct {
	Info struct {
		Subdir string `json:"subdir"`
	} `json:"info"`
	Packages      map[string]packageRecord `json:"packages"`
	PackagesConda map[string]packageRecord `json:"packages.conda"`
	Removed       []string                 `json:"removed"`
}

// pendingSolvable pairs a freshly-added solvable with its source record,
// so a second pass (e.g. pip/python linkage) can revisit it before Internalize.
type pendingSolvable struct {
	sv  *pool.Solvable
	rec packageRecord
}

// HTTPMetadata is the validation tuple recorded alongside a loaded repo, per
// the binary repo cache header in spec.md §6.
type HTTPMetadata struct {
	ToolVersion  string
	URL          string
	ETag         string
	LastModified string
	PipAdded     bool
}

// Options controls LoadFromJSON's behavior.
type Options struct {
	// AddPipAsPythonDependency implements spec.md §4.B's rule: every python
	// solvable at version >= 2 gains a pip dependency, and every pip
	// solvable gains a python pre-requirement, so cycles are ordered
	// correctly (preserved as-is per spec.md §9's Open Question).
	AddPipAsPythonDependency bool
}

// LoadFromJSON populates repoID from decoded repodata JSON, per spec.md
// §4.B. Fails with a RepoDataParseError-class error on malformed input,
// which is a caller-fatal condition (unlike a corrupt binary cache, which
// only downgrades to this path with a warning).
func LoadFromJSON(p *pool.Pool, repoID pool.RepoID, data []byte, channelURL string, meta HTTPMetadata, opts Options) error {
	var rd repodataJSON
	if err := json.Unmarshal(data, &rd); err != nil {
		return errors.Wrap(err, "repodata: malformed repodata JSON")
	}

	removed := make(map[string]bool, len(rd.Removed))
	for _, fn := range rd.Removed {
		removed[fn] = true
	}

	subdir := rd.Info.Subdir

	var all []pendingSolvable

	load := func(m map[string]packageRecord) error {
		for filename, rec := range m {
			if removed[filename] {
				continue
			}
			if rec.Subdir == "" {
				rec.Subdir = subdir
			}
			sv, err := p.AddSolvable(repoID)
			if err != nil {
				return errors.Wrapf(err, "repodata: adding solvable for %s", filename)
			}
			if err := fillSolvable(p, sv, filename, channelURL, rec); err != nil {
				return errors.Wrapf(err, "repodata: %s", filename)
			}
			all = append(all, pendingSolvable{sv: sv, rec: rec})
		}
		return nil
	}

	if err := load(rd.Packages); err != nil {
		return err
	}
	if err := load(rd.PackagesConda); err != nil {
		return err
	}

	if opts.AddPipAsPythonDependency {
		applyPipPythonLinkage(p, all)
	}

	p.Internalize(repoID)
	return nil
}

func fillSolvable(p *pool.Pool, sv *pool.Solvable, filename, channelURL string, rec packageRecord) error {
	ver, err := parseVersionField(rec.Version)
	if err != nil {
		return errors.Wrap(err, "invalid version")
	}

	sv.Name = p.InternString(rec.Name)
	sv.Version = ver
	sv.Build = rec.Build
	sv.BuildNumber = rec.BuildNumber
	sv.Subdir = rec.Subdir
	sv.Channel = channelURL
	sv.Filename = filename
	sv.Size = rec.Size
	sv.Timestamp = rec.Timestamp
	sv.SHA256 = rec.SHA256
	sv.MD5 = rec.MD5
	sv.Noarch = parseNoarch(rec.Noarch)
	sv.TrackFeatures = toStringList(rec.TrackFeatures)
	sv.Signatures = toStringList(rec.Signatures)

	for _, dtext := range rec.Depends {
		id, err := p.InternMatchSpec(dtext)
		if err != nil {
			return errors.Wrapf(err, "depends entry %q", dtext)
		}
		sv.Dependencies = append(sv.Dependencies, id)
	}
	for _, ctext := range rec.Constrains {
		id, err := p.InternMatchSpec(ctext)
		if err != nil {
			return errors.Wrapf(err, "constrains entry %q", ctext)
		}
		sv.Constraints = append(sv.Constraints, id)
	}

	// Self-provide and explicit provides are recorded the same way: the pool
	// indexes by solvable Name directly, so Provides here only needs entries
	// beyond the implicit self-provide (none in the conda repodata shape).
	return nil
}

func toStringList(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func parseNoarch(v interface{}) pool.NoarchType {
	switch t := v.(type) {
	case bool:
		if t {
			return pool.NoarchGeneric
		}
		return pool.NoarchNone
	case string:
		switch t {
		case "python":
			return pool.NoarchPython
		case "generic":
			return pool.NoarchGeneric
		default:
			return pool.NoarchNone
		}
	default:
		return pool.NoarchNone
	}
}
