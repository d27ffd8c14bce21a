package transaction

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	shutil "github.com/termie/go-shutil"
)

// LinkPolicy controls how a file is materialized from the package cache
// into the prefix, per spec.md §4.F's link step semantics.
type LinkPolicy int

const (
	// LinkAuto tries hardlink, then softlink, then copy, in that order.
	LinkAuto LinkPolicy = iota
	LinkAlwaysCopy
	LinkAlwaysSoftlink
)

// PathSpec is one entry from a package's paths.json, the unit of work for
// a single file link.
type PathSpec struct {
	// RelPath is the path inside the package's extracted tree.
	RelPath string
	// PrefixPlaceholder is non-empty when the file requires prefix
	// substitution; files without one are linked verbatim.
	PrefixPlaceholder string
	// FileMode is "text" or "binary"; only binary files preserve length.
	FileMode string
	SHA256   string
	Size     int64
}

// targetRelPath applies spec.md §4.F's noarch:python path rewrites.
func targetRelPath(rel string, noarchPython bool, sitePackagesDir, binDir string) string {
	if !noarchPython {
		return rel
	}
	switch {
	case strings.HasPrefix(rel, "site-packages/"):
		return filepath.Join(sitePackagesDir, strings.TrimPrefix(rel, "site-packages/"))
	case strings.HasPrefix(rel, "python-scripts/"):
		return filepath.Join(binDir, strings.TrimPrefix(rel, "python-scripts/"))
	default:
		return rel
	}
}

// LinkFile materializes one extracted file into the prefix, honoring
// policy and prefix-placeholder substitution, per spec.md §4.F. It returns
// the PathEntry to record in the new PrefixRecord.
//
// Grounded on the teacher's fs.go CopyFile/CopyDir (permission-preserving
// copy is exactly what a placeholder-substituted file needs) generalized
// to also cover the non-substituted hardlink/softlink fast paths spec.md
// adds on top.
func LinkFile(srcExtracted, prefixPath string, ps PathSpec, policy LinkPolicy, noarchPython bool, sitePackagesDir, binDir string) (PathEntry, error) {
	src := filepath.Join(srcExtracted, ps.RelPath)
	rel := targetRelPath(ps.RelPath, noarchPython, sitePackagesDir, binDir)
	dest := filepath.Join(prefixPath, rel)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return PathEntry{}, errors.Wrap(err, "transaction: link: mkdir")
	}

	if ps.PrefixPlaceholder != "" {
		if err := copyWithPlaceholder(src, dest, ps.PrefixPlaceholder, prefixPath, ps.FileMode == "binary"); err != nil {
			return PathEntry{}, errors.Wrapf(err, "transaction: link %q", ps.RelPath)
		}
		return PathEntry{Path: rel, PathType: "copy", SHA256: ps.SHA256, SizeBytes: ps.Size}, nil
	}

	pathType, err := linkOrCopy(src, dest, policy)
	if err != nil {
		return PathEntry{}, errors.Wrapf(err, "transaction: link %q", ps.RelPath)
	}
	return PathEntry{Path: rel, PathType: pathType, SHA256: ps.SHA256, SizeBytes: ps.Size}, nil
}

// linkOrCopy applies the hardlink>softlink>copy policy.
func linkOrCopy(src, dest string, policy LinkPolicy) (string, error) {
	switch policy {
	case LinkAlwaysCopy:
		return "copy", shutil.CopyFile(src, dest, true)
	case LinkAlwaysSoftlink:
		return "softlink", os.Symlink(src, dest)
	default:
		if err := os.Link(src, dest); err == nil {
			return "hardlink", nil
		}
		if err := os.Symlink(src, dest); err == nil {
			return "softlink", nil
		}
		return "copy", shutil.CopyFile(src, dest, true)
	}
}

// copyWithPlaceholder copies src to dest, substituting placeholder with
// realPrefix. Binary files preserve the original byte length (padding the
// replacement with NUL bytes, or truncating the match, as spec.md §4.F
// requires); text files substitute freely.
func copyWithPlaceholder(src, dest, placeholder, realPrefix string, binary bool) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	var out []byte
	if binary {
		out = substituteBinary(data, placeholder, realPrefix)
	} else {
		out = bytes.ReplaceAll(data, []byte(placeholder), []byte(realPrefix))
	}

	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, out, fi.Mode().Perm())
}

// substituteBinary replaces every occurrence of placeholder with realPrefix
// while preserving the file's total length: a shorter replacement is
// NUL-padded, a longer one is truncated to fit, matching what conda's own
// prefix-replacement pass does for ELF/Mach-O binaries whose embedded
// string table offsets can't move.
func substituteBinary(data []byte, placeholder, realPrefix string) []byte {
	ph := []byte(placeholder)
	if len(ph) == 0 {
		return data
	}
	repl := make([]byte, len(ph))
	n := copy(repl, realPrefix)
	for i := n; i < len(repl); i++ {
		repl[i] = 0
	}

	out := make([]byte, 0, len(data))
	rest := data
	for {
		idx := bytes.Index(rest, ph)
		if idx < 0 {
			out = append(out, rest...)
			break
		}
		out = append(out, rest[:idx]...)
		out = append(out, repl...)
		rest = rest[idx+len(ph):]
	}
	return out
}

// drainTo is a small helper kept for Transport-less callers (e.g. the pyc
// compiler feeding paths over stdin) that need to copy a reader's full
// content without importing io.Copy's boilerplate at each call site.
func drainTo(w io.Writer, r io.Reader) error {
	_, err := io.Copy(w, r)
	return err
}
