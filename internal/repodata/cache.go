package repodata

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mamba-org/solvecore/internal/pool"
)

// errCacheMiss is returned by LoadFromCache when the stored header tuple
// does not match expectedMeta exactly, per spec.md §4.B.
var errCacheMiss = errors.New("repodata: binary cache miss")

// IsCacheMiss reports whether err is the sentinel LoadFromCache returns on
// a header mismatch (as opposed to a corrupt cache, which the caller should
// treat as a downgrade-to-JSON warning per spec.md §4.B's failure semantics).
func IsCacheMiss(err error) bool { return errors.Is(err, errCacheMiss) }

var bucketSolvables = []byte("solvables")
var bucketHeader = []byte("header")

// cachedSolvable is the gob-serializable projection of pool.Solvable stored
// in the binary cache.
type cachedSolvable struct {
	Name, Build, Subdir, Channel, Filename, SHA256, MD5 string
	Version                                             string
	BuildNumber                                         int
	Noarch                                               pool.NoarchType
	Size, Timestamp                                      int64
	TrackFeatures, Signatures                            []string
	Dependencies, Constraints                            []string // canonical matchspec text
}

// BoltCache manages a single bolt.DB file backing the binary repodata
// caches for every repo sharing a cache root, generalizing the teacher's
// boltCache (internal/gps/source_cache_bolt.go) from per-project version
// metadata to per-channel repodata snapshots.
type BoltCache struct {
	db  *bolt.DB
	log logrus.FieldLogger
}

// OpenBoltCache opens (creating if absent) the bolt database at
// <cacheRoot>/repodata.solv.db.
func OpenBoltCache(cacheRoot string, log logrus.FieldLogger) (*BoltCache, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	path := filepath.Join(cacheRoot, "repodata.solv.db")
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "repodata: opening bolt cache %s", path)
	}
	return &BoltCache{db: db, log: log}, nil
}

// Close releases the underlying bolt.DB handle.
func (c *BoltCache) Close() error { return c.db.Close() }

func bucketKey(repoKey string) []byte { return []byte(repoKey) }

// LoadFromCache attempts a binary cache load for repoKey (typically the
// channel URL + subdir). Returns errCacheMiss (test with IsCacheMiss) if the
// stored header does not match expectedMeta exactly.
func (c *BoltCache) LoadFromCache(p *pool.Pool, repoID pool.RepoID, repoKey string, expectedMeta HTTPMetadata) error {
	var solvables []cachedSolvable
	var stored HTTPMetadata
	var found bool

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey(repoKey))
		if b == nil {
			return nil
		}
		hb := b.Bucket(bucketHeader)
		if hb == nil {
			return errors.New("repodata: cache bucket missing header")
		}
		if err := gobDecode(hb.Get([]byte("meta")), &stored); err != nil {
			return errors.Wrap(err, "repodata: corrupt cache header")
		}
		found = true

		sb := b.Bucket(bucketSolvables)
		if sb == nil {
			return errors.New("repodata: cache bucket missing solvables")
		}
		return sb.ForEach(func(_, v []byte) error {
			var cs cachedSolvable
			if err := gobDecode(v, &cs); err != nil {
				return errors.Wrap(err, "repodata: corrupt cached solvable")
			}
			solvables = append(solvables, cs)
			return nil
		})
	})
	if err != nil {
		return errors.Wrap(err, "repodata: cache read failed")
	}
	if !found {
		return errCacheMiss
	}
	if stored != expectedMeta {
		return errCacheMiss
	}

	for _, cs := range solvables {
		sv, err := p.AddSolvable(repoID)
		if err != nil {
			return err
		}
		if err := hydrateSolvable(p, sv, cs); err != nil {
			return errors.Wrap(err, "repodata: hydrating cached solvable")
		}
	}
	p.Internalize(repoID)
	return nil
}

// WriteCache serializes every solvable currently owned by repoID to the
// binary cache under repoKey, replacing any prior entry.
func (c *BoltCache) WriteCache(p *pool.Pool, repoID pool.RepoID, repoKey string, meta HTTPMetadata) error {
	repo := p.Repo(repoID)
	if repo == nil {
		return errors.Errorf("repodata: no such repo %d", repoID)
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		_ = tx.DeleteBucket(bucketKey(repoKey))
		b, err := tx.CreateBucket(bucketKey(repoKey))
		if err != nil {
			return errors.Wrap(err, "repodata: creating cache bucket")
		}
		hb, err := b.CreateBucket(bucketHeader)
		if err != nil {
			return err
		}
		metaBytes, err := gobEncode(meta)
		if err != nil {
			return err
		}
		if err := hb.Put([]byte("meta"), metaBytes); err != nil {
			return err
		}

		sb, err := b.CreateBucket(bucketSolvables)
		if err != nil {
			return err
		}
		for i, sid := range repo.Solvables() {
			sv := p.Solvable(sid)
			if sv == nil {
				continue
			}
			cs := dehydrateSolvable(p, sv)
			data, err := gobEncode(cs)
			if err != nil {
				return err
			}
			if err := sb.Put(itob(i), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func itob(i int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(i))
	return b
}

func gobEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Wrap(err, "repodata: gob encode")
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func dehydrateSolvable(p *pool.Pool, sv *pool.Solvable) cachedSolvable {
	depsText := make([]string, 0, len(sv.Dependencies))
	for _, d := range sv.Dependencies {
		if ms, ok := p.MatchSpecOf(d); ok {
			depsText = append(depsText, ms.Canonical())
		}
	}
	consText := make([]string, 0, len(sv.Constraints))
	for _, d := range sv.Constraints {
		if ms, ok := p.MatchSpecOf(d); ok {
			consText = append(consText, ms.Canonical())
		}
	}
	return cachedSolvable{
		Name:          p.String(sv.Name),
		Build:         sv.Build,
		Subdir:        sv.Subdir,
		Channel:       sv.Channel,
		Filename:      sv.Filename,
		SHA256:        sv.SHA256,
		MD5:           sv.MD5,
		Version:       sv.Version.String(),
		BuildNumber:   sv.BuildNumber,
		Noarch:        sv.Noarch,
		Size:          sv.Size,
		Timestamp:     sv.Timestamp,
		TrackFeatures: sv.TrackFeatures,
		Signatures:    sv.Signatures,
		Dependencies:  depsText,
		Constraints:   consText,
	}
}

func hydrateSolvable(p *pool.Pool, sv *pool.Solvable, cs cachedSolvable) error {
	ver, err := parseVersionField(cs.Version)
	if err != nil {
		return err
	}
	sv.Name = p.InternString(cs.Name)
	sv.Version = ver
	sv.Build = cs.Build
	sv.BuildNumber = cs.BuildNumber
	sv.Subdir = cs.Subdir
	sv.Channel = cs.Channel
	sv.Filename = cs.Filename
	sv.SHA256 = cs.SHA256
	sv.MD5 = cs.MD5
	sv.Noarch = cs.Noarch
	sv.Size = cs.Size
	sv.Timestamp = cs.Timestamp
	sv.TrackFeatures = cs.TrackFeatures
	sv.Signatures = cs.Signatures
	for _, d := range cs.Dependencies {
		id, err := p.InternMatchSpec(d)
		if err != nil {
			return err
		}
		sv.Dependencies = append(sv.Dependencies, id)
	}
	for _, d := range cs.Constraints {
		id, err := p.InternMatchSpec(d)
		if err != nil {
			return err
		}
		sv.Constraints = append(sv.Constraints, id)
	}
	return nil
}
