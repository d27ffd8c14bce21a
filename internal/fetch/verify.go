package fetch

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	"github.com/pkg/errors"
)

// verifyingReader tees a transfer through sha256 and md5 so CommitArchive's
// caller can confirm the content it just streamed to disk, without buffering
// the whole body in memory.
type verifyingReader struct {
	io.Reader
	sha256         hash.Hash
	md5            hash.Hash
	expectedSHA256 string
	expectedMD5    string
}

func newVerifyingReader(r io.Reader, expectedSHA256, expectedMD5 string) *verifyingReader {
	sha := sha256.New()
	md := md5.New()
	return &verifyingReader{
		Reader:         io.TeeReader(r, io.MultiWriter(sha, md)),
		sha256:         sha,
		md5:            md,
		expectedSHA256: expectedSHA256,
		expectedMD5:    expectedMD5,
	}
}

func (v *verifyingReader) verify() error {
	if v.expectedSHA256 != "" {
		if got := hex.EncodeToString(v.sha256.Sum(nil)); got != v.expectedSHA256 {
			return errors.Errorf("fetch: sha256 mismatch: got %s want %s", got, v.expectedSHA256)
		}
		return nil
	}
	if v.expectedMD5 != "" {
		if got := hex.EncodeToString(v.md5.Sum(nil)); got != v.expectedMD5 {
			return errors.Errorf("fetch: md5 mismatch: got %s want %s", got, v.expectedMD5)
		}
	}
	return nil
}
