// Package filehash computes content digests for files being imported.
// The catalog stores the digest as an opaque string; any tool that
// writes file_hash values must use the same function to make duplicate
// detection meaningful.
package filehash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the hex digest of r's contents.
func Sum(r io.Reader) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile returns the hex digest of the file at path.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Sum(f)
}

// SumBytes returns the hex digest of b.
func SumBytes(b []byte) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64(b))
	return hex.EncodeToString(buf[:])
}
