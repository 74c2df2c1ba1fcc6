// Package cache persists content fingerprints between runs so repeated
// deduplication of an unchanged tree does not re-read every file. Entries
// are keyed by algorithm and path and are only trusted while the file's
// size and modification time still match.
package cache

import (
	"bytes"
	"encoding/gob"
	"time"
)

// Version is incremented when the entry format changes. It is part of
// every key, so old entries are simply never read again.
const Version = 1

// KeySeparator separates key components.
const KeySeparator = '\x00'

// Entry is a cached fingerprint together with the file state it was
// computed from.
type Entry struct {
	Size   int64
	Mtime  int64 // UnixNano
	Digest string
}

// Matches reports whether the entry was computed for a file of this size
// and modification time.
func (e *Entry) Matches(size int64, mtime time.Time) bool {
	return e.Size == size && e.Mtime == mtime.UnixNano()
}

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes an entry written by Encode.
func (e *Entry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey builds "fp<version>\x00<algorithm>\x00<path>".
func MakeKey(algorithm, path string) []byte {
	return append(MakeKeyPrefix(algorithm), path...)
}

// MakeKeyPrefix returns the prefix shared by all keys of one algorithm.
func MakeKeyPrefix(algorithm string) []byte {
	key := []byte("fp")
	key = append(key, byte('0'+Version))
	key = append(key, KeySeparator)
	key = append(key, algorithm...)
	return append(key, KeySeparator)
}

// ParseKey extracts the algorithm and path from a key built by MakeKey.
func ParseKey(key []byte) (algorithm, path string) {
	parts := bytes.SplitN(key, []byte{KeySeparator}, 3)
	if len(parts) != 3 {
		return "", ""
	}
	return string(parts[1]), string(parts[2])
}
