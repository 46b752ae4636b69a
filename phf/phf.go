// Package phf implements minimal perfect hash functions over a fixed key
// set: given N distinct keys, GetIndex maps each trained key to a unique
// integer in [0, N) with no collisions. Behavior on untrained keys is
// unspecified; callers gate lookups with an inclusion filter first (see
// package filter).
package phf

import "fmt"

// Kind tags which PHF algorithm a jar uses. Stored in the jar configuration
// blob; values are part of the on-disk format.
type Kind uint8

const (
	KindFingerprint Kind = iota
	KindBucket
)

func (k Kind) String() string {
	switch k {
	case KindFingerprint:
		return "fingerprint"
	case KindBucket:
		return "bucket"
	default:
		return fmt.Sprintf("phf.Kind(%d)", uint8(k))
	}
}

// ErrNoKeys is returned by SetKeys when called with an empty key set, and
// by GetIndex when no keys have been trained yet.
var ErrNoKeys = fmt.Errorf("phf: no keys set")

// PHF is a perfect hash function trained over a set of keys.
type PHF interface {
	Kind() Kind

	// SetKeys trains the function over keys. Calling SetKeys twice with
	// the same keys in the same order must produce a function with identical
	// GetIndex output for every key: jars are re-derivable byte-for-byte
	// from their source data, and re-training during a retry must not
	// silently change the on-disk layout.
	SetKeys(keys [][]byte) error

	// NumKeys returns the number of keys trained, or 0 before SetKeys.
	NumKeys() int

	// GetIndex returns the dense index assigned to key. The result is
	// meaningful only for a key that was present in the trained set;
	// callers must not call GetIndex before a successful SetKeys.
	GetIndex(key []byte) (uint64, error)

	MarshalBinary() ([]byte, error)
}

// New constructs an untrained PHF of the given kind.
func New(kind Kind) (PHF, error) {
	switch kind {
	case KindFingerprint:
		return &Fingerprint{}, nil
	case KindBucket:
		return &Bucket{}, nil
	default:
		return nil, fmt.Errorf("phf: unknown kind %d", uint8(kind))
	}
}

// Load reconstructs a previously trained PHF of the given kind from its
// serialized form.
func Load(kind Kind, data []byte) (PHF, error) {
	switch kind {
	case KindFingerprint:
		return loadFingerprint(data)
	case KindBucket:
		return loadBucket(data)
	default:
		return nil, fmt.Errorf("phf: unknown kind %d", uint8(kind))
	}
}
