package phf

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a BBHash-style layered perfect hash function: keys are
// assigned to bits in a sequence of shrinking bitvectors, colliding keys
// fall through ("redo") to the next level, and a key's final index is its
// rank (number of set bits before it) across all levels.
//
// Grounded on the opencoff-go-bbhash reference implementation's
// bbhash.go/bitvector.go, with one deliberate deviation: that
// implementation picks its hash salt with crypto/rand, so two
// constructions over the same keys produce different (but equally valid)
// perfect hash functions. That breaks this package's determinism
// requirement, so Fingerprint derives its salt from the key set itself
// instead.
type Fingerprint struct {
	bits  []*bitVector
	ranks []uint64
	salt  uint64
	nkeys int
}

// gamma is the bitvector expansion factor per level; 2.0 is the standard
// BBHash default.
const gamma = 2.0

// maxLevel bounds the number of redo rounds before giving up.
const maxLevel = 200

func (f *Fingerprint) Kind() Kind { return KindFingerprint }

func (f *Fingerprint) NumKeys() int { return f.nkeys }

// SetKeys trains the function. The salt is derived deterministically from
// the set of key hashes (see deterministicSalt), so retraining the same key set (in any
// input order) reproduces byte-identical bits/ranks/salt.
func (f *Fingerprint) SetKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return ErrNoKeys
	}
	hashed := make([]uint64, len(keys))
	for i, k := range keys {
		hashed[i] = xxhash.Sum64(k)
	}

	salt := deterministicSalt(hashed)
	bits, ranks, err := buildLevels(hashed, salt)
	if err != nil {
		return err
	}
	f.bits = bits
	f.ranks = ranks
	f.salt = salt
	f.nkeys = len(keys)
	return nil
}

// deterministicSalt folds every key hash together in an order-independent
// way (XOR), then runs the result through mix() so single-bit differences
// in the key set still produce unrelated salts.
func deterministicSalt(hashed []uint64) uint64 {
	var acc uint64
	for _, h := range hashed {
		acc ^= h
	}
	return mix(acc ^ uint64(len(hashed)))
}

func buildLevels(keys []uint64, salt uint64) ([]*bitVector, []uint64, error) {
	var levels []*bitVector
	lvl := uint(0)

	for len(keys) > 0 {
		sz := uint64(float64(len(keys)) * gamma)
		sz += 63
		sz &^= 63
		if sz == 0 {
			sz = 64
		}

		a := newBitVector(sz)
		coll := newBitVector(sz)
		for _, k := range keys {
			i := fingerprintHash(k, salt, lvl) % a.size()
			if coll.isSet(i) {
				continue
			}
			if a.isSet(i) {
				coll.set(i)
				continue
			}
			a.set(i)
		}

		redo := keys[:0:0]
		for _, k := range keys {
			i := fingerprintHash(k, salt, lvl) % a.size()
			if coll.isSet(i) {
				redo = append(redo, k)
			}
		}
		// A position hit by more than one key belongs to none of them: clear
		// it so only keys placed alone at this level are ranked here.
		for w := range a.v {
			a.v[w] &^= coll.v[w]
		}

		levels = append(levels, a)
		if len(redo) == 0 {
			break
		}
		keys = redo
		lvl++
		if lvl > maxLevel {
			return nil, nil, fmt.Errorf("phf: no minimal perfect hash found after %d levels", lvl)
		}
	}

	ranks := make([]uint64, len(levels))
	var pop uint64
	for i, bv := range levels {
		ranks[i] = pop
		pop += bv.rank(bv.size())
	}
	return levels, ranks, nil
}

// GetIndex returns the dense 0-based index assigned to key.
func (f *Fingerprint) GetIndex(key []byte) (uint64, error) {
	if len(f.bits) == 0 {
		return 0, ErrNoKeys
	}
	k := xxhash.Sum64(key)
	for lvl, bv := range f.bits {
		i := fingerprintHash(k, f.salt, uint(lvl)) % bv.size()
		if !bv.isSet(i) {
			continue
		}
		return f.ranks[lvl] + bv.rank(i), nil
	}
	return 0, fmt.Errorf("phf: key not in trained set")
}

func fingerprintHash(key, salt uint64, lvl uint) uint64 {
	const m uint64 = 0x880355f21e6d1965
	h := m
	h ^= mix(key)
	h = (h << lvl) | (h >> (64 - lvl))
	h *= m
	return mix(h) ^ salt
}

func mix(h uint64) uint64 {
	h ^= h >> 23
	h *= 0x2127599bf4325c37
	h ^= h >> 47
	return h
}

func (f *Fingerprint) MarshalBinary() ([]byte, error) {
	var out []byte
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:8], f.salt)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(f.nkeys))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(len(f.bits)))
	out = append(out, hdr[:]...)
	for i, bv := range f.bits {
		out = append(out, bv.marshalBinary()...)
		var rb [8]byte
		binary.LittleEndian.PutUint64(rb[:], f.ranks[i])
		out = append(out, rb[:]...)
	}
	return out, nil
}

func loadFingerprint(data []byte) (PHF, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("phf: truncated fingerprint header")
	}
	salt := binary.LittleEndian.Uint64(data[0:8])
	nkeys := binary.LittleEndian.Uint64(data[8:16])
	nlevels := binary.LittleEndian.Uint64(data[16:24])
	off := 24

	bits := make([]*bitVector, nlevels)
	ranks := make([]uint64, nlevels)
	for i := range bits {
		bv, n, err := unmarshalBitVector(data[off:])
		if err != nil {
			return nil, fmt.Errorf("phf: level %d: %w", i, err)
		}
		off += n
		if len(data) < off+8 {
			return nil, fmt.Errorf("phf: truncated rank at level %d", i)
		}
		bits[i] = bv
		ranks[i] = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
	}
	return &Fingerprint{bits: bits, ranks: ranks, salt: salt, nkeys: int(nkeys)}, nil
}
