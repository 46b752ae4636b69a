package phf

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/rpcpool/coljar/indexes"
)

// Bucket is the size-optimized perfect hash variant: keys are split into
// buckets by a top-level hash, and each bucket independently mines a
// collision-free 24-bit domain nonce. A key's final index is the row index
// stored beside its hash in its bucket's sorted hash table.
//
// Grounded on an FKS bucket-mining index once kept alongside this module
// (its build-side mine/hashBucket step, its query-side binary search),
// already fully deterministic — the nonce search starts at 0 and only
// increases, no randomness involved. Where that index stored each entry's
// caller-supplied byte value, Bucket stores nothing but the dense row
// index (the position the key holds in the original training order), so
// no separate key->value payload needs to ride along in the serialized
// form.
type Bucket struct {
	numKeys    int
	numBuckets uint32
	buckets    []bucketTable
}

type bucketTable struct {
	nonce   uint32
	hashes  []uint64 // sorted ascending
	indices []uint64 // indices[i] corresponds to hashes[i], the dense row index of that key
	base    uint64   // number of keys in all earlier buckets
}

const targetEntriesPerBucket = 10000
const mineAttempts = 1000
const bucketMask = 0xffffff // 24-bit hash domain per bucket

func (b *Bucket) Kind() Kind { return KindBucket }

func (b *Bucket) NumKeys() int { return b.numKeys }

func bucketOf(key []byte, numBuckets uint32) uint32 {
	return uint32(xxhash.Sum64(key) % uint64(numBuckets))
}

// SetKeys assigns every key a bucket by xxhash, then mines a per-bucket
// nonce producing a collision-free set of 24-bit hashes. Within a bucket,
// entries are sorted by masked hash. The index GetIndex returns for a key
// is the key's position in keys, so it depends on the input order: callers
// must pass keys in row order for GetIndex to return the row number.
// Re-running SetKeys on the same keys in the same order reproduces
// identical buckets, nonces and tables.
func (b *Bucket) SetKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return ErrNoKeys
	}
	numBuckets := uint32((len(keys) + targetEntriesPerBucket - 1) / targetEntriesPerBucket)
	if numBuckets == 0 {
		numBuckets = 1
	}

	perBucket := make([][]kvEntry, numBuckets)
	for row, k := range keys {
		bi := bucketOf(k, numBuckets)
		perBucket[bi] = append(perBucket[bi], kvEntry{key: k, row: uint64(row)})
	}

	tables := make([]bucketTable, numBuckets)
	var base uint64
	for bi, entries := range perBucket {
		nonce, hashes, order, err := mineBucket(entries)
		if err != nil {
			return fmt.Errorf("phf: mining bucket %d: %w", bi, err)
		}
		indices := make([]uint64, len(entries))
		for i, idx := range order {
			indices[i] = entries[idx].row
		}
		tables[bi] = bucketTable{
			nonce:   nonce,
			hashes:  hashes,
			indices: indices,
			base:    base,
		}
		base += uint64(len(entries))
	}

	b.numBuckets = numBuckets
	b.buckets = tables
	b.numKeys = len(keys)
	return nil
}

type kvEntry struct {
	key []byte
	row uint64
}

// mineBucket finds the smallest nonce in [0, mineAttempts) producing no
// collisions among entries' 24-bit masked hashes.
func mineBucket(entries []kvEntry) (nonce uint32, hashes []uint64, order []int, err error) {
	n := len(entries)

	for nonce = 0; nonce < mineAttempts; nonce++ {
		seen := make(map[uint64]struct{}, n)
		collided := false
		hs := make([]uint64, n)
		for i, e := range entries {
			h := entryHash(nonce, e.key) & bucketMask
			if _, dup := seen[h]; dup {
				collided = true
				break
			}
			seen[h] = struct{}{}
			hs[i] = h
		}
		if collided {
			continue
		}

		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool { return hs[order[i]] < hs[order[j]] })
		sorted := make([]uint64, n)
		for i, idx := range order {
			sorted[i] = hs[idx]
		}
		return nonce, sorted, order, nil
	}
	return 0, nil, nil, fmt.Errorf("no collision-free nonce found after %d attempts", mineAttempts)
}

func entryHash(nonce uint32, key []byte) uint64 {
	const blockSize = 32
	var prefixBlock [blockSize]byte
	binary.LittleEndian.PutUint32(prefixBlock[:4], nonce)

	var digest xxhash.Digest
	digest.Reset()
	digest.Write(prefixBlock[:])
	digest.Write(key)
	return digest.Sum64()
}

// GetIndex returns the dense row index assigned to key.
func (b *Bucket) GetIndex(key []byte) (uint64, error) {
	if len(b.buckets) == 0 {
		return 0, ErrNoKeys
	}
	bi := bucketOf(key, b.numBuckets)
	t := &b.buckets[bi]
	h := entryHash(t.nonce, key) & bucketMask
	i := sort.Search(len(t.hashes), func(i int) bool { return t.hashes[i] >= h })
	if i >= len(t.hashes) || t.hashes[i] != h {
		return 0, fmt.Errorf("phf: key not in trained set")
	}
	return t.indices[i], nil
}

func (b *Bucket) MarshalBinary() ([]byte, error) {
	var out []byte
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(b.numKeys))
	binary.LittleEndian.PutUint32(hdr[8:12], b.numBuckets)
	out = append(out, hdr[:]...)
	for _, t := range b.buckets {
		var tb [20]byte
		binary.LittleEndian.PutUint32(tb[0:4], t.nonce)
		binary.LittleEndian.PutUint64(tb[4:12], uint64(len(t.hashes)))
		binary.LittleEndian.PutUint64(tb[12:20], t.base)
		out = append(out, tb[:]...)
		for i, h := range t.hashes {
			// h is always masked to the 24-bit bucket domain, so it packs
			// into 3 bytes via the fixed-width helpers in package indexes.
			out = append(out, indexes.Uint24tob(uint32(h))...)
			var idxb [8]byte
			binary.LittleEndian.PutUint64(idxb[:], t.indices[i])
			out = append(out, idxb[:]...)
		}
	}
	return out, nil
}

func loadBucket(data []byte) (PHF, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("phf: truncated bucket header")
	}
	numKeys := binary.LittleEndian.Uint64(data[0:8])
	numBuckets := binary.LittleEndian.Uint32(data[8:12])
	off := 12

	tables := make([]bucketTable, numBuckets)
	for bi := range tables {
		if len(data) < off+20 {
			return nil, fmt.Errorf("phf: truncated bucket table %d", bi)
		}
		nonce := binary.LittleEndian.Uint32(data[off : off+4])
		count := binary.LittleEndian.Uint64(data[off+4 : off+12])
		base := binary.LittleEndian.Uint64(data[off+12 : off+20])
		off += 20

		hashes := make([]uint64, count)
		indices := make([]uint64, count)
		for i := uint64(0); i < count; i++ {
			if len(data) < off+11 {
				return nil, fmt.Errorf("phf: truncated bucket entries %d", bi)
			}
			hashes[i] = uint64(indexes.BtoUint24(data[off : off+3]))
			indices[i] = binary.LittleEndian.Uint64(data[off+3 : off+11])
			off += 11
		}
		tables[bi] = bucketTable{nonce: nonce, hashes: hashes, indices: indices, base: base}
	}
	return &Bucket{numKeys: int(numKeys), numBuckets: numBuckets, buckets: tables}, nil
}
