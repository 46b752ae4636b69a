// Package filter implements the jar's inclusion filter: an approximate
// membership structure with no false negatives and a fixed capacity, used
// to reject row_by_key lookups on keys that were never trained into the
// jar without having to consult the perfect hash function at all.
//
// Grounded on a hash-then-probe membership sketch once kept alongside
// this module, adapted into a true cuckoo filter since that sketch was an
// unbounded append-only set with no eviction and no capacity ceiling.
package filter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// ErrMaxCapacity is returned by Add (and by Build, via the failed key) when
// the filter cannot accommodate another key without exceeding the bounded
// number of relocation attempts.
var ErrMaxCapacity = errors.New("filter: max capacity reached")

const (
	slotsPerBucket = 4
	maxKicks       = 500
)

// Cuckoo is a fixed-capacity cuckoo filter keyed by 64-bit hashes of
// arbitrary byte keys. It never produces a false negative: every key added
// with Add is guaranteed to report true from Contains until the filter is
// discarded.
type Cuckoo struct {
	buckets    []bucket
	numBuckets uint64
	count      int
	capacity   int
}

type bucket [slotsPerBucket]uint8

// Build trains a new filter over the given keys against a fixed capacity.
// It does not widen capacity to fit len(keys): once capacity keys have been
// added, further Add calls (here or later) fail with ErrMaxCapacity.
func Build(keys [][]byte, capacity int) (*Cuckoo, error) {
	c := New(capacity)
	for _, k := range keys {
		if err := c.Add(k); err != nil {
			return nil, fmt.Errorf("filter: training key %q: %w", k, err)
		}
	}
	return c, nil
}

// New allocates an empty filter sized for capacity keys.
func New(capacity int) *Cuckoo {
	if capacity < 1 {
		capacity = 1
	}
	numBuckets := nextPow2(uint64((capacity + slotsPerBucket - 1) / slotsPerBucket))
	if numBuckets < 1 {
		numBuckets = 1
	}
	// Load factor headroom: a cuckoo filter with 4 slots/bucket gets
	// unreliable insertion above ~95% occupancy; double the bucket count
	// to keep Add's relocation search cheap at the target capacity.
	numBuckets *= 2
	return &Cuckoo{
		buckets:    make([]bucket, numBuckets),
		numBuckets: numBuckets,
		capacity:   capacity,
	}
}

func nextPow2(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return 1 << bits.Len64(v-1)
}

// fingerprint and the two candidate bucket indices for a key, both derived
// from a single 64-bit xxhash sum.
func (c *Cuckoo) locate(key []byte) (fp uint8, i1, i2 uint64) {
	h := xxhash.Sum64(key)
	fp = uint8(h>>56) | 1 // never zero: zero means "empty slot"
	i1 = h & (c.numBuckets - 1)
	i2 = (i1 ^ hashFingerprint(fp)) & (c.numBuckets - 1)
	return fp, i1, i2
}

func hashFingerprint(fp uint8) uint64 {
	var b [1]byte
	b[0] = fp
	return xxhash.Sum64(b[:])
}

// Add inserts key into the filter. Returns ErrMaxCapacity if the filter is
// already at its configured capacity, or if no free slot could be found
// within the bounded number of relocation attempts.
func (c *Cuckoo) Add(key []byte) error {
	if c.count >= c.capacity {
		return ErrMaxCapacity
	}

	fp, i1, i2 := c.locate(key)

	if c.insertInto(i1, fp) || c.insertInto(i2, fp) {
		c.count++
		return nil
	}

	type kick struct {
		bucket uint64
		slot   int
	}
	var path []kick
	i := i1
	for n := 0; n < maxKicks; n++ {
		slot := n % slotsPerBucket
		victim := c.buckets[i][slot]
		c.buckets[i][slot] = fp
		path = append(path, kick{bucket: i, slot: slot})
		fp = victim
		i = (i ^ hashFingerprint(fp)) & (c.numBuckets - 1)
		if c.insertInto(i, fp) {
			c.count++
			return nil
		}
	}
	// Undo the relocations so no previously added fingerprint is lost.
	for k := len(path) - 1; k >= 0; k-- {
		p := path[k]
		fp, c.buckets[p.bucket][p.slot] = c.buckets[p.bucket][p.slot], fp
	}
	return ErrMaxCapacity
}

func (c *Cuckoo) insertInto(i uint64, fp uint8) bool {
	b := &c.buckets[i]
	for s := 0; s < slotsPerBucket; s++ {
		if b[s] == 0 {
			b[s] = fp
			return true
		}
	}
	return false
}

// Contains reports whether key may be a member. False positives are
// possible; false negatives are not, provided key was previously Add-ed.
func (c *Cuckoo) Contains(key []byte) bool {
	fp, i1, i2 := c.locate(key)
	return bucketHas(&c.buckets[i1], fp) || bucketHas(&c.buckets[i2], fp)
}

func bucketHas(b *bucket, fp uint8) bool {
	for _, s := range b {
		if s == fp {
			return true
		}
	}
	return false
}

// Len returns the number of keys added so far.
func (c *Cuckoo) Len() int { return c.count }

// Capacity returns the target capacity the filter was built for.
func (c *Cuckoo) Capacity() int { return c.capacity }

// MarshalBinary serializes the filter for embedding in a jar's
// configuration blob.
func (c *Cuckoo) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+8+8+len(c.buckets)*slotsPerBucket)
	binary.LittleEndian.PutUint64(buf[0:8], c.numBuckets)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(c.count))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(c.capacity))
	off := 24
	for _, b := range c.buckets {
		copy(buf[off:off+slotsPerBucket], b[:])
		off += slotsPerBucket
	}
	return buf, nil
}

// UnmarshalBinary reconstructs a filter previously written by MarshalBinary.
func UnmarshalBinary(data []byte) (*Cuckoo, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("filter: truncated header (%d bytes)", len(data))
	}
	numBuckets := binary.LittleEndian.Uint64(data[0:8])
	count := binary.LittleEndian.Uint64(data[8:16])
	capacity := binary.LittleEndian.Uint64(data[16:24])
	want := 24 + int(numBuckets)*slotsPerBucket
	if len(data) < want {
		return nil, fmt.Errorf("filter: truncated buckets: want %d bytes, got %d", want, len(data))
	}
	c := &Cuckoo{
		buckets:    make([]bucket, numBuckets),
		numBuckets: numBuckets,
		count:      int(count),
		capacity:   int(capacity),
	}
	off := 24
	for i := range c.buckets {
		copy(c.buckets[i][:], data[off:off+slotsPerBucket])
		off += slotsPerBucket
	}
	return c, nil
}
