package eliasfano

import "fmt"

// PrefixSummed encodes an arbitrary sequence of non-negative integers (not
// necessarily monotone) by storing its running sum, which is monotone by
// construction. Used for the jar's key->row dense map: the permutation
// itself jumps around, but its prefix sum never decreases.
type PrefixSummed struct {
	ef *EliasFano
}

// PrefixSummedBuilder accumulates values and their running sum.
type PrefixSummedBuilder struct {
	inner *Builder
	sum   uint64
}

// NewPrefixSummedBuilder prepares a builder for n values whose individual
// magnitudes are each < maxValue.
func NewPrefixSummedBuilder(n, maxValue uint64) *PrefixSummedBuilder {
	universe := n * maxValue
	return &PrefixSummedBuilder{inner: NewBuilder(universe, n)}
}

// Push appends the next value (not its running sum; PrefixSummedBuilder
// tracks that internally).
func (b *PrefixSummedBuilder) Push(v uint64) error {
	b.sum += v
	return b.inner.Push(b.sum)
}

func (b *PrefixSummedBuilder) Build() (*PrefixSummed, error) {
	ef, err := b.inner.Build()
	if err != nil {
		return nil, err
	}
	return &PrefixSummed{ef: ef}, nil
}

// Len returns the number of encoded values.
func (p *PrefixSummed) Len() uint64 { return p.ef.Len() }

// Get returns the i-th original value (the prefix sum is undone by
// subtracting the (i-1)-th running sum).
func (p *PrefixSummed) Get(i uint64) (uint64, error) {
	cur, err := p.ef.Get(i)
	if err != nil {
		return 0, fmt.Errorf("eliasfano: prefix-summed get: %w", err)
	}
	if i == 0 {
		return cur, nil
	}
	prev, err := p.ef.Get(i - 1)
	if err != nil {
		return 0, fmt.Errorf("eliasfano: prefix-summed get: %w", err)
	}
	return cur - prev, nil
}

func (p *PrefixSummed) MarshalBinary() ([]byte, error) {
	return p.ef.MarshalBinary()
}

func LoadPrefixSummed(data []byte) (*PrefixSummed, error) {
	ef, err := Load(data)
	if err != nil {
		return nil, err
	}
	return &PrefixSummed{ef: ef}, nil
}
