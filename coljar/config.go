package coljar

import (
	"encoding/binary"
	"fmt"

	"github.com/rpcpool/coljar/codec"
	"github.com/rpcpool/coljar/phf"
)

const (
	dataMagic     = "CLJR"
	indexMagic    = "CLIX"
	formatVersion byte = 1
)

// config is the fixed-plus-length-delimited header written at the start of
// the data file. Everything after it, up to EOF, is row data.
type config struct {
	numColumns   uint32
	numRows      uint64
	nullableMask uint64
	codecKind    codec.Kind
	keyAddr      bool
	phfKind      phf.Kind

	header     []byte
	meta       []byte // indexmeta.Meta, marshaled
	codecState []byte
	filterData []byte
	phfData    []byte
}

func (c *config) marshal() []byte {
	var buf []byte
	buf = append(buf, dataMagic...)
	buf = append(buf, formatVersion)
	buf = appendUint32(buf, c.numColumns)
	buf = appendUint64(buf, c.numRows)
	buf = appendUint64(buf, c.nullableMask)
	buf = append(buf, byte(c.codecKind))
	buf = append(buf, boolByte(c.keyAddr))
	buf = append(buf, byte(c.phfKind))
	buf = appendBlob(buf, c.header)
	buf = appendBlob(buf, c.meta)
	buf = appendBlob(buf, c.codecState)
	buf = appendBlob(buf, c.filterData)
	buf = appendBlob(buf, c.phfData)
	return buf
}

func unmarshalConfig(data []byte) (*config, int, error) {
	if len(data) < 5 {
		return nil, 0, fmt.Errorf("coljar: truncated config magic")
	}
	if string(data[0:4]) != dataMagic {
		return nil, 0, fmt.Errorf("coljar: bad magic %q", data[0:4])
	}
	version := data[4]
	if version != formatVersion {
		return nil, 0, fmt.Errorf("coljar: unsupported format version %d", version)
	}
	off := 5

	c := &config{}
	var err error
	c.numColumns, off, err = readUint32(data, off)
	if err != nil {
		return nil, 0, err
	}
	c.numRows, off, err = readUint64(data, off)
	if err != nil {
		return nil, 0, err
	}
	c.nullableMask, off, err = readUint64(data, off)
	if err != nil {
		return nil, 0, err
	}
	if off >= len(data) {
		return nil, 0, fmt.Errorf("coljar: truncated config")
	}
	c.codecKind = codec.Kind(data[off])
	off++
	if off >= len(data) {
		return nil, 0, fmt.Errorf("coljar: truncated config")
	}
	c.keyAddr = data[off] != 0
	off++
	if off >= len(data) {
		return nil, 0, fmt.Errorf("coljar: truncated config")
	}
	c.phfKind = phf.Kind(data[off])
	off++

	c.header, off, err = readBlob(data, off)
	if err != nil {
		return nil, 0, fmt.Errorf("coljar: header: %w", err)
	}
	c.meta, off, err = readBlob(data, off)
	if err != nil {
		return nil, 0, fmt.Errorf("coljar: meta: %w", err)
	}
	c.codecState, off, err = readBlob(data, off)
	if err != nil {
		return nil, 0, fmt.Errorf("coljar: codec state: %w", err)
	}
	c.filterData, off, err = readBlob(data, off)
	if err != nil {
		return nil, 0, fmt.Errorf("coljar: filter: %w", err)
	}
	c.phfData, off, err = readBlob(data, off)
	if err != nil {
		return nil, 0, fmt.Errorf("coljar: phf: %w", err)
	}
	return c, off, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func appendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendBlob(dst []byte, blob []byte) []byte {
	dst = appendUint32(dst, uint32(len(blob)))
	return append(dst, blob...)
}

func readUint32(data []byte, off int) (uint32, int, error) {
	if len(data) < off+4 {
		return 0, 0, fmt.Errorf("coljar: truncated uint32 at offset %d", off)
	}
	return binary.LittleEndian.Uint32(data[off : off+4]), off + 4, nil
}

func readUint64(data []byte, off int) (uint64, int, error) {
	if len(data) < off+8 {
		return 0, 0, fmt.Errorf("coljar: truncated uint64 at offset %d", off)
	}
	return binary.LittleEndian.Uint64(data[off : off+8]), off + 8, nil
}

func readBlob(data []byte, off int) ([]byte, int, error) {
	n, off, err := readUint32(data, off)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < off+int(n) {
		return nil, 0, fmt.Errorf("coljar: truncated blob at offset %d", off)
	}
	return data[off : off+int(n)], off + int(n), nil
}

// indexFile is the fixed-plus-length-delimited header of the P.idx file.
type indexFile struct {
	numOffsets uint64
	offsets    []byte // eliasfano.EliasFano, marshaled
	hasKeyMap  bool
	keyMap     []byte // eliasfano.PrefixSummed, marshaled
}

func (x *indexFile) marshal() []byte {
	var buf []byte
	buf = append(buf, indexMagic...)
	buf = append(buf, formatVersion)
	buf = appendUint64(buf, x.numOffsets)
	buf = appendBlob(buf, x.offsets)
	buf = append(buf, boolByte(x.hasKeyMap))
	buf = appendBlob(buf, x.keyMap)
	return buf
}

func unmarshalIndexFile(data []byte) (*indexFile, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("coljar: truncated index magic")
	}
	if string(data[0:4]) != indexMagic {
		return nil, fmt.Errorf("coljar: bad index magic %q", data[0:4])
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("coljar: unsupported index format version %d", data[4])
	}
	off := 5

	x := &indexFile{}
	var err error
	x.numOffsets, off, err = readUint64(data, off)
	if err != nil {
		return nil, err
	}
	x.offsets, off, err = readBlob(data, off)
	if err != nil {
		return nil, fmt.Errorf("coljar: offsets: %w", err)
	}
	if off >= len(data) {
		return nil, fmt.Errorf("coljar: truncated index file")
	}
	x.hasKeyMap = data[off] != 0
	off++
	x.keyMap, _, err = readBlob(data, off)
	if err != nil {
		return nil, fmt.Errorf("coljar: key map: %w", err)
	}
	return x, nil
}
