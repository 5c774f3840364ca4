package bitcoin

import (
	"encoding/binary"
	"fmt"
)

// reader walks a byte slice during consensus deserialization. All reads fail
// with ErrTruncated once the underlying slice is exhausted; decoders for
// top-level structures additionally require the reader to be fully consumed.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, ErrTruncated
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *reader) readUint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) readUint64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// readCompactSize decodes Bitcoin's variable-length integer encoding.
// Non-minimal encodings (e.g. 0xfd 0x01 0x00 for the value 1) are rejected
// so that every value has exactly one serialized form.
func (r *reader) readCompactSize() (uint64, error) {
	marker, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch marker {
	case 0xfd:
		if r.remaining() < 2 {
			return 0, ErrTruncated
		}
		v := uint64(binary.LittleEndian.Uint16(r.buf[r.off:]))
		r.off += 2
		if v < 0xfd {
			return 0, fmt.Errorf("%w: non-minimal compact size %d", ErrBadEncoding, v)
		}
		return v, nil
	case 0xfe:
		v, err := r.readUint32()
		if err != nil {
			return 0, err
		}
		if v < 0x10000 {
			return 0, fmt.Errorf("%w: non-minimal compact size %d", ErrBadEncoding, v)
		}
		return uint64(v), nil
	case 0xff:
		v, err := r.readUint64()
		if err != nil {
			return 0, err
		}
		if v < 0x100000000 {
			return 0, fmt.Errorf("%w: non-minimal compact size %d", ErrBadEncoding, v)
		}
		return v, nil
	default:
		return uint64(marker), nil
	}
}

// readCount reads a compact-size element count and bounds it by the bytes
// still available, assuming each element occupies at least minElementSize
// bytes. This keeps a hostile count from forcing a huge allocation before
// the truncation is noticed.
func (r *reader) readCount(minElementSize int) (int, error) {
	n, err := r.readCompactSize()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.remaining()/minElementSize) {
		return 0, fmt.Errorf("%w: count %d exceeds remaining input", ErrTruncated, n)
	}
	return int(n), nil
}

// readVarBytes reads a compact-size length prefix followed by that many bytes.
func (r *reader) readVarBytes() ([]byte, error) {
	n, err := r.readCompactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.remaining()) {
		return nil, fmt.Errorf("%w: byte string length %d exceeds remaining input", ErrTruncated, n)
	}
	return r.readBytes(int(n))
}

// putCompactSize appends the minimal compact-size encoding of n to buf.
func putCompactSize(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n < 0x10000:
		buf = append(buf, 0xfd)
		return binary.LittleEndian.AppendUint16(buf, uint16(n))
	case n < 0x100000000:
		buf = append(buf, 0xfe)
		return binary.LittleEndian.AppendUint32(buf, uint32(n))
	default:
		buf = append(buf, 0xff)
		return binary.LittleEndian.AppendUint64(buf, n)
	}
}

// putVarBytes appends a compact-size length prefix and the bytes themselves.
func putVarBytes(buf, b []byte) []byte {
	buf = putCompactSize(buf, uint64(len(b)))
	return append(buf, b...)
}
