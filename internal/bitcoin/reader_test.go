package bitcoin

import (
	"errors"
	"testing"
)

func TestCompactSizeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		value   uint64
		encoded int
	}{
		{"zero", 0, 1},
		{"one", 1, 1},
		{"max single byte", 0xfc, 1},
		{"min two byte", 0xfd, 3},
		{"max two byte", 0xffff, 3},
		{"min four byte", 0x10000, 5},
		{"max four byte", 0xffffffff, 5},
		{"min eight byte", 0x100000000, 9},
		{"large", 0x1234567890abcdef, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := putCompactSize(nil, tt.value)
			if len(encoded) != tt.encoded {
				t.Fatalf("encoded length = %d, want %d (minimal marker class)", len(encoded), tt.encoded)
			}
			r := newReader(encoded)
			got, err := r.readCompactSize()
			if err != nil {
				t.Fatalf("readCompactSize() error = %v", err)
			}
			if got != tt.value {
				t.Fatalf("readCompactSize() = %d, want %d", got, tt.value)
			}
			if r.remaining() != 0 {
				t.Fatalf("reader has %d bytes left", r.remaining())
			}
		})
	}
}

func TestCompactSizeNonMinimal(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"0xfd for small value", []byte{0xfd, 0x01, 0x00}},
		{"0xfe for two-byte value", []byte{0xfe, 0xff, 0xff, 0x00, 0x00}},
		{"0xff for four-byte value", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReader(tt.input)
			if _, err := r.readCompactSize(); !errors.Is(err, ErrBadEncoding) {
				t.Fatalf("readCompactSize() error = %v, want ErrBadEncoding", err)
			}
		})
	}
}

func TestCompactSizeTruncated(t *testing.T) {
	full := putCompactSize(nil, 0x10000)
	for i := 0; i < len(full); i++ {
		r := newReader(full[:i])
		if _, err := r.readCompactSize(); !errors.Is(err, ErrTruncated) {
			t.Fatalf("prefix of %d bytes: error = %v, want ErrTruncated", i, err)
		}
	}
}

func TestReadVarBytesOversizedLength(t *testing.T) {
	// Length prefix claims more bytes than the buffer holds.
	r := newReader([]byte{0x05, 0x01, 0x02})
	if _, err := r.readVarBytes(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("readVarBytes() error = %v, want ErrTruncated", err)
	}
}

func TestReadCountBoundsAllocation(t *testing.T) {
	// A count of 2^32 elements over a 10-byte buffer must fail before any
	// allocation happens.
	buf := putCompactSize(nil, 1<<32)
	buf = append(buf, make([]byte, 10)...)
	r := newReader(buf)
	if _, err := r.readCount(41); !errors.Is(err, ErrTruncated) {
		t.Fatalf("readCount() error = %v, want ErrTruncated", err)
	}
}
