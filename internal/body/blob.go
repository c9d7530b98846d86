package body

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// BlobLike is a sized, typed container that can produce its bytes on demand.
type BlobLike interface {
	Size() int64
	Type() string
	Reader() io.Reader
}

// Blob is an immutable in-memory BlobLike.
type Blob struct {
	data []byte
	typ  string
}

// NewBlob concatenates parts into a Blob of type typ. A part is a string,
// []byte, *Blob or [fmt.Stringer].
func NewBlob(typ string, parts ...any) (*Blob, error) {
	var buf bytes.Buffer
	for _, p := range parts {
		switch p := p.(type) {
		case string:
			buf.WriteString(p)
		case []byte:
			buf.Write(p)
		case *Blob:
			buf.Write(p.data)
		case fmt.Stringer:
			buf.WriteString(p.String())
		default:
			return nil, fmt.Errorf("unsupported blob part: %T", p)
		}
	}
	return &Blob{data: buf.Bytes(), typ: normalizeType(typ)}, nil
}

// a type with anything outside of printable ASCII is dropped
func normalizeType(typ string) string {
	for i := 0; i < len(typ); i++ {
		if typ[i] < 0x20 || typ[i] > 0x7e {
			return ""
		}
	}
	return strings.ToLower(typ)
}

func (b *Blob) Size() int64 { return int64(len(b.data)) }

func (b *Blob) Type() string { return b.typ }

func (b *Blob) Reader() io.Reader { return bytes.NewReader(b.data) }

// Bytes returns a copy of the content.
func (b *Blob) Bytes() []byte { return bytes.Clone(b.data) }

func (b *Blob) Text() string { return string(b.data) }

// Slice returns the bytes in [start, end) as a new Blob of type typ. Negative
// offsets count from the end, out of range offsets are clamped.
func (b *Blob) Slice(start, end int64, typ string) *Blob {
	size := b.Size()
	clamp := func(off int64) int64 {
		if off < 0 {
			off += size
		}
		return max(0, min(off, size))
	}
	from, to := clamp(start), clamp(end)
	if from >= to {
		return &Blob{data: []byte{}, typ: normalizeType(typ)}
	}
	return &Blob{data: b.data[from:to:to], typ: normalizeType(typ)}
}
