// package body turns the payload values a caller may hand to a request or a
// response into a single-use byte source with known or unknown length.
//
// the class of a payload is decided once in [New] and never re-inspected,
// consumers only switch over the resulting [Kind].
package body

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	errs "github.com/frankli0324/go-fetch/internal/errors"
	"github.com/frankli0324/go-fetch/internal/headers"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindBuffer
	KindArray
	KindBlob
	KindForm
	KindStream
)

var kindNames = [...]string{"null", "text", "buffer", "array", "blob", "form", "stream"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

const (
	textContentType       = "text/plain;charset=UTF-8"
	urlencodedContentType = "application/x-www-form-urlencoded;charset=UTF-8"
)

// Options are the consumption settings of a body, usually inherited from the
// request or response owning it.
type Options struct {
	// Size caps the number of bytes accumulated, 0 means unlimited
	Size int64
	// Timeout is the longest pause allowed between two chunks once
	// consumption started, 0 means unlimited
	Timeout time.Duration
	// URL is only used in error messages
	URL string
	// Header of the owner, consulted for the blob type and charset sniffing
	Header *headers.Headers
	// Signal aborts an in-progress consumption when done
	Signal context.Context
}

type Body struct {
	kind  Kind
	data  []byte // text, buffer and array kinds
	ctype string // default content type, text kinds only
	blob  BlobLike
	form  *Form
	src   io.ReadCloser
	hint  int64 // size hint of a stream, -1 when unknown

	opts Options
	used atomic.Bool
}

// New classifies v. Accepted values are nil, string, [fmt.Stringer],
// [net/url.Values], []byte, *[bytes.Buffer], *[bytes.Reader],
// *[strings.Reader], *[io.SectionReader], *[Form], [BlobLike] and any
// other [io.Reader]. An io.Reader with a Size() int64 method has a known
// length.
func New(v any, opts Options) (*Body, error) {
	b := &Body{opts: opts, hint: -1}
	switch v := v.(type) {
	case nil:
		b.kind = KindNull
	case *Body:
		if v == nil {
			break
		}
		c, err := v.Clone()
		if err != nil {
			return nil, err
		}
		c.opts = opts
		return c, nil
	case string:
		b.kind, b.data, b.ctype = KindText, []byte(v), textContentType
	case url.Values:
		b.kind, b.data, b.ctype = KindText, []byte(v.Encode()), urlencodedContentType
	case []byte:
		b.kind, b.data = KindBuffer, v
	case *bytes.Buffer:
		b.kind, b.data = KindBuffer, bytes.Clone(v.Bytes())
	case *bytes.Reader:
		snapshot := *v
		b.kind, b.data = KindArray, mustReadAll(&snapshot)
	case *strings.Reader:
		snapshot := *v
		b.kind, b.data = KindArray, mustReadAll(&snapshot)
	case *io.SectionReader:
		b.kind, b.data = KindArray, mustReadAll(io.NewSectionReader(v, 0, v.Size()))
	case *Form:
		b.kind, b.form = KindForm, v
	case BlobLike:
		b.kind, b.blob = KindBlob, v
	case io.Reader:
		b.kind = KindStream
		if sizer, ok := v.(interface{ Size() int64 }); ok {
			b.hint = sizer.Size()
		}
		rc, ok := v.(io.ReadCloser)
		if !ok {
			rc = io.NopCloser(v)
		}
		b.src = rc
	case fmt.Stringer:
		b.kind, b.data, b.ctype = KindText, []byte(v.String()), textContentType
	default:
		return nil, fmt.Errorf("%w: %T", errs.ErrUnsupportedBody, v)
	}
	return b, nil
}

func mustReadAll(r io.Reader) []byte {
	// in-memory readers never fail
	data, _ := io.ReadAll(r)
	return data
}

func (b *Body) Kind() Kind {
	if b == nil {
		return KindNull
	}
	return b.kind
}

// Used reports whether a consuming call has started on b.
func (b *Body) Used() bool {
	return b != nil && b.used.Load()
}

func (b *Body) Options() Options {
	return b.opts
}

// SetOptions replaces the consumption settings, it has no effect once
// consumption started.
func (b *Body) SetOptions(opts Options) {
	b.opts = opts
}

// ExtractContentType returns the default MIME type for b, false for the
// classes that have nothing sensible to declare.
func ExtractContentType(b *Body) (string, bool) {
	switch b.Kind() {
	case KindText:
		return b.ctype, true
	case KindBlob:
		if t := b.blob.Type(); t != "" {
			return t, true
		}
	case KindForm:
		return b.form.ContentType(), true
	}
	return "", false
}

// TotalBytes returns the byte length of b, false when it cannot be known
// without draining a stream.
func TotalBytes(b *Body) (int64, bool) {
	switch b.Kind() {
	case KindNull:
		return 0, true
	case KindText, KindBuffer, KindArray:
		return int64(len(b.data)), true
	case KindBlob:
		return b.blob.Size(), true
	case KindForm:
		return b.form.Size()
	case KindStream:
		if b.hint >= 0 {
			return b.hint, true
		}
	}
	return 0, false
}

// Reader returns the raw content of b for sending, bypassing the consumption
// limits. In-memory classes can be read any number of times, a stream only
// once.
func (b *Body) Reader() (io.ReadCloser, error) {
	switch b.Kind() {
	case KindNull:
		return io.NopCloser(bytes.NewReader(nil)), nil
	case KindText, KindBuffer, KindArray:
		return io.NopCloser(bytes.NewReader(b.data)), nil
	case KindBlob:
		return readCloser(b.blob.Reader()), nil
	case KindForm:
		return b.form.Reader()
	}
	if !b.used.CompareAndSwap(false, true) {
		return nil, b.usedError()
	}
	return b.src, nil
}

// WriteTo drains b into w without the accumulation limits. Source errors are
// returned as is.
func (b *Body) WriteTo(w io.Writer) (int64, error) {
	r, err := b.Reader()
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return io.Copy(w, r)
}

// Clone returns an independent body with the same content. A stream is
// forked, b keeps one side and the clone gets the other. A form holding
// streamed parts cannot be cloned.
func (b *Body) Clone() (*Body, error) {
	if b == nil {
		return nil, nil
	}
	if b.used.Load() {
		return nil, fmt.Errorf("cannot clone body after it is used: %w", errs.ErrBodyUsed)
	}
	if b.kind == KindForm && !b.form.inMemory() {
		return nil, fmt.Errorf("cannot clone a form with streamed parts: %w", errs.ErrUnsupportedBody)
	}
	c := &Body{
		kind: b.kind, data: b.data, ctype: b.ctype,
		blob: b.blob, form: b.form, hint: b.hint,
		opts: b.opts,
	}
	if b.kind == KindStream {
		t := newTee(b.src)
		b.src, c.src = t.side(0), t.side(1)
	}
	return c, nil
}

// Move transfers the content of b into a new body. b reads as used
// afterwards, a stream is handed over without being forked.
func (b *Body) Move() (*Body, error) {
	if b == nil {
		return nil, nil
	}
	if !b.used.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("cannot move body after it is used: %w", errs.ErrBodyUsed)
	}
	return &Body{
		kind: b.kind, data: b.data, ctype: b.ctype,
		blob: b.blob, form: b.form, src: b.src, hint: b.hint,
		opts: b.opts,
	}, nil
}

// Close releases an unconsumed stream.
func (b *Body) Close() error {
	if b.Kind() != KindStream {
		return nil
	}
	return b.src.Close()
}

func (b *Body) usedError() error {
	return fmt.Errorf("%w for: %s", errs.ErrBodyUsed, b.opts.URL)
}

func readCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}
