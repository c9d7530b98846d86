package body

import (
	"bytes"
	"io"

	"github.com/goccy/go-json"

	"github.com/frankli0324/go-fetch/internal/charset"
	errs "github.com/frankli0324/go-fetch/internal/errors"
)

// take marks b used, failing when a consuming call already started.
func (b *Body) take() error {
	if b == nil {
		return nil
	}
	if !b.used.CompareAndSwap(false, true) {
		return b.usedError()
	}
	return nil
}

// source returns the guarded byte source of a body that is not held in
// memory.
func (b *Body) source(wrap func(string, error) *errs.FetchError) *guardedReader {
	var src io.ReadCloser
	switch b.kind {
	case KindBlob:
		src = readCloser(b.blob.Reader())
	case KindForm:
		r, err := b.form.Reader()
		if err != nil {
			src = errReader{err}
		} else {
			src = r
		}
	default:
		src = b.src
	}
	return newGuardedReader(src, b.opts, wrap)
}

// Bytes accumulates the whole body, it serves both buffer() and
// arrayBuffer().
func (b *Body) Bytes() ([]byte, error) {
	if err := b.take(); err != nil {
		return nil, err
	}
	switch b.Kind() {
	case KindNull:
		return []byte{}, nil
	case KindText, KindBuffer, KindArray:
		return bytes.Clone(b.data), nil
	}
	g := b.source(errs.Consume)
	defer g.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Text accumulates the body and decodes it as UTF-8.
func (b *Body) Text() (string, error) {
	data, err := b.Bytes()
	return string(data), err
}

// JSON accumulates the body and unmarshals it into v.
func (b *Body) JSON(v any) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.InvalidJSON(b.opts.URL, err)
	}
	return nil
}

// Blob accumulates the body into a [Blob] typed by the Content-Type of the
// owner, if any.
func (b *Body) Blob() (*Blob, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	var ctype string
	if b != nil {
		ctype = b.opts.Header.Value("Content-Type")
	}
	return &Blob{data: data, typ: ctype}, nil
}

// TextConverted accumulates the body and decodes it from the charset declared
// by the owner's Content-Type or by the document itself.
func (b *Body) TextConverted() (string, error) {
	data, err := b.Bytes()
	if err != nil {
		return "", err
	}
	var ctype string
	if b != nil {
		ctype = b.opts.Header.Value("Content-Type")
	}
	label := charset.Sniff(ctype, data)
	text, err := charset.Decode(data, label)
	if err != nil {
		return "", errs.Invalid(b.opts.URL, err)
	}
	return text, nil
}

// Stream hands the body out as a reader, still subject to the size cap, the
// inactivity timer and the signal. The caller must Close it.
func (b *Body) Stream() (io.ReadCloser, error) {
	if err := b.take(); err != nil {
		return nil, err
	}
	switch b.Kind() {
	case KindNull:
		return io.NopCloser(bytes.NewReader(nil)), nil
	case KindText, KindBuffer, KindArray:
		return io.NopCloser(bytes.NewReader(b.data)), nil
	}
	return b.source(errs.Invalid), nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
func (r errReader) Close() error             { return nil }
