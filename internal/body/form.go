package body

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
)

type formPart struct {
	name, filename string
	value          string
	blob           *Blob
	stream         io.Reader
}

// Form is a multipart/form-data container. Its length is known as long as
// every part is held in memory, a streamed file part makes it a single-use
// body of unknown length.
type Form struct {
	boundary string
	parts    []formPart

	once     sync.Once
	rendered []byte
	err      error
}

func NewForm() *Form {
	return &Form{boundary: multipart.NewWriter(io.Discard).Boundary()}
}

func (f *Form) Boundary() string { return f.boundary }

func (f *Form) ContentType() string {
	return "multipart/form-data;boundary=" + f.boundary
}

// Append adds a plain field.
func (f *Form) Append(name, value string) {
	f.parts = append(f.parts, formPart{name: name, value: value})
}

// AppendBlob adds a file field backed by an in-memory blob.
func (f *Form) AppendBlob(name, filename string, b *Blob) {
	f.parts = append(f.parts, formPart{name: name, filename: filename, blob: b})
}

// AppendStream adds a file field read from r when the form is sent.
func (f *Form) AppendStream(name, filename string, r io.Reader) {
	f.parts = append(f.parts, formPart{name: name, filename: filename, stream: r})
}

func (f *Form) inMemory() bool {
	for _, p := range f.parts {
		if p.stream != nil {
			return false
		}
	}
	return true
}

// Size is the encoded length, false when a part is streamed.
func (f *Form) Size() (int64, bool) {
	if !f.inMemory() {
		return 0, false
	}
	data, err := f.render()
	if err != nil {
		return 0, false
	}
	return int64(len(data)), true
}

func (f *Form) render() ([]byte, error) {
	f.once.Do(func() {
		var buf bytes.Buffer
		f.err = f.encode(&buf)
		f.rendered = buf.Bytes()
	})
	return f.rendered, f.err
}

// Reader returns the encoded form. An in-memory form can be read any number
// of times.
func (f *Form) Reader() (io.ReadCloser, error) {
	if f.inMemory() {
		data, err := f.render()
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(f.encode(pw))
	}()
	return pr, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (f *Form) encode(w io.Writer) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(f.boundary); err != nil {
		return err
	}
	for _, p := range f.parts {
		if p.blob == nil && p.stream == nil {
			if err := mw.WriteField(p.name, p.value); err != nil {
				return err
			}
			continue
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(p.name), quoteEscaper.Replace(p.filename)))
		ctype := "application/octet-stream"
		if p.blob != nil && p.blob.Type() != "" {
			ctype = p.blob.Type()
		}
		h.Set("Content-Type", ctype)
		pw, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		src := p.stream
		if p.blob != nil {
			src = p.blob.Reader()
		}
		if _, err := io.Copy(pw, src); err != nil {
			return err
		}
	}
	return mw.Close()
}
