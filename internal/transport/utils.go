package transport

import (
	"errors"
	"io"
)

type bodyCloser struct {
	io.Reader
	close func() error
}

func (b *bodyCloser) Close() error {
	return b.close()
}

type prematureClose struct{}

func (prematureClose) Error() string { return "Premature close" }
func (prematureClose) Code() string  { return "ERR_STREAM_PREMATURE_CLOSE" }

// ErrPrematureClose is returned when the connection ends before the framing
// of a response body said it would.
var ErrPrematureClose error = prematureClose{}

// lengthReader reads exactly n bytes, a source ending early is a premature
// close.
type lengthReader struct {
	r io.Reader
	n int64
}

func (l *lengthReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if errors.Is(err, io.EOF) {
		if l.n > 0 {
			return n, ErrPrematureClose
		}
		err = nil
	}
	if err == nil && l.n == 0 {
		err = io.EOF
	}
	return n, err
}
