package chunked

import (
	"bufio"
	"errors"
	"io"
	"net/textproto"
)

// NewChunkedReader decodes the chunked transfer coding from r. onTrailer is
// called once, with the trailer section after the last chunk or with the
// error that ended the body before it.
func NewChunkedReader(r io.Reader, onTrailer func(map[string][]string, error)) io.Reader {
	var br *bufio.Reader
	if v, ok := r.(*bufio.Reader); ok {
		br = v
	} else {
		br = bufio.NewReader(r)
	}
	if onTrailer == nil {
		onTrailer = func(map[string][]string, error) {}
	}
	return &chunkedReader{Reader: br, onTrailer: onTrailer}
}

type chunkedReader struct {
	*bufio.Reader
	currentChunk                   io.Reader
	currentCount, currentChunkSize int64

	onTrailer func(map[string][]string, error)
	err       error
}

func (c *chunkedReader) readChunkHeader() (len uint64, err error) {
	digits := 0
	isPref := true
	ext := false
	for isPref {
		var line []byte
		line, isPref, err = c.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		for _, b := range line {
			if ext {
				break
			}
			switch {
			case '0' <= b && b <= '9':
				b = b - '0'
			case 'a' <= b && b <= 'f':
				b = b - 'a' + 10
			case 'A' <= b && b <= 'F':
				b = b - 'A' + 10
			case b == ';' || b == ' ' || b == '\t':
				// chunk extensions are ignored
				ext = true
				continue
			default:
				return 0, errors.New("invalid byte in chunk length")
			}
			digits++
			len <<= 4
			len |= uint64(b)
		}
		if digits >= 16 {
			return 0, errors.New("http chunk length too large")
		}
	}
	if digits == 0 {
		return 0, errors.New("empty chunk length")
	}
	return
}

func (c *chunkedReader) fail(err error) error {
	if c.err == nil {
		c.err = err
		c.onTrailer(nil, err)
	}
	return c.err
}

func (c *chunkedReader) readTrailer() error {
	m, err := textproto.NewReader(c.Reader).ReadMIMEHeader()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return c.fail(err)
	}
	c.err = io.EOF
	c.onTrailer(m, nil)
	return io.EOF
}

func (c *chunkedReader) Read(p []byte) (n int, err error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.currentChunk == nil {
		l, err := c.readChunkHeader()
		if err != nil {
			return n, c.fail(err)
		}
		if l == 0 {
			return 0, c.readTrailer()
		}
		c.currentChunk = io.LimitReader(c.Reader, int64(l))
		c.currentChunkSize = int64(l)
	}
	n, err = c.currentChunk.Read(p)
	c.currentCount += int64(n)
	if err == io.EOF || (err == nil && c.currentCount == c.currentChunkSize) {
		if c.currentCount != c.currentChunkSize {
			return n, c.fail(io.ErrUnexpectedEOF)
		}
		err = nil
		dr, _ := c.Reader.ReadByte()
		dn, err := c.Reader.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return n, c.fail(err)
		}
		if dr != '\r' || dn != '\n' {
			return n, c.fail(errors.New("malformed chunked encoding"))
		}
		c.currentChunk = nil
		c.currentCount = 0
	} else if err != nil {
		return n, c.fail(err)
	}
	return n, nil
}
