// package decompress decides which decoding stage, if any, sits between the
// transport byte stream and a response body, and maps codec failures onto
// zlib/brotli style error codes.
package decompress

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

type Algorithm string

const (
	None       Algorithm = ""
	Gzip       Algorithm = "gzip"
	Deflate    Algorithm = "deflate"
	DeflateRaw Algorithm = "deflate-raw"
	Brotli     Algorithm = "br"
)

// AcceptEncoding lists the codecs this package can reverse.
const AcceptEncoding = "gzip,deflate,br"

// Select picks the algorithm for a response. Only the first listed
// Content-Encoding token is considered, and HEAD requests as well as 204 and
// 304 responses never decode since they carry no body bytes.
func Select(method string, status int, contentEncoding string) Algorithm {
	if method == http.MethodHead || status == http.StatusNoContent || status == http.StatusNotModified {
		return None
	}
	first, _, _ := strings.Cut(contentEncoding, ",")
	switch strings.ToLower(strings.TrimSpace(first)) {
	case "gzip", "x-gzip":
		return Gzip
	case "deflate":
		return Deflate
	case "br":
		return Brotli
	}
	return None
}

// CodecError is a mid-stream decoding failure, Code is the zlib or brotli
// native error code of the failure.
type CodecError struct {
	Algorithm Algorithm
	code      string
	Err       error
}

func (e *CodecError) Error() string {
	return string(e.Algorithm) + ": " + e.Err.Error()
}

func (e *CodecError) Unwrap() error { return e.Err }

func (e *CodecError) Code() string { return e.code }

func zlibCode(err error) string {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "Z_BUF_ERROR"
	case errors.Is(err, gzip.ErrHeader), errors.Is(err, gzip.ErrChecksum),
		errors.Is(err, zlib.ErrHeader), errors.Is(err, zlib.ErrChecksum), errors.Is(err, zlib.ErrDictionary),
		errors.As(err, &corrupt):
		return "Z_DATA_ERROR"
	}
	return "Z_ERRNO"
}

func brotliCode(err error) string {
	// brotli reports "brotli: _ERROR_FORMAT_..." style messages
	msg := strings.TrimPrefix(err.Error(), "brotli: ")
	if strings.HasPrefix(msg, "_ERROR") {
		return "BROTLI_DECODER" + msg
	}
	return "BROTLI_DECODER_ERROR"
}

// Wrap attaches the decoding stage for algo on top of r. Decoders are created
// on the first Read so that nothing is pulled from r before the consumer asks.
func Wrap(r io.ReadCloser, algo Algorithm) io.ReadCloser {
	if algo == None {
		return r
	}
	return &decoder{src: r, algo: algo}
}

type decoder struct {
	src  io.ReadCloser
	algo Algorithm
	dec  io.Reader
	err  error
}

func (d *decoder) init() error {
	br := bufio.NewReader(d.src)
	switch d.algo {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return err
		}
		d.dec = zr
	case Deflate:
		// zlib wrapped unless the two byte header says otherwise, some
		// servers send raw deflate labelled as deflate
		head, err := br.Peek(2)
		if err != nil && len(head) < 2 {
			if err == io.EOF && len(head) == 1 {
				err = io.ErrUnexpectedEOF
			}
			return err
		}
		if head[0]&0x0f == 8 && (uint16(head[0])<<8|uint16(head[1]))%31 == 0 {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return err
			}
			d.dec = zr
		} else {
			d.algo = DeflateRaw
			d.dec = flate.NewReader(br)
		}
	case DeflateRaw:
		d.dec = flate.NewReader(br)
	case Brotli:
		d.dec = brotli.NewReader(br)
	default:
		d.dec = br
	}
	return nil
}

func (d *decoder) Read(p []byte) (n int, err error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.dec == nil {
		if err := d.init(); err != nil {
			if errors.Is(err, io.EOF) && d.algo != Brotli {
				// empty body labelled as compressed
				d.err = io.EOF
				return 0, io.EOF
			}
			d.err = d.wrapErr(err)
			return 0, d.err
		}
	}
	n, err = d.dec.Read(p)
	if err != nil && err != io.EOF {
		if errors.Is(err, io.ErrUnexpectedEOF) && d.algo != Brotli {
			// missing trailer on an otherwise well formed stream
			err = io.EOF
		} else {
			err = d.wrapErr(err)
		}
	}
	if err != nil {
		d.err = err
	}
	return n, err
}

func (d *decoder) wrapErr(err error) error {
	var ce *CodecError
	if errors.As(err, &ce) {
		return err
	}
	// transport errors pass through untouched
	if !isCodecFailure(err) {
		return err
	}
	code := ""
	if d.algo == Brotli {
		code = brotliCode(err)
	} else {
		code = zlibCode(err)
	}
	return &CodecError{Algorithm: d.algo, code: code, Err: err}
}

func isCodecFailure(err error) bool {
	var corrupt flate.CorruptInputError
	switch {
	case errors.Is(err, gzip.ErrHeader), errors.Is(err, gzip.ErrChecksum),
		errors.Is(err, zlib.ErrHeader), errors.Is(err, zlib.ErrChecksum), errors.Is(err, zlib.ErrDictionary),
		errors.As(err, &corrupt), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return strings.HasPrefix(err.Error(), "brotli: ")
}

func (d *decoder) Close() error {
	if c, ok := d.dec.(io.Closer); ok {
		c.Close()
	}
	return d.src.Close()
}
