package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vincent-petithory/dataurl"

	errs "github.com/frankli0324/go-fetch/internal/errors"
	"github.com/frankli0324/go-fetch/internal/headers"
)

// IsDataURL reports whether r targets a data: URL, which is answered without
// any network activity.
func (r *Request) IsDataURL() bool {
	return r.URL.Scheme == "data"
}

// DataResponse decodes the data: URL of r into a synthetic 200 response. The
// fragment is not part of the data, the query is. The media type of the URL
// becomes the Content-Type, none is set when the URL declares none.
func DataResponse(r *Request) (*Response, error) {
	u := *r.URL
	u.Fragment, u.RawFragment = "", ""
	raw := u.String()

	meta, data, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing comma before data", errs.ErrInvalidDataURI)
	}
	base64 := strings.HasSuffix(strings.ToLower(meta), ";base64")
	if !base64 {
		data = escapeData(data)
	}
	du, err := dataurl.DecodeString("data:" + meta + "," + data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidDataURI, err)
	}

	h := headers.New()
	if base64 {
		meta = meta[:len(meta)-len(";base64")]
	}
	if meta != "" {
		// a media type that is not a legal header value is dropped
		_ = h.Set("Content-Type", meta)
	}
	_ = h.Set("Content-Length", strconv.Itoa(len(du.Data)))
	return NewResponse(du.Data, ResponseInit{
		URL: raw, Header: h,
		Size: r.Size, Timeout: r.Timeout, Signal: r.Signal,
	})
}

const hexDigits = "0123456789ABCDEF"

// escapeData percent-encodes the bytes that may appear in a data: URL typed
// by hand but are not legal URL characters.
func escapeData(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x20 || c >= 0x7f || strings.IndexByte(`<>"{}|\^[]`+"`", c) >= 0 {
			sb.WriteByte('%')
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0xf])
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
