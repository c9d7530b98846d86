// package charset picks the declared character encoding of a response and
// converts bodies in that encoding to UTF-8.
package charset

import (
	"regexp"
	"strings"

	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// SniffLimit bounds how much of the body is scanned for in-document hints.
// Hints after it are ignored.
const SniffLimit = 1024

const DefaultLabel = "utf-8"

var (
	reHeaderCharset = regexp.MustCompile(`(?i)charset=([^;]*)`)
	reXMLDecl       = regexp.MustCompile(`(?i)<\?xml.+?encoding=(['"])(.+?)['"]`)
	reMetaCharset   = regexp.MustCompile(`(?i)<meta.+?charset=(['"])(.+?)['"]`)
	reMetaEquiv     = regexp.MustCompile(`(?i)<meta[\s]+?http-equiv=(['"])content-type['"][\s]+?content=(['"])(.+?)['"]`)
	reMetaEquivRev  = regexp.MustCompile(`(?i)<meta[\s]+?content=(['"])(.+?)['"][\s]+?http-equiv=(['"])content-type['"]`)
	reContentValue  = regexp.MustCompile(`(?i)charset=(.*)`)
)

// Sniff returns the encoding label declared for a body: the Content-Type
// charset parameter wins, then an XML declaration, an HTML5 meta charset and
// an HTML4 http-equiv meta within the first [SniffLimit] bytes. The default is
// utf-8.
func Sniff(contentType string, body []byte) string {
	if m := reHeaderCharset.FindStringSubmatch(contentType); m != nil {
		if label := normalize(m[1]); label != "" {
			return label
		}
	}
	if len(body) > SniffLimit {
		body = body[:SniffLimit]
	}
	if len(body) == 0 {
		return DefaultLabel
	}
	prefix := string(body)
	if m := reXMLDecl.FindStringSubmatch(prefix); m != nil {
		return normalize(m[2])
	}
	if m := reMetaCharset.FindStringSubmatch(prefix); m != nil {
		return normalize(m[2])
	}
	content := ""
	if m := reMetaEquiv.FindStringSubmatch(prefix); m != nil {
		content = m[3]
	} else if m := reMetaEquivRev.FindStringSubmatch(prefix); m != nil {
		content = m[2]
	}
	if content != "" {
		if m := reContentValue.FindStringSubmatch(content); m != nil {
			if label := normalize(m[1]); label != "" {
				return label
			}
		}
	}
	return DefaultLabel
}

func normalize(label string) string {
	label = strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'`))
	switch label {
	case "gb2312", "gbk":
		// gb18030 is a superset of both
		return "gb18030"
	}
	return label
}

// Lookup resolves a label to an encoding, nil for UTF-8 or unknown labels.
func Lookup(label string) encoding.Encoding {
	switch strings.ToLower(label) {
	case "", "utf-8", "utf8":
		return nil
	}
	if enc, _ := htmlcharset.Lookup(label); enc != nil {
		return enc
	}
	if enc, err := ianaindex.MIME.Encoding(label); err == nil && enc != nil {
		return enc
	}
	return nil
}

// Decode converts b from the encoding named by label to a UTF-8 string.
// Unknown labels are decoded as UTF-8.
func Decode(b []byte, label string) (string, error) {
	enc := Lookup(label)
	if enc == nil {
		return string(b), nil
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
