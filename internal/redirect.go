package internal

import (
	"net/http"
	"strings"

	"github.com/frankli0324/go-fetch/internal/body"
	errs "github.com/frankli0324/go-fetch/internal/errors"
	fetchhttp "github.com/frankli0324/go-fetch/internal/http"
)

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// wireHeader looks name up in a header map whose keys may not be canonical.
func wireHeader(m map[string][]string, name string) (string, bool) {
	if v, ok := m[name]; ok && len(v) > 0 {
		return v[0], true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0], true
		}
	}
	return "", false
}

// redirect decides what wire means for req. When the redirect is followed
// req is rewritten in place for the next hop and true is returned, false
// means wire is the final response.
func (c *Client) redirect(req *fetchhttp.Request, wire *fetchhttp.WireResponse) (bool, error) {
	if !isRedirect(wire.StatusCode) {
		return false, nil
	}
	location, hasLocation := wireHeader(wire.Header, "Location")
	target := req.URL
	if hasLocation {
		u, err := req.URL.Parse(location)
		if err != nil && req.Redirect != fetchhttp.RedirectManual {
			return false, errs.InvalidRedirectURL(location, err)
		}
		target = u
	}

	switch req.Redirect {
	case fetchhttp.RedirectError:
		return false, errs.NoRedirect(req.URL.String())
	case fetchhttp.RedirectManual:
		return false, nil
	}
	if !hasLocation {
		return false, nil
	}
	if req.Counter >= req.Follow {
		return false, errs.MaxRedirect(req.URL.String())
	}

	code := wire.StatusCode
	if code == http.StatusSeeOther ||
		((code == http.StatusMovedPermanently || code == http.StatusFound) && req.Method == http.MethodPost) {
		req.Method = http.MethodGet
		req.Body.Close()
		req.SetBody(nil)
		req.Header.Delete("Content-Length")
	} else if _, known := body.TotalBytes(req.Body); req.Body.Kind() == body.KindStream || !known {
		return false, errs.UnsupportedRedirect()
	}

	if target.Hostname() != req.URL.Hostname() {
		for _, name := range []string{"Authorization", "Cookie", "Host"} {
			req.Header.Delete(name)
		}
	}
	req.Counter++
	req.SetURL(target)
	return true, nil
}

// discard drops a response that will not be handed to the caller. Nothing
// is drained, connections are never reused.
func discard(wire *fetchhttp.WireResponse) {
	if wire != nil && wire.Body != nil {
		wire.Body.Close()
	}
}
