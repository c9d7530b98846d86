// package http contains the request and response types, which are meant
// to be exported. the package name is meant to be same with the top
// level package name so that IDEs and code editors could pick them up
//
// the package also contains the contracts between the fetch engine and its
// collaborators: [Dialer] and [RoundTripper], plus the wire level
// [PreparedRequest] and [WireResponse] they exchange.
package http

import (
	"github.com/frankli0324/go-fetch/internal/body"
	"github.com/frankli0324/go-fetch/internal/headers"
)

// Version is reported in the default User-Agent.
const Version = "0.1.0"

const DefaultUserAgent = "go-fetch/" + Version + " (+https://github.com/frankli0324/go-fetch)"

type (
	Headers = headers.Headers
	Body    = body.Body
)
