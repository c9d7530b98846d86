package fetch

import (
	"github.com/frankli0324/go-fetch/internal/body"
	errs "github.com/frankli0324/go-fetch/internal/errors"
	"github.com/frankli0324/go-fetch/internal/headers"
)

type (
	Headers = headers.Headers
	Body    = body.Body
	Blob    = body.Blob
	Form    = body.Form
)

// NewHeaders builds headers from nil, a map[string][]string, a
// map[string]string or a [][]string of name/value pairs.
func NewHeaders(init any) (*Headers, error) {
	switch v := init.(type) {
	case nil:
		return headers.New(), nil
	case *Headers:
		return v.Clone(), nil
	case map[string][]string:
		return headers.FromMap(v)
	case map[string]string:
		h := headers.New()
		for name, value := range v {
			if err := h.Append(name, value); err != nil {
				return nil, err
			}
		}
		return h, nil
	case [][]string:
		return headers.FromPairs(v)
	}
	return nil, errs.ErrInvalidHeader
}

func NewBlob(typ string, parts ...any) (*Blob, error) {
	return body.NewBlob(typ, parts...)
}

func NewForm() *Form {
	return body.NewForm()
}

type (
	FetchError = errs.FetchError
	AbortError = errs.AbortError
	ErrorType  = errs.Type
)

const (
	TypeSystem              = errs.TypeSystem
	TypeRequestTimeout      = errs.TypeRequestTimeout
	TypeBodyTimeout         = errs.TypeBodyTimeout
	TypeMaxSize             = errs.TypeMaxSize
	TypeMaxRedirect         = errs.TypeMaxRedirect
	TypeNoRedirect          = errs.TypeNoRedirect
	TypeUnsupportedRedirect = errs.TypeUnsupportedRedirect
	TypeInvalidJSON         = errs.TypeInvalidJSON
	TypeAborted             = errs.TypeAborted
)

var (
	ErrInvalidURL        = errs.ErrInvalidURL
	ErrUnsupportedScheme = errs.ErrUnsupportedScheme
	ErrBodyNotAllowed    = errs.ErrBodyNotAllowed
	ErrInvalidHeader     = errs.ErrInvalidHeader
	ErrBodyUsed          = errs.ErrBodyUsed
	ErrInvalidDataURI    = errs.ErrInvalidDataURI
	ErrUnsupportedBody   = errs.ErrUnsupportedBody
	ErrInvalidRedirect   = errs.ErrInvalidRedirect
)

// IsAbort reports whether err is the outcome of a cancellation.
func IsAbort(err error) bool {
	return errs.IsAbort(err)
}

// IsType reports whether err is a *[FetchError] of kind typ.
func IsType(err error, typ ErrorType) bool {
	return errs.IsType(err, typ)
}
