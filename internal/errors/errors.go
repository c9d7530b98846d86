// package errors contains the two failure families a fetch can end with:
// [AbortError] for cancellation observed at any phase, and [FetchError] for
// everything else that happens after the request left the caller. Caller
// programming errors detected without I/O are plain sentinel errors.
package errors

import (
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

// Type is the machine readable kind of a [FetchError].
type Type string

const (
	TypeSystem              Type = "system"
	TypeRequestTimeout      Type = "request-timeout"
	TypeBodyTimeout         Type = "body-timeout"
	TypeMaxSize             Type = "max-size"
	TypeMaxRedirect         Type = "max-redirect"
	TypeNoRedirect          Type = "no-redirect"
	TypeUnsupportedRedirect Type = "unsupported-redirect"
	TypeInvalidJSON         Type = "invalid-json"
	TypeAborted             Type = "aborted"
)

const DefaultCode = "FETCH_ERROR"

// validation failures, never wrapped into a FetchError
var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrUnsupportedScheme = errors.New("only HTTP(S) protocols are supported")
	ErrBodyNotAllowed    = errors.New("request with GET/HEAD method cannot have body")
	ErrInvalidHeader     = errors.New("invalid header")
	ErrBodyUsed          = errors.New("body used already")
	ErrInvalidDataURI    = errors.New("invalid data: URI")
	ErrUnsupportedBody   = errors.New("unsupported body type")
	ErrInvalidRedirect   = errors.New("invalid redirect mode")
)

type FetchError struct {
	Message string
	Type    Type
	// Code is taken from the wrapped error when it carries one, see [CodeOf]
	Code string
	// Expect and Found are the limit and the observed byte count of a max-size failure
	Expect, Found int64

	Err error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports a match against a *FetchError carrying the same Type, the message
// of the target is compared only when set.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// Wrap returns a copy of e wrapping err, the code is re-derived from err.
func (e *FetchError) Wrap(err error) *FetchError {
	if err == nil {
		return e
	}
	c := *e
	c.Err = err
	c.Code = CodeOf(err)
	return &c
}

func New(message string, typ Type, err error) *FetchError {
	return &FetchError{Message: message, Type: typ, Code: CodeOf(err), Err: err}
}

// AbortError is the single outcome of cancellation, whichever phase observed it.
type AbortError struct {
	Message string
	Err     error // the cancellation cause, if known
}

const abortMessage = "The user aborted a request."

func (e *AbortError) Error() string {
	if e.Message == "" {
		return abortMessage
	}
	return e.Message
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

func (e *AbortError) Is(target error) bool {
	_, ok := target.(*AbortError)
	return ok
}

func (e *AbortError) Type() Type { return TypeAborted }

func (e *AbortError) Code() string { return "FETCH_ABORTED" }

// Aborted builds the AbortError for a cancellation cause.
func Aborted(cause error) *AbortError {
	var ae *AbortError
	if errors.As(cause, &ae) {
		return ae
	}
	return &AbortError{Err: cause}
}

func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// IsType reports whether err is a FetchError of kind typ.
func IsType(err error, typ Type) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Type == typ
}

// CodeOf extracts the error code of an underlying transport or codec error.
func CodeOf(err error) string {
	if err == nil {
		return DefaultCode
	}
	var coder interface{ Code() string }
	if errors.As(err, &coder) {
		return coder.Code()
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errnoName(errno)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return "ENOTFOUND"
		case dnsErr.IsTimeout:
			return "ETIMEDOUT"
		}
		return "EAI_AGAIN"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}
	return DefaultCode
}

func Network(url string, err error) *FetchError {
	return New("request to "+url+" failed, reason: "+err.Error(), TypeSystem, err)
}

func Invalid(url string, err error) *FetchError {
	return New("Invalid response while trying to fetch "+url+": "+err.Error(), TypeSystem, err)
}

// Consume is the failure of a stream while a body is being accumulated.
func Consume(url string, err error) *FetchError {
	return New("Could not create Buffer from response body for "+url+": "+err.Error(), TypeSystem, err)
}

func RequestTimeout(url string) *FetchError {
	return New("network timeout at: "+url, TypeRequestTimeout, nil)
}

func BodyTimeout(url string, d time.Duration) *FetchError {
	return New("Response timeout while trying to fetch "+url+" (over "+
		strconv.FormatInt(d.Milliseconds(), 10)+"ms)", TypeBodyTimeout, nil)
}

func MaxSize(url string, limit, found int64) *FetchError {
	e := New("content size at "+url+" over limit: "+strconv.FormatInt(limit, 10), TypeMaxSize, nil)
	e.Code = "EBADSIZE"
	e.Expect, e.Found = limit, found
	return e
}

func InvalidJSON(url string, err error) *FetchError {
	return New("invalid json response body at "+url+" reason: "+err.Error(), TypeInvalidJSON, err)
}

func MaxRedirect(url string) *FetchError {
	return New("maximum redirect reached at: "+url, TypeMaxRedirect, nil)
}

func NoRedirect(url string) *FetchError {
	return New("redirect mode is set to error: "+url, TypeNoRedirect, nil)
}

func UnsupportedRedirect() *FetchError {
	return New("Cannot follow redirect with body being a readable stream", TypeUnsupportedRedirect, nil)
}

func InvalidRedirectURL(location string, err error) *FetchError {
	return New("uri requested responds with an invalid redirect URL: "+location, TypeSystem, err)
}
