// package transport contains implementations to requirements on *message syntaxes*
// defined by http related RFCs.
//
// as of 2022.06, RFCs that were to define HTTP/1.1 (RFC753x) are obsoleted by:
//
//	HTTP Semantics (RFC9110)
//	HTTP Caching (RFC9111) and
//	HTTP/1.1 (RFC9112)
//
// only the HTTP/1.1 message syntax is spoken, one exchange per connection.
// net/textproto is reused for the header block, framing of the body (length
// delimited, chunked with trailers, or until close) is done here.
package transport
