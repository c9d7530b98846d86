// package headers implements the case-insensitive multi-value header
// container shared by requests, responses and trailers.
package headers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	errs "github.com/frankli0324/go-fetch/internal/errors"
	"golang.org/x/net/http/httpguts"
)

type entry struct {
	name   string // raw name, as first seen
	values []string
}

// Headers is an ordered name -> values collection. Names are compared case
// insensitively, iteration visits names sorted by their lower-cased form.
// The zero value is an empty, usable Headers.
type Headers struct {
	entries map[string]*entry
}

func New() *Headers {
	return &Headers{entries: map[string]*entry{}}
}

// FromMap builds Headers from a name -> values mapping, every name and value
// is validated before the call returns.
func FromMap(m map[string][]string) (*Headers, error) {
	h := New()
	for _, name := range sortedNames(m) {
		for _, v := range m[name] {
			if err := h.Append(name, v); err != nil {
				return nil, err
			}
		}
		if len(m[name]) == 0 {
			if err := h.Append(name, ""); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

// FromPairs builds Headers from a sequence of [name, value] pairs. A pair of
// any other length is rejected.
func FromPairs(pairs [][]string) (*Headers, error) {
	h := New()
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: header pair %d must contain exactly two items, got %d", errs.ErrInvalidHeader, i, len(p))
		}
		if err := h.Append(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Lenient builds Headers from data arriving off the wire, entries failing
// validation are dropped instead of rejected. dropped is called, if non-nil,
// for every name that lost at least one value.
func Lenient(m map[string][]string, dropped func(name string)) *Headers {
	h := New()
	for _, name := range sortedNames(m) {
		if !httpguts.ValidHeaderFieldName(name) {
			if dropped != nil {
				dropped(name)
			}
			continue
		}
		lost := false
		for _, v := range m[name] {
			if !httpguts.ValidHeaderFieldValue(v) {
				lost = true
				continue
			}
			h.add(name, v)
		}
		if lost && dropped != nil {
			dropped(name)
		}
	}
	return h
}

func sortedNames(m map[string][]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func validate(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("%w: %q is not a legal HTTP header name", errs.ErrInvalidHeader, name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		// the value may be sensitive, leave it out
		return fmt.Errorf("%w: illegal value for header %q", errs.ErrInvalidHeader, name)
	}
	return nil
}

func key(name string) string {
	return strings.ToLower(name)
}

func (h *Headers) add(name, value string) {
	if h.entries == nil {
		h.entries = map[string]*entry{}
	}
	k := key(name)
	if e, ok := h.entries[k]; ok {
		e.values = append(e.values, value)
		return
	}
	h.entries[k] = &entry{name: name, values: []string{value}}
}

// Set replaces every value of name with value.
func (h *Headers) Set(name, value string) error {
	if err := validate(name, value); err != nil {
		return err
	}
	h.Delete(name)
	h.add(name, value)
	return nil
}

// Append adds value to the values of name.
func (h *Headers) Append(name, value string) error {
	if err := validate(name, value); err != nil {
		return err
	}
	h.add(name, value)
	return nil
}

// Get returns the values of name joined by ", ", and false if name is absent.
func (h *Headers) Get(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	e, ok := h.entries[key(name)]
	if !ok {
		return "", false
	}
	return strings.Join(e.values, ", "), true
}

// Value is Get without the presence flag.
func (h *Headers) Value(name string) string {
	v, _ := h.Get(name)
	return v
}

// Values returns a copy of the raw values of name.
func (h *Headers) Values(name string) []string {
	if h == nil {
		return nil
	}
	if e, ok := h.entries[key(name)]; ok {
		return append([]string(nil), e.values...)
	}
	return nil
}

func (h *Headers) Has(name string) bool {
	if h == nil {
		return false
	}
	_, ok := h.entries[key(name)]
	return ok
}

func (h *Headers) Delete(name string) {
	if h == nil {
		return
	}
	delete(h.entries, key(name))
}

func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Keys returns the lower-cased names, sorted.
func (h *Headers) Keys() []string {
	if h == nil {
		return nil
	}
	keys := make([]string, 0, len(h.entries))
	for k := range h.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Range calls f for every name in sorted order with its joined values,
// stopping early when f returns false.
func (h *Headers) Range(f func(name, value string) bool) {
	for _, k := range h.Keys() {
		if !f(k, strings.Join(h.entries[k].values, ", ")) {
			return
		}
	}
}

// RangeRaw is Range with the raw name and the unjoined values of each entry.
func (h *Headers) RangeRaw(f func(name string, values []string) bool) {
	for _, k := range h.Keys() {
		e := h.entries[k]
		if !f(e.name, e.values) {
			return
		}
	}
}

// Clone returns a deep copy of h.
func (h *Headers) Clone() *Headers {
	c := New()
	if h == nil {
		return c
	}
	for k, e := range h.entries {
		c.entries[k] = &entry{name: e.name, values: append([]string(nil), e.values...)}
	}
	return c
}

// Raw exports the headers using the name casing first seen for each entry,
// suitable for writing onto the wire.
func (h *Headers) Raw() map[string][]string {
	raw := make(map[string][]string, h.Len())
	if h == nil {
		return raw
	}
	for _, e := range h.entries {
		raw[e.name] = append([]string(nil), e.values...)
	}
	return raw
}

// HTTPHeader exports the headers as a canonicalized [net/http.Header].
func (h *Headers) HTTPHeader() http.Header {
	hdr := make(http.Header, h.Len())
	if h == nil {
		return hdr
	}
	for _, e := range h.entries {
		for _, v := range e.values {
			hdr.Add(e.name, v)
		}
	}
	return hdr
}

func (h *Headers) String() string {
	var sb strings.Builder
	h.Range(func(name, value string) bool {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(value)
		sb.WriteString("\r\n")
		return true
	})
	return sb.String()
}
