// Package encode implements the self-describing text form used to persist
// animation values.
//
// The encoding is a stream of space-separated tokens: single-character tags,
// decimal integers, shortest-round-trip floats, and quoted strings. Every
// value type has an exhaustive encode and decode; decoding malformed input
// yields "no value" (ok == false), never a panic. For any value v,
// Decode(Encode(v)) reproduces v exactly.
package encode

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/flipbook/internal/edit"
)

// Target accumulates an encoded value as a token stream.
type Target struct {
	b     strings.Builder
	empty bool
}

// NewTarget returns an empty encoding target.
func NewTarget() *Target {
	return &Target{empty: true}
}

func (t *Target) sep() {
	if t.empty {
		t.empty = false
		return
	}
	t.b.WriteByte(' ')
}

// Tag writes a single-character tag token.
func (t *Target) Tag(r rune) {
	t.sep()
	t.b.WriteRune(r)
}

// Uint writes an unsigned integer token.
func (t *Target) Uint(u uint64) {
	t.sep()
	t.b.WriteString(strconv.FormatUint(u, 10))
}

// Int writes a signed integer token.
func (t *Target) Int(i int64) {
	t.sep()
	t.b.WriteString(strconv.FormatInt(i, 10))
}

// Float writes a float token using the shortest representation that parses
// back to the identical value.
func (t *Target) Float(f float64) {
	t.sep()
	t.b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

// Duration writes a duration token as integer nanoseconds.
func (t *Target) Duration(d time.Duration) {
	t.Int(int64(d))
}

// Str writes a quoted string token. Strings are NFC normalized before
// encoding so that equal-looking names compare equal after a round trip.
func (t *Target) Str(s string) {
	t.sep()
	t.b.WriteString(strconv.Quote(norm.NFC.String(s)))
}

// ID writes an element ID token: '*' for the unassigned ID, the decimal
// value otherwise.
func (t *Target) ID(id edit.ElementID) {
	if v, ok := id.Value(); ok {
		t.Int(v)
		return
	}
	t.Tag('*')
}

// String returns the encoded token stream.
func (t *Target) String() string {
	return t.b.String()
}

// Source consumes an encoded token stream. Any read past the end of the
// stream or of the wrong shape marks the source as failed; once failed, all
// further reads return zero values and Ok reports false.
type Source struct {
	s      string
	pos    int
	failed bool
}

// NewSource returns a source reading from the given encoded string.
func NewSource(s string) *Source {
	return &Source{s: s}
}

// Ok reports whether every read so far has succeeded.
func (s *Source) Ok() bool {
	return !s.failed
}

// Done reports whether the source has been fully consumed without errors.
func (s *Source) Done() bool {
	s.skipSpace()
	return !s.failed && s.pos >= len(s.s)
}

func (s *Source) fail() {
	s.failed = true
}

func (s *Source) skipSpace() {
	for s.pos < len(s.s) && unicode.IsSpace(rune(s.s[s.pos])) {
		s.pos++
	}
}

// token consumes the next space-delimited token.
func (s *Source) token() string {
	if s.failed {
		return ""
	}
	s.skipSpace()
	if s.pos >= len(s.s) {
		s.fail()
		return ""
	}
	start := s.pos
	for s.pos < len(s.s) && !unicode.IsSpace(rune(s.s[s.pos])) {
		s.pos++
	}
	return s.s[start:s.pos]
}

// Tag reads a single-character tag token.
func (s *Source) Tag() rune {
	tok := s.token()
	if s.failed {
		return 0
	}
	runes := []rune(tok)
	if len(runes) != 1 {
		s.fail()
		return 0
	}
	return runes[0]
}

// Uint reads an unsigned integer token.
func (s *Source) Uint() uint64 {
	tok := s.token()
	if s.failed {
		return 0
	}
	u, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		s.fail()
		return 0
	}
	return u
}

// Int reads a signed integer token.
func (s *Source) Int() int64 {
	tok := s.token()
	if s.failed {
		return 0
	}
	i, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		s.fail()
		return 0
	}
	return i
}

// Float reads a float token.
func (s *Source) Float() float64 {
	tok := s.token()
	if s.failed {
		return 0
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		s.fail()
		return 0
	}
	return f
}

// Duration reads a duration token.
func (s *Source) Duration() time.Duration {
	return time.Duration(s.Int())
}

// Str reads a quoted string token. Quoted strings may contain spaces, so
// this does not use plain token splitting.
func (s *Source) Str() string {
	if s.failed {
		return ""
	}
	s.skipSpace()
	if s.pos >= len(s.s) || s.s[s.pos] != '"' {
		s.fail()
		return ""
	}
	quoted, err := strconv.QuotedPrefix(s.s[s.pos:])
	if err != nil {
		s.fail()
		return ""
	}
	s.pos += len(quoted)
	out, err := strconv.Unquote(quoted)
	if err != nil {
		s.fail()
		return ""
	}
	return out
}

// ID reads an element ID token.
func (s *Source) ID() edit.ElementID {
	tok := s.token()
	if s.failed {
		return edit.Unassigned()
	}
	if tok == "*" {
		return edit.Unassigned()
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		s.fail()
		return edit.Unassigned()
	}
	return edit.Assigned(v)
}

// Count reads a non-negative length prefix, bounding it to guard against
// pathological input.
func (s *Source) Count() int {
	const maxCount = 1 << 24

	n := s.Int()
	if s.failed || n < 0 || n > maxCount {
		s.fail()
		return 0
	}
	return int(n)
}
