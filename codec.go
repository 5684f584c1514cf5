package bmg

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	stdutf16 "unicode/utf16"

	"golang.org/x/text/encoding/unicode"
)

// DefaultMaxStringUnits caps how many 16-bit units a single string read may
// consume. It is a safety valve for unterminated data, not a format rule.
const DefaultMaxStringUnits = 10000

const newlineUnit = 0x000A

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

var (
	tokenPattern = regexp.MustCompile(`\[([0-9A-Za-z_]{2,16})(?::([0-9A-Fa-f]{4}(?:,[0-9A-Fa-f]{4})*))?\]`)
	namePattern  = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,15}$`)
	hexPattern   = regexp.MustCompile(`^[0-9A-F]{2}$`)
)

// Codec converts between pool bytes and token-annotated text.
//
// Control codes with a registered parameter count, codes with an alias, and
// every unit in [1,31] except newline are rendered as bracket tokens:
// [1A:0001], [05], [WAIT]. Everything else is literal UTF-16 text.
//
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	params  map[uint16]int
	aliases map[uint16]string
	reverse map[string]uint16
}

// DefaultCodec registers 0x1A with one parameter and 0xFF with two, and no aliases.
var DefaultCodec = NewCodec(map[uint16]int{0x1A: 1, 0xFF: 2}, nil)

// NewCodec builds a Codec from a parameter registry and an alias table.
//
// Code 0 (terminator) and 0x0A (newline) are never treated as controls.
// Codes above 0xFF are only kept when they carry an alias, since the hex
// token form has exactly two digits. Alias names are upper-cased and must
// match [A-Z][A-Z0-9_]{1,15}; others are dropped.
func NewCodec(params map[uint16]int, aliases map[uint16]string) *Codec {
	c := &Codec{
		params:  make(map[uint16]int, len(params)),
		aliases: make(map[uint16]string, len(aliases)),
		reverse: make(map[string]uint16, len(aliases)),
	}
	for code, name := range aliases {
		if code == 0 || code == newlineUnit {
			continue
		}
		upper := strings.ToUpper(name)
		if !namePattern.MatchString(upper) {
			continue
		}
		if _, dup := c.reverse[upper]; dup {
			continue
		}
		c.aliases[code] = upper
		c.reverse[upper] = code
	}
	for code, n := range params {
		if code == 0 || code == newlineUnit || n < 0 {
			continue
		}
		if code > 0xFF {
			if _, ok := c.aliases[code]; !ok {
				continue
			}
		}
		c.params[code] = n
	}
	return c
}

// Params returns a copy of the parameter registry.
func (c *Codec) Params() map[uint16]int {
	out := make(map[uint16]int, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Aliases returns a copy of the alias table.
func (c *Codec) Aliases() map[uint16]string {
	out := make(map[uint16]string, len(c.aliases))
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}

// IsControl reports whether code is rendered as a token rather than literal text.
func (c *Codec) IsControl(code uint16) bool {
	if _, ok := c.params[code]; ok {
		return true
	}
	if _, ok := c.aliases[code]; ok {
		return true
	}
	return code > 0 && code < 32 && code != newlineUnit
}

// ParamCount returns the fixed parameter count of code (0 when unregistered).
func (c *Codec) ParamCount(code uint16) int {
	return c.params[code]
}

// FormatToken renders code and params in canonical upper-case form.
func (c *Codec) FormatToken(code uint16, params []uint16) string {
	var b strings.Builder
	b.WriteByte('[')
	if name, ok := c.aliases[code]; ok {
		b.WriteString(name)
	} else {
		fmt.Fprintf(&b, "%02X", code)
	}
	for i, p := range params {
		if i == 0 {
			b.WriteByte(':')
		} else {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%04X", p)
	}
	b.WriteByte(']')
	return b.String()
}

// ParseToken parses a complete bracket token such as "[1a:0001]".
// ok is false when the token is unknown or its parameter count does not
// match the registry; such text must be kept literally.
func (c *Codec) ParseToken(token string) (code uint16, params []uint16, ok bool) {
	m := tokenPattern.FindStringSubmatch(token)
	if m == nil || m[0] != token {
		return 0, nil, false
	}
	return c.parseTokenParts(m[1], m[2])
}

func (c *Codec) parseTokenParts(head, tail string) (uint16, []uint16, bool) {
	upper := strings.ToUpper(head)
	code, named := c.reverse[upper]
	if !named {
		if !hexPattern.MatchString(upper) {
			return 0, nil, false
		}
		v, err := strconv.ParseUint(upper, 16, 16)
		if err != nil {
			return 0, nil, false
		}
		code = uint16(v)
	}
	if !c.IsControl(code) {
		return 0, nil, false
	}
	var params []uint16
	if tail != "" {
		for _, chunk := range strings.Split(tail, ",") {
			v, err := strconv.ParseUint(chunk, 16, 16)
			if err != nil {
				return 0, nil, false
			}
			params = append(params, uint16(v))
		}
	}
	if len(params) != c.params[code] {
		return 0, nil, false
	}
	return code, params, true
}

// Normalize canonicalizes user input before it is compared or encoded:
// CR LF and lone CR become LF, recognized tokens are rewritten in canonical
// form, NUL characters are dropped, and raw characters that collide with a
// parameterless control code are replaced by their token spelling. Raw
// characters of codes that take parameters are kept; see LiteralParamCode.
func (c *Codec) Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	text = tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		code, params, ok := c.ParseToken(tok)
		if !ok {
			return tok
		}
		return c.FormatToken(code, params)
	})
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r > 0 && r <= 0xFFFF && c.IsControl(uint16(r)) && c.ParamCount(uint16(r)) == 0 {
			b.WriteString(c.FormatToken(uint16(r), nil))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LiteralParamCode returns the first rune outside tokens that is a control
// code with registered parameters. Such a rune has no literal encoding: it is
// read back as the start of a parameterized control.
func (c *Codec) LiteralParamCode(text string) (rune, bool) {
	check := func(lit string) (rune, bool) {
		for _, r := range lit {
			if r > 0 && r <= 0xFFFF && c.ParamCount(uint16(r)) > 0 {
				return r, true
			}
		}
		return 0, false
	}
	last := 0
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(text, -1) {
		if _, _, ok := c.parseTokenParts(text[m[2]:m[3]], submatch(text, m, 2)); !ok {
			continue
		}
		if r, found := check(text[last:m[0]]); found {
			return r, true
		}
		last = m[1]
	}
	return check(text[last:])
}

// DecodedString is the result of reading one pool string.
type DecodedString struct {
	Text        string
	Length      int // raw bytes consumed, including leading null, parameters and terminator
	LeadingNull bool
	Terminated  bool
	Truncated   bool // the unit cap was reached
	ParamsCut   bool // a control code ran out of bytes for its parameters
}

// Decode reads a string starting at the absolute offset pointer, never
// touching bytes at or past limit. A pointer outside [0, limit) yields an
// empty result: pools routinely carry unused or dangling ranges.
func (c *Codec) Decode(data []byte, pointer, limit, maxUnits int) DecodedString {
	limit = effectiveLimit(data, limit)
	if pointer < 0 || pointer >= limit {
		return DecodedString{}
	}
	if maxUnits <= 0 {
		maxUnits = DefaultMaxStringUnits
	}
	var out DecodedString
	var b strings.Builder
	pos := pointer
	if first, err := readU16(data, pos, limit); err == nil && first == 0 {
		out.LeadingNull = true
		pos += 2
	}
	runStart := pos
	units := 0
	for pos+1 < limit && units < maxUnits {
		code, err := readU16(data, pos, limit)
		if err != nil {
			break
		}
		units++
		if code == 0 {
			b.WriteString(decodeLiteral(data[runStart:pos]))
			pos += 2
			runStart = pos
			out.Terminated = true
			break
		}
		if !c.IsControl(code) {
			pos += 2
			continue
		}
		b.WriteString(decodeLiteral(data[runStart:pos]))
		pos += 2
		n := c.params[code]
		if pos+n*2 > limit {
			out.ParamsCut = true
			runStart = pos
			break
		}
		params := make([]uint16, n)
		for i := range params {
			params[i], _ = readU16(data, pos, limit)
			pos += 2
		}
		b.WriteString(c.FormatToken(code, params))
		runStart = pos
	}
	if !out.Terminated {
		if runStart < pos {
			b.WriteString(decodeLiteral(data[runStart:pos]))
		}
		out.Truncated = units >= maxUnits
	}
	out.Text = b.String()
	out.Length = pos - pointer
	return out
}

// Encode converts token-annotated text back into pool bytes. It never fails:
// malformed or unknown tokens are encoded as literal text. A terminator is
// always appended and a leading null unit is prepended when requested.
func (c *Codec) Encode(text string, leadingNull bool) []byte {
	text = c.Normalize(text)
	out := make([]byte, 0, len(text)*2+4)
	if leadingNull {
		out = appendUnit(out, 0)
	}
	last := 0
	for _, m := range tokenPattern.FindAllStringSubmatchIndex(text, -1) {
		code, params, ok := c.parseTokenParts(text[m[2]:m[3]], submatch(text, m, 2))
		if !ok {
			continue
		}
		out = appendLiteral(out, text[last:m[0]])
		out = appendUnit(out, code)
		for _, p := range params {
			out = appendUnit(out, p)
		}
		last = m[1]
	}
	out = appendLiteral(out, text[last:])
	return appendUnit(out, 0)
}

// Tokens returns the distinct canonical tokens that appear in text, sorted.
func (c *Codec) Tokens(text string) []string {
	seen := map[string]struct{}{}
	for _, tok := range tokenPattern.FindAllString(text, -1) {
		if code, params, ok := c.ParseToken(tok); ok {
			seen[c.FormatToken(code, params)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func submatch(s string, m []int, group int) string {
	if m[2*group] < 0 {
		return ""
	}
	return s[m[2*group]:m[2*group+1]]
}

func appendUnit(b []byte, u uint16) []byte {
	return append(b, byte(u), byte(u>>8))
}

func appendLiteral(b []byte, s string) []byte {
	if s == "" {
		return b
	}
	enc, err := utf16LE.NewEncoder().String(s)
	if err != nil {
		for _, u := range stdutf16.Encode([]rune(s)) {
			b = appendUnit(b, u)
		}
		return b
	}
	return append(b, enc...)
}

func decodeLiteral(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	dec, err := utf16LE.NewDecoder().Bytes(raw)
	if err != nil {
		units := make([]uint16, len(raw)/2)
		for i := range units {
			units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
		}
		return string(stdutf16.Decode(units))
	}
	return string(dec)
}
