// Package wire implements the length-prefixed message framing and the
// escaped key/value payload encoding used between the lobby, the game
// workers, and connected clients.
package wire

import "strings"

// reserved is the set of bytes that must be escaped inside a key or value.
const reserved = "|:[],\\"

// escapeXor is XORed with a reserved byte after it is prefixed with a
// backslash, matching the original implementation's escape scheme.
const escapeXor = 0x7F

// Field is a single key/value pair inside a Record.
type Field struct {
	Key   string
	Value string
}

// Record is an ordered sequence of key/value pairs. Keys are not required
// to be unique; lookups return the last match.
type Record []Field

// Set appends a key/value pair to the record.
func (r *Record) Set(key, value string) {
	*r = append(*r, Field{Key: key, Value: value})
}

// Get returns the value of the last field with the given key.
func (r Record) Get(key string) (string, bool) {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i].Key == key {
			return r[i].Value, true
		}
	}
	return "", false
}

// Payload is an ordered sequence of Records.
type Payload []Record

// AppendRecord appends an empty record and returns a pointer to it.
func (p *Payload) AppendRecord() *Record {
	*p = append(*p, Record{})
	return &(*p)[len(*p)-1]
}

// Set sets a key/value pair on the last record, creating one if the
// payload is currently empty.
func (p *Payload) Set(key, value string) {
	if len(*p) == 0 {
		p.AppendRecord()
	}
	(*p)[len(*p)-1].Set(key, value)
}

// RecordCount returns the number of records in the payload.
func (p Payload) RecordCount() int {
	return len(p)
}

// String returns the value of key in record i.
func (p Payload) String(i int, key string) (string, bool) {
	if i < 0 || i >= len(p) {
		return "", false
	}
	return p[i].Get(key)
}

// Int parses the value of key in record i as a decimal signed integer.
func (p Payload) Int(i int, key string) (int, bool) {
	v, ok := p.String(i, key)
	if !ok {
		return 0, false
	}
	n, err := parseInt(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseInt(s string) (int, error) {
	neg := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "" {
		return 0, errEmptyInt
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errBadInt
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

// Escape replaces every reserved byte in s with a two-byte escape sequence:
// a backslash followed by the original byte XORed with 0x7F.
func Escape(s string) string {
	if strings.IndexAny(s, reserved) == -1 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(reserved, c) >= 0 {
			b.WriteByte('\\')
			b.WriteByte(c ^ escapeXor)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Unescape is the inverse of Escape.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') == -1 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			b.WriteByte(s[i+1] ^ escapeXor)
			i += 2
		} else {
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// Serialize encodes a payload as "[k:v|k:v],[k:v],...". An empty payload
// serializes to the empty string.
func Serialize(p Payload) string {
	var b strings.Builder
	for i, rec := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, f := range rec {
			if j > 0 {
				b.WriteByte('|')
			}
			b.WriteString(Escape(f.Key))
			b.WriteByte(':')
			b.WriteString(Escape(f.Value))
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Parse decodes a payload serialized by Serialize. It is tolerant of
// malformed input: a record fragment with no ':' is skipped, and parsing
// stops at the first unmatched '[' without failing.
func Parse(s string) Payload {
	if s == "" {
		return nil
	}
	var out Payload
	i := 0
	for i < len(s) {
		open := findUnescaped(s, i, "[")
		if open == -1 {
			break
		}
		closeAt := findUnescaped(s, open+1, "]")
		if closeAt == -1 {
			break
		}
		out = append(out, parseRecord(s[open+1:closeAt]))
		i = closeAt + 1
		if i < len(s) && s[i] == ',' {
			i++
		}
	}
	return out
}

func parseRecord(content string) Record {
	var rec Record
	for _, pair := range splitUnescaped(content, '|') {
		idx := findFirstUnescaped(pair, ':')
		if idx == -1 {
			continue
		}
		rec.Set(Unescape(pair[:idx]), Unescape(pair[idx+1:]))
	}
	return rec
}

// findUnescaped returns the index of the first byte in s, starting at
// from, that is present in targets and not part of an escape sequence.
func findUnescaped(s string, from int, targets string) int {
	i := from
	for i < len(s) {
		if s[i] == '\\' {
			i += 2
			continue
		}
		if strings.IndexByte(targets, s[i]) >= 0 {
			return i
		}
		i++
	}
	return -1
}

func findFirstUnescaped(s string, sep byte) int {
	i := 0
	for i < len(s) {
		if s[i] == '\\' {
			i += 2
			continue
		}
		if s[i] == sep {
			return i
		}
		i++
	}
	return -1
}

// splitUnescaped splits s on unescaped occurrences of sep.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	i := 0
	for i < len(s) {
		if s[i] == '\\' {
			i += 2
			continue
		}
		if s[i] == sep {
			parts = append(parts, s[start:i])
			i++
			start = i
			continue
		}
		i++
	}
	parts = append(parts, s[start:])
	return parts
}
