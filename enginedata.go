package psd

import (
	"fmt"
	"strconv"
)

// The text engine data embedded in 'TySh' blocks is an ASCII-ish property
// list: dictionaries between << and >>, /Name keys, [ ] arrays, numbers,
// booleans and parenthesized UTF-16BE strings. parseEngineData decodes the
// whole stream into nested map[string]any / []any / scalar values.
//
// The format is produced by a closed-source engine and real payloads are
// occasionally truncated, so every consumer of the result is expected to be
// best-effort.
func parseEngineData(data []byte) (map[string]any, error) {
	p := &engineDataParser{data: data}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	dict, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("engine data: top-level value is %T, not a dictionary", v)
	}
	return dict, nil
}

type engineDataParser struct {
	data []byte
	pos  int
}

func (p *engineDataParser) errf(format string, args ...any) error {
	return fmt.Errorf("engine data at offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *engineDataParser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *engineDataParser) peek() (byte, bool) {
	if p.pos >= len(p.data) {
		return 0, false
	}
	return p.data[p.pos], true
}

func (p *engineDataParser) value() (any, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errf("unexpected end of input")
	}

	switch {
	case c == '<':
		return p.dict()
	case c == '[':
		return p.array()
	case c == '(':
		return p.string()
	case c == '/':
		return p.name()
	case c == 't' || c == 'f':
		return p.boolean()
	default:
		return p.number()
	}
}

func (p *engineDataParser) dict() (map[string]any, error) {
	if p.pos+2 > len(p.data) || p.data[p.pos] != '<' || p.data[p.pos+1] != '<' {
		return nil, p.errf("expected <<")
	}
	p.pos += 2

	dict := make(map[string]any)
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated dictionary")
		}
		if c == '>' {
			if p.pos+2 > len(p.data) || p.data[p.pos+1] != '>' {
				return nil, p.errf("expected >>")
			}
			p.pos += 2
			return dict, nil
		}
		if c != '/' {
			return nil, p.errf("expected key, got %q", c)
		}
		key, err := p.name()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		dict[key] = value
	}
}

func (p *engineDataParser) array() ([]any, error) {
	p.pos++ // consume [
	var items []any
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated array")
		}
		if c == ']' {
			p.pos++
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '<', '>', '[', ']', '(', ')', '/':
		return true
	}
	return false
}

func (p *engineDataParser) name() (string, error) {
	p.pos++ // consume /
	start := p.pos
	for p.pos < len(p.data) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errf("empty name")
	}
	return string(p.data[start:p.pos]), nil
}

// string reads a parenthesized UTF-16BE string. The content starts with a
// BOM and uses backslash escapes for parentheses and backslashes.
func (p *engineDataParser) string() (string, error) {
	p.pos++ // consume (
	var raw []byte
	for {
		if p.pos >= len(p.data) {
			return "", p.errf("unterminated string")
		}
		c := p.data[p.pos]
		switch c {
		case ')':
			p.pos++
			if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
				raw = raw[2:]
			}
			return decodeUTF16BE(raw), nil
		case '\\':
			if p.pos+1 >= len(p.data) {
				return "", p.errf("dangling escape")
			}
			raw = append(raw, p.data[p.pos+1])
			p.pos += 2
		default:
			raw = append(raw, c)
			p.pos++
		}
	}
}

func (p *engineDataParser) boolean() (bool, error) {
	if p.pos+4 <= len(p.data) && string(p.data[p.pos:p.pos+4]) == "true" {
		p.pos += 4
		return true, nil
	}
	if p.pos+5 <= len(p.data) && string(p.data[p.pos:p.pos+5]) == "false" {
		p.pos += 5
		return false, nil
	}
	return false, p.errf("expected boolean")
}

func (p *engineDataParser) number() (float64, error) {
	start := p.pos
	for p.pos < len(p.data) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return 0, p.errf("expected number")
	}
	tok := string(p.data[start:p.pos])
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, p.errf("bad number %q", tok)
	}
	return v, nil
}

// Lookup helpers over the decoded plist. All of them tolerate missing or
// oddly-typed nodes by reporting absence.

func edDict(v any, keys ...string) (map[string]any, bool) {
	dict, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range keys {
		next, ok := dict[key].(map[string]any)
		if !ok {
			return nil, false
		}
		dict = next
	}
	return dict, true
}

func edList(dict map[string]any, key string) ([]any, bool) {
	list, ok := dict[key].([]any)
	return list, ok
}

func edFloat(dict map[string]any, key string) (float64, bool) {
	switch v := dict[key].(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func edString(dict map[string]any, key string) (string, bool) {
	s, ok := dict[key].(string)
	return s, ok
}
