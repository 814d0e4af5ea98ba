package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kryptonrpc/export/internal/xerr"
)

// Parse accepts "protocol://[user[:pass]@]host[:port]/path?k=v&k=v" and
// returns the corresponding Descriptor (spec §4.1).
//
// Duplicate query keys: last occurrence wins, but the key keeps the
// position of its first occurrence (spec §4.1).
func Parse(s string) (Descriptor, error) {
	rest := s
	schemeIdx := strings.Index(rest, "://")
	if schemeIdx < 0 {
		return Descriptor{}, &xerr.ParseError{Input: s, Reason: "missing \"://\""}
	}
	protocol := rest[:schemeIdx]
	if protocol == "" {
		return Descriptor{}, &xerr.ParseError{Input: s, Reason: "empty protocol"}
	}
	rest = rest[schemeIdx+3:]

	var path string
	var query string
	if qIdx := strings.IndexByte(rest, '?'); qIdx >= 0 {
		query = rest[qIdx+1:]
		rest = rest[:qIdx]
	}
	if pIdx := strings.IndexByte(rest, '/'); pIdx >= 0 {
		path = rest[pIdx+1:]
		rest = rest[:pIdx]
	}
	// rest is now "[user[:pass]@]host[:port]"
	authority := rest
	var user, pass string
	if atIdx := strings.LastIndexByte(authority, '@'); atIdx >= 0 {
		userinfo := authority[:atIdx]
		authority = authority[atIdx+1:]
		if colonIdx := strings.IndexByte(userinfo, ':'); colonIdx >= 0 {
			user = userinfo[:colonIdx]
			pass = userinfo[colonIdx+1:]
		} else {
			user = userinfo
		}
	}

	host := authority
	var port uint16
	if colonIdx := strings.LastIndexByte(authority, ':'); colonIdx >= 0 {
		host = authority[:colonIdx]
		portStr := authority[colonIdx+1:]
		if portStr != "" {
			p, err := parsePort(portStr)
			if err != nil {
				return Descriptor{}, &xerr.ParseError{Input: s, Reason: err.Error()}
			}
			port = p
		}
	}

	d := Descriptor{
		protocol: strings.ToLower(protocol),
		user:     user,
		pass:     pass,
		host:     host,
		port:     port,
		path:     path,
		params:   newParams(),
	}

	if query != "" {
		for _, pair := range strings.Split(query, "&") {
			if pair == "" {
				continue
			}
			var k, v string
			if eqIdx := strings.IndexByte(pair, '='); eqIdx >= 0 {
				k = pair[:eqIdx]
				v = pair[eqIdx+1:]
			} else {
				k = pair
			}
			decoded, err := decodeValue(v)
			if err != nil {
				return Descriptor{}, &xerr.ParseError{Input: s, Reason: err.Error()}
			}
			d.params.set(k, decoded)
		}
	}

	return d, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range [1, 65535]", n)
	}
	return uint16(n), nil
}

// Format renders d as its canonical wire form (spec §6). Parameters appear
// in first-occurrence order; values containing '&', '=', '%', or
// whitespace are percent-encoded.
func Format(d Descriptor) string {
	var b strings.Builder
	b.WriteString(d.protocol)
	b.WriteString("://")
	if d.user != "" {
		b.WriteString(d.user)
		if d.pass != "" {
			b.WriteByte(':')
			b.WriteString(d.pass)
		}
		b.WriteByte('@')
	}
	b.WriteString(d.host)
	if d.port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(d.port)))
	}
	b.WriteByte('/')
	b.WriteString(d.path)
	if len(d.params.keys) > 0 {
		b.WriteByte('?')
		for i, k := range d.params.keys {
			if i > 0 {
				b.WriteByte('&')
			}
			v, _ := d.params.get(k)
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(encodeValue(v))
		}
	}
	return b.String()
}

const hexDigits = "0123456789ABCDEF"

// needsEscape reports whether r must be percent-encoded per spec §4.1 /
// §6: '&', '=', '%', or whitespace.
func needsEscape(r byte) bool {
	switch r {
	case '&', '=', '%', ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}

func encodeValue(v string) string {
	needsAny := false
	for i := 0; i < len(v); i++ {
		if needsEscape(v[i]) {
			needsAny = true
			break
		}
	}
	if !needsAny {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if needsEscape(c) {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xF])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func decodeValue(v string) (string, error) {
	if !strings.ContainsRune(v, '%') {
		return v, nil
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(v) {
			return "", fmt.Errorf("unknown escape at offset %d", i)
		}
		hi, ok1 := hexVal(v[i+1])
		lo, ok2 := hexVal(v[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("unknown escape %q", v[i:i+3])
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), nil
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}
