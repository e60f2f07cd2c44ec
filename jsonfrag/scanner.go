package jsonfrag

import "encoding/json"

// scanPartialObject is a best-effort, advisory streaming JSON-object scanner
// (spec §4.6): given the buffer accumulated so far for one tool call's
// arguments, it returns every top-level key whose value has fully resolved,
// the in-progress raw text of any top-level string value still being
// written, and whether the object as a whole has closed. It never returns an
// error: anything it cannot yet make sense of is simply left unresolved
// until more text arrives.
func scanPartialObject(raw string) (resolved map[string]any, partial map[string]string, complete bool) {
	resolved = map[string]any{}
	partial = map[string]string{}

	i, n := 0, len(raw)
	skipWS := func() {
		for i < n && isJSONSpace(raw[i]) {
			i++
		}
	}

	skipWS()
	if i >= n || raw[i] != '{' {
		return resolved, partial, false
	}
	i++

	for {
		skipWS()
		if i >= n {
			return resolved, partial, false
		}
		if raw[i] == '}' {
			return resolved, partial, true
		}
		if raw[i] != '"' {
			return resolved, partial, false
		}

		key, ok, next := scanClosedString(raw, i)
		if !ok {
			return resolved, partial, false
		}
		i = next

		skipWS()
		if i >= n || raw[i] != ':' {
			return resolved, partial, false
		}
		i++
		skipWS()
		if i >= n {
			return resolved, partial, false
		}

		switch {
		case raw[i] == '"':
			val, ok, next, partialStr := scanStringValue(raw, i)
			if !ok {
				partial[key] = partialStr
				return resolved, partial, false
			}
			resolved[key] = val
			i = next

		case raw[i] == '{' || raw[i] == '[':
			val, ok, next := scanBalanced(raw, i)
			if !ok {
				return resolved, partial, false
			}
			var v any
			if json.Unmarshal([]byte(val), &v) == nil {
				resolved[key] = v
			}
			i = next

		default:
			val, ok, next := scanPrimitive(raw, i)
			if !ok {
				return resolved, partial, false
			}
			var v any
			if json.Unmarshal([]byte(val), &v) == nil {
				resolved[key] = v
			}
			i = next
		}

		skipWS()
		if i >= n {
			return resolved, partial, false
		}
		if raw[i] == ',' {
			i++
			continue
		}
		if raw[i] == '}' {
			return resolved, partial, true
		}
		return resolved, partial, false
	}
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// scanClosedString scans a complete JSON string literal starting at s[i] ==
// '"', returning its decoded value. ok is false when the closing quote has
// not arrived yet.
func scanClosedString(s string, i int) (decoded string, ok bool, next int) {
	j := i + 1
	for j < len(s) {
		switch s[j] {
		case '\\':
			j += 2
			continue
		case '"':
			var v string
			if json.Unmarshal([]byte(s[i:j+1]), &v) != nil {
				return "", false, i
			}
			return v, true, j + 1
		}
		j++
	}
	return "", false, i
}

// scanStringValue scans a top-level string value. When not yet closed, it
// returns the raw text written so far after the opening quote, for
// incremental "append" reporting.
func scanStringValue(s string, i int) (val string, ok bool, next int, partial string) {
	val, ok, next = scanClosedString(s, i)
	if ok {
		return val, true, next, ""
	}
	if i+1 <= len(s) {
		return "", false, i, s[i+1:]
	}
	return "", false, i, ""
}

// scanBalanced scans a complete JSON object or array value starting at
// s[i], tracking bracket depth while skipping over string contents.
func scanBalanced(s string, i int) (raw string, ok bool, next int) {
	open, close := s[i], closingBracket(s[i])
	depth := 0
	j := i
	for j < len(s) {
		switch s[j] {
		case '"':
			_, sok, nj := scanClosedString(s, j)
			if !sok {
				return "", false, i
			}
			j = nj
			continue
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[i : j+1], true, j + 1
			}
		}
		j++
	}
	return "", false, i
}

func closingBracket(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

// scanPrimitive scans a number/bool/null value, terminated by ',', '}', or
// whitespace. ok is false when the terminator has not arrived yet, since the
// value could still grow (e.g. "12" might become "123").
func scanPrimitive(s string, i int) (raw string, ok bool, next int) {
	j := i
	for j < len(s) {
		c := s[j]
		if c == ',' || c == '}' || isJSONSpace(c) {
			return s[i:j], true, j
		}
		j++
	}
	return "", false, i
}
