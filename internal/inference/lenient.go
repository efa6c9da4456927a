package inference

import "strings"

// repairLooseLiteral rewrites a Python-style dict literal (single-quoted
// strings, True/False/None) into strict JSON. Providers occasionally emit
// repr-style lines instead of JSON; the historical workaround was to eval
// such lines, which executes attacker-controlled text. This parser only
// rewrites string quoting and keyword tokens. Anything it cannot make sense
// of is rejected and the caller skips the line.
func repairLooseLiteral(line string) (string, bool) {
	var out strings.Builder
	out.Grow(len(line) + 8)

	i := 0
	for i < len(line) {
		c := line[i]
		switch c {
		case '\'':
			encoded, next, ok := reencodeSingleQuoted(line, i)
			if !ok {
				return "", false
			}
			out.WriteString(encoded)
			i = next
		case '"':
			encoded, next, ok := copyDoubleQuoted(line, i)
			if !ok {
				return "", false
			}
			out.WriteString(encoded)
			i = next
		default:
			if isIdentStart(c) {
				word, next := scanWord(line, i)
				switch word {
				case "True":
					out.WriteString("true")
				case "False":
					out.WriteString("false")
				case "None":
					out.WriteString("null")
				default:
					// Bare identifiers have no JSON meaning.
					return "", false
				}
				i = next
				continue
			}
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), true
}

// reencodeSingleQuoted consumes a 'single-quoted' string starting at i and
// re-emits it as a JSON string.
func reencodeSingleQuoted(s string, i int) (string, int, bool) {
	var out strings.Builder
	out.WriteByte('"')
	i++ // opening quote
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, false
			}
			next := s[i+1]
			if next == '\'' {
				out.WriteByte('\'')
			} else {
				out.WriteByte('\\')
				out.WriteByte(next)
			}
			i += 2
		case '\'':
			out.WriteByte('"')
			return out.String(), i + 1, true
		case '"':
			out.WriteString(`\"`)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return "", 0, false // unterminated
}

// copyDoubleQuoted passes a "double-quoted" string through unchanged.
func copyDoubleQuoted(s string, i int) (string, int, bool) {
	start := i
	i++ // opening quote
	for i < len(s) {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, false
			}
			i += 2
		case '"':
			return s[start : i+1], i + 1, true
		default:
			i++
		}
	}
	return "", 0, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func scanWord(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			i++
			continue
		}
		break
	}
	return s[start:i], i
}
