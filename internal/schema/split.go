package schema

import "strings"

// SplitStatements splits a script on ';' statement boundaries. Semicolons
// inside quoted strings, quoted identifiers and comments do not split.
// Comment-only and blank statements are dropped; the rest are trimmed.
func SplitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
		// code tracks whether the current statement has anything besides
		// whitespace and comments.
		code bool
	)

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if code && s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
		code = false
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(script, i, c)
			cur.WriteString(script[i:end])
			code = true
			i = end - 1
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				end = len(script)
			} else {
				end += i
			}
			cur.WriteString(script[i:end])
			i = end - 1
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				end = len(script)
			} else {
				end += i + 4
			}
			cur.WriteString(script[i:end])
			i = end - 1
		case c == ';':
			flush()
		default:
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				code = true
			}
			cur.WriteByte(c)
		}
	}
	flush()
	return stmts
}

// closingQuote returns the index just past the quote that closes the string
// opened at start. A doubled quote is an escaped quote.
func closingQuote(script string, start int, q byte) int {
	for i := start + 1; i < len(script); i++ {
		if script[i] != q {
			continue
		}
		if i+1 < len(script) && script[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(script)
}
