package ezql

import (
	"errors"
	"strings"

	"ezdb/internal/ezerr"
)

// Parse reads the textual EZQL grammar from spec §4.3:
//
//	VERB(arg: value, arg: (v1, v2, ...), ...) -> VERB(...) -> ...
//
// Arguments are position-independent and identified by keyword, verbs and
// test names are case-insensitive, and whitespace outside quoted values
// is insignificant. Failures carry the offending verb and text (spec
// §4.3, "Failures").
func Parse(src string) ([]*Query, error) {
	chunks := splitTopLevel(src, "->")
	if len(chunks) == 0 {
		return nil, ezerr.New(ezerr.Query, "empty query chain")
	}

	queries := make([]*Query, 0, len(chunks))
	for _, chunk := range chunks {
		q, err := parseOne(strings.TrimSpace(chunk))
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func parseOne(s string) (*Query, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return nil, ezerr.Newf(ezerr.Query, "missing '(' in query %q", s)
	}
	verbWord := strings.ToUpper(strings.TrimSpace(s[:open]))

	close, err := matchParen(s, open)
	if err != nil {
		return nil, ezerr.Wrap(ezerr.Query, "query "+verbWord, err)
	}
	if strings.TrimSpace(s[close+1:]) != "" {
		return nil, ezerr.Newf(ezerr.Query, "%s: unexpected trailing text after ')'", verbWord)
	}

	args, err := splitArgs(s[open+1 : close])
	if err != nil {
		return nil, ezerr.Wrap(ezerr.Query, "query "+verbWord, err)
	}

	reduce, ok := reducers[Verb(verbWord)]
	if !ok {
		return nil, ezerr.Newf(ezerr.Query, "unknown verb %q", verbWord)
	}
	q, err := reduce(args)
	if err != nil {
		return nil, ezerr.Wrap(tagOf(err), "query "+verbWord, err)
	}
	q.Verb = Verb(verbWord)
	return q, nil
}

// tagOf preserves a reducer's own error tag (e.g. Unimplemented for
// CREATE and the unsupported join variants) instead of flattening every
// parse failure to Query.
func tagOf(err error) ezerr.Tag {
	var e *ezerr.Error
	if errors.As(err, &e) {
		return e.Tag
	}
	return ezerr.Query
}

// matchParen returns the index of the ')' matching the '(' at openIdx,
// tracking nesting depth and skipping over quoted text.
func matchParen(s string, openIdx int) (int, error) {
	depth := 0
	inQuote := byte(0)
	for i := openIdx; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inQuote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, ezerr.New(ezerr.Query, "unbalanced parentheses")
}

// splitTopLevel splits s on sep, ignoring occurrences inside parentheses
// or quotes, and trims whitespace from each piece. Empty input yields no
// pieces.
func splitTopLevel(s string, sep string) []string {
	var out []string
	depth := 0
	inQuote := byte(0)
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inQuote = c
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(s[i:], sep) {
				out = append(out, strings.TrimSpace(s[start:i]))
				i += len(sep) - 1
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" || len(out) > 0 {
		tail := strings.TrimSpace(s[start:])
		if tail != "" {
			out = append(out, tail)
		}
	}
	return out
}

// splitArgs parses `key: value, key: value, ...` into a map, lower-casing
// keys. Values keep their raw text (including any enclosing parens) for
// the verb-specific reducer to interpret.
func splitArgs(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	args := make(map[string]string)
	if s == "" {
		return args, nil
	}
	for _, piece := range splitTopLevel(s, ",") {
		ci := topLevelIndex(piece, ':')
		if ci < 0 {
			return nil, ezerr.Newf(ezerr.Query, "malformed argument %q, expected key: value", piece)
		}
		key := strings.ToLower(strings.TrimSpace(piece[:ci]))
		val := strings.TrimSpace(piece[ci+1:])
		args[key] = val
	}
	return args, nil
}

func topLevelIndex(s string, target byte) int {
	depth := 0
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inQuote = c
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && c == target {
				return i
			}
		}
	}
	return -1
}

// stripOuterParens removes one matching pair of enclosing parentheses
// from s, if and only if they wrap the whole string.
func stripOuterParens(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	if end, err := matchParen(s, 0); err != nil || end != len(s)-1 {
		return s
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}

// unquote strips a single pair of matching quotes, if present.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// tokenizeWhitespace splits s on whitespace, respecting quoted substrings
// (spec §4.3: "values containing whitespace are quoted").
func tokenizeWhitespace(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := byte(0)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteByte(c)
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			inQuote = c
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		case c == '(' || c == ')':
			// grouping parens inside a flat condition/update stream carry
			// no precedence in this grammar; drop them.
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}
