package session

import (
	"strconv"
	"strings"
	"unicode/utf8"

	berrors "github.com/bobboyms/shardsql/pkg/errors"
)

// substituteParams renders template by replacing every `$N` and `?`
// token with its bound value, per spec §4.11's parameter substitution
// rule. `$N` indexes paramValues[N-1]; `?` consumes paramValues
// positionally; the two counters are independent. Tokens inside '...'
// string literals are left untouched.
func substituteParams(template string, paramValues [][]byte) (string, error) {
	var out strings.Builder
	runes := []rune(template)
	qIdx := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\'' {
			out.WriteRune(r)
			i++
			for i < len(runes) {
				out.WriteRune(runes[i])
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i++
						out.WriteRune(runes[i])
						i++
						continue
					}
					break
				}
				i++
			}
			continue
		}

		if r == '?' {
			if qIdx >= len(paramValues) {
				return "", berrors.NewKind(berrors.KindProtocol, "not enough bound parameters for '?' at position %d", qIdx+1)
			}
			rendered, err := renderParam(paramValues[qIdx])
			if err != nil {
				return "", err
			}
			qIdx++
			out.WriteString(rendered)
			continue
		}

		if r == '$' && i+1 < len(runes) && isDigit(runes[i+1]) {
			j := i + 1
			for j < len(runes) && isDigit(runes[j]) {
				j++
			}
			n, _ := strconv.Atoi(string(runes[i+1 : j]))
			if n < 1 || n > len(paramValues) {
				return "", berrors.NewKind(berrors.KindProtocol, "parameter $%d out of range", n)
			}
			rendered, err := renderParam(paramValues[n-1])
			if err != nil {
				return "", err
			}
			out.WriteString(rendered)
			i = j - 1
			continue
		}

		out.WriteRune(r)
	}

	return out.String(), nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// renderParam implements spec §4.11's per-value rendering rule.
func renderParam(value []byte) (string, error) {
	if value == nil {
		return "NULL", nil
	}

	s := string(value)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}

	if s == "null" || s == "NULL" {
		return "NULL", nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s, nil
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return s, nil
	}
	switch strings.ToLower(s) {
	case "true", "t":
		return "true", nil
	case "false", "f":
		return "false", nil
	}

	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + escaped + "'", nil
}
