package filter

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"sedump/internal/schema"
)

// textNormalizer folds text to NFC and strips control runes except the
// whitespace ones that legitimately appear in post bodies.
var textNormalizer = transform.Chain(
	norm.NFC,
	runes.Remove(runes.Predicate(func(r rune) bool {
		if r == '\n' || r == '\r' || r == '\t' {
			return false
		}
		return unicode.Is(unicode.Cc, r)
	})),
)

// NormalizeText rewrites every TEXT-typed column of t to NFC-normalized,
// control-stripped form. Dump exports are not consistent about composed vs.
// decomposed accents, which otherwise breaks equality joins on display names
// and titles.
func NormalizeText(t *schema.Table) Func {
	var idx []int
	for i, c := range t.Columns {
		if len(c.Type) >= 4 && c.Type[:4] == "TEXT" {
			idx = append(idx, i)
		}
	}

	return func(row schema.Row) schema.Row {
		for _, i := range idx {
			s, ok := row[i].(string)
			if !ok {
				continue
			}
			if out, _, err := transform.String(textNormalizer, s); err == nil {
				row[i] = out
			}
		}
		return row
	}
}
