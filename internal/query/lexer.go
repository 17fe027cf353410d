package query

import (
	"regexp"
	"strings"

	"github.com/kyleking/sqlassist/internal/catalog"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokNumber
	tokDate
	tokQuoted
	tokSymbol
)

type token struct {
	kind tokenKind
	text string // lower-cased, quotes and number decoration stripped
	raw  string // as typed, quotes stripped

	// glued marks a number typed flush against the next word or number,
	// as in "5k" or "1,2345"
	glued bool
}

var tokenPattern = regexp.MustCompile(
	`"[^"]*"|'[^']*'` +
		`|\d{4}-\d{2}-\d{2}(?:[tT ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:[zZ]|[+-]\d{2}:?\d{2})?)?` +
		`|[$₹]?-?(?:\d{1,3}(?:,\d{3})+|\d{1,2}(?:,\d{2})+,\d{3}|\d+)(?:\.\d+)?(?:[eE][+-]?\d+)?%?` +
		`|[\pL_][\pL\pN_']*` +
		`|>=|<=|!=|<>|[<>=,()]`,
)

func tokenize(utterance string) []token {
	var tokens []token

	spans := tokenPattern.FindAllStringIndex(utterance, -1)

	for i, span := range spans {
		m := utterance[span[0]:span[1]]

		switch c := m[0]; {
		case c == '"' || c == '\'':
			inner := m[1 : len(m)-1]
			tokens = append(tokens, token{kind: tokQuoted, text: strings.ToLower(inner), raw: inner})
		case isDateToken(m):
			tokens = append(tokens, token{kind: tokDate, text: strings.ToLower(m), raw: m})
		case strings.ContainsAny(m[:1], "0123456789$-") || strings.HasPrefix(m, "₹"):
			clean := strings.TrimLeft(m, "$₹")
			clean = strings.TrimSuffix(strings.ReplaceAll(clean, ",", ""), "%")
			tok := token{kind: tokNumber, text: clean, raw: m}

			if i+1 < len(spans) && spans[i+1][0] == span[1] {
				tok.glued = !strings.ContainsAny(utterance[span[1]:span[1]+1], "<>=!,()\"'")
			}

			tokens = append(tokens, tok)
		case strings.ContainsAny(m[:1], "<>=!,()"):
			tokens = append(tokens, token{kind: tokSymbol, text: m, raw: m})
		default:
			word := strings.TrimSuffix(strings.ToLower(m), "'s")
			tokens = append(tokens, token{kind: tokWord, text: word, raw: strings.TrimSuffix(m, "'s")})
		}
	}

	return tokens
}

func isDateToken(s string) bool {
	return len(s) >= 10 && s[4] == '-' && s[7] == '-' && strings.IndexFunc(s[:4], notDigit) < 0
}

func notDigit(r rune) bool { return r < '0' || r > '9' }

type itemKind int

const (
	itemWord itemKind = iota
	itemColumn
	itemTable
	itemValue
	itemSymbol
)

// item is a token or a run of tokens recognised as one catalog term
type item struct {
	kind   itemKind
	tok    token // first token of the run
	column string
	phrase string
}

func (it item) is(words ...string) bool {
	if it.kind != itemWord && it.kind != itemSymbol {
		return false
	}

	for _, w := range words {
		if it.tok.text == w {
			return true
		}
	}

	return false
}

// scanItems folds catalog terms into single items, longest match first.
// Exact terms beat table names, which beat singularised terms, so
// "accounts" can name the table while "balances" still finds its column.
func scanItems(c *catalog.Catalog, tokens []token) ([]item, error) {
	var items []item

	maxWords := c.MaxTermWords()
	if maxWords < 1 {
		maxWords = 1
	}

	for i := 0; i < len(tokens); {
		tok := tokens[i]

		switch tok.kind {
		case tokNumber, tokDate, tokQuoted:
			items = append(items, item{kind: itemValue, tok: tok, phrase: tok.raw})
			i++

			continue
		case tokSymbol:
			items = append(items, item{kind: itemSymbol, tok: tok, phrase: tok.raw})
			i++

			continue
		}

		matched, consumed, err := matchTerm(c, tokens[i:], maxWords)
		if err != nil {
			return nil, err
		}

		if consumed == 0 {
			items = append(items, item{kind: itemWord, tok: tok, phrase: tok.raw})
			i++

			continue
		}

		matched.tok = tok
		items = append(items, matched)
		i += consumed
	}

	return items, nil
}

func matchTerm(c *catalog.Catalog, tokens []token, maxWords int) (item, int, error) {
	for n := min(maxWords, len(tokens)); n >= 1; n-- {
		words := make([]string, 0, n)

		for _, t := range tokens[:n] {
			if t.kind != tokWord {
				break
			}

			words = append(words, t.text)
		}

		if len(words) != n {
			continue
		}

		phrase := strings.Join(words, " ")

		if it, ok, err := resolvePhrase(c, phrase, phrase); ok || err != nil {
			return it, n, err
		}

		if c.IsTableTerm(phrase) {
			return item{kind: itemTable, phrase: phrase}, n, nil
		}

		if singular, ok := singularize(phrase); ok {
			if it, ok, err := resolvePhrase(c, singular, phrase); ok || err != nil {
				return it, n, err
			}
		}
	}

	return item{}, 0, nil
}

func resolvePhrase(c *catalog.Catalog, term, phrase string) (item, bool, error) {
	cols := c.Resolve(term)

	switch len(cols) {
	case 0:
		return item{}, false, nil
	case 1:
		return item{kind: itemColumn, column: cols[0], phrase: phrase}, true, nil
	default:
		return item{}, false, &ExtractionError{Reason: ReasonAmbiguousColumn, Phrase: phrase, Candidates: cols}
	}
}

func singularize(phrase string) (string, bool) {
	switch {
	case strings.HasSuffix(phrase, "ies"):
		return strings.TrimSuffix(phrase, "ies") + "y", true
	case strings.HasSuffix(phrase, "ses"), strings.HasSuffix(phrase, "xes"):
		return strings.TrimSuffix(phrase, "es"), true
	case strings.HasSuffix(phrase, "s") && !strings.HasSuffix(phrase, "ss"):
		return strings.TrimSuffix(phrase, "s"), true
	default:
		return "", false
	}
}
