package scoring

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// replacer folds the punctuation that release names decorate titles with.
// Dots and dashes separate words in scene names, so they become spaces;
// the rest is dropped.
var replacer = strings.NewReplacer(
	"...", " ",
	".", " ",
	"-", " ",
	"_", " ",
	"&", " ",
	"+", " ",
	"$", "s",
	"?", "",
	"!", "",
	"\"", "",
	"'", "",
	",", " ",
	"*", "",
	"(", " ",
	")", " ",
	"[", " ",
	"]", " ",
	"#", "",
	":", "",
	";", "",
	"=", " ",
)

var accentFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips accents and folds punctuation so that
// "L'Étranger: Special-Edition" and "l etranger special edition"
// compare equal.
func Normalize(s string) string {
	folded, _, err := transform.String(accentFold, s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = replacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits a normalized string into its words
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// tokenSetRatio is the percentage of shared words between two token sets,
// scaled like a fuzzy match ratio: 100 means one set covers the other.
func tokenSetRatio(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := tokenSet(a)
	setB := tokenSet(b)

	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return shared * 100 / smaller
}
