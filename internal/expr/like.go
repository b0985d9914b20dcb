package expr

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// likePatternCacheSize bounds the compiled LIKE patterns kept in memory.
const likePatternCacheSize = 256

var likePatterns = mustLikeCache()

func mustLikeCache() *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](likePatternCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

// Like reports whether s matches the SQL LIKE pattern: "%" matches any run
// of characters, "_" exactly one, and a backslash makes the next character
// literal. Matching is anchored at both ends and ignores the case of ASCII
// letters only, as SQLite and MySQL LIKE do.
func Like(s, pattern string) bool {
	return likeRegexp(pattern).MatchString(foldASCII(s))
}

func likeRegexp(pattern string) *regexp.Regexp {
	if re, ok := likePatterns.Get(pattern); ok {
		return re
	}
	var b strings.Builder
	b.WriteString(`(?s)^`)
	escaped := false
	for _, r := range foldASCII(pattern) {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(`.*`)
		case r == '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(regexp.QuoteMeta(`\`))
	}
	b.WriteString(`$`)
	re := regexp.MustCompile(b.String())
	likePatterns.Add(pattern, re)
	return re
}

func foldASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}, s)
}

// EscapeLike escapes the LIKE wildcards in s so it matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
