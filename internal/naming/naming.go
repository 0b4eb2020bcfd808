// Package naming derives the base name that binds all files of a library entry.
package naming

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Derive lower-cases title and drops every character outside [a-z0-9].
// The result may be empty; callers must reject empty base names.
func Derive(title string) string {
	title = strings.ToLower(title)
	var sb strings.Builder
	sb.Grow(len(title))
	for i := 0; i < len(title); i++ {
		c := title[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// IsValid reports whether name is a well formed base name.
func IsValid(name string) bool {
	if name == "" {
		return false
	}
	return Derive(name) == name
}

// Deriver turns titles into base names. With Transliterate enabled accented
// latin letters lose their marks and Han characters are spelled in pinyin
// before Derive runs, so "Pokémon" becomes "pokemon" instead of "pokmon".
type Deriver struct {
	Transliterate bool
}

// Derive returns the base name for title.
func (d Deriver) Derive(title string) string {
	if !d.Transliterate {
		return Derive(title)
	}
	return Derive(transliterate(title))
}

var pinyinArgs = func() pinyin.Args {
	a := pinyin.NewArgs()
	a.Fallback = func(r rune, a pinyin.Args) []string {
		return []string{string(r)}
	}
	return a
}()

func transliterate(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, title)
	if err != nil {
		stripped = title
	}
	if !containsHan(stripped) {
		return stripped
	}
	return strings.Join(pinyin.LazyPinyin(stripped, pinyinArgs), "")
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
