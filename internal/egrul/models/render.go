package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the registry's dd.mm.yyyy date format.
const DateLayout = "02.01.2006"

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
// The registry sends names and addresses in capitals.
//
// A word is a run of cased letters, so anything else starts a new one: "Г.МОСКВА"
// becomes "Г.Москва" and "O'NEIL" becomes "O'Neil".
func TitleCase(s string) string {
	// A Caser keeps state between calls and cannot be shared across goroutines.
	caser := cases.Title(language.Russian)

	var b strings.Builder
	b.Grow(len(s))
	for s != "" {
		start := strings.IndexFunc(s, isCased)
		if start < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		s = s[start:]

		end := strings.IndexFunc(s, func(r rune) bool { return !isCased(r) })
		if end < 0 {
			end = len(s)
		}
		b.WriteString(caser.String(s[:end]))
		s = s[end:]
	}
	return b.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}

// Text renders the summary as the message shown to the end user:
// the entity block, a blank line, then the activity line.
func (s *CompanySummary) Text() string {
	var b strings.Builder
	switch s.Kind {
	case KindIndividual:
		b.WriteString("ИП: " + s.Name + "\n")
		b.WriteString("ИНН: " + s.INN + "\n")
		b.WriteString("ОГРНИП: " + s.OGRN + "\n")
	default:
		b.WriteString("Компания: " + s.Name + "\n")
		b.WriteString("\n")
		b.WriteString(s.Head + "\n")
		b.WriteString("ИНН: " + s.INN + "\n")
		b.WriteString("ОГРН: " + s.OGRN + "\n")
		b.WriteString("КПП: " + s.KPP + "\n")
		b.WriteString("Адрес: " + s.Address + "\n")
	}
	b.WriteString("\n")
	b.WriteString(s.ActivityLine())
	return b.String()
}

// ActivityLine reports whether the entity is active today or when it was struck off.
func (s *CompanySummary) ActivityLine() string {
	if !s.Active {
		return "Регистрация прекращена " + s.TerminatedOn
	}
	return "Действует на " + s.AsOf.Format(DateLayout)
}
