package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Опции текстовой нормализации. NFKC и схлопывание пробелов — всегда.
type textOpts struct {
	lower           bool
	strip           bool
	stripDiacritics bool
}

var defaultTextOpts = textOpts{lower: true, strip: true}

var wsRun = regexp.MustCompile(`\s+`)

// NFD → выкинуть комбинируемые знаки (Mn) → NFC
var diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText — главный конвейер: NFKC, пробелы, регистр, акценты.
func normalizeText(s string, opt textOpts) string {
	if s == "" {
		return ""
	}
	out := s
	if opt.strip {
		out = strings.TrimSpace(out)
	}
	out = norm.NFKC.String(out)
	out = wsRun.ReplaceAllString(out, " ")
	if opt.strip {
		out = strings.TrimSpace(out)
	}
	if opt.lower {
		out = strings.ToLower(out)
	}
	if opt.stripDiacritics {
		out = stripDiacritics(out)
	}
	return out
}

func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticsStripper, s)
	if err != nil {
		return s
	}
	return out
}
