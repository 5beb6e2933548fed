package service

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"concorde-service/internal/linkage/model"
)

// Хвост URL: параметры и фрагменты (?ref=... #anchor)
var doiTail = regexp.MustCompile(`[?#].*$`)

// Известные префиксы DOI (https://doi.org/, dx.doi.org, doi:)
var doiPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^https?://(?:dx\.)?doi\.org/`),
	regexp.MustCompile(`(?i)^doi\s*:?\s*`),
	regexp.MustCompile(`(?i)^https?://[^/]*doi\.org/`),
}

var slashSpaces = regexp.MustCompile(`\s*/\s*`)

// normalizeDOI приводит DOI к сравнимому виду независимо от того, как он
// записан в таблице (URL, doi:, percent-encoding, лишние пробелы).
// Идемпотентна: normalizeDOI(normalizeDOI(x)) == normalizeDOI(x).
func normalizeDOI(s string) string {
	out := strings.ToLower(strings.TrimSpace(s))
	if out == "" {
		return ""
	}
	out = norm.NFKC.String(out)
	if dec, err := url.PathUnescape(out); err == nil {
		out = dec
	}
	out = doiTail.ReplaceAllString(out, "")
	for _, p := range doiPrefixes {
		out = p.ReplaceAllString(out, "")
	}
	out = wsRun.ReplaceAllString(out, " ")
	out = slashSpaces.ReplaceAllString(out, "/")
	out = strings.TrimSpace(out)
	out = strings.TrimRight(out, "/")
	return strings.TrimSpace(out)
}

// Колонка с именем "doi" (с любой стороны правила) всегда сравнивается
// через normalizeDOI, какой бы метод ни был объявлен.
func isDOIRule(r model.FieldRule) bool {
	return strings.EqualFold(r.SourceField, "doi") || strings.EqualFold(r.TargetField, "doi")
}
