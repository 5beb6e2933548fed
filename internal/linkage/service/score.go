package service

import (
	"sort"
	"strings"

	"concorde-service/internal/linkage/model"
)

// ratio — похожесть двух строк в [0..100] на базе Дамерау-Левенштейна.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	ra, rb := []rune(a), []rune(b)
	m := max(len(ra), len(rb), 1)
	d := damerauLevenshtein(ra, rb)
	return 100 * (1 - float64(d)/float64(m))
}

// Уникальные токены строки, отсортированные лексикографически.
func tokenSet(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range strings.Fields(s) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// tokenSetRatio — сравнение строк как неупорядоченных множеств слов.
// Перестановка слов и дубли токенов на скор не влияют; подмножество даёт 100.
func tokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)

	inA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		inA[t] = struct{}{}
	}
	inB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		inB[t] = struct{}{}
	}

	var inter, diffA, diffB []string
	for _, t := range ta {
		if _, ok := inB[t]; ok {
			inter = append(inter, t)
		} else {
			diffA = append(diffA, t)
		}
	}
	for _, t := range tb {
		if _, ok := inA[t]; !ok {
			diffB = append(diffB, t)
		}
	}

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(diffA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(diffB, " "))

	best := ratio(t1, t2)
	if t0 != "" {
		if r := ratio(t0, t1); r > best {
			best = r
		}
		if r := ratio(t0, t2); r > best {
			best = r
		}
	}
	return best
}

// partialRatio — лучший скор короткой строки против окна той же длины
// в длинной (выравнивание для метода contains).
func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		if r := ratio(string(ra), string(rb[i:i+len(ra)])); r > best {
			best = r
		}
	}
	return best
}

// scoreField — скор одного правила для пары значений, [0..100].
// Обе стороны пустые → 100 (совпадение по отсутствию), одна пустая → 0.
func scoreField(sourceVal, targetVal string, rule model.FieldRule) float64 {
	var s, t string
	switch {
	case isDOIRule(rule):
		s = normalizeDOI(sourceVal)
		t = normalizeDOI(targetVal)
	case rule.Normalize:
		opt := defaultTextOpts
		opt.stripDiacritics = rule.StripDiacritics
		s = normalizeText(sourceVal, opt)
		t = normalizeText(targetVal, opt)
	default:
		s = sourceVal
		t = targetVal
	}

	if s == "" && t == "" {
		return 100
	}
	if s == "" || t == "" {
		return 0
	}

	switch rule.Method {
	case model.MethodExact, model.MethodNormalizedExact:
		if s == t {
			return 100
		}
		return 0
	case model.MethodFuzzyRatio:
		return ratio(s, t)
	case model.MethodTokenSet:
		return tokenSetRatio(s, t)
	case model.MethodContains:
		if strings.Contains(s, t) || strings.Contains(t, s) {
			return 100
		}
		return partialRatio(s, t)
	}
	// метод провалидирован раньше; сюда не попадаем
	return ratio(s, t)
}

// scoreRowPair — взвешенный скор пары строк по всем применимым правилам.
// Ни одного применимого правила — это не ошибка, а скор 0.
func scoreRowPair(source, target *model.Table, srcRow, tgtRow int, rules []model.FieldRule) (float64, map[string]float64) {
	var weightedSum, totalWeight float64
	details := make(map[string]float64)

	for _, rule := range rules {
		sv, okS := source.Cell(srcRow, rule.SourceField)
		tv, okT := target.Cell(tgtRow, rule.TargetField)
		if !okS || !okT {
			continue
		}
		sc := scoreField(sv, tv, rule)
		details[rule.Key()] = sc
		weightedSum += sc * rule.Weight
		totalWeight += rule.Weight
	}

	if totalWeight == 0 {
		return 0, details
	}
	return weightedSum / totalWeight, details
}
