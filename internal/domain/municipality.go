package domain

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// boilerplatePhrase is one administrative phrase that precedes the real city
// name in organization labels. Patterns are matched case-insensitively against
// upper-cased text, with character classes covering accent variants.
type boilerplatePhrase struct {
	Name    string
	Pattern string
}

// boilerplatePhrases is ordered: when two phrases match at the same position
// the earlier entry wins.
var boilerplatePhrases = []boilerplatePhrase{
	{"Do Município De", `Do\s+Munic[ií]pio\s+De`},
	{"Municipais De", `Municipais\s+De`},
	{"Municipalidade De", `Municipalidade\s+De`},
	{"Esgoto De", `Esgoto\s+De`},
	{"Água De", `[AÁ]gua\s+De`},
	{"Turística De", `Tur[ií]stica\s+De`},
	{"Ambiental De", `Ambiental\s+De`},
	{"Urbanismo De", `Urbanismo\s+De`},
	{"Prefeitura De", `Prefeitura\s+De`},
	{"Vereadores De", `Vereadores\s+De`},
	{"Saúde De", `Sa[uú]de\s+De`},
	{"Servidores De", `Servidores\s+De`},
	{"Municipários De", `Municip[aá]rios\s+De`},
	{"Social De", `Social\s+De`},
	{"Públicos De", `P[uú]blicos\s+De`},
	{"Samae - De", `Samae\s+-+\s+De`},
	{"Município De", `Munic[ií]pio\s+De`},
	{"Previdência De", `Previd[eê]ncia\s+De`},
	{"Câmara De", `C[aâ]mara\s+De`},
	{"De Previdência", `De\s+Previd[eê]ncia`},
	{"Câmara Municipal De", `C[aâ]mara\s+Municipal\s+De`},
	{"Mun. De", `Mun\.\s+De`},
	{"Municipal De", `Municipal\s+De`},
	{"Município", `\s+Munic[ií]pio`},
	{"Previdência", `Previd[eê]ncia`},
}

var (
	// trailingParenRe matches a parenthetical qualifier at the end, e.g. " (SEDE)".
	trailingParenRe = regexp.MustCompile(`\s*\([^)]*\)$`)

	// innerParenRe matches any innermost parenthetical group.
	innerParenRe = regexp.MustCompile(`\s*\([^()]*\)`)

	// trailingCodeRe matches a generic " - XX" suffix, e.g. " - MG" or " - 01".
	trailingCodeRe = regexp.MustCompile(`\s+-\s+[A-Z0-9]+$`)

	// boilerplateRe deletes everything up to and including the rightmost
	// administrative phrase. The greedy prefix makes the rightmost start win.
	boilerplateRe = compileBoilerplate(boilerplatePhrases)

	// pensionSuffixRe matches a standalone final token naming a municipal
	// pension fund: IPREV, MUNPREV, PREVIMUN.
	pensionSuffixRe = regexp.MustCompile(`(?:^|\s+)(?:\p{Lu}*PREV|PREV\p{Lu}*)$`)

	// danglingConjunctionRe matches the "E" left behind by "JOINVILLE E IPREV".
	danglingConjunctionRe = regexp.MustCompile(`\s+E$`)

	// conjunctionRe splits "JOINVILLE E IPREVILLE" into its parts.
	conjunctionRe = regexp.MustCompile(`\s+E\s+`)

	whitespaceRe = regexp.MustCompile(`\s+`)

	// stateSuffixCache holds the compiled per-UF suffix patterns.
	stateSuffixCache sync.Map
)

func compileBoilerplate(phrases []boilerplatePhrase) *regexp.Regexp {
	alts := make([]string, len(phrases))
	for i, p := range phrases {
		alts[i] = p.Pattern
	}
	return regexp.MustCompile(`(?i)^(?:.*)(` + strings.Join(alts, "|") + `)`)
}

// BoilerplatePhrases returns the display names of the administrative phrases
// stripped by NormalizeMunicipality, in match-priority order.
func BoilerplatePhrases() []string {
	names := make([]string, len(boilerplatePhrases))
	for i, p := range boilerplatePhrases {
		names[i] = p.Name
	}
	return names
}

// NormalizeMunicipality extracts a title-cased city name from a free-text
// organization label, e.g. "PREFEITURA MUNICIPAL DE OURO BRANCO" -> "Ouro Branco".
// uf is the record's two-letter state code and is only used as a stripping
// target. The result is a join key candidate, not a validated gazetteer name.
func NormalizeMunicipality(raw, uf string) string {
	name := strings.ToUpper(strings.TrimSpace(unifySpaces(raw)))

	name = trailingParenRe.ReplaceAllString(name, "")
	name = stripParentheticals(name)
	name = trailingCodeRe.ReplaceAllString(name, "")
	name = stripStateSuffix(name, uf)
	name = boilerplateRe.ReplaceAllString(name, "")
	name = stripPensionSuffix(name)
	name = dropTrailingConjunct(name)

	name = whitespaceRe.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .-/")

	return titleCase(name)
}

// unifySpaces maps every Unicode space (NBSP, thin space) to an ASCII space so
// the ASCII \s class used by the patterns sees it.
func unifySpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

func stripParentheticals(s string) string {
	for {
		next := innerParenRe.ReplaceAllString(s, "")
		if next == s {
			return s
		}
		s = next
	}
}

// stripStateSuffix removes a final " - UF" or " / UF". Only the end of the
// string is considered, so a leading "MG ..." is left alone.
func stripStateSuffix(s, uf string) string {
	return stateSuffixRe(uf).ReplaceAllString(s, "")
}

func stateSuffixRe(uf string) *regexp.Regexp {
	if re, ok := stateSuffixCache.Load(uf); ok {
		return re.(*regexp.Regexp)
	}
	quoted := regexp.QuoteMeta(uf)
	re := regexp.MustCompile(`(?i)\s*[-/]\s*` + quoted + `\s*$`)
	stateSuffixCache.Store(uf, re)
	return re
}

// stripPensionSuffix removes a final pension-fund token and the conjunction
// that joined it to the city name.
func stripPensionSuffix(s string) string {
	if !pensionSuffixRe.MatchString(s) {
		return s
	}
	s = pensionSuffixRe.ReplaceAllString(s, "")
	return danglingConjunctionRe.ReplaceAllString(s, "")
}

// dropTrailingConjunct handles labels naming two bodies, e.g.
// "JOINVILLE E IPREVILLE": an all-caps final part longer than two characters
// is taken to be a second organization and dropped.
func dropTrailingConjunct(s string) string {
	parts := conjunctionRe.Split(s, -1)
	if len(parts) < 2 {
		return s
	}
	last := parts[len(parts)-1]
	if isUpper(last) && utf8.RuneCountInString(last) > 2 {
		return strings.Join(parts[:len(parts)-1], " E ")
	}
	return s
}

// isUpper reports whether s has at least one cased letter and no lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			return false
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			cased = true
		}
	}
	return cased
}

// titleCase upper-cases every letter that follows a non-letter and lower-cases
// the rest, so "D'OESTE" becomes "D'Oeste" and "XIQUE-XIQUE" "Xique-Xique".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && prevCased:
			b.WriteRune(unicode.ToLower(r))
		case cased:
			b.WriteRune(unicode.ToTitle(r))
		default:
			b.WriteRune(r)
		}
		prevCased = cased
	}
	return b.String()
}
