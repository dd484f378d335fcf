package domain

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testUF         = "MG"
	testOuroBranco = "Ouro Branco"
)

func TestNormalizeMunicipality(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		uf       string
		expected string
	}{
		{"prefeitura municipal", "PREFEITURA MUNICIPAL DE OURO BRANCO", testUF, testOuroBranco},
		{"camara with state suffix", "Câmara Municipal de Congonhas - MG", testUF, "Congonhas"},
		{"camara without accent", "CAMARA MUNICIPAL DE CONGONHAS", testUF, "Congonhas"},
		{"trailing parenthetical", "Santa Maria do Suaçuí (SEDE)", testUF, "Santa Maria Do Suaçuí"},
		{"interior parenthetical", "OURO (ANTIGO) BRANCO", testUF, testOuroBranco},
		{"nested parenthetical", "OURO BRANCO (SEDE (ANTIGA))", testUF, testOuroBranco},
		{"slash state suffix", "Congonhas / MG", testUF, "Congonhas"},
		{"state suffix lower case", "Congonhas/mg", testUF, "Congonhas"},
		{"state code lower case", "Congonhas/MG", "mg", "Congonhas"},
		{"generic code suffix", "RIO POMBA - 01", testUF, "Rio Pomba"},
		{"leading state code kept", "MG Sistema de Saneamento", testUF, "Mg Sistema De Saneamento"},
		{"leading IPREV kept", "IPREV RIO POMBA", testUF, "Iprev Rio Pomba"},
		{"trailing IPREV", "RIO POMBA IPREV", testUF, "Rio Pomba"},
		{"trailing MUNPREV", "RIO POMBA MUNPREV", testUF, "Rio Pomba"},
		{"trailing PREVIMUN", "RIO POMBA PREVIMUN", testUF, "Rio Pomba"},
		{"instituto de previdencia", "INSTITUTO DE PREVIDÊNCIA DE RIO POMBA", testUF, "Rio Pomba"},
		{"second organization dropped", "Joinville e IPREVILLE", "SC", "Joinville"},
		{"conjunction before IPREV", "Joinville e IPREV", "SC", "Joinville"},
		{"conjunction before MUNPREV", "RIO POMBA E MUNPREV", testUF, "Rio Pomba"},
		{"two letter conjunct kept", "SANTOS E SP", "SP", "Santos E Sp"},
		{"collapse whitespace", "  OURO \t  BRANCO  ", testUF, testOuroBranco},
		{"non-breaking space", "Ouro\u00a0Branco", testUF, testOuroBranco},
		{"boundary punctuation", "- OURO BRANCO.", testUF, testOuroBranco},
		{"slashes at both ends", "/OURO BRANCO/-", testUF, testOuroBranco},
		{"apostrophe", "PREFEITURA MUNICIPAL DE SÃO JOÃO D'OESTE", "PR", "São João D'Oeste"},
		{"hyphenated", "PREFEITURA DE XIQUE-XIQUE", "BA", "Xique-Xique"},
		{"rightmost phrase wins", "FUNDO MUNICIPAL DE SAÚDE DE OURO BRANCO", testUF, testOuroBranco},
		{"samae with dash", "SAMAE - DE OURO BRANCO", testUF, testOuroBranco},
		{"abbreviated municipio", "MUN. DE OURO BRANCO", testUF, testOuroBranco},
		{"empty", "", testUF, ""},
		{"only boilerplate", "PREFEITURA MUNICIPAL DE", testUF, ""},
		{"empty state code", "Congonhas - MG", "", "Congonhas"},
		// Known limitation: "DE" inside a city name is read as a phrase boundary.
		{"phrase prefix inside name", "PREFEITURA DELFINOPOLIS", testUF, "Lfinopolis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeMunicipality(tt.raw, tt.uf))
		})
	}
}

func TestNormalizeMunicipality_BoilerplatePhrases(t *testing.T) {
	for _, phrase := range BoilerplatePhrases() {
		t.Run(phrase, func(t *testing.T) {
			raw := "ENTIDADE " + strings.ToUpper(phrase) + " OURO BRANCO"
			assert.Equal(t, testOuroBranco, NormalizeMunicipality(raw, testUF))
		})
	}
}

func TestNormalizeMunicipality_StateCodeEscaped(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		uf       string
		expected string
	}{
		{"plus sign", "OURO BRANCO / M+", "M+", testOuroBranco},
		{"open paren", "OURO BRANCO", "(", testOuroBranco},
		{"dot does not match any rune", "OURO BRANCO / MX", "M.", "Ouro Branco / Mx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.expected, NormalizeMunicipality(tt.raw, tt.uf))
			})
		})
	}
}

func TestNormalizeMunicipality_Idempotent(t *testing.T) {
	names := []string{
		testOuroBranco,
		"Congonhas",
		"Santa Maria Do Suaçuí",
		"Belo Horizonte",
		"Rio De Janeiro",
		"São João Del Rei",
		"Xique-Xique",
		"Pingo-D'Água",
		"Conceição Do Mato Dentro",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			once := NormalizeMunicipality(name, testUF)
			assert.Equal(t, name, once)
			assert.Equal(t, once, NormalizeMunicipality(once, testUF))
		})
	}
}

func TestNormalizeMunicipality_OutputShape(t *testing.T) {
	parenGroup := regexp.MustCompile(`\([^()]*\)`)
	repeatedSpace := regexp.MustCompile(`\s{2,}`)

	inputs := []string{
		"PREFEITURA MUNICIPAL DE OURO BRANCO (SEDE)",
		"(SEDE) OURO BRANCO",
		"OURO (A) (B) BRANCO - MG",
		" . / - OURO   BRANCO - / . ",
		"CÂMARA MUNICIPAL DE (X) CONGONHAS / MG",
		"FUNDO DE PREVIDÊNCIA (FUNPREV) DE RIO POMBA",
		"...",
		"()",
		"-(-)-",
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			got := NormalizeMunicipality(raw, testUF)
			assert.False(t, parenGroup.MatchString(got), "parenthetical group in %q", got)
			assert.False(t, repeatedSpace.MatchString(got), "repeated whitespace in %q", got)
			assert.Equal(t, strings.Trim(got, " .-/"), got)
		})
	}
}

func TestNormalizeMunicipality_Concurrent(t *testing.T) {
	done := make(chan string, 8)
	for i := 0; i < cap(done); i++ {
		go func() {
			done <- NormalizeMunicipality("Câmara Municipal de Congonhas / MG", testUF)
		}()
	}
	for i := 0; i < cap(done); i++ {
		assert.Equal(t, "Congonhas", <-done)
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"OURO BRANCO", testOuroBranco},
		{"D'OESTE", "D'Oeste"},
		{"XIQUE-XIQUE", "Xique-Xique"},
		{"SANTA BÁRBARA", "Santa Bárbara"},
		{"3 CORAÇÕES", "3 Corações"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, titleCase(tt.in))
		})
	}
}

func TestDropTrailingConjunct(t *testing.T) {
	assert.Equal(t, "JOINVILLE", dropTrailingConjunct("JOINVILLE E IPREVILLE"))
	assert.Equal(t, "A E B", dropTrailingConjunct("A E B E CCC"))
	assert.Equal(t, "SANTOS E SP", dropTrailingConjunct("SANTOS E SP"))
	assert.Equal(t, "OURO BRANCO", dropTrailingConjunct("OURO BRANCO"))
	assert.Equal(t, "Ouro e Prata", dropTrailingConjunct("Ouro e Prata"))
}

func TestStripPensionSuffix(t *testing.T) {
	assert.Equal(t, "JOINVILLE", stripPensionSuffix("JOINVILLE E IPREV"))
	assert.Equal(t, "RIO POMBA", stripPensionSuffix("RIO POMBA PREVIMUN"))
	assert.Equal(t, "IPREV RIO POMBA", stripPensionSuffix("IPREV RIO POMBA"))
	assert.Equal(t, "SANTA RITA E", stripPensionSuffix("SANTA RITA E"), "no pension token, nothing trimmed")
}
