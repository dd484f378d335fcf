package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldKey(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"  Santa Maria do Suaçuí ", "santa maria do suacui"},
		{"SÃO JOÃO D'OESTE", "sao joao d'oeste"},
		{"Ouro Branco", "ouro branco"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, FoldKey(tt.in))
		})
	}
}

func testCompetitors() []Competitor {
	return []Competitor{
		{Municipality: testOuroBranco, UF: "MG", EstablishmentType: "Prefeitura", Name: "Acme", Status: "Ativo"},
		{Municipality: "CONGONHAS", UF: "MG", EstablishmentType: "Camara", Name: "Beta", Status: "Encerrado"},
		{Municipality: "Sao Paulo", UF: "SP", EstablishmentType: "Prefeitura", Name: "Acme", Status: "Ativo"},
		{Municipality: "Rio Pomba", UF: "MG", EstablishmentType: "Prefeitura", Name: "Beta", Status: "Ativo"},
		{Municipality: "Atlantis", UF: "MG", EstablishmentType: "Prefeitura", Name: "Acme", Status: "Ativo"},
	}
}

func TestJoinCompetitors(t *testing.T) {
	points, unmatched := JoinCompetitors(testCompetitors(), testGazetteer())

	require.Len(t, points, 3)
	assert.Equal(t, "3145901", points[0].IBGECode)
	assert.InDelta(t, -20.5263, points[0].Lat, 1e-9)
	assert.Equal(t, "Acme", points[0].Name)
	assert.Equal(t, "3118007", points[1].IBGECode)
	assert.Equal(t, "3550308", points[2].IBGECode)

	require.Len(t, unmatched, 2)
	assert.Equal(t, "Rio Pomba", unmatched[0].Municipality)
	assert.Equal(t, "Atlantis", unmatched[1].Municipality)
}

func TestFilterApply(t *testing.T) {
	points, _ := JoinCompetitors(testCompetitors(), testGazetteer())

	tests := []struct {
		name     string
		filter   Filter
		expected int
	}{
		{"empty filter matches all", Filter{}, 3},
		{"by state", Filter{UFs: []string{"MG"}}, 2},
		{"state case insensitive", Filter{UFs: []string{"sp"}}, 1},
		{"by competitor", Filter{Competitors: []string{"Acme"}}, 2},
		{"combined", Filter{UFs: []string{"MG"}, Competitors: []string{"Acme"}}, 1},
		{"by status", Filter{Statuses: []string{"Encerrado"}}, 1},
		{"by type multi", Filter{Types: []string{"Camara", "Prefeitura"}}, 3},
		{"no match", Filter{UFs: []string{"BA"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.filter.Apply(points), tt.expected)
		})
	}
}

func TestCountByState(t *testing.T) {
	points, _ := JoinCompetitors(testCompetitors(), testGazetteer())

	assert.Equal(t, []StateCount{{UF: "MG", Count: 2}, {UF: "SP", Count: 1}}, CountByState(points))
	assert.Empty(t, CountByState(nil))
}

func TestBuildFilterOptions(t *testing.T) {
	g := testGazetteer()
	points, _ := JoinCompetitors(testCompetitors(), g)

	opts := BuildFilterOptions(points, g)
	assert.Equal(t, []string{"Camara", "Prefeitura"}, opts.Types)
	assert.Equal(t, []string{"Acme", "Beta"}, opts.Competitors)
	assert.Equal(t, []string{"Ativo", "Encerrado"}, opts.Statuses)
	assert.Len(t, opts.States, 3)
}

func TestCompetitorFromContract(t *testing.T) {
	rec := ContractRecord{
		Ticket: "CON-1", UF: "MG", Municipality: testOuroBranco, EstablishmentType: "Prefeitura",
		Competitor: "Acme", Status: "Ativo", StartDate: "2023-02-01", EndDate: "2024-12-31",
	}
	c := CompetitorFromContract(rec)
	assert.Equal(t, "Acme", c.Name)
	assert.Equal(t, testOuroBranco, c.Municipality)
	assert.Equal(t, "2024-12-31", c.EndDate)
}
