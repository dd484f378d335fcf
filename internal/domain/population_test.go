package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bandByColumn(t *testing.T, column string) AgeBand {
	t.Helper()
	i, ok := BandIndex(column)
	require.True(t, ok, "unknown band %s", column)
	return AgeBands()[i]
}

func TestAgeBands(t *testing.T) {
	bands := AgeBands()
	require.Len(t, bands, AgeBandCount)
	assert.Equal(t, "pop_0_14", bands[0].Column)
	assert.Equal(t, "pop_100_mais", bands[AgeBandCount-1].Column)

	seen := make(map[string]bool)
	for _, b := range bands {
		assert.NotEmpty(t, b.Codes, b.Column)
		for _, c := range b.Codes {
			assert.False(t, seen[c], "code %s in two bands", c)
			seen[c] = true
		}
	}

	bands[0].Column = "mutated"
	assert.Equal(t, "pop_0_14", AgeBands()[0].Column)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in       string
		expected int64
	}{
		{"1234", 1234},
		{" 42 ", 42},
		{"12.0", 12},
		{"-", 0},
		{"...", 0},
		{"X", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCount(tt.in))
		})
	}
}

func TestSplitMunicipalityLabel(t *testing.T) {
	name, uf, ok := SplitMunicipalityLabel("Ouro Branco - MG")
	assert.True(t, ok)
	assert.Equal(t, testOuroBranco, name)
	assert.Equal(t, "MG", uf)

	name, uf, ok = SplitMunicipalityLabel("Brasil")
	assert.False(t, ok)
	assert.Equal(t, "Brasil", name)
	assert.Empty(t, uf)

	name, uf, ok = SplitMunicipalityLabel("Xique-Xique - BA")
	assert.True(t, ok)
	assert.Equal(t, "Xique-Xique", name)
	assert.Equal(t, "BA", uf)
}

func TestMergeAgeBands(t *testing.T) {
	young := bandByColumn(t, "pop_0_14")
	old := bandByColumn(t, "pop_100_mais")

	results := []BandResult{
		{Band: young, Counts: []BandCount{
			{Code: "3145901", Label: "Ouro Branco - MG", Value: 100},
			{Code: "3145901", Label: "Ouro Branco - MG", Value: 20},
			{Code: "3118007", Label: "Congonhas - MG", Value: 300},
			{Code: "3550308", Label: "São Paulo - SP", Value: 5000},
			{Code: "1", Label: "Brasil", Value: 9},
		}},
		{Band: old, Counts: []BandCount{
			{Code: "3145901", Label: "Ouro Branco - MG", Value: 1},
			{Code: "3106200", Label: "Belo Horizonte - MG", Value: 7},
		}},
		{Band: AgeBand{Column: "unknown"}, Counts: []BandCount{{Label: "Ouro Branco - MG", Value: 999}}},
	}

	rows := MergeAgeBands(results)
	require.Len(t, rows, 4)

	assert.Equal(t, "Belo Horizonte", rows[0].Municipality)
	assert.Equal(t, "Congonhas", rows[1].Municipality)
	assert.Equal(t, testOuroBranco, rows[2].Municipality)
	assert.Equal(t, "SP", rows[3].UF)

	ob := rows[2]
	assert.Equal(t, "3145901", ob.IBGECode)
	assert.Equal(t, "MG", ob.UF)
	assert.Equal(t, int64(120), ob.BandValue("pop_0_14"))
	assert.Equal(t, int64(1), ob.BandValue("pop_100_mais"))
	assert.Equal(t, int64(0), ob.BandValue("pop_20_29"))
	assert.Equal(t, int64(0), ob.BandValue("unknown"))
	assert.Equal(t, int64(121), ob.Total)

	bh := rows[0]
	assert.Equal(t, int64(0), bh.BandValue("pop_0_14"))
	assert.Equal(t, int64(7), bh.Total)
}

func TestSumByState(t *testing.T) {
	var a, b, c PopulationRow
	a.UF, b.UF, c.UF = "SP", "MG", "MG"
	a.Bands[0], b.Bands[0], c.Bands[1] = 10, 3, 4
	a.Total, b.Total, c.Total = 10, 3, 4

	states := SumByState([]PopulationRow{a, b, c})
	require.Len(t, states, 2)
	assert.Equal(t, "MG", states[0].UF)
	assert.Equal(t, int64(3), states[0].Bands[0])
	assert.Equal(t, int64(4), states[0].Bands[1])
	assert.Equal(t, int64(7), states[0].Total)
	assert.Equal(t, "SP", states[1].UF)
	assert.Equal(t, int64(10), states[1].Total)
}

func TestMelt(t *testing.T) {
	var bands [AgeBandCount]int64
	bands[0] = 5
	bands[AgeBandCount-1] = 2

	series := Melt(bands)
	require.Len(t, series, AgeBandCount)
	assert.Equal(t, BandPopulation{Band: "0 a 14 anos", Population: 5}, series[0])
	assert.Equal(t, BandPopulation{Band: "100+ anos", Population: 2}, series[AgeBandCount-1])
}
