package domain

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// AgeBand is one output age group. Codes lists the SIDRA classification 287
// categories summed into the band.
type AgeBand struct {
	Column string
	Label  string
	Codes  []string
}

// ageBands follows the 2022 census grouping of table 9514.
var ageBands = []AgeBand{
	{Column: "pop_0_14", Label: "0 a 14 anos", Codes: []string{"93070", "93084", "93085"}},
	{Column: "pop_15_19", Label: "15 a 19 anos", Codes: []string{"93086"}},
	{Column: "pop_20_29", Label: "20 a 29 anos", Codes: []string{"93087", "93088"}},
	{Column: "pop_30_39", Label: "30 a 39 anos", Codes: []string{"93089", "93090"}},
	{Column: "pop_40_49", Label: "40 a 49 anos", Codes: []string{"93091", "93092"}},
	{Column: "pop_50_59", Label: "50 a 59 anos", Codes: []string{"93093", "93094"}},
	{Column: "pop_60_74", Label: "60 a 74 anos", Codes: []string{"93095", "93096", "93097"}},
	{Column: "pop_75_99", Label: "75 a 99 anos", Codes: []string{"93098", "49108", "49109", "60040", "60041"}},
	{Column: "pop_100_mais", Label: "100+ anos", Codes: []string{"6653"}},
}

// AgeBandCount is the number of age bands in a PopulationRow.
const AgeBandCount = 9

// AgeBands returns the age bands in column order.
func AgeBands() []AgeBand {
	out := make([]AgeBand, len(ageBands))
	copy(out, ageBands)
	return out
}

// BandIndex returns the position of the band with the given column name.
func BandIndex(column string) (int, bool) {
	for i, b := range ageBands {
		if b.Column == column {
			return i, true
		}
	}
	return 0, false
}

// BandQuery selects one age band from the statistics API.
type BandQuery struct {
	Table             string
	TerritorialLevel  string
	Variable          string
	Territories       string
	Period            string
	Classifications   map[string]string
	AgeClassification string
	Band              AgeBand
}

// BandCount is one municipality value returned for an age band.
type BandCount struct {
	Code  string
	Label string
	Value int64
}

// BandResult holds every municipality value for one age band.
type BandResult struct {
	Band   AgeBand
	Counts []BandCount
}

// PopulationSource fetches population counts for one age band.
type PopulationSource interface {
	FetchAgeBand(ctx context.Context, q BandQuery) ([]BandCount, error)
}

// PopulationRow is the wide, per-municipality population record.
type PopulationRow struct {
	IBGECode     string              `json:"codigo_ibge,omitempty"`
	Municipality string              `json:"municipio"`
	UF           string              `json:"uf"`
	Bands        [AgeBandCount]int64 `json:"-"`
	Total        int64               `json:"pop_total"`
}

// BandValue returns the population of the named band column.
func (r PopulationRow) BandValue(column string) int64 {
	i, ok := BandIndex(column)
	if !ok {
		return 0
	}
	return r.Bands[i]
}

// StatePopulation aggregates PopulationRows by UF.
type StatePopulation struct {
	UF    string              `json:"uf"`
	Bands [AgeBandCount]int64 `json:"-"`
	Total int64               `json:"pop_total"`
}

// BandPopulation is one point of a long-format age series.
type BandPopulation struct {
	Band       string `json:"faixa_etaria"`
	Population int64  `json:"populacao"`
}

// ParseCount parses a SIDRA value. Suppressed or missing markers ("-", "...",
// "X") and any other non-number are counted as zero.
func ParseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// MergeAgeBands outer-joins per-band results on the municipality label.
// Values for the same label inside a band are summed, bands missing for a
// label count as zero. Labels are split on the first " - " into municipality
// and UF; labels without a UF are dropped. Rows are sorted by UF then name.
func MergeAgeBands(results []BandResult) []PopulationRow {
	type acc struct {
		code  string
		bands [AgeBandCount]int64
	}
	byLabel := make(map[string]*acc)
	var order []string

	for _, res := range results {
		idx, ok := BandIndex(res.Band.Column)
		if !ok {
			continue
		}
		for _, c := range res.Counts {
			a, seen := byLabel[c.Label]
			if !seen {
				a = &acc{}
				byLabel[c.Label] = a
				order = append(order, c.Label)
			}
			if a.code == "" {
				a.code = c.Code
			}
			a.bands[idx] += c.Value
		}
	}

	rows := make([]PopulationRow, 0, len(order))
	for _, label := range order {
		name, uf, ok := SplitMunicipalityLabel(label)
		if !ok {
			continue
		}
		a := byLabel[label]
		row := PopulationRow{IBGECode: a.code, Municipality: name, UF: uf, Bands: a.bands}
		row.Total = sumBands(row.Bands)
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].UF != rows[j].UF {
			return rows[i].UF < rows[j].UF
		}
		return rows[i].Municipality < rows[j].Municipality
	})
	return rows
}

// SplitMunicipalityLabel splits "Ouro Branco - MG" into ("Ouro Branco", "MG").
func SplitMunicipalityLabel(label string) (name, uf string, ok bool) {
	name, uf, found := strings.Cut(label, " - ")
	name = strings.TrimSpace(name)
	uf = strings.TrimSpace(uf)
	if !found || uf == "" {
		return name, "", false
	}
	return name, uf, true
}

// SumByState aggregates rows per UF, sorted by UF.
func SumByState(rows []PopulationRow) []StatePopulation {
	byUF := make(map[string]*StatePopulation)
	for _, r := range rows {
		s, ok := byUF[r.UF]
		if !ok {
			s = &StatePopulation{UF: r.UF}
			byUF[r.UF] = s
		}
		for i, v := range r.Bands {
			s.Bands[i] += v
		}
		s.Total += r.Total
	}
	out := make([]StatePopulation, 0, len(byUF))
	for _, s := range byUF {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UF < out[j].UF })
	return out
}

// Melt turns band values into a long series labelled with the band display
// names, in band order.
func Melt(bands [AgeBandCount]int64) []BandPopulation {
	out := make([]BandPopulation, len(ageBands))
	for i, b := range ageBands {
		out[i] = BandPopulation{Band: b.Label, Population: bands[i]}
	}
	return out
}

func sumBands(b [AgeBandCount]int64) int64 {
	var total int64
	for _, v := range b {
		total += v
	}
	return total
}
