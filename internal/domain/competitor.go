package domain

import (
	"sort"
	"strings"
)

// Competitor is one row of the companies table: a competitor holding a
// contract with an establishment in a municipality.
type Competitor struct {
	Ticket            string `json:"chamado,omitempty"`
	Municipality      string `json:"municipio"`
	UF                string `json:"uf"`
	EstablishmentType string `json:"tipo_estabelecimento"`
	Name              string `json:"concorrente"`
	Status            string `json:"status"`
	StartDate         string `json:"data_ini,omitempty"`
	EndDate           string `json:"data_fim,omitempty"`
}

// CompetitorFromContract converts a cleaned contract record.
func CompetitorFromContract(rec ContractRecord) Competitor {
	return Competitor{
		Ticket:            rec.Ticket,
		Municipality:      rec.Municipality,
		UF:                rec.UF,
		EstablishmentType: rec.EstablishmentType,
		Name:              rec.Competitor,
		Status:            rec.Status,
		StartDate:         rec.StartDate,
		EndDate:           rec.EndDate,
	}
}

// MapPoint is a competitor joined to its gazetteer municipality.
type MapPoint struct {
	Competitor
	IBGECode string  `json:"codigo_ibge"`
	Lat      float64 `json:"latitude"`
	Lon      float64 `json:"longitude"`
}

// JoinCompetitors left-joins competitors to the gazetteer. Rows that find no
// municipality, or whose municipality has no coordinates, are returned in
// unmatched.
func JoinCompetitors(comps []Competitor, g *Gazetteer) (points []MapPoint, unmatched []Competitor) {
	points = make([]MapPoint, 0, len(comps))
	for _, c := range comps {
		m, ok := g.Lookup(c.Municipality, c.UF)
		if !ok || !m.HasCoordinates() || m.IBGECode == "" {
			unmatched = append(unmatched, c)
			continue
		}
		points = append(points, MapPoint{Competitor: c, IBGECode: m.IBGECode, Lat: m.Lat, Lon: m.Lon})
	}
	return points, unmatched
}

// Filter is a set of multi-select filters. An empty field matches everything.
type Filter struct {
	UFs         []string
	Types       []string
	Competitors []string
	Statuses    []string
}

// Match reports whether p passes every non-empty filter.
func (f Filter) Match(p MapPoint) bool {
	return inSet(f.UFs, p.UF) &&
		inSet(f.Types, p.EstablishmentType) &&
		inSet(f.Competitors, p.Name) &&
		inSet(f.Statuses, p.Status)
}

// Apply returns the points that pass the filter.
func (f Filter) Apply(points []MapPoint) []MapPoint {
	out := make([]MapPoint, 0, len(points))
	for _, p := range points {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

func inSet(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// StateCount is the number of map points in a UF.
type StateCount struct {
	UF    string `json:"uf"`
	Count int    `json:"contagem"`
}

// CountByState counts points per UF, sorted by UF.
func CountByState(points []MapPoint) []StateCount {
	counts := make(map[string]int)
	for _, p := range points {
		counts[p.UF]++
	}
	out := make([]StateCount, 0, len(counts))
	for uf, n := range counts {
		out = append(out, StateCount{UF: uf, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UF < out[j].UF })
	return out
}

// FilterOptions lists the distinct values available to each filter.
type FilterOptions struct {
	States      []State  `json:"estados"`
	Types       []string `json:"tipos"`
	Competitors []string `json:"concorrentes"`
	Statuses    []string `json:"status"`
}

// BuildFilterOptions collects sorted distinct non-empty values from points.
// States come from the gazetteer, sorted by name.
func BuildFilterOptions(points []MapPoint, g *Gazetteer) FilterOptions {
	types := make(map[string]struct{})
	comps := make(map[string]struct{})
	statuses := make(map[string]struct{})
	for _, p := range points {
		addNonEmpty(types, p.EstablishmentType)
		addNonEmpty(comps, p.Name)
		addNonEmpty(statuses, p.Status)
	}
	return FilterOptions{
		States:      g.States(),
		Types:       sortedKeys(types),
		Competitors: sortedKeys(comps),
		Statuses:    sortedKeys(statuses),
	}
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v = strings.TrimSpace(v); v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
