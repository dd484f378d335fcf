// Package dashboard prepares the read-only datasets served by the data API:
// competitor map points, filter options and population by age band.
package dashboard

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/dadoscon/municipal-etl/internal/domain"
)

var (
	// ErrNotFound is returned when a state or municipality has no data.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguous is returned when a municipality name exists in more than
	// one state and no UF was given.
	ErrAmbiguous = errors.New("ambiguous municipality, uf required")
)

// jitterAmount is the maximum offset, in degrees, applied to points sharing
// the same coordinates so they stay individually visible on a map.
const jitterAmount = 0.008

// StateDetail is the age profile of one state.
type StateDetail struct {
	UF    string                  `json:"uf"`
	Name  string                  `json:"nome"`
	Total int64                   `json:"pop_total"`
	Bands []domain.BandPopulation `json:"faixas"`
}

// MunicipalityDetail is the age profile of one municipality.
type MunicipalityDetail struct {
	IBGECode     string                  `json:"codigo_ibge,omitempty"`
	Municipality string                  `json:"municipio"`
	UF           string                  `json:"uf"`
	Total        int64                   `json:"pop_total"`
	Bands        []domain.BandPopulation `json:"faixas"`
}

// Stats summarizes how much of the reference data joined.
type Stats struct {
	Municipalities int `json:"municipios"`
	Competitors    int `json:"empresas"`
	Points         int `json:"pontos"`
	Unmatched      int `json:"sem_correspondencia"`
	PopulationRows int `json:"linhas_populacao"`
}

// Dataset holds the joined reference tables. It is safe for concurrent use.
type Dataset struct {
	gazetteer  *domain.Gazetteer
	points     []domain.MapPoint
	unmatched  []domain.Competitor
	options    domain.FilterOptions
	states     map[string]StateDetail
	population map[string][]domain.PopulationRow // keyed by FoldKey(name)
	stats      Stats

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDataset joins competitors and population rows to the gazetteer.
func NewDataset(
	municipalities []domain.Municipality,
	states []domain.State,
	competitors []domain.Competitor,
	population []domain.PopulationRow,
	logger *slog.Logger,
) *Dataset {
	g := domain.NewGazetteer(municipalities, states)
	points, unmatched := domain.JoinCompetitors(competitors, g)

	d := &Dataset{
		gazetteer:  g,
		points:     points,
		unmatched:  unmatched,
		options:    domain.BuildFilterOptions(points, g),
		states:     make(map[string]StateDetail),
		population: make(map[string][]domain.PopulationRow),
		rnd:        rand.New(rand.NewPCG(1, 2)),
	}

	for _, sp := range domain.SumByState(population) {
		name := sp.UF
		if s, ok := g.State(sp.UF); ok {
			name = s.Name
		}
		d.states[sp.UF] = StateDetail{UF: sp.UF, Name: name, Total: sp.Total, Bands: domain.Melt(sp.Bands)}
	}
	for _, row := range population {
		if row.IBGECode == "" {
			if m, ok := g.Lookup(row.Municipality, row.UF); ok {
				row.IBGECode = m.IBGECode
			}
		}
		key := domain.FoldKey(row.Municipality)
		d.population[key] = append(d.population[key], row)
	}
	for _, rows := range d.population {
		sort.Slice(rows, func(i, j int) bool { return rows[i].UF < rows[j].UF })
	}

	d.stats = Stats{
		Municipalities: g.Len(),
		Competitors:    len(competitors),
		Points:         len(points),
		Unmatched:      len(unmatched),
		PopulationRows: len(population),
	}
	logger.Info("dashboard dataset built",
		"municipalities", d.stats.Municipalities,
		"competitors", d.stats.Competitors,
		"points", d.stats.Points,
		"unmatched", d.stats.Unmatched,
		"population_rows", d.stats.PopulationRows,
	)
	return d
}

// Stats returns the join summary.
func (d *Dataset) Stats() Stats { return d.stats }

// FilterOptions returns the values available to each filter.
func (d *Dataset) FilterOptions() domain.FilterOptions { return d.options }

// Unmatched returns the competitors that found no gazetteer entry.
func (d *Dataset) Unmatched() []domain.Competitor { return d.unmatched }

// Points returns the map points passing f. With jitter, points that share
// coordinates are spread by a small random offset.
func (d *Dataset) Points(f domain.Filter, jitter bool) []domain.MapPoint {
	out := f.Apply(d.points)
	if jitter {
		d.mu.Lock()
		jitterDuplicates(out, jitterAmount, d.rnd)
		d.mu.Unlock()
	}
	return out
}

// StateCounts returns the number of points per UF passing f.
func (d *Dataset) StateCounts(f domain.Filter) []domain.StateCount {
	return domain.CountByState(f.Apply(d.points))
}

// StatePopulation returns the age profile of uf.
func (d *Dataset) StatePopulation(uf string) (StateDetail, error) {
	s, ok := d.states[strings.ToUpper(strings.TrimSpace(uf))]
	if !ok {
		return StateDetail{}, ErrNotFound
	}
	return s, nil
}

// MunicipalityPopulation returns the age profile of the named municipality,
// ignoring case and accents. uf may be empty when the name is unique.
func (d *Dataset) MunicipalityPopulation(name, uf string) (MunicipalityDetail, error) {
	rows := d.population[domain.FoldKey(name)]
	uf = strings.ToUpper(strings.TrimSpace(uf))

	var match []domain.PopulationRow
	for _, r := range rows {
		if uf == "" || r.UF == uf {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return MunicipalityDetail{}, ErrNotFound
	case 1:
	default:
		return MunicipalityDetail{}, ErrAmbiguous
	}

	r := match[0]
	return MunicipalityDetail{
		IBGECode:     r.IBGECode,
		Municipality: r.Municipality,
		UF:           r.UF,
		Total:        r.Total,
		Bands:        domain.Melt(r.Bands),
	}, nil
}

// jitterDuplicates offsets every point whose coordinates are shared with
// another point by a uniform value in [-amount, amount).
func jitterDuplicates(points []domain.MapPoint, amount float64, rnd *rand.Rand) {
	type coord struct{ lat, lon float64 }
	seen := make(map[coord]int, len(points))
	for _, p := range points {
		seen[coord{p.Lat, p.Lon}]++
	}
	for i := range points {
		if seen[coord{points[i].Lat, points[i].Lon}] < 2 {
			continue
		}
		points[i].Lat += (rnd.Float64()*2 - 1) * amount
		points[i].Lon += (rnd.Float64()*2 - 1) * amount
	}
}
