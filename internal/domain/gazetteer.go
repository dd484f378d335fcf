package domain

import "sort"

// Brazil's bounding box, used to repair coordinates with a shifted decimal point.
const (
	minLatitude  = -34.0
	maxLatitude  = 6.0
	minLongitude = -74.0
	maxLongitude = -34.0

	maxCoordinateShifts = 5
)

var ufByCode = map[int]string{
	11: "RO", 12: "AC", 13: "AM", 14: "RR", 15: "PA", 16: "AP", 17: "TO", 21: "MA",
	22: "PI", 23: "CE", 24: "RN", 25: "PB", 26: "PE", 27: "AL", 28: "SE", 29: "BA",
	31: "MG", 32: "ES", 33: "RJ", 35: "SP", 41: "PR", 42: "SC", 43: "RS", 50: "MS",
	51: "MT", 52: "GO", 53: "DF",
}

// UFByCode maps an IBGE state code (31) to its abbreviation (MG).
func UFByCode(code int) (string, bool) {
	uf, ok := ufByCode[code]
	return uf, ok
}

// Municipality is one gazetteer entry.
type Municipality struct {
	IBGECode string  `json:"codigo_ibge"`
	Name     string  `json:"nome"`
	UFCode   int     `json:"codigo_uf"`
	UF       string  `json:"uf"`
	Lat      float64 `json:"latitude"`
	Lon      float64 `json:"longitude"`
	Capital  bool    `json:"capital"`
}

// State is one row of the states reference table.
type State struct {
	UFCode int    `json:"codigo_uf"`
	UF     string `json:"uf"`
	Name   string `json:"nome"`
	Region string `json:"regiao,omitempty"`
}

// CorrectLatitude returns lat if it lies inside Brazil, otherwise lat divided
// by ten until it does (at most five times). ok is false when no shift fits.
func CorrectLatitude(lat float64) (float64, bool) {
	return shiftIntoRange(lat, minLatitude, maxLatitude)
}

// CorrectLongitude is CorrectLatitude for longitudes.
func CorrectLongitude(lon float64) (float64, bool) {
	return shiftIntoRange(lon, minLongitude, maxLongitude)
}

func shiftIntoRange(v, lo, hi float64) (float64, bool) {
	for i := 0; i <= maxCoordinateShifts; i++ {
		if v >= lo && v <= hi {
			return v, true
		}
		v /= 10
	}
	return 0, false
}

// Gazetteer indexes municipalities by (FoldKey(name), UF).
type Gazetteer struct {
	byKey  map[joinKey]Municipality
	states map[string]State
}

// NewGazetteer builds the index. Entries whose UF is empty get it from UFCode;
// coordinates are repaired and entries without valid coordinates are kept
// with zero coordinates so name lookups still succeed.
func NewGazetteer(municipalities []Municipality, states []State) *Gazetteer {
	g := &Gazetteer{
		byKey:  make(map[joinKey]Municipality, len(municipalities)),
		states: make(map[string]State, len(states)),
	}
	for _, m := range municipalities {
		if m.UF == "" {
			m.UF, _ = UFByCode(m.UFCode)
		}
		lat, latOK := CorrectLatitude(m.Lat)
		lon, lonOK := CorrectLongitude(m.Lon)
		if latOK && lonOK {
			m.Lat, m.Lon = lat, lon
		} else {
			m.Lat, m.Lon = 0, 0
		}
		g.byKey[newJoinKey(m.Name, m.UF)] = m
	}
	for _, s := range states {
		if s.UF == "" {
			s.UF, _ = UFByCode(s.UFCode)
		}
		g.states[s.UF] = s
	}
	return g
}

// Lookup finds a municipality by name and UF, ignoring case and accents.
func (g *Gazetteer) Lookup(name, uf string) (Municipality, bool) {
	m, ok := g.byKey[newJoinKey(name, uf)]
	return m, ok
}

// State returns the state with the given UF.
func (g *Gazetteer) State(uf string) (State, bool) {
	s, ok := g.states[uf]
	return s, ok
}

// States returns all states sorted by name.
func (g *Gazetteer) States() []State {
	out := make([]State, 0, len(g.states))
	for _, s := range g.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of indexed municipalities.
func (g *Gazetteer) Len() int { return len(g.byKey) }

// HasCoordinates reports whether m carries a usable position.
func (m Municipality) HasCoordinates() bool {
	return m.Lat != 0 || m.Lon != 0
}
