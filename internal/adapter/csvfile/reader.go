// Package csvfile reads the reference tables and writes the delimited exports
// consumed by spreadsheets and the BI database loaders.
package csvfile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dadoscon/municipal-etl/internal/domain"
)

// Delimiters of the reference files.
const (
	Comma     = ','
	Semicolon = ';'
)

// Reference file names inside the data directory.
const (
	MunicipalitiesFile = "municipios.csv"
	StatesFile         = "estados.csv"
	CompetitorsFile    = "empresas.csv"
	PopulationFile     = "populacao_ibge.csv"
)

const utf8BOM = "\ufeff"

// table is a parsed delimited file with a case-insensitive header index.
type table struct {
	cols map[string]int
	rows [][]string
}

func readTable(r io.Reader, comma rune) (*table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &table{cols: make(map[string]int, len(header))}
	for i, h := range header {
		t.cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// require returns an error naming the first missing column.
func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.cols[c]; !ok {
			return fmt.Errorf("missing column %q", c)
		}
	}
	return nil
}

// get returns the trimmed value of the first present column among names.
func (t *table) get(row []string, names ...string) string {
	for _, n := range names {
		if i, ok := t.cols[n]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
	}
	return ""
}

// ReadMunicipalities reads the comma-separated gazetteer.
func ReadMunicipalities(r io.Reader) ([]domain.Municipality, error) {
	t, err := readTable(r, Comma)
	if err != nil {
		return nil, fmt.Errorf("municipalities: %w", err)
	}
	if err := t.require("codigo_ibge", "nome", "latitude", "longitude", "codigo_uf"); err != nil {
		return nil, fmt.Errorf("municipalities: %w", err)
	}

	out := make([]domain.Municipality, 0, len(t.rows))
	for i, row := range t.rows {
		ufCode, err := strconv.Atoi(t.get(row, "codigo_uf"))
		if err != nil {
			return nil, fmt.Errorf("municipalities line %d: codigo_uf: %w", i+2, err)
		}
		lat, err := parseFloat(t.get(row, "latitude"))
		if err != nil {
			return nil, fmt.Errorf("municipalities line %d: latitude: %w", i+2, err)
		}
		lon, err := parseFloat(t.get(row, "longitude"))
		if err != nil {
			return nil, fmt.Errorf("municipalities line %d: longitude: %w", i+2, err)
		}
		uf, _ := domain.UFByCode(ufCode)
		out = append(out, domain.Municipality{
			IBGECode: t.get(row, "codigo_ibge"),
			Name:     t.get(row, "nome"),
			UFCode:   ufCode,
			UF:       uf,
			Lat:      lat,
			Lon:      lon,
			Capital:  parseBool(t.get(row, "capital")),
		})
	}
	return out, nil
}

// ReadStates reads the comma-separated states table.
func ReadStates(r io.Reader) ([]domain.State, error) {
	t, err := readTable(r, Comma)
	if err != nil {
		return nil, fmt.Errorf("states: %w", err)
	}
	if err := t.require("uf", "nome"); err != nil {
		return nil, fmt.Errorf("states: %w", err)
	}

	out := make([]domain.State, 0, len(t.rows))
	for _, row := range t.rows {
		code, _ := strconv.Atoi(t.get(row, "codigo_uf"))
		out = append(out, domain.State{
			UFCode: code,
			UF:     strings.ToUpper(t.get(row, "uf")),
			Name:   t.get(row, "nome"),
			Region: t.get(row, "regiao"),
		})
	}
	return out, nil
}

// ReadCompetitors reads the semicolon-separated companies table. The cleaned
// contract file written by WriteContracts is accepted too.
func ReadCompetitors(r io.Reader) ([]domain.Competitor, error) {
	t, err := readTable(r, Semicolon)
	if err != nil {
		return nil, fmt.Errorf("competitors: %w", err)
	}
	if err := t.require("municipio", "uf"); err != nil {
		return nil, fmt.Errorf("competitors: %w", err)
	}

	out := make([]domain.Competitor, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, domain.Competitor{
			Ticket:            t.get(row, "chamado"),
			Municipality:      t.get(row, "municipio"),
			UF:                strings.ToUpper(t.get(row, "uf")),
			EstablishmentType: t.get(row, "tipo_estabelecimento", "tipo_etabelecimento"),
			Name:              t.get(row, "concorrente"),
			Status:            t.get(row, "status"),
			StartDate:         t.get(row, "data_ini"),
			EndDate:           t.get(row, "data_fim"),
		})
	}
	return out, nil
}

// ReadPopulation reads a population file written by WritePopulation.
func ReadPopulation(r io.Reader) ([]domain.PopulationRow, error) {
	t, err := readTable(r, Semicolon)
	if err != nil {
		return nil, fmt.Errorf("population: %w", err)
	}
	if err := t.require("municipio", "uf", "pop_total"); err != nil {
		return nil, fmt.Errorf("population: %w", err)
	}

	bands := domain.AgeBands()
	out := make([]domain.PopulationRow, 0, len(t.rows))
	for _, row := range t.rows {
		p := domain.PopulationRow{
			IBGECode:     t.get(row, "codigo_ibge"),
			Municipality: t.get(row, "municipio"),
			UF:           strings.ToUpper(t.get(row, "uf")),
			Total:        domain.ParseCount(t.get(row, "pop_total")),
		}
		for i, b := range bands {
			p.Bands[i] = domain.ParseCount(t.get(row, b.Column))
		}
		out = append(out, p)
	}
	return out, nil
}

// ReferenceTables is the content of a data directory.
type ReferenceTables struct {
	Municipalities []domain.Municipality
	States         []domain.State
	Competitors    []domain.Competitor
	Population     []domain.PopulationRow
}

// LoadReferenceTables reads the four reference files from dir. The population
// file is optional.
func LoadReferenceTables(dir string) (*ReferenceTables, error) {
	var (
		rt  ReferenceTables
		err error
	)
	if rt.Municipalities, err = readFile(filepath.Join(dir, MunicipalitiesFile), ReadMunicipalities); err != nil {
		return nil, err
	}
	if rt.States, err = readFile(filepath.Join(dir, StatesFile), ReadStates); err != nil {
		return nil, err
	}
	if rt.Competitors, err = readFile(filepath.Join(dir, CompetitorsFile), ReadCompetitors); err != nil {
		return nil, err
	}
	rt.Population, err = readFile(filepath.Join(dir, PopulationFile), ReadPopulation)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &rt, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	out, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "sim", "s":
		return true
	}
	return false
}
