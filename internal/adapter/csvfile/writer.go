package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dadoscon/municipal-etl/internal/domain"
)

// PopulationHeader is the column order of the population export.
func PopulationHeader() []string {
	h := []string{"municipio", "uf", "codigo_ibge"}
	for _, b := range domain.AgeBands() {
		h = append(h, b.Column)
	}
	return append(h, "pop_total")
}

// PopulationRecord renders one row in PopulationHeader order.
func PopulationRecord(r domain.PopulationRow) []string {
	rec := []string{r.Municipality, r.UF, r.IBGECode}
	for _, v := range r.Bands {
		rec = append(rec, strconv.FormatInt(v, 10))
	}
	return append(rec, strconv.FormatInt(r.Total, 10))
}

// CompetitorHeader is the column order of the competitors download.
var CompetitorHeader = []string{
	"municipio", "uf", "tipo_estabelecimento", "concorrente", "status", "codigo_ibge", "latitude", "longitude",
}

// CompetitorRecord renders one map point in CompetitorHeader order.
func CompetitorRecord(p domain.MapPoint) []string {
	return []string{
		p.Municipality, p.UF, p.EstablishmentType, p.Name, p.Status, p.IBGECode,
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lon, 'f', -1, 64),
	}
}

// Options controls how a file is written.
type Options struct {
	// BOM prefixes the output with a UTF-8 byte order mark so spreadsheet
	// tools detect the encoding.
	BOM bool
}

// WritePopulation writes rows as a semicolon-separated file.
func WritePopulation(w io.Writer, rows []domain.PopulationRow, opts Options) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = PopulationRecord(r)
	}
	return write(w, PopulationHeader(), records, opts)
}

// WriteContracts writes cleaned contract records in ContractHeader order.
func WriteContracts(w io.Writer, recs []domain.ContractRecord, opts Options) error {
	records := make([][]string, len(recs))
	for i, r := range recs {
		records[i] = r.Row()
	}
	return write(w, domain.ContractHeader, records, opts)
}

// WriteCompetitors writes joined map points as a semicolon-separated file.
func WriteCompetitors(w io.Writer, points []domain.MapPoint, opts Options) error {
	records := make([][]string, len(points))
	for i, p := range points {
		records[i] = CompetitorRecord(p)
	}
	return write(w, CompetitorHeader, records, opts)
}

func write(w io.Writer, header []string, records [][]string, opts Options) error {
	if opts.BOM {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}
	cw := csv.NewWriter(w)
	cw.Comma = Semicolon
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
