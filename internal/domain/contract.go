package domain

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// contractFieldCount is the column count of a well-formed export row:
// CHAMADO;ID_JIRA;UF;MUNICIPIO;TIPO;CONCORRENTE;STATUS;DATA_INI;DATA_FIM.
const contractFieldCount = 9

// ContractHeader is the column order of the cleaned contract file.
// TIPO_ETABELECIMENTO keeps the spelling downstream spreadsheets expect.
var ContractHeader = []string{
	"CHAMADO", "UF", "MUNICIPIO", "TIPO_ETABELECIMENTO",
	"CONCORRENTE", "STATUS", "DATA_INI", "DATA_FIM",
}

var (
	// ticketKeyRe matches the start of a new record, e.g. "CON-1234;".
	ticketKeyRe = regexp.MustCompile(`^[A-Z]{3}-\d+;`)

	// endsWithYearRe matches a line ending in a four-digit year, i.e. the
	// DATA_FIM column of a complete record.
	endsWithYearRe = regexp.MustCompile(`\d{4}$`)

	// anyStateSuffixRe matches a trailing "- XX" or "/ XX" state suffix.
	anyStateSuffixRe = regexp.MustCompile(`\s*[-/]\s*[A-Z]{2}\s*$`)

	// municipalityPrefixRe matches the "MUNICÍPIO DE" prefix some exports carry.
	municipalityPrefixRe = regexp.MustCompile(`(?i)^(?::\s*)?MUNIC[IÍ]PIO DE\s*`)
)

// ContractRecord is one competitor contract from the ticket export.
type ContractRecord struct {
	Ticket            string    `json:"ticket"`
	UF                string    `json:"uf"`
	Municipality      string    `json:"municipality"`
	RawMunicipality   string    `json:"raw_municipality,omitempty"`
	EstablishmentType string    `json:"establishment_type"`
	Competitor        string    `json:"competitor"`
	Status            string    `json:"status"`
	StartDate         string    `json:"start_date"`
	EndDate           string    `json:"end_date"`
	ProcessedAt       time.Time `json:"processed_at"`
}

// Row returns the record in ContractHeader column order.
func (r ContractRecord) Row() []string {
	return []string{
		r.Ticket, r.UF, r.Municipality, r.EstablishmentType,
		r.Competitor, r.Status, r.StartDate, r.EndDate,
	}
}

// ParseStats summarizes a parse of the contract export.
type ParseStats struct {
	Lines   int `json:"lines"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"`
}

// ParseContractExport reads the semicolon-delimited ticket export, repairs
// records broken across lines and returns one ContractRecord per well-formed
// row. Rows without exactly nine fields are skipped and counted.
func ParseContractExport(r io.Reader) ([]ContractRecord, ParseStats, error) {
	var stats ParseStats

	lines, err := readLines(r)
	if err != nil {
		return nil, stats, fmt.Errorf("read contract export: %w", err)
	}
	joined := joinBrokenLines(lines)
	stats.Lines = len(joined)
	if len(joined) <= 1 {
		return nil, stats, nil
	}

	records := make([]ContractRecord, 0, len(joined)-1)
	for _, line := range joined[1:] {
		fields, err := splitContractLine(line)
		if err != nil || len(fields) != contractFieldCount {
			stats.Skipped++
			continue
		}
		records = append(records, contractFromFields(fields))
	}
	stats.Kept = len(records)
	return records, stats, nil
}

// CleanContract replaces the record's municipality with its normalized form,
// keeping the pre-normalization value in RawMunicipality, and stamps
// ProcessedAt.
func CleanContract(rec ContractRecord) ContractRecord {
	if rec.RawMunicipality == "" {
		rec.RawMunicipality = rec.Municipality
	}
	rec.Municipality = NormalizeMunicipality(rec.Municipality, rec.UF)
	rec.ProcessedAt = clock.Now().UTC()
	return rec
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		lines = append(lines, strings.ReplaceAll(line, `\`, ""))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// joinBrokenLines glues continuation lines onto their record. A line break is
// real only when the text before it ends in a year or the next line opens a
// new ticket; any other break becomes a space.
func joinBrokenLines(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := []string{lines[0]}
	for _, next := range lines[1:] {
		cur := out[len(out)-1]
		if endsWithYearRe.MatchString(cur) || ticketKeyRe.MatchString(next) {
			out = append(out, next)
			continue
		}
		out[len(out)-1] = cur + " " + next
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

func splitContractLine(line string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	fields, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return fields, err
}

func contractFromFields(f []string) ContractRecord {
	raw := strings.TrimSpace(f[3])
	return ContractRecord{
		Ticket:            strings.TrimSpace(f[0]),
		UF:                strings.TrimSpace(f[2]),
		Municipality:      precleanMunicipality(raw),
		RawMunicipality:   raw,
		EstablishmentType: strings.TrimSpace(f[4]),
		Competitor:        strings.TrimSpace(f[5]),
		Status:            strings.TrimSpace(f[6]),
		StartDate:         formatContractDate(f[7]),
		EndDate:           formatContractDate(f[8]),
	}
}

// precleanMunicipality drops any trailing two-letter state suffix and a leading
// "MUNICÍPIO DE" before the full normalizer runs.
func precleanMunicipality(s string) string {
	s = anyStateSuffixRe.ReplaceAllString(s, "")
	s = municipalityPrefixRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// formatContractDate converts dd/mm/yyyy to yyyy-mm-dd, returning the trimmed
// input unchanged when it does not parse.
func formatContractDate(s string) string {
	s = strings.TrimSpace(s)
	t, err := time.Parse("2/1/2006", s)
	if err != nil {
		return s
	}
	return t.Format(time.DateOnly)
}
