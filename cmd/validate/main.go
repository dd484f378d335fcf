// Command validate checks the reference tables and the cleaned contract file
// before they are handed to the dashboard: gazetteer integrity, canonical
// municipality names, join coverage and population consistency.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir ./dados \
//	  -contracts ./dados_exportados/contratos_limpos.csv \
//	  -max-miss-ratio 0.02
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dadoscon/municipal-etl/internal/adapter/csvfile"
	"github.com/dadoscon/municipal-etl/internal/domain"
)

// maxListedErrors bounds the detail printed per phase.
const maxListedErrors = 25

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", ".", "directory containing municipios.csv, estados.csv and empresas.csv")
	contracts := flag.String("contracts", "", "cleaned contract CSV (defaults to <data-dir>/empresas.csv)")
	maxMissRatio := flag.Float64("max-miss-ratio", 0, "fraction of contract rows allowed to miss the gazetteer")
	flag.Parse()

	if *maxMissRatio < 0 || *maxMissRatio > 1 {
		fmt.Fprintln(os.Stderr, "-max-miss-ratio must be between 0 and 1")
		os.Exit(2)
	}

	if code := run(*dataDir, *contracts, *maxMissRatio); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, contractsPath string, maxMissRatio float64) int {
	fmt.Println("=== Municipal Data Validation ===")
	fmt.Println()

	tables, err := csvfile.LoadReferenceTables(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load reference tables: %v\n", err)
		return 1
	}

	competitors := tables.Competitors
	if contractsPath != "" {
		competitors, err = loadCompetitors(contractsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load contracts: %v\n", err)
			return 1
		}
	}

	g := domain.NewGazetteer(tables.Municipalities, tables.States)

	phases := []*phase{
		validateReferenceTables(tables.Municipalities, tables.States),
		validateCanonicalNames(competitors),
		validateJoinCoverage(competitors, g, maxMissRatio),
		validatePopulation(tables.Population, g),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d municipalities, %d states, %d contracts, %d population rows\n",
		len(tables.Municipalities), len(tables.States), len(competitors), len(tables.Population))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxListedErrors {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxListedErrors)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadCompetitors(path string) ([]domain.Competitor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	comps, err := csvfile.ReadCompetitors(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return comps, nil
}

// ── Phases ──

func validateReferenceTables(municipalities []domain.Municipality, states []domain.State) *phase {
	p := &phase{name: "Phase 1: Reference tables"}
	fmt.Println("Phase 1: Reference tables")

	if len(municipalities) == 0 {
		p.errorf("municipios.csv has no rows")
	}

	seenCodes := make(map[string]int, len(municipalities))
	for i, m := range municipalities {
		line := i + 2
		if m.IBGECode == "" {
			p.errorf("municipios.csv line %d: %s has no codigo_ibge", line, m.Name)
		} else if prev, dup := seenCodes[m.IBGECode]; dup {
			p.errorf("municipios.csv line %d: codigo_ibge %s repeats line %d", line, m.IBGECode, prev)
		} else {
			seenCodes[m.IBGECode] = line
		}
		if m.UF == "" {
			p.errorf("municipios.csv line %d: %s has unknown codigo_uf %d", line, m.Name, m.UFCode)
		}
		if _, ok := domain.CorrectLatitude(m.Lat); !ok {
			p.errorf("municipios.csv line %d: %s latitude %v outside Brazil", line, m.Name, m.Lat)
		}
		if _, ok := domain.CorrectLongitude(m.Lon); !ok {
			p.errorf("municipios.csv line %d: %s longitude %v outside Brazil", line, m.Name, m.Lon)
		}
	}

	have := make(map[string]bool, len(states))
	for _, s := range states {
		have[s.UF] = true
	}
	var missing []string
	for code := range 60 {
		if uf, ok := domain.UFByCode(code); ok && !have[uf] {
			missing = append(missing, uf)
		}
	}
	sort.Strings(missing)
	for _, uf := range missing {
		p.errorf("estados.csv: missing UF %s", uf)
	}

	fmt.Printf("  %d municipalities, %d states\n", len(municipalities), len(states))
	return p
}

func validateCanonicalNames(comps []domain.Competitor) *phase {
	p := &phase{name: "Phase 2: Canonical municipality names"}
	fmt.Println("Phase 2: Canonical municipality names")

	for i, c := range comps {
		if c.Municipality == "" {
			p.errorf("row %d: empty municipio", i+2)
			continue
		}
		if norm := domain.NormalizeMunicipality(c.Municipality, c.UF); norm != c.Municipality {
			p.errorf("row %d: %q normalizes to %q", i+2, c.Municipality, norm)
		}
	}

	fmt.Printf("  %d contract rows checked\n", len(comps))
	return p
}

func validateJoinCoverage(comps []domain.Competitor, g *domain.Gazetteer, maxMissRatio float64) *phase {
	p := &phase{name: "Phase 3: Gazetteer join coverage"}
	fmt.Println("Phase 3: Gazetteer join coverage")

	points, unmatched := domain.JoinCompetitors(comps, g)
	ratio := 0.0
	if len(comps) > 0 {
		ratio = float64(len(unmatched)) / float64(len(comps))
	}
	fmt.Printf("  %d joined, %d unmatched (%.2f%%)\n", len(points), len(unmatched), ratio*100)

	if ratio <= maxMissRatio {
		return p
	}
	p.errorf("miss ratio %.4f exceeds %.4f", ratio, maxMissRatio)

	counts := make(map[string]int)
	for _, c := range unmatched {
		counts[c.Municipality+" - "+c.UF]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		p.errorf("%s: %d rows", k, counts[k])
	}
	return p
}

func validatePopulation(rows []domain.PopulationRow, g *domain.Gazetteer) *phase {
	p := &phase{name: "Phase 4: Population consistency"}
	fmt.Println("Phase 4: Population consistency")

	if len(rows) == 0 {
		fmt.Println("  populacao_ibge.csv not present, skipped")
		return p
	}

	for i, r := range rows {
		var sum int64
		for _, v := range r.Bands {
			sum += v
		}
		if sum != r.Total {
			p.errorf("row %d: %s - %s pop_total %d != band sum %d", i+2, r.Municipality, r.UF, r.Total, sum)
		}
		if _, ok := g.Lookup(r.Municipality, r.UF); !ok {
			p.errorf("row %d: %s - %s not in gazetteer", i+2, r.Municipality, r.UF)
		}
	}

	fmt.Printf("  %d population rows checked\n", len(rows))
	return p
}
