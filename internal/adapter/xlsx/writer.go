// Package xlsx writes spreadsheet exports, one sheet per dataset.
package xlsx

import (
	"errors"
	"fmt"
	"io"

	"github.com/dadoscon/municipal-etl/internal/adapter/csvfile"
	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// Sheet is one worksheet: a header row followed by data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// PopulationSheet renders population rows with numeric band cells.
func PopulationSheet(rows []domain.PopulationRow) Sheet {
	s := Sheet{Name: "populacao", Header: csvfile.PopulationHeader(), Rows: make([][]any, len(rows))}
	for i, r := range rows {
		row := []any{r.Municipality, r.UF, r.IBGECode}
		for _, v := range r.Bands {
			row = append(row, v)
		}
		s.Rows[i] = append(row, r.Total)
	}
	return s
}

// StatesSheet renders per-state totals.
func StatesSheet(states []domain.StatePopulation) Sheet {
	header := []string{"uf"}
	for _, b := range domain.AgeBands() {
		header = append(header, b.Column)
	}
	header = append(header, "pop_total")

	s := Sheet{Name: "estados", Header: header, Rows: make([][]any, len(states))}
	for i, st := range states {
		row := []any{st.UF}
		for _, v := range st.Bands {
			row = append(row, v)
		}
		s.Rows[i] = append(row, st.Total)
	}
	return s
}

// ContractsSheet renders cleaned contract records.
func ContractsSheet(recs []domain.ContractRecord) Sheet {
	s := Sheet{Name: "contratos", Header: domain.ContractHeader, Rows: make([][]any, len(recs))}
	for i, r := range recs {
		row := r.Row()
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		s.Rows[i] = cells
	}
	return s
}

// Write renders sheets into a workbook and writes it to w.
func Write(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return errors.New("xlsx: no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, s.Name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s Sheet) error {
	header := make([]any, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
		return fmt.Errorf("sheet %s header: %w", s.Name, err)
	}
	for i, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", s.Name, i+2, err)
		}
	}
	return nil
}
