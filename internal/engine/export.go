package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"popdash/internal/models"
)

// ExportSheet is the worksheet name used by WriteXLSX.
const ExportSheet = "Countries"

// rowValues returns c in Columns order as typed values.
func rowValues(c *models.Country) []interface{} {
	return []interface{}{
		c.Rank, c.CCA3, c.Name, c.Capital, c.Continent,
		c.Pop2022, c.Pop2020, c.Pop2015, c.Pop2010,
		c.Pop2000, c.Pop1990, c.Pop1980, c.Pop1970,
		c.AreaKm2, c.Density, c.GrowthRate, c.WorldSharePct,
	}
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// shortest representation that parses back to the same float
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// WriteCSV writes records with the snapshot header. ParseCSV reads the
// output back into identical records.
func WriteCSV(w io.Writer, records []models.Country) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(Columns))
	for i := range records {
		for j, v := range rowValues(&records[i]) {
			row[j] = formatValue(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes records as a single-sheet workbook with the snapshot header.
func WriteXLSX(w io.Writer, records []models.Country) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(ExportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := rowValues(&records[i])
		if err := f.SetSheetRow(ExportSheet, cell, &vals); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}

	if err := f.SetPanes(ExportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze xlsx header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
