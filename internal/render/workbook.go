package render

import (
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xuri/excelize/v2"
	"incident-crossfilter-go/internal/types"
)

const defaultSheet = "Sheet1"

// WriteWorkbook writes one sheet per view: a Date column, one column per
// category and a Total column.
func WriteWorkbook(w io.Writer, views []types.View) error {
	f := excelize.NewFile()
	defer f.Close()

	if len(views) == 0 {
		if err := f.SetSheetRow(defaultSheet, "A1", &[]interface{}{"no charts"}); err != nil {
			return goerr.Wrap(err, "write empty sheet")
		}
	}

	first := -1
	for _, v := range views {
		name := sheetName(v.Chart)
		idx, err := f.NewSheet(name)
		if err != nil {
			return goerr.Wrap(err, "create sheet", goerr.V("chart", v.Chart))
		}
		if first < 0 {
			first = idx
		}
		if err := writeSeries(f, name, v); err != nil {
			return err
		}
	}
	if first >= 0 {
		f.SetActiveSheet(first)
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return goerr.Wrap(err, "drop default sheet")
		}
	}

	if err := f.Write(w); err != nil {
		return goerr.Wrap(err, "write workbook")
	}
	return nil
}

func writeSeries(f *excelize.File, sheet string, v types.View) error {
	header := []interface{}{"Date"}
	for _, c := range v.Series.Categories {
		header = append(header, c)
	}
	header = append(header, "Total")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return goerr.Wrap(err, "write header", goerr.V("sheet", sheet))
	}

	layout := "2006-01"
	if v.Series.Granularity == types.Day {
		layout = "2006-01-02"
	}
	for i, b := range v.Series.Buckets {
		row := []interface{}{b.Date.Format(layout)}
		for _, c := range v.Series.Categories {
			row = append(row, b.Count(c))
		}
		row = append(row, b.Total)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return goerr.Wrap(err, "cell name", goerr.V("row", i+2))
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return goerr.Wrap(err, "write row", goerr.V("sheet", sheet), goerr.V("row", i+2))
		}
	}
	return nil
}

// sheetName strips characters excel rejects and keeps the 31 rune limit.
func sheetName(chart string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, chart)
	if name == "" || name == defaultSheet {
		name = "chart"
	}
	if rs := []rune(name); len(rs) > 31 {
		name = string(rs[:31])
	}
	return name
}
