package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xuri/excelize/v2"
	"incident-crossfilter-go/internal/types"
)

// recordNamespace seeds ids for rows that carry none.
var recordNamespace = uuid.MustParse("6f1b7c1e-3d0a-5b7e-9a55-0c2f1d1e8a41")

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006-01",
}

// Load reads an .xlsx or .csv file. Rows whose date does not parse are kept
// with a zero Date.
func Load(path string) ([]types.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "open workbook", goerr.V("path", path))
		}
		defer f.Close()
		return fromWorkbook(f)
	case ".csv", "":
		fh, err := os.Open(path)
		if err != nil {
			return nil, goerr.Wrap(err, "open csv", goerr.V("path", path))
		}
		defer fh.Close()
		return LoadCSV(fh)
	}
	return nil, goerr.New("unsupported dataset format", goerr.V("path", path))
}

// LoadWorkbook reads the first sheet of an xlsx stream.
func LoadWorkbook(r io.Reader) ([]types.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, goerr.Wrap(err, "open workbook")
	}
	defer f.Close()
	return fromWorkbook(f)
}

func fromWorkbook(f *excelize.File) ([]types.Record, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, goerr.New("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, goerr.Wrap(err, "read rows", goerr.V("sheet", sheets[0]))
	}
	return fromRows(rows)
}

func LoadCSV(r io.Reader) ([]types.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, goerr.Wrap(err, "read csv")
	}
	return fromRows(rows)
}

type columns struct {
	date, category, id int
	attrs              map[int]string
}

// detectColumns maps header names to roles. The first match wins.
func detectColumns(header []string) (columns, error) {
	cols := columns{date: -1, category: -1, id: -1, attrs: map[int]string{}}
	for i, h := range header {
		n := strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.date == -1 && (n == "date" || strings.HasSuffix(n, "_date") || strings.HasSuffix(n, " date") || n == "time" || n == "timestamp"):
			cols.date = i
		case cols.category == -1 && (strings.Contains(n, "severity") || n == "category" || n == "level"):
			cols.category = i
		case cols.id == -1 && (n == "id" || strings.HasSuffix(n, "_id") || strings.HasSuffix(n, " id")):
			cols.id = i
		case strings.Contains(n, "sector"):
			if _, dup := attrIndex(cols.attrs, "sector"); !dup {
				cols.attrs[i] = "sector"
			}
		case n != "":
			cols.attrs[i] = strings.ReplaceAll(n, " ", "_")
		}
	}
	if cols.date == -1 {
		return cols, goerr.New("no date column", goerr.V("header", header))
	}
	return cols, nil
}

func attrIndex(attrs map[int]string, name string) (int, bool) {
	for i, n := range attrs {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

func fromRows(rows [][]string) ([]types.Record, error) {
	if len(rows) == 0 {
		return nil, goerr.New("no header row")
	}
	cols, err := detectColumns(rows[0])
	if err != nil {
		return nil, err
	}

	out := make([]types.Record, 0, len(rows)-1)
	for i, r := range rows[1:] {
		if blank(r) {
			continue
		}
		rec := types.Record{
			Date:     ParseDate(cell(r, cols.date)),
			Category: strings.TrimSpace(cell(r, cols.category)),
			ID:       strings.TrimSpace(cell(r, cols.id)),
		}
		if rec.Category == "" {
			rec.Category = types.UnknownCategory
		}
		if rec.ID == "" {
			key := strconv.Itoa(i) + "\x1f" + strings.Join(r, "\x1f")
			rec.ID = uuid.NewSHA1(recordNamespace, []byte(key)).String()
		}
		for idx, name := range cols.attrs {
			if v := strings.TrimSpace(cell(r, idx)); v != "" {
				if rec.Attrs == nil {
					rec.Attrs = map[string]string{}
				}
				rec.Attrs[name] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParseDate tries the known layouts and excel serial numbers and keeps the
// calendar date as written, at UTC midnight. It returns the zero time when
// nothing matches.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDay(t)
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return calendarDay(t)
		}
	}
	return time.Time{}
}

// calendarDay drops the time of day without converting t's offset first.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
