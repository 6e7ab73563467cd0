package dataset_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/xuri/excelize/v2"
	"incident-crossfilter-go/internal/dataset"
	"incident-crossfilter-go/internal/logger"
)

const incidentsCSV = `incident_id,date,severity,Cleaned_Sector,title
1,2020-01-05,High,Health,first
2,2020-01-20,,Finance,second
3,not a date,Low,Health,third
,2021-06-01T10:30:00Z,Medium,,fourth
`

func TestLoadCSV(t *testing.T) {
	records, err := dataset.LoadCSV(strings.NewReader(incidentsCSV))
	gt.NoError(t, err).Required()
	gt.Equal(t, len(records), 4)

	gt.Equal(t, records[0].ID, "1")
	gt.True(t, records[0].Date.Equal(time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)))
	gt.Equal(t, records[0].Category, "High")
	gt.Equal(t, records[0].Attrs["sector"], "Health")
	gt.Equal(t, records[0].Attrs["title"], "first")

	gt.Equal(t, records[1].Category, "Unknown")
	gt.False(t, records[2].HasDate())

	gt.True(t, records[3].ID != "")
	gt.True(t, records[3].Date.Equal(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)))
	gt.Equal(t, records[3].Value("sector"), "Unknown")

	again, err := dataset.LoadCSV(strings.NewReader(incidentsCSV))
	gt.NoError(t, err).Required()
	gt.Equal(t, again[3].ID, records[3].ID)
}

func TestLoadCSV_NeedsDateColumn(t *testing.T) {
	_, err := dataset.LoadCSV(strings.NewReader("id,severity\n1,High\n"))
	gt.Error(t, err)
}

func TestLoadWorkbook(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Incident ID", "Date", "Severity", "Sector"},
		{"a", "2020-02-03", "High", "Retail"},
		{"b", "2020-03-04", "Low", "Retail"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		gt.NoError(t, err).Required()
		gt.NoError(t, f.SetSheetRow("Sheet1", cell, &r)).Required()
	}
	var buf bytes.Buffer
	gt.NoError(t, f.Write(&buf)).Required()
	gt.NoError(t, f.Close())

	records, err := dataset.LoadWorkbook(&buf)
	gt.NoError(t, err).Required()
	gt.Equal(t, len(records), 2)
	gt.Equal(t, records[1].ID, "b")
	gt.Equal(t, records[1].Attrs["sector"], "Retail")
}

func TestLoad_ByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incidents.csv")
	gt.NoError(t, os.WriteFile(path, []byte(incidentsCSV), 0o600)).Required()

	records, err := dataset.Load(path)
	gt.NoError(t, err).Required()
	gt.Equal(t, len(records), 4)

	_, err = dataset.Load(filepath.Join(dir, "incidents.json"))
	gt.Error(t, err)
}

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2020-01-05":                time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		"01/05/2020":                time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		"Jan 5, 2020":               time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		"2020-01-05 23:59:00":       time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		"2020-01":                   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		"43835":                     time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		"2020-01-05T23:00:00-05:00": time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
		"2020-01-05T01:00:00+09:00": time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got := dataset.ParseDate(in)
		gt.True(t, got.Equal(want))
		gt.Equal(t, got.Location(), time.UTC)
	}
	gt.True(t, dataset.ParseDate("").IsZero())
	gt.True(t, dataset.ParseDate("yesterday").IsZero())
}

func TestSummarize(t *testing.T) {
	records, err := dataset.LoadCSV(strings.NewReader(incidentsCSV))
	gt.NoError(t, err).Required()

	t.Setenv("LOG_LEVEL", "info")
	var buf bytes.Buffer
	s := dataset.Summarize(records, logger.NewWithOutput(&buf).Component("dataset"))
	gt.Equal(t, s.TotalRecords, 4)
	gt.Equal(t, s.ValidRecords, 3)
	gt.Equal(t, s.InvalidDates, 1)
	gt.Equal(t, s.ByCategory["Unknown"], 1)

	first, last, ok := s.Extent()
	gt.True(t, ok)
	gt.True(t, first.Equal(time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)))
	gt.True(t, last.Equal(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)))
	gt.True(t, strings.Contains(buf.String(), "dataset summarization complete"))

	gt.Equal(t, dataset.Summarize(records, nil).TotalRecords, 4)
}

func TestFetch(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(incidentsCSV))
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "incidents.csv")
		gt.NoError(t, dataset.Fetch(context.Background(), srv.URL, dest, 10*time.Second)).Required()
		gt.Equal(t, calls.Load(), int32(3))

		records, err := dataset.Load(dest)
		gt.NoError(t, err).Required()
		gt.Equal(t, len(records), 4)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		dest := filepath.Join(t.TempDir(), "incidents.csv")
		gt.Error(t, dataset.Fetch(context.Background(), srv.URL, dest, 5*time.Second))
		gt.Equal(t, calls.Load(), int32(1))
		_, err := os.Stat(dest)
		gt.True(t, os.IsNotExist(err))
	})
}
