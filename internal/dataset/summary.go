package dataset

import (
	"time"

	"github.com/sirupsen/logrus"
	"incident-crossfilter-go/internal/types"
)

type Summary struct {
	TotalRecords int            `json:"total_records"`
	ValidRecords int            `json:"valid_records"`
	InvalidDates int            `json:"invalid_dates"`
	ByCategory   map[string]int `json:"by_category"`
	First        time.Time      `json:"first"`
	Last         time.Time      `json:"last"`
}

// Extent is the dated span of the dataset, used as the brush domain.
func (s Summary) Extent() (time.Time, time.Time, bool) {
	return s.First, s.Last, s.ValidRecords > 0
}

// Summarize counts records per category and finds the date extent. Records
// without a date are counted as invalid only. A nil log disables logging.
func Summarize(records []types.Record, log *logrus.Entry) Summary {
	s := Summary{TotalRecords: len(records), ByCategory: map[string]int{}}
	for _, r := range records {
		if !r.HasDate() {
			s.InvalidDates++
			continue
		}
		s.ValidRecords++
		s.ByCategory[r.Value("")]++
		if s.First.IsZero() || r.Date.Before(s.First) {
			s.First = r.Date
		}
		if r.Date.After(s.Last) {
			s.Last = r.Date
		}
	}

	if log == nil {
		return s
	}
	log.WithFields(logrus.Fields{
		"total_records": s.TotalRecords,
		"invalid_dates": s.InvalidDates,
		"categories":    len(s.ByCategory),
	}).Info("dataset summarization complete")
	return s
}
