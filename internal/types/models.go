package types

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// UnknownCategory is stored for rows without a usable category value.
const UnknownCategory = "Unknown"

// Record is one dataset row. A zero Date means the source date could not be parsed.
type Record struct {
	ID       string            `json:"id"`
	Date     time.Time         `json:"date"`
	Category string            `json:"category"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

func (r Record) HasDate() bool {
	return !r.Date.IsZero()
}

// Value returns the categorical value for field. An empty field means the
// primary category.
func (r Record) Value(field string) string {
	if field == "" || field == "category" {
		if r.Category == "" {
			return UnknownCategory
		}
		return r.Category
	}
	v := strings.TrimSpace(r.Attrs[field])
	if v == "" {
		return UnknownCategory
	}
	return v
}

// DateRange is either bounded ([Start, End], inclusive) or the unbounded
// "no filter" sentinel.
type DateRange struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Bounded bool      `json:"bounded"`
}

func Unbounded() DateRange {
	return DateRange{}
}

func NewRange(start, end time.Time) DateRange {
	return DateRange{Start: start, End: end, Bounded: true}
}

// Normalize swaps a reversed bounded range so that Start <= End.
func (r DateRange) Normalize() DateRange {
	if !r.Bounded {
		return Unbounded()
	}
	if r.Start.After(r.End) {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func (r DateRange) Contains(t time.Time) bool {
	if !r.Bounded {
		return true
	}
	return !t.Before(r.Start) && !t.After(r.End)
}

func (r DateRange) String() string {
	if !r.Bounded {
		return "unbounded"
	}
	return r.Start.Format(time.DateOnly) + ".." + r.End.Format(time.DateOnly)
}

type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
)

func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return Day, nil
	case "", "month", "monthly":
		return Month, nil
	}
	return "", goerr.New("unknown granularity", goerr.V("granularity", s))
}

// Truncate returns the bucket key for t: UTC midnight for Day, the first of
// the month for Month.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if g == Day {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type Bucket struct {
	Date   time.Time      `json:"date"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

func (b Bucket) Count(category string) int {
	return b.Counts[category]
}

type Series struct {
	Granularity Granularity `json:"granularity"`
	Categories  []string    `json:"categories"`
	Cumulative  bool        `json:"cumulative"`
	Buckets     []Bucket    `json:"buckets"`
}

func (s Series) Empty() bool {
	return len(s.Buckets) == 0
}

// View is what a chart hands to its renderer after every range change.
type View struct {
	Chart  string    `json:"chart"`
	Range  DateRange `json:"range"`
	Series Series    `json:"series"`
	Subset []Record  `json:"subset,omitempty"`
	Sample *Record   `json:"sample,omitempty"`
}
