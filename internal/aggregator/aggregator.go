// Package aggregator turns a record set and a date range into a bucketed,
// optionally cumulative series.
package aggregator

import (
	"hash/fnv"
	"sort"
	"time"

	"incident-crossfilter-go/internal/types"
)

type Options struct {
	Granularity types.Granularity
	// Categories are the series columns, in order. Empty means every category
	// found in the full record set.
	Categories []string
	Cumulative bool
	// Field selects an attribute column instead of the primary category.
	Field string
}

// Aggregator owns a private copy of the full record set.
type Aggregator struct {
	records []types.Record
	opts    Options
}

type Result struct {
	Series types.Series
	Subset []types.Record
}

// New copies records, dropping the ones without a usable date. The copy is
// never mutated afterwards.
func New(records []types.Record, opts Options) *Aggregator {
	kept := make([]types.Record, 0, len(records))
	for _, r := range records {
		if r.HasDate() {
			kept = append(kept, r)
		}
	}
	if opts.Granularity == "" {
		opts.Granularity = types.Month
	}
	if len(opts.Categories) == 0 {
		opts.Categories = Categories(kept, opts.Field)
	} else {
		opts.Categories = append([]string(nil), opts.Categories...)
	}
	return &Aggregator{records: kept, opts: opts}
}

func (a *Aggregator) Options() Options {
	o := a.opts
	o.Categories = append([]string(nil), a.opts.Categories...)
	return o
}

func (a *Aggregator) Len() int {
	return len(a.records)
}

// Run filters the full record set by r and aggregates the subset.
func (a *Aggregator) Run(r types.DateRange) Result {
	subset := Filter(a.records, r)
	return Result{Series: Aggregate(subset, a.opts), Subset: subset}
}

// Filter returns the records whose date lies in r (inclusive), or every
// dated record when r is unbounded.
func Filter(records []types.Record, r types.DateRange) []types.Record {
	r = r.Normalize()
	out := make([]types.Record, 0, len(records))
	for _, rec := range records {
		if !rec.HasDate() {
			continue
		}
		if r.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	return out
}

// Aggregate groups subset by truncated date. Categories missing from a bucket
// are reported as 0. Records whose category is not listed still open their
// bucket but are not counted. Cumulative series start from zero at the first
// bucket of the subset.
func Aggregate(subset []types.Record, opts Options) types.Series {
	g := opts.Granularity
	if g == "" {
		g = types.Month
	}
	cats := opts.Categories
	if len(cats) == 0 {
		cats = Categories(subset, opts.Field)
	}
	series := types.Series{
		Granularity: g,
		Categories:  append([]string(nil), cats...),
		Cumulative:  opts.Cumulative,
		Buckets:     []types.Bucket{},
	}

	listed := make(map[string]bool, len(cats))
	for _, c := range cats {
		listed[c] = true
	}

	byDate := map[time.Time]map[string]int{}
	for _, r := range subset {
		if !r.HasDate() {
			continue
		}
		key := g.Truncate(r.Date)
		counts, ok := byDate[key]
		if !ok {
			counts = make(map[string]int, len(cats))
			for _, c := range cats {
				counts[c] = 0
			}
			byDate[key] = counts
		}
		if v := r.Value(opts.Field); listed[v] {
			counts[v]++
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	running := make(map[string]int, len(cats))
	for _, d := range dates {
		counts := byDate[d]
		if opts.Cumulative {
			for _, c := range cats {
				running[c] += counts[c]
				counts[c] = running[c]
			}
		}
		total := 0
		for _, c := range cats {
			total += counts[c]
		}
		series.Buckets = append(series.Buckets, types.Bucket{Date: d, Counts: counts, Total: total})
	}
	return series
}

// Categories returns the sorted distinct values of field across records.
func Categories(records []types.Record, field string) []string {
	seen := map[string]bool{}
	for _, r := range records {
		if r.HasDate() {
			seen[r.Value(field)] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Sample picks a representative record for key. The choice depends only on
// key and the IDs in subset, so it stays put while the subset is unchanged.
func Sample(subset []types.Record, key string) (types.Record, bool) {
	var (
		best  types.Record
		bestH uint64
		found bool
	)
	for _, r := range subset {
		h := fnv.New64a()
		h.Write([]byte(key))
		h.Write([]byte{0})
		h.Write([]byte(r.ID))
		v := h.Sum64()
		if !found || v < bestH || (v == bestH && r.ID < best.ID) {
			best, bestH, found = r, v, true
		}
	}
	return best, found
}
