// Package render holds the data-level renderers charts hand their views to.
package render

import (
	"errors"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"incident-crossfilter-go/internal/types"
)

// Snapshot keeps the latest view per chart for readers on other goroutines.
type Snapshot struct {
	mu    sync.RWMutex
	views map[string]types.View
}

func NewSnapshot() *Snapshot {
	return &Snapshot{views: map[string]types.View{}}
}

func (s *Snapshot) Render(v types.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[v.Chart] = v
	return nil
}

func (s *Snapshot) Latest(chart string) (types.View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[chart]
	return v, ok
}

// All returns the latest views ordered by chart name.
func (s *Snapshot) All() []types.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.View, 0, len(s.views))
	for _, v := range s.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chart < out[j].Chart })
	return out
}

// Log writes one structured line per render.
type Log struct {
	log *logrus.Entry
}

func NewLog(l *logrus.Entry) *Log {
	return &Log{log: l}
}

func (l *Log) Render(v types.View) error {
	total := 0
	if n := len(v.Series.Buckets); n > 0 {
		if v.Series.Cumulative {
			total = v.Series.Buckets[n-1].Total
		} else {
			for _, b := range v.Series.Buckets {
				total += b.Total
			}
		}
	}
	fields := logrus.Fields{
		"chart":   v.Chart,
		"range":   v.Range.String(),
		"buckets": len(v.Series.Buckets),
		"records": len(v.Subset),
		"total":   total,
	}
	if v.Sample != nil {
		fields["sample_id"] = v.Sample.ID
	}
	l.log.WithFields(fields).Debug("chart rendered")
	return nil
}

// Multi calls every renderer even when an earlier one fails.
type Multi []interface {
	Render(types.View) error
}

func (m Multi) Render(v types.View) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
