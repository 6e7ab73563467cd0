// Package broadcaster owns the active date range and notifies subscribers
// when it changes.
package broadcaster

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"
	"incident-crossfilter-go/internal/logger"
	"incident-crossfilter-go/internal/types"
)

// Subscriber receives the range by value on every change.
type Subscriber interface {
	OnDateRange(r types.DateRange) error
}

type SubscriberFunc func(r types.DateRange) error

func (f SubscriberFunc) OnDateRange(r types.DateRange) error {
	return f(r)
}

type entry struct {
	id  uint64
	sub Subscriber
}

// Broadcaster holds the authoritative range. SetRange cycles are serialized:
// every subscriber of one call returns before the next call starts.
// Subscribers must not call SetRange or Clear from OnDateRange.
type Broadcaster struct {
	notify sync.Mutex // held for a whole SetRange cycle
	mu     sync.Mutex // guards the fields below
	rng    types.DateRange
	subs   []entry
	nextID uint64
	log    *logrus.Entry
}

type Option func(*Broadcaster)

func WithLogger(l *logrus.Entry) Option {
	return func(b *Broadcaster) { b.log = l }
}

func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{rng: types.Unbounded()}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = logger.New().Component("broadcaster")
	}
	return b
}

// Subscribe registers s. Duplicates are allowed. The returned cancel removes
// this registration and may be called more than once.
func (b *Broadcaster) Subscribe(s Subscriber) (cancel func(), err error) {
	if s == nil {
		return nil, goerr.New("subscriber is nil")
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, entry{id: id, sub: s})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}, nil
}

// SubscribeAndNotify registers s and delivers the current range to it inside
// one SetRange cycle, so no concurrent SetRange can land between the two. A
// failing first delivery is logged and the registration stays.
func (b *Broadcaster) SubscribeAndNotify(s Subscriber) (cancel func(), err error) {
	b.notify.Lock()
	defer b.notify.Unlock()

	cancel, err = b.Subscribe(s)
	if err != nil {
		return nil, err
	}
	cur := b.Range()
	if err := b.deliver(s, cur); err != nil {
		b.log.WithField("range", cur.String()).WithField("error", err.Error()).
			Error("initial delivery failed")
	}
	return cancel, nil
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.subs {
		if e.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len reports the number of live registrations.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) Range() types.DateRange {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng
}

// SetRange stores r, swapping a reversed range, and notifies every subscriber
// exactly once. It returns the stored range.
func (b *Broadcaster) SetRange(r types.DateRange) types.DateRange {
	b.notify.Lock()
	defer b.notify.Unlock()

	norm := r.Normalize()
	if r.Bounded && !norm.Start.Equal(r.Start) {
		b.log.WithFields(logrus.Fields{
			"start": r.Start.Format("2006-01-02"),
			"end":   r.End.Format("2006-01-02"),
		}).Warn("reversed range swapped")
	}

	b.mu.Lock()
	b.rng = norm
	subs := make([]entry, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	failed := 0
	for _, e := range subs {
		if err := b.deliver(e.sub, norm); err != nil {
			failed++
			b.log.WithField("subscriber", e.id).WithField("error", err.Error()).
				Error("subscriber failed")
		}
	}
	b.log.WithFields(logrus.Fields{
		"range":       norm.String(),
		"subscribers": len(subs),
		"failed":      failed,
	}).Debug("range broadcast")
	return norm
}

// Clear removes the filter so every subscriber returns to the full view.
func (b *Broadcaster) Clear() {
	b.SetRange(types.Unbounded())
}

func (b *Broadcaster) deliver(s Subscriber, r types.DateRange) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = goerr.New("subscriber panicked",
				goerr.V("recover", fmt.Sprint(rec)),
				goerr.V("stack", string(debug.Stack())))
		}
	}()
	return s.OnDateRange(r)
}
