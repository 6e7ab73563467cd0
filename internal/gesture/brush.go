// Package gesture turns brush selections over a time axis into ranges.
package gesture

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"incident-crossfilter-go/internal/types"
)

// RangeSetter is the part of the broadcaster a brush drives.
type RangeSetter interface {
	SetRange(r types.DateRange) types.DateRange
	Clear()
}

type Mode string

const (
	// OnTick publishes every drag tick.
	OnTick Mode = "tick"
	// OnRelease publishes only when the drag ends.
	OnRelease Mode = "release"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case OnTick:
		return OnTick, nil
	case OnRelease, "":
		return OnRelease, nil
	}
	return "", goerr.New("unknown brush mode", goerr.V("mode", s))
}

// Brush maps pixel positions on an axis of the given width to dates in
// [from, to].
type Brush struct {
	from, to time.Time
	width    float64
	mode     Mode
	target   RangeSetter
}

func NewBrush(from, to time.Time, width float64, mode Mode, target RangeSetter) (*Brush, error) {
	if width <= 0 {
		return nil, goerr.New("brush width must be positive", goerr.V("width", width))
	}
	if from.After(to) {
		from, to = to, from
	}
	if mode == "" {
		mode = OnRelease
	}
	return &Brush{from: from, to: to, width: width, mode: mode, target: target}, nil
}

func (b *Brush) Mode() Mode { return b.mode }

// Invert returns the day under pixel x, clamped to the axis. Records carry
// no time of day, so the result is snapped to UTC midnight.
func (b *Brush) Invert(x float64) time.Time {
	switch {
	case x <= 0:
		return types.Day.Truncate(b.from)
	case x >= b.width:
		return types.Day.Truncate(b.to)
	}
	span := b.to.Sub(b.from)
	return types.Day.Truncate(b.from.Add(time.Duration(float64(span) * x / b.width)))
}

func (b *Brush) Selection(x0, x1 float64) types.DateRange {
	return types.NewRange(b.Invert(x0), b.Invert(x1))
}

// Move handles a drag tick. It publishes only in tick mode; the second
// result reports whether it did.
func (b *Brush) Move(x0, x1 float64) (types.DateRange, bool) {
	r := b.Selection(x0, x1).Normalize()
	if b.mode != OnTick {
		return r, false
	}
	return b.target.SetRange(r), true
}

// End handles the end of a drag and always publishes.
func (b *Brush) End(x0, x1 float64) types.DateRange {
	return b.target.SetRange(b.Selection(x0, x1))
}

// Clear removes the selection.
func (b *Brush) Clear() {
	b.target.Clear()
}
