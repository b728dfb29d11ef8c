// Package animation drives a time cursor across a date range for map playback.
package animation

import (
	"math"
	"sync"
	"time"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
)

// Clock is the playback state machine: idle or running, with a cursor that
// advances one calendar step per frame and loops back to the start after the
// end. It owns no timer; a Player (or any caller) feeds it elapsed time.
type Clock struct {
	mu       sync.Mutex
	start    time.Time
	end      time.Time
	current  time.Time
	playing  bool
	speed    float64
	unit     domain.StepUnit
	progress float64 // fractional frames carried between ticks
	cycle    int     // frames from start back to start; 0 until computed
}

// NewClock creates an idle clock positioned at start. speed is frames per second.
func NewClock(start, end time.Time, speed float64, unit domain.StepUnit) (*Clock, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if err := validateSpeed(speed); err != nil {
		return nil, err
	}
	if unit == "" {
		unit = domain.StepMonth
	}
	if _, err := domain.ParseStepUnit(string(unit)); err != nil {
		return nil, err
	}
	return &Clock{
		start:   start.UTC(),
		end:     end.UTC(),
		current: start.UTC(),
		speed:   speed,
		unit:    unit,
	}, nil
}

// Play starts playback. It is a no-op when already running.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
}

// Pause stops playback and discards any partial frame. It is a no-op when idle.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.playing = false
	c.progress = 0
}

// Seek moves the cursor, clamped to the range. Playback state is unchanged.
func (c *Clock) Seek(t time.Time) domain.AnimationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = clamp(t.UTC(), c.start, c.end)
	c.progress = 0
	return c.stateLocked()
}

// SeekProgress moves the cursor to pct percent (0-100) of the range, truncated
// to whole days.
func (c *Clock) SeekProgress(pct float64) (domain.AnimationState, error) {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return domain.AnimationState{}, domain.NewValidationError("progress", "%g outside [0, 100]", pct)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	days := math.Floor(pct / 100 * c.end.Sub(c.start).Hours() / 24)
	c.current = clamp(c.start.AddDate(0, 0, int(days)), c.start, c.end)
	c.progress = 0
	return c.stateLocked(), nil
}

// SetSpeed changes the frame rate. speed must be positive and finite.
func (c *Clock) SetSpeed(speed float64) error {
	if err := validateSpeed(speed); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
	return nil
}

// SetStepUnit changes the calendar unit of one frame.
func (c *Clock) SetStepUnit(unit domain.StepUnit) error {
	u, err := domain.ParseStepUnit(string(unit))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unit = u
	c.cycle = 0
	return nil
}

// SetRange replaces the playback range and clamps the cursor into it.
func (c *Clock) SetRange(start, end time.Time) error {
	if err := validateRange(start, end); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start, c.end = start.UTC(), end.UTC()
	c.current = clamp(c.current, c.start, c.end)
	c.progress = 0
	c.cycle = 0
	return nil
}

// Tick advances a running clock by elapsedSeconds of wall time. Each whole
// frame (elapsed × speed, carried across calls) moves the cursor one step;
// a step that would pass the end returns the cursor to the start instead.
// It reports whether the cursor moved. Ticking an idle clock does nothing.
func (c *Clock) Tick(elapsedSeconds float64) (bool, error) {
	if math.IsNaN(elapsedSeconds) || math.IsInf(elapsedSeconds, 0) || elapsedSeconds < 0 {
		return false, domain.NewValidationError("elapsed", "%g is not a non-negative duration", elapsedSeconds)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return false, nil
	}

	c.progress += elapsedSeconds * c.speed
	if math.IsInf(c.progress, 0) {
		c.progress = 0
		return false, domain.NewValidationError("elapsed", "%g s at speed %g overflows", elapsedSeconds, c.speed)
	}
	frames := math.Floor(c.progress)
	if frames < 1 {
		return false, nil
	}
	c.progress -= frames

	before := c.current
	for frames > 0 {
		// Whole loops leave the cursor where it was, so only the remainder is stepped.
		if c.current.Equal(c.start) && frames > 1 {
			frames = math.Mod(frames, float64(c.cycleLocked()))
			if frames == 0 {
				break
			}
		}
		c.current = c.nextLocked()
		frames--
	}
	return !c.current.Equal(before), nil
}

// nextLocked is the cursor after one frame.
func (c *Clock) nextLocked() time.Time {
	next := step(c.current, c.unit)
	if next.After(c.end) {
		return c.start
	}
	return next
}

// cycleLocked counts the frames a cursor at start takes to return to start.
func (c *Clock) cycleLocked() int {
	if c.cycle > 0 {
		return c.cycle
	}
	n := 1
	for t := step(c.start, c.unit); !t.After(c.end); t = step(t, c.unit) {
		n++
	}
	c.cycle = n
	return n
}

// State returns a snapshot of the clock.
func (c *Clock) State() domain.AnimationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Progress is the cursor position as a percentage of the range, for a slider.
func (c *Clock) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.end.Sub(c.start)
	if total <= 0 {
		return 0
	}
	return float64(c.current.Sub(c.start)) / float64(total) * 100
}

func (c *Clock) stateLocked() domain.AnimationState {
	return domain.AnimationState{
		CurrentTime: c.current,
		StartTime:   c.start,
		EndTime:     c.end,
		Playing:     c.playing,
		Speed:       c.speed,
		StepUnit:    c.unit,
	}
}

// step advances t by one calendar unit. Month and year steps clamp the day of
// month, so Jan 31 is followed by Feb 28 (or 29) rather than early March.
func step(t time.Time, unit domain.StepUnit) time.Time {
	switch unit {
	case domain.StepDay:
		return t.AddDate(0, 0, 1)
	case domain.StepYear:
		return addMonths(t, 12)
	default:
		return addMonths(t, 1)
	}
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clamp(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return domain.NewValidationError("range", "start and end are required")
	}
	if end.Before(start) {
		return domain.NewValidationError("range", "end %s before start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return nil
}

func validateSpeed(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return domain.NewValidationError("speed", "%g must be positive", speed)
	}
	return nil
}
