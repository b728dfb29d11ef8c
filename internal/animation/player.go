package animation

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
)

// FrameFunc receives the clock state every time the cursor moves.
type FrameFunc func(domain.AnimationState)

// Player owns the ticker that drives a Clock.
type Player struct {
	clock    *Clock
	time     clockwork.Clock
	interval time.Duration
	onFrame  FrameFunc
	logger   *slog.Logger
}

// NewPlayer creates a Player that ticks c every interval of clk.
func NewPlayer(c *Clock, clk clockwork.Clock, interval time.Duration, onFrame FrameFunc, logger *slog.Logger) *Player {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{clock: c, time: clk, interval: interval, onFrame: onFrame, logger: logger}
}

// Run ticks the clock until ctx is cancelled, then pauses it.
func (p *Player) Run(ctx context.Context) error {
	ticker := p.time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.clock.Pause()

	p.logger.Info("animation player started", "interval", p.interval)
	last := p.time.Now()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("animation player stopping", "reason", ctx.Err())
			return nil
		case now := <-ticker.Chan():
			elapsed := now.Sub(last).Seconds()
			last = now
			if elapsed < 0 {
				continue
			}
			moved, err := p.clock.Tick(elapsed)
			if err != nil {
				p.logger.Warn("animation tick failed", "error", err)
				continue
			}
			if moved && p.onFrame != nil {
				p.onFrame(p.clock.State())
			}
		}
	}
}
