package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/c64u/internal/config"
	"github.com/roach88/c64u/internal/trace"
)

// Hardware locations sampled by the liveness heuristic: the KERNAL jiffy
// clock at $A0-$A2 (incremented by the IRQ-driven main loop) and the VIC
// raster position register at $D012 (advances as long as video runs).
const (
	jiffyAddr  = "00a0"
	jiffyLen   = 3
	rasterAddr = "d012"
)

// Decision is the liveness verdict.
type Decision string

const (
	// DecisionHealthy: the jiffy clock advanced; the main loop runs.
	DecisionHealthy Decision = "healthy"
	// DecisionIRQStalled: jiffy frozen but the raster still moves - the
	// main loop is stuck while the display interrupt keeps firing.
	DecisionIRQStalled Decision = "irq-stalled"
	// DecisionWedged: neither advanced; the machine is not executing.
	DecisionWedged Decision = "wedged"
)

// LivenessSample holds the readings behind one decision. Derived from two
// memory reads around a wait window; never persisted beyond the check.
type LivenessSample struct {
	JiffyStart    uint32   `json:"jiffyStart"`
	JiffyEnd      uint32   `json:"jiffyEnd"`
	JiffyAdvanced bool     `json:"jiffyAdvanced"`
	RasterStart   byte     `json:"rasterStart"`
	RasterEnd     byte     `json:"rasterEnd"`
	RasterChanged bool     `json:"rasterChanged"`
	Decision      Decision `json:"decision"`
}

// Decide applies the decision table to raw readings. rasters holds the
// raster register samples taken during the polling window, first sample
// included.
func Decide(jiffyStart, jiffyEnd uint32, rasters []byte) Decision {
	if jiffyEnd != jiffyStart {
		return DecisionHealthy
	}
	for _, r := range rasters[1:] {
		if r != rasters[0] {
			return DecisionIRQStalled
		}
	}
	return DecisionWedged
}

// Checker performs single-pass, state-free liveness checks.
type Checker struct {
	m      Machine
	rec    *trace.Recorder
	cfg    config.Device
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewChecker creates a liveness checker over m.
func NewChecker(m Machine, rec *trace.Recorder, cfg config.Device, logger *slog.Logger) *Checker {
	return &Checker{m: m, rec: rec, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// Check reads jiffy and raster, waits, reads again, then polls the raster
// register for movement. Every outcome - verdict or read failure - is
// recorded as a trace event under the active (or synthesized) action.
func (c *Checker) Check(ctx context.Context) (LivenessSample, error) {
	var sample LivenessSample

	jiffyStart, rasterStart, err := c.readPair(ctx)
	if err != nil {
		c.recordFailure(ctx, err)
		return sample, err
	}

	if err := c.sleep(ctx, c.cfg.JiffyWait); err != nil {
		c.recordFailure(ctx, err)
		return sample, err
	}

	jiffyEnd, rasterEnd, err := c.readPair(ctx)
	if err != nil {
		c.recordFailure(ctx, err)
		return sample, err
	}

	rasters := []byte{rasterEnd}
	if jiffyEnd == jiffyStart {
		// Main loop looks frozen; probe the raster for any movement.
		for i := 0; i < c.cfg.RasterPolls; i++ {
			if err := c.sleep(ctx, c.cfg.RasterPollInterval); err != nil {
				c.recordFailure(ctx, err)
				return sample, err
			}
			r, err := c.readRaster(ctx)
			if err != nil {
				c.recordFailure(ctx, err)
				return sample, err
			}
			rasters = append(rasters, r)
			rasterEnd = r
		}
	}

	sample = LivenessSample{
		JiffyStart:    jiffyStart,
		JiffyEnd:      jiffyEnd,
		JiffyAdvanced: jiffyEnd != jiffyStart,
		RasterStart:   rasterStart,
		RasterEnd:     rasterEnd,
		RasterChanged: rasterChanged(rasters),
		Decision:      Decide(jiffyStart, jiffyEnd, rasters),
	}

	c.rec.Record(ctx, trace.EventLiveness, map[string]any{
		"decision":      string(sample.Decision),
		"jiffyAdvanced": sample.JiffyAdvanced,
		"rasterChanged": sample.RasterChanged,
	})
	c.logger.Debug("liveness check",
		"decision", sample.Decision,
		"jiffyStart", jiffyStart,
		"jiffyEnd", jiffyEnd)
	return sample, nil
}

func rasterChanged(rasters []byte) bool {
	for _, r := range rasters[1:] {
		if r != rasters[0] {
			return true
		}
	}
	return false
}

func (c *Checker) readPair(ctx context.Context) (jiffy uint32, raster byte, err error) {
	j, err := c.m.ReadMemory(ctx, jiffyAddr, jiffyLen)
	if err != nil {
		return 0, 0, err
	}
	r, err := c.readRaster(ctx)
	if err != nil {
		return 0, 0, err
	}
	return uint32(j[0])<<16 | uint32(j[1])<<8 | uint32(j[2]), r, nil
}

func (c *Checker) readRaster(ctx context.Context) (byte, error) {
	r, err := c.m.ReadMemory(ctx, rasterAddr, 1)
	if err != nil {
		return 0, err
	}
	return r[0], nil
}

func (c *Checker) recordFailure(ctx context.Context, err error) {
	c.rec.Record(ctx, trace.EventLiveness, map[string]any{
		"error": err.Error(),
	})
	c.logger.Warn("liveness check failed", "error", err)
}
