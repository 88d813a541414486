package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/c64u/internal/config"
	"github.com/roach88/c64u/internal/trace"
)

// The I/O window $D000-$DFFF reads back hardware registers, not RAM, so
// round-trip verification must skip it.
const (
	ioRegionStart = 0xD000
	ioRegionEnd   = 0xE000
)

// ErrWedged is returned when the device fails the liveness pre-check, or
// remains wedged after the full recovery escalation.
var ErrWedged = errors.New("device is wedged")

// Guard runs bulk RAM operations under the pause/resume bracket with
// liveness checks and recovery escalation.
type Guard struct {
	m       Machine
	checker *Checker
	rec     *trace.Recorder
	cfg     config.Device
	logger  *slog.Logger
}

// NewGuard creates a guard over m using checker for liveness.
func NewGuard(m Machine, checker *Checker, rec *trace.Recorder, cfg config.Device, logger *slog.Logger) *Guard {
	return &Guard{m: m, checker: checker, rec: rec, cfg: cfg, logger: logger}
}

// call wraps one device call in the bounded fixed-delay retry policy.
func (g *Guard) call(ctx context.Context, name string, fn func() error) error {
	return retryCall(ctx, g.logger, name, g.cfg.RetryAttempts, g.cfg.RetryDelay, fn)
}

// withPaused is the guarded-operation state machine:
//
//  1. Liveness pre-check; abort immediately if wedged.
//  2. Pause (retried).
//  3. fn performs the chunked transfer.
//  4. Resume - attempted even when fn failed, so the device is never left
//     paused. Transfer and resume failures are combined when both occur.
//  5. On transfer failure, recovery escalates before resume is reported:
//     recheck liveness, then reset+recheck, then reboot+recheck.
func (g *Guard) withPaused(ctx context.Context, opName string, fn func(context.Context) error) error {
	sample, err := g.checker.Check(ctx)
	if err != nil {
		return fmt.Errorf("%s: liveness pre-check: %w", opName, err)
	}
	if sample.Decision == DecisionWedged {
		return fmt.Errorf("%s: pre-check: %w, refusing bulk transfer", opName, ErrWedged)
	}
	if sample.Decision == DecisionIRQStalled {
		g.logger.Warn("device main loop stalled, proceeding under pause", "op", opName)
	}

	if err := g.call(ctx, "machine:pause", func() error { return g.m.MachinePause(ctx) }); err != nil {
		return fmt.Errorf("%s: %w", opName, err)
	}

	opErr := fn(ctx)
	if opErr != nil {
		opErr = fmt.Errorf("%s: %w", opName, opErr)
		if recErr := g.recoverAfterFailure(ctx); recErr != nil {
			opErr = errors.Join(opErr, recErr)
		}
	}

	resumeErr := g.call(ctx, "machine:resume", func() error { return g.m.MachineResume(ctx) })
	if resumeErr != nil {
		resumeErr = fmt.Errorf("%s: resume after transfer: %w", opName, resumeErr)
	}

	switch {
	case opErr != nil && resumeErr != nil:
		return errors.Join(opErr, resumeErr)
	case opErr != nil:
		return opErr
	default:
		return resumeErr
	}
}

// recoverAfterFailure is the three-step escalation, distinct from ordinary
// retry: recheck, reset+recheck, reboot+recheck. Only when the device is
// still wedged after the reboot is the operation declared fatally aborted.
func (g *Guard) recoverAfterFailure(ctx context.Context) error {
	if g.healthyEnough(ctx) {
		return nil
	}

	g.logger.Warn("device wedged after transfer failure, attempting reset")
	if err := g.call(ctx, "machine:reset", func() error { return g.m.MachineReset(ctx) }); err != nil {
		g.logger.Error("reset failed during recovery", "error", err)
	} else if g.healthyEnough(ctx) {
		return nil
	}

	g.logger.Warn("device still wedged after reset, attempting reboot")
	if err := g.call(ctx, "machine:reboot", func() error { return g.m.MachineReboot(ctx) }); err != nil {
		g.logger.Error("reboot failed during recovery", "error", err)
	} else if g.healthyEnough(ctx) {
		return nil
	}

	return fmt.Errorf("recovery: device remained wedged after reboot: %w", ErrWedged)
}

// healthyEnough treats a failed liveness read as wedged: if the device
// cannot even answer memory reads, escalation must continue.
func (g *Guard) healthyEnough(ctx context.Context) bool {
	sample, err := g.checker.Check(ctx)
	if err != nil {
		return false
	}
	return sample.Decision != DecisionWedged
}

// DumpFullRAM reads the entire address space in sequential fixed-size
// chunks and returns the image. Exactly one pause and one resume bracket
// the reads, even when individual chunks are retried. A chunk-length
// mismatch aborts the whole operation without attempting further chunks.
func (g *Guard) DumpFullRAM(ctx context.Context) ([]byte, error) {
	image := make([]byte, 0, g.cfg.RAMSize)
	err := g.withPaused(ctx, "ram.dump", func(ctx context.Context) error {
		for addr := 0; addr < g.cfg.RAMSize; addr += g.cfg.ChunkSize {
			addrHex := fmt.Sprintf("%04x", addr)
			var chunk []byte
			err := g.call(ctx, "machine:readmem", func() error {
				var readErr error
				chunk, readErr = g.m.ReadMemory(ctx, addrHex, g.cfg.ChunkSize)
				return readErr
			})
			if err != nil {
				return fmt.Errorf("chunk at %s: %w", addrHex, err)
			}
			if len(chunk) != g.cfg.ChunkSize {
				return protocolErrorf("ram.dump", "short read at %s: got %d bytes, want %d", addrHex, len(chunk), g.cfg.ChunkSize)
			}
			image = append(image, chunk...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return image, nil
}

// LoadFullRAM writes image over the entire address space. Images that are
// not exactly the full RAM size are rejected outright - a truncated image
// is a caller bug, not a transient condition.
func (g *Guard) LoadFullRAM(ctx context.Context, image []byte) error {
	if len(image) != g.cfg.RAMSize {
		return protocolErrorf("ram.load", "malformed RAM image: got %d bytes, want %d", len(image), g.cfg.RAMSize)
	}
	return g.withPaused(ctx, "ram.load", func(ctx context.Context) error {
		return g.writeImage(ctx, image)
	})
}

// ClearFullRAM zero-fills the entire address space.
func (g *Guard) ClearFullRAM(ctx context.Context) error {
	zeros := make([]byte, g.cfg.RAMSize)
	return g.withPaused(ctx, "ram.clear", func(ctx context.Context) error {
		return g.writeImage(ctx, zeros)
	})
}

// VerifyResult reports the outcome of a round-trip verification.
type VerifyResult struct {
	BytesCompared int
	Mismatches    int
	FirstMismatch int // address, -1 when clean
}

// VerifyRoundTrip writes a deterministic pattern across RAM, reads it
// back, and compares byte-by-byte. The I/O region is excluded: its reads
// return register values, not the underlying RAM. Destructive - the
// previous RAM contents are not preserved.
func (g *Guard) VerifyRoundTrip(ctx context.Context) (VerifyResult, error) {
	result := VerifyResult{FirstMismatch: -1}

	pattern := make([]byte, g.cfg.RAMSize)
	for i := range pattern {
		pattern[i] = byte(i) ^ byte(i>>8)
	}

	var readback []byte
	err := g.withPaused(ctx, "ram.verify", func(ctx context.Context) error {
		if err := g.writeImage(ctx, pattern); err != nil {
			return err
		}
		for addr := 0; addr < g.cfg.RAMSize; addr += g.cfg.ChunkSize {
			addrHex := fmt.Sprintf("%04x", addr)
			var chunk []byte
			err := g.call(ctx, "machine:readmem", func() error {
				var readErr error
				chunk, readErr = g.m.ReadMemory(ctx, addrHex, g.cfg.ChunkSize)
				return readErr
			})
			if err != nil {
				return fmt.Errorf("chunk at %s: %w", addrHex, err)
			}
			if len(chunk) != g.cfg.ChunkSize {
				return protocolErrorf("ram.verify", "short read at %s: got %d bytes, want %d", addrHex, len(chunk), g.cfg.ChunkSize)
			}
			readback = append(readback, chunk...)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	for i := range pattern {
		if i >= ioRegionStart && i < ioRegionEnd {
			continue
		}
		result.BytesCompared++
		if readback[i] != pattern[i] {
			result.Mismatches++
			if result.FirstMismatch < 0 {
				result.FirstMismatch = i
			}
		}
	}

	if result.Mismatches > 0 {
		g.rec.Record(ctx, trace.EventError, map[string]any{
			"operation":     "ram.verify",
			"mismatches":    result.Mismatches,
			"firstMismatch": fmt.Sprintf("%04x", result.FirstMismatch),
		})
	}
	g.logger.Info("round-trip verify complete",
		"compared", result.BytesCompared,
		"mismatches", result.Mismatches)
	return result, nil
}

// writeImage writes image sequentially in fixed-size chunks.
func (g *Guard) writeImage(ctx context.Context, image []byte) error {
	for addr := 0; addr < len(image); addr += g.cfg.ChunkSize {
		addrHex := fmt.Sprintf("%04x", addr)
		chunk := image[addr : addr+g.cfg.ChunkSize]
		err := g.call(ctx, "machine:writemem", func() error {
			return g.m.WriteMemoryBlock(ctx, addrHex, chunk)
		})
		if err != nil {
			return fmt.Errorf("chunk at %s: %w", addrHex, err)
		}
	}
	return nil
}
