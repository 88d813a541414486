package compare

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/c64u/internal/schema"
	"github.com/roach88/c64u/internal/trace"
)

// TraceFileName is the canonical trace file inside a golden or evidence
// directory.
const TraceFileName = "trace.json"

// GoldenDirs holds the candidate locations for golden trace fixtures, in
// descending precedence.
type GoldenDirs struct {
	// Override is an explicit directory, typically from a flag or
	// environment variable. Used unconditionally when set.
	Override string
	// OutputOverride is an explicit output directory used by harnesses
	// that write and read goldens in one place.
	OutputOverride string
	// Default is the conventional fixture path.
	Default string
	// Legacy is the pre-reorganization fallback path.
	Legacy string
}

// Resolve picks the golden directory: an explicit override always wins,
// otherwise the default path is used when it exists, otherwise the legacy
// fallback.
func (g GoldenDirs) Resolve() string {
	if g.Override != "" {
		return g.Override
	}
	if g.OutputOverride != "" {
		return g.OutputOverride
	}
	if g.Default != "" {
		if _, err := os.Stat(g.Default); err == nil {
			return g.Default
		}
	}
	if g.Legacy != "" {
		return g.Legacy
	}
	return g.Default
}

// LoadTraceFile reads and decodes trace.json from dir, validating the
// document against the trace schema first so a malformed file fails with
// the schema's message rather than a decoding artifact. The schema is
// structural only: id-format violations load fine and surface as
// collected comparison errors.
func LoadTraceFile(dir string) ([]trace.TraceEvent, error) {
	path := filepath.Join(dir, TraceFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace file: %w", err)
	}
	if err := schema.ValidateTrace(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var events []trace.TraceEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return events, nil
}

// CompareTraceFiles loads trace.json from the golden and evidence
// directories and compares them with default options.
func CompareTraceFiles(goldenDir, evidenceDir string) (Result, error) {
	return CompareTraceFilesWith(goldenDir, evidenceDir, Options{})
}

// CompareTraceFilesWith is CompareTraceFiles with explicit options.
func CompareTraceFilesWith(goldenDir, evidenceDir string, opts Options) (Result, error) {
	expected, err := LoadTraceFile(goldenDir)
	if err != nil {
		return Result{}, fmt.Errorf("golden trace: %w", err)
	}
	actual, err := LoadTraceFile(evidenceDir)
	if err != nil {
		return Result{}, fmt.Errorf("evidence trace: %w", err)
	}
	return CompareTracesWith(expected, actual, opts), nil
}

// CompareOrPromoteTraceFiles compares evidence against the golden trace,
// or promotes the evidence when no golden trace exists yet: the evidence
// file is copied verbatim into the golden directory and the comparison is
// skipped. Returns promoted=true in that case, with an empty Result.
func CompareOrPromoteTraceFiles(goldenDir, evidenceDir string) (Result, bool, error) {
	return CompareOrPromoteTraceFilesWith(goldenDir, evidenceDir, Options{})
}

// CompareOrPromoteTraceFilesWith is CompareOrPromoteTraceFiles with
// explicit options.
func CompareOrPromoteTraceFilesWith(goldenDir, evidenceDir string, opts Options) (Result, bool, error) {
	goldenPath := filepath.Join(goldenDir, TraceFileName)
	if _, err := os.Stat(goldenPath); err == nil {
		res, err := CompareTraceFilesWith(goldenDir, evidenceDir, opts)
		return res, false, err
	} else if !os.IsNotExist(err) {
		return Result{}, false, fmt.Errorf("checking golden trace: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(evidenceDir, TraceFileName))
	if err != nil {
		return Result{}, false, fmt.Errorf("reading evidence trace for promotion: %w", err)
	}
	if err := schema.ValidateTrace(raw); err != nil {
		return Result{}, false, fmt.Errorf("refusing to promote invalid trace: %w", err)
	}
	// Promotion is stricter than comparison: a trace with malformed ids
	// must never become the baseline.
	var events []trace.TraceEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return Result{}, false, fmt.Errorf("decoding evidence trace for promotion: %w", err)
	}
	if idErrs := validateIDs(events); len(idErrs) > 0 {
		return Result{}, false, fmt.Errorf("refusing to promote trace with malformed ids: %s", strings.Join(idErrs, "; "))
	}
	if err := os.MkdirAll(goldenDir, 0o755); err != nil {
		return Result{}, false, fmt.Errorf("creating golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, raw, 0o644); err != nil {
		return Result{}, false, fmt.Errorf("promoting trace: %w", err)
	}
	return Result{}, true, nil
}
