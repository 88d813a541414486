package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/c64u/internal/canonical"
	"github.com/roach88/c64u/internal/trace"
)

// Snapshot serializes a recorded trace as a canonical JSON document, so
// golden comparisons are byte-stable across runs and platforms.
func Snapshot(scenarioName string, events []trace.TraceEvent) ([]byte, error) {
	doc, err := canonical.Roundtrip(map[string]any{
		"scenario": scenarioName,
		"trace":    events,
	})
	if err != nil {
		return nil, err
	}
	return canonical.Marshal(doc)
}

// SnapshotGolden compares a recorded trace against the golden file
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func SnapshotGolden(t *testing.T, name string, events []trace.TraceEvent) {
	t.Helper()

	raw, err := Snapshot(name, events)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, raw)
}

// RunWithGolden executes a scenario and compares its trace against the
// scenario's golden file.
func RunWithGolden(t *testing.T, s *Scenario) error {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		return err
	}
	SnapshotGolden(t, s.Name, result.Events)
	return nil
}
