package bridge

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/roach88/c64u/internal/trace"
)

// actionSummary is one line of the companion action index bundled with an
// export: enough to eyeball a trace without replaying it.
type actionSummary struct {
	CorrelationID string       `json:"correlationId"`
	Name          string       `json:"name"`
	Origin        trace.Origin `json:"origin"`
	Events        int          `json:"events"`
	RestCalls     int          `json:"restCalls"`
	FtpOps        int          `json:"ftpOps"`
	Errors        int          `json:"errors"`
}

// handleExportTraces bundles the session into a zip archive: the raw
// trace, a per-action summary, and an error log.
func (b *Bridge) handleExportTraces(w http.ResponseWriter, r *http.Request) {
	events := b.rec.Events()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="trace-%s.zip"`, time.Now().UTC().Format("20060102-150405")))

	zw := zip.NewWriter(w)
	defer zw.Close()

	if err := writeZipJSON(zw, "trace.json", events); err != nil {
		b.logger.Error("export trace.json", "error", err)
		return
	}
	if err := writeZipJSON(zw, "actions.json", summarizeActions(events)); err != nil {
		b.logger.Error("export actions.json", "error", err)
		return
	}
	if err := writeErrorLog(zw, events); err != nil {
		b.logger.Error("export errors.log", "error", err)
	}
}

func writeZipJSON(zw *zip.Writer, name string, v any) error {
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeErrorLog(zw *zip.Writer, events []trace.TraceEvent) error {
	f, err := zw.Create("errors.log")
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Type != trace.EventError {
			continue
		}
		msg, _ := ev.Data["error"].(string)
		if _, err := fmt.Fprintf(f, "%s %s %s %s\n", ev.Timestamp, ev.ID, ev.CorrelationID, msg); err != nil {
			return err
		}
	}
	return nil
}

// summarizeActions folds the event log into per-correlation counters, in
// order of first appearance.
func summarizeActions(events []trace.TraceEvent) []actionSummary {
	byID := make(map[string]*actionSummary)
	var order []string

	for _, ev := range events {
		s, ok := byID[ev.CorrelationID]
		if !ok {
			s = &actionSummary{CorrelationID: ev.CorrelationID, Name: "unknown", Origin: ev.Origin}
			byID[ev.CorrelationID] = s
			order = append(order, ev.CorrelationID)
		}
		s.Events++
		switch ev.Type {
		case trace.EventActionStart:
			if name, ok := ev.Data["name"].(string); ok && name != "" {
				s.Name = name
			}
			s.Origin = ev.Origin
		case trace.EventRestCall:
			s.RestCalls++
		case trace.EventFtpOp:
			s.FtpOps++
		case trace.EventError:
			s.Errors++
		}
	}

	out := make([]actionSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
