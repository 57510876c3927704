package audit

import (
	"context"
	"encoding/json"
	"time"

	"crewplan.org/internal/obs"
)

// LogSink appends audit entries as structured JSON lines through the shared
// logger. Default sink when no database is configured.
type LogSink struct{}

// Append writes the entry as one JSON log line.
func (LogSink) Append(ctx context.Context, entry Entry) error {
	line := map[string]any{
		"ts":    entry.OccurredAt.Format(time.RFC3339Nano),
		"type":  "audit",
		"entry": entry,
	}
	if rid := requestIDFromContext(ctx); rid != "" && entry.RequestID == "" {
		line["request_id"] = rid
	}
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
