// Package sink provides alert delivery targets: a console writer for
// operators tailing the process, a file writer producing one JSON document
// per alert, and a Kafka publisher for downstream consumers. All sinks
// tolerate repeated delivery of the same alert; IDs are deterministic so
// replays overwrite rather than duplicate.
package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// writeJSON marshals v with indentation and writes it to path, creating
// parent directories as needed.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
