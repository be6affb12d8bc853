package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// File persists each alert twice under dir: a pretty-printed JSON document
// (<id>.json) and the formatted text rendering (<id>.txt). Closures are
// appended to a closures.log JSON-lines file in the same directory.
// Filenames derive from alert IDs, so replaying a cycle overwrites in
// place rather than duplicating.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile returns a file sink rooted at dir. The directory is created on
// first write.
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// Name implements alert.Sink.
func (f *File) Name() string {
	return "file"
}

// Emit implements alert.Sink.
func (f *File) Emit(_ context.Context, a domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeJSON(filepath.Join(f.dir, a.ID+".json"), a); err != nil {
		return fmt.Errorf("writing alert document: %w", err)
	}
	txt := filepath.Join(f.dir, a.ID+".txt")
	if err := os.WriteFile(txt, []byte(FormatText(a)), 0o600); err != nil {
		return fmt.Errorf("writing alert text: %w", err)
	}
	return nil
}

// EmitClosure implements alert.Sink.
func (f *File) EmitClosure(_ context.Context, cl domain.Closure) error {
	line, err := json.Marshal(cl)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	fh, err := os.OpenFile(filepath.Join(f.dir, "closures.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening closure log: %w", err)
	}
	defer fh.Close()
	if _, err := fh.Write(line); err != nil {
		return fmt.Errorf("appending closure: %w", err)
	}
	return nil
}
