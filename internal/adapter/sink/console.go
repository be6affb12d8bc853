package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

var banner = strings.Repeat("=", 60)

// Console prints alerts as formatted text blocks and closures as single
// lines. Writes are serialized so concurrent dispatches do not interleave.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole returns a console sink writing to out, or os.Stdout when out
// is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Name implements alert.Sink.
func (c *Console) Name() string {
	return "console"
}

// Emit implements alert.Sink.
func (c *Console) Emit(_ context.Context, a domain.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, FormatText(a))
	return err
}

// EmitClosure implements alert.Sink.
func (c *Console) EmitClosure(_ context.Context, cl domain.Closure) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "CLOSED %s  %s alert for %s at %s\n",
		cl.AlertID, cl.Type, cl.Region, cl.ClosedAt.UTC().Format("2006-01-02 15:04"))
	return err
}

// FormatText renders an alert as the banner-framed block used by the
// console sink and the file sink's .txt documents.
func FormatText(a domain.Alert) string {
	var b strings.Builder
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "WEATHER ALERT - %s\n", strings.ToUpper(a.Level.String()))
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "alert:    %s\n", a.ID)
	fmt.Fprintf(&b, "issued:   %s UTC\n", a.IssuedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "event:    %s in %s\n", a.Type, a.Region)
	fmt.Fprintf(&b, "level:    %s (%d)\n", a.Level, a.Level)
	fmt.Fprintf(&b, "severity: %.1f\n", a.SeverityScore)
	fmt.Fprintf(&b, "window:   %s to %s UTC\n",
		a.WindowStart.UTC().Format("2006-01-02 15:04"), a.WindowEnd.UTC().Format("2006-01-02 15:04"))
	if a.Supersedes != "" {
		fmt.Fprintf(&b, "replaces: %s\n", a.Supersedes)
	}
	for _, name := range a.TriggeringValues.Names() {
		fmt.Fprintf(&b, "%s: %.1f\n", name, a.TriggeringValues[name])
	}
	if a.Message != "" {
		b.WriteString(a.Message + "\n")
	}
	b.WriteString(banner + "\n")
	return b.String()
}
