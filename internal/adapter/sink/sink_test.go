package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

func sampleAlert() domain.Alert {
	issued := time.Date(2024, 7, 12, 12, 0, 0, 0, time.UTC)
	return domain.Alert{
		ID:            "heavy_rain-abc123",
		Region:        "xuancheng",
		Type:          domain.EventHeavyRain,
		Level:         domain.LevelOrange,
		SeverityScore: 3,
		WindowStart:   issued.Add(-4 * time.Hour),
		WindowEnd:     issued.Add(-1 * time.Hour),
		TriggeringValues: domain.Parameters{
			domain.ParamPrecipitationRate: 72.5,
		},
		IssuedAt: issued,
		Message:  "ORANGE heavy_rain alert for xuancheng: severity 3.0",
	}
}

func TestFormatText(t *testing.T) {
	out := FormatText(sampleAlert())

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 10)
	assert.Equal(t, strings.Repeat("=", 60), lines[0])
	assert.Equal(t, "WEATHER ALERT - ORANGE", lines[1])
	assert.Equal(t, strings.Repeat("=", 60), lines[2])
	assert.Equal(t, strings.Repeat("=", 60), lines[len(lines)-1])

	assert.Contains(t, out, "alert:    heavy_rain-abc123")
	assert.Contains(t, out, "issued:   2024-07-12 12:00 UTC")
	assert.Contains(t, out, "event:    heavy_rain in xuancheng")
	assert.Contains(t, out, "level:    orange (3)")
	assert.Contains(t, out, "severity: 3.0")
	assert.Contains(t, out, "window:   2024-07-12 08:00 to 2024-07-12 11:00 UTC")
	assert.Contains(t, out, "precipitation_rate: 72.5")
	assert.Contains(t, out, "ORANGE heavy_rain alert for xuancheng: severity 3.0")
	assert.NotContains(t, out, "replaces:")
}

func TestFormatText_Escalation(t *testing.T) {
	a := sampleAlert()
	a.ID = "heavy_rain-def456"
	a.Level = domain.LevelRed
	a.Supersedes = "heavy_rain-abc123"

	out := FormatText(a)
	assert.Contains(t, out, "WEATHER ALERT - RED")
	assert.Contains(t, out, "replaces: heavy_rain-abc123")
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	require.Equal(t, "console", c.Name())

	require.NoError(t, c.Emit(context.Background(), sampleAlert()))
	assert.Equal(t, FormatText(sampleAlert()), buf.String())

	buf.Reset()
	cl := domain.Closure{
		AlertID:  "heavy_rain-abc123",
		Region:   "xuancheng",
		Type:     domain.EventHeavyRain,
		ClosedAt: time.Date(2024, 7, 12, 14, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.EmitClosure(context.Background(), cl))
	assert.Contains(t, buf.String(), "CLOSED heavy_rain-abc123")
	assert.Contains(t, buf.String(), "2024-07-12 14:00")
}

func TestFileSink_WritesDocumentAndText(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(filepath.Join(dir, "alerts"))
	require.Equal(t, "file", f.Name())

	a := sampleAlert()
	require.NoError(t, f.Emit(context.Background(), a))

	data, err := os.ReadFile(filepath.Join(dir, "alerts", "heavy_rain-abc123.json"))
	require.NoError(t, err)

	var got domain.Alert
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.Level, got.Level)
	assert.Equal(t, a.Message, got.Message)

	txt, err := os.ReadFile(filepath.Join(dir, "alerts", "heavy_rain-abc123.txt"))
	require.NoError(t, err)
	assert.Equal(t, FormatText(a), string(txt))
}

func TestFileSink_RewriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir)

	a := sampleAlert()
	require.NoError(t, f.Emit(context.Background(), a))
	require.NoError(t, f.Emit(context.Background(), a))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "same alert twice writes one document and one text file")
}

func TestFileSink_AppendsClosures(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir)

	cl := domain.Closure{
		AlertID:  "typhoon-def456",
		Region:   "xuanzhou",
		Type:     domain.EventTyphoon,
		ClosedAt: time.Date(2024, 7, 12, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.EmitClosure(context.Background(), cl))
	require.NoError(t, f.EmitClosure(context.Background(), cl))

	data, err := os.ReadFile(filepath.Join(dir, "closures.log"))
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var got domain.Closure
	require.NoError(t, json.Unmarshal(lines[0], &got))
	assert.Equal(t, "typhoon-def456", got.AlertID)
	assert.Equal(t, "xuanzhou", got.Region)
}
