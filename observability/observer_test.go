package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tailored-agentic-units/propwatch/observability"
)

type captureObserver struct {
	events []observability.Event
}

func (c *captureObserver) OnEvent(_ context.Context, event observability.Event) {
	c.events = append(c.events, event)
}

func testEvent(t observability.EventType, level observability.Level) observability.Event {
	return observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "watch",
		Data:      map[string]any{"key": "length"},
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  string
	}{
		{level: 1, want: "TRACE"},
		{level: observability.LevelVerbose, want: "DEBUG"},
		{level: observability.LevelInfo, want: "INFO"},
		{level: observability.LevelWarning, want: "WARN"},
		{level: observability.LevelError, want: "ERROR"},
		{level: 24, want: "FATAL"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  slog.Level
	}{
		{level: observability.LevelVerbose, want: slog.LevelDebug},
		{level: observability.LevelInfo, want: slog.LevelInfo},
		{level: observability.LevelWarning, want: slog.LevelWarn},
		{level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		if got := tt.level.SlogLevel(); got != tt.want {
			t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestMultiObserver_FanOutSkipsNil(t *testing.T) {
	a, b := &captureObserver{}, &captureObserver{}
	multi := observability.NewMultiObserver(a, nil, b)

	multi.OnEvent(context.Background(), testEvent("watch.dispatch", observability.LevelInfo))

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("received (%d, %d) events, want (1, 1)", len(a.events), len(b.events))
	}
}

func TestLevelFilter(t *testing.T) {
	next := &captureObserver{}
	filter := observability.LevelFilter{Min: observability.LevelWarning, Next: next}

	filter.OnEvent(context.Background(), testEvent("watch.dispatch", observability.LevelVerbose))
	filter.OnEvent(context.Background(), testEvent("watch.forward", observability.LevelWarning))
	observability.LevelFilter{Min: observability.LevelVerbose}.OnEvent(context.Background(), testEvent("x", observability.LevelError))

	if len(next.events) != 1 || next.events[0].Type != "watch.forward" {
		t.Errorf("events = %+v, want only watch.forward", next.events)
	}
}

func TestSlogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	obs := observability.NewSlogObserver(logger)

	obs.OnEvent(context.Background(), testEvent("watch.dispatch", observability.LevelVerbose))
	if buf.Len() != 0 {
		t.Fatalf("debug event logged at info level: %q", buf.String())
	}

	obs.OnEvent(context.Background(), testEvent("watch.forward", observability.LevelWarning))
	out := buf.String()
	for _, want := range []string{"level=WARN", "msg=watch.forward", "source=watch", "key=length"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := observability.NewMetricsObserver(reg)
	if err != nil {
		t.Fatalf("NewMetricsObserver() failed: %v", err)
	}

	obs.OnEvent(context.Background(), testEvent("watch.dispatch", observability.LevelVerbose))
	obs.OnEvent(context.Background(), testEvent("watch.dispatch", observability.LevelVerbose))
	obs.OnEvent(context.Background(), testEvent("watch.forward", observability.LevelWarning))

	if got := testutil.ToFloat64(obs.Counter().WithLabelValues("watch.dispatch", "watch")); got != 2 {
		t.Errorf("dispatch count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(obs.Counter().WithLabelValues("watch.forward", "watch")); got != 1 {
		t.Errorf("forward count = %v, want 1", got)
	}
}

func TestMetricsObserver_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := observability.NewMetricsObserver(reg)
	if err != nil {
		t.Fatalf("first NewMetricsObserver() failed: %v", err)
	}
	second, err := observability.NewMetricsObserver(reg)
	if err != nil {
		t.Fatalf("second NewMetricsObserver() failed: %v", err)
	}

	first.OnEvent(context.Background(), testEvent("watch.create", observability.LevelVerbose))
	second.OnEvent(context.Background(), testEvent("watch.create", observability.LevelVerbose))

	if got := testutil.ToFloat64(first.Counter().WithLabelValues("watch.create", "watch")); got != 2 {
		t.Errorf("shared count = %v, want 2", got)
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"noop", "slog"} {
		if obs, err := observability.GetObserver(name); err != nil || obs == nil {
			t.Errorf("GetObserver(%q) = %v, %v; want builtin", name, obs, err)
		}
	}

	if _, err := observability.GetObserver("nonexistent"); !errors.Is(err, observability.ErrUnknownObserver) {
		t.Errorf("GetObserver(nonexistent) error = %v, want %v", err, observability.ErrUnknownObserver)
	}

	custom := &captureObserver{}
	observability.RegisterObserver("registry-test", custom)
	obs, err := observability.GetObserver("registry-test")
	if err != nil {
		t.Fatalf("GetObserver(registry-test) failed: %v", err)
	}
	obs.OnEvent(context.Background(), testEvent("watch.close", observability.LevelInfo))
	if len(custom.events) != 1 {
		t.Errorf("custom observer received %d events, want 1", len(custom.events))
	}
}
