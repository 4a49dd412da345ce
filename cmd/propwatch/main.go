package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tailored-agentic-units/propwatch/observability"
	"github.com/tailored-agentic-units/propwatch/property"
	"github.com/tailored-agentic-units/propwatch/watch"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to watcher config JSON or YAML file (optional)")
		observing  = flag.Bool("observing", true, "Start observing immediately (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := watch.DefaultConfig()
	if *configFile != "" {
		loaded, err := watch.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "observing" {
			cfg.Observing = *observing
		}
	})

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetricsObserver(reg)
	if err != nil {
		log.Fatalf("Failed to create metrics observer: %v", err)
	}

	base := observability.NewSlogObserver(logger)
	if cfg.Observer != "" && cfg.Observer != "slog" {
		named, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			log.Fatalf("Failed to resolve observer: %v", err)
		}
		observability.RegisterObserver("propwatch", observability.NewMultiObserver(named, metrics))
	} else {
		observability.RegisterObserver("propwatch", observability.NewMultiObserver(base, metrics))
	}
	cfg.Observer = "propwatch"

	shape := property.NewObject(map[string]any{"length": 0.0, "name": ""})
	counts := map[string]int{}
	handler := func(key string) watch.Handler {
		return func(old, new any) {
			counts[key]++
			fmt.Printf("%-6s %v -> %v\n", key, old, new)
		}
	}

	w, err := watch.NewFromConfig(shape, watch.Events{"length": handler("length")}, &cfg)
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Close()

	w.SetObserving(true)
	for _, v := range []float64{2, 4, 7, 9, 12, 5, -8, 200} {
		shape.Set("length", v)
	}

	for _, v := range []string{"Peter", "Paul", "Mary"} {
		shape.Set("name", v)
	}
	w.Add(watch.Events{"name": handler("name")})
	shape.Set("name", "Christopher")
	shape.Set("name", "Billy")

	w.SetObserving(false)
	shape.Set("length", 1.0)
	shape.Set("name", "Nobody")

	var final struct {
		Length float64
		Name   string
	}
	if err := shape.Decode(&final); err != nil {
		log.Fatalf("Failed to decode shape: %v", err)
	}

	fmt.Printf("\nDispatches: length=%d name=%d\n", counts["length"], counts["name"])
	fmt.Printf("Final shape: length=%v name=%q\n", final.Length, final.Name)

	families, err := reg.Gather()
	if err != nil {
		log.Fatalf("Failed to gather metrics: %v", err)
	}
	fmt.Println("\nEvents:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			fmt.Printf("  %-18s %v\n", labels["type"], m.GetCounter().GetValue())
		}
	}
}
