// Command demo runs a headless audio engine over the Dummy backend,
// loads its engine/resolver/logging configuration, optionally plays a
// one-shot through the resolver, and logs diagnostics — a driveable harness for the engine
// rather than a real playback host (there is no real backend wired in;
// see pkg/backend).
package main

import (
	"flag"
	"log/slog"
	"time"

	"github.com/the-byte-bender/Playmaker.Audio/cmd/demo/config"
	"github.com/the-byte-bender/Playmaker.Audio/internal/decoders"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/engine"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/resolver"
)

func main() {
	configFilePath := flag.String("configFilePath", "demo.yaml", "Set the file path to the config file.")
	uri := flag.String("play", "", "A URI or bare path to play as a one-shot on startup.")
	flag.Parse()

	cfg, err := config.Load(*configFilePath)
	if err != nil {
		slog.Error("error loading config", "err", err)
		panic(err)
	}

	logFilePointer, err := configureLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		slog.Error("error configuring logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	be := backend.NewDummy()

	eng, err := engine.New(be, engine.Config{
		PoolCapacity:      cfg.PoolCapacity,
		PreemptionEnabled: cfg.PreemptionEnabled,
		PreemptionMargin:  cfg.PreemptionMargin,
		DefaultScheme:     cfg.DefaultScheme,
	})
	if err != nil {
		slog.Error("error constructing engine", "err", err)
		panic(err)
	}
	defer eng.Close()

	provider := resolver.NewFileProvider(be, decoders.Open, cfg.SearchPaths, cfg.TreatAbsoluteAsRelative, eng.Marshaller().Submit)
	eng.Resolver().Register(provider)

	go func() {
		for d := range eng.Diagnostics() {
			slog.Warn("diagnostic", "kind", d.Kind.String(), "uri", d.URI, "err", d.Err)
		}
	}()

	if *uri != "" {
		eng.PlayOneShot("", *uri)
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	const dt = 0.020
	for range ticker.C {
		eng.Tick(dt)
	}
}
