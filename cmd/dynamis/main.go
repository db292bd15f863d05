// Command dynamis runs the audio engine core with a handful of demo events,
// useful for exercising the scheduler and the output backends end to end.
package main

import (
	"context"
	"flag"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ljramones/dynamis-audio/internal/log"
	"github.com/ljramones/dynamis-audio/pkg/acoustics"
	"github.com/ljramones/dynamis-audio/pkg/audioio"
	"github.com/ljramones/dynamis-audio/pkg/emitter"
	"github.com/ljramones/dynamis-audio/pkg/engine"
	"github.com/ljramones/dynamis-audio/pkg/events"
	"github.com/ljramones/dynamis-audio/pkg/monitor"
	"github.com/ljramones/dynamis-audio/pkg/rtpc"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file (defaults used when empty)")
		backend     = flag.String("sink", "", "override output backend: oto, wav, mock")
		wavPath     = flag.String("out", "dynamis.wav", "output path for the wav backend")
		monitorPort = flag.String("monitor", "", "monitor HTTP port (disabled when empty)")
		duration    = flag.Duration("duration", 10*time.Second, "how long to run")
	)
	flag.Parse()

	cfg := engine.DefaultConfig()
	if *configPath != "" {
		loaded, err := engine.LoadConfig(*configPath)
		if err != nil {
			log.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *backend != "" {
		cfg.Output.Backend = audioio.Backend(*backend)
	}
	if cfg.Output.Backend == audioio.BackendWav && cfg.Output.Path == "" {
		cfg.Output.Path = *wavPath
	}

	log.Init(cfg.LogLevel)

	registry := events.NewRegistry()
	registerDemoEvents(registry)

	provider := &acoustics.StaticProvider{In: acoustics.Inputs{
		DistanceFactor: 0.8,
		Audibility:     0.9,
	}}

	sink, err := audioio.NewSink(cfg.Output, log.L())
	if err != nil {
		log.Error("create sink", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(cfg, registry, provider, sink)
	if err != nil {
		log.Error("create engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		log.Error("start engine", "error", err)
		os.Exit(1)
	}

	var mon *monitor.Server
	if *monitorPort != "" {
		mon = monitor.NewServer(*monitorPort, eng)
		go func() {
			if err := mon.Start(); err != nil {
				log.Error("monitor", "error", err)
			}
		}()
	}

	go demoScene(ctx, eng)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("interrupted")
	case <-time.After(*duration):
	}

	cancel()
	if mon != nil {
		_ = mon.Shutdown()
	}
	if err := eng.Stop(); err != nil {
		log.Error("stop engine", "error", err)
	}
}

// registerDemoEvents loads a small authored set covering the importance
// classes and RTPC bindings.
func registerDemoEvents(r *events.Registry) {
	defs := []*events.Definition{
		{
			Name:       "ambience_wind",
			Gain:       0.4,
			Pitch:      1.0,
			Looping:    true,
			Tag:        "ambience",
			Importance: emitter.ImportanceLow,
		},
		{
			Name:       "footstep",
			Gain:       0.7,
			Pitch:      1.0,
			Tag:        "foley",
			Importance: emitter.ImportanceMedium,
			Bindings: []rtpc.Binding{
				{Param: "surface_hardness", Target: rtpc.TargetMasterGain, Curve: rtpc.CurveSqrt},
			},
		},
		{
			Name:       "engine_rumble",
			Gain:       0.8,
			Pitch:      1.0,
			Looping:    true,
			Tag:        "vehicles",
			Importance: emitter.ImportanceHigh,
			Bindings: []rtpc.Binding{
				{Param: "rpm", Target: rtpc.TargetPitchMultiplier, Curve: rtpc.CurveLinear},
				{Param: "rpm", Target: rtpc.TargetMasterGain, Curve: rtpc.CurveSquared},
			},
		},
		{
			Name:       "vo_objective",
			Gain:       1.0,
			Pitch:      1.0,
			Tag:        "voice",
			Importance: emitter.ImportanceCritical,
		},
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			log.Warn("register event", "name", def.Name, "error", err)
		}
	}
}

// demoScene triggers a few sounds and sweeps an RTPC value.
func demoScene(ctx context.Context, eng *engine.Engine) {
	wind, err := eng.Trigger("ambience_wind", 0, 0, 0)
	if err != nil {
		return
	}
	rumble, err := eng.Trigger("engine_rumble", 5, 0, 2)
	if err != nil {
		return
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			eng.Destroy(wind)
			eng.Destroy(rumble)
			return
		case <-ticker.C:
			t := time.Since(start).Seconds()
			// Sweep the rpm control up and down.
			rpm := 0.5 + 0.5*math.Sin(t/3)
			eng.SetParam(rumble, "rpm", rpm)
			eng.UpdatePosition(rumble, 5+3*math.Cos(t), 0, 2+3*math.Sin(t))
		}
	}
}
