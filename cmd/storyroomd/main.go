// Command storyroomd runs the storyroom session server: the in-memory
// room registry, the turn engine, and the HTTP/WebSocket surface the
// voice pipeline and pollers talk to.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/veilcraft/storyroom/internal/archive"
	"github.com/veilcraft/storyroom/internal/config"
	"github.com/veilcraft/storyroom/internal/game"
	"github.com/veilcraft/storyroom/internal/registry"
	"github.com/veilcraft/storyroom/internal/scenario"
	"github.com/veilcraft/storyroom/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.storyroom/config.yaml)")
	listenAddr := flag.String("listen", "", "listen address override")
	scenarioPath := flag.String("scenario", "", "scenario file override")
	flag.Parse()

	if err := run(*configPath, *listenAddr, *scenarioPath); err != nil {
		fmt.Fprintf(os.Stderr, "storyroomd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr, scenarioPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if scenarioPath != "" {
		cfg.ScenarioPath = scenarioPath
	}

	setupLogging(cfg.LogLevel)

	sc := scenario.Default()
	if cfg.ScenarioPath != "" {
		sc, err = scenario.Load(cfg.ScenarioPath)
		if err != nil {
			return err
		}
	}
	log.Info().
		Str("scenario", sc.Name).
		Int("branches", len(sc.Branches)).
		Msg("Scenario loaded")

	engine, err := game.NewEngine(sc.Branches, cfg.MaxTurns)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.ArchivePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	arch, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer arch.Close()

	reg := registry.New(engine)
	svc := server.New(cfg, reg, engine, sc, arch)

	// Hot reload only applies when a scenario file is in play.
	if cfg.ScenarioPath != "" {
		watcher, err := scenario.NewWatcher(cfg.ScenarioPath, svc.ReloadScenario)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(ctx)
	})

	err = g.Wait()
	log.Info().Int("activeRooms", reg.Len()).Msg("Server stopped")
	return err
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
