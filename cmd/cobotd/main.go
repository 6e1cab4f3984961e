// cobotd - actuator-side gesture server
//
// cobotd runs next to a robot arm. It accepts the Nebula actuator link over
// WebSocket, maps each incoming signal to a gesture and plays it. The
// shipped executor is a dry run that logs each pose.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/nebula-core/internal/cobot"
	"github.com/nerrad567/nebula-core/internal/infrastructure/config"
	"github.com/nerrad567/nebula-core/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml (overrides NEBULA_CONFIG)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	if configPath == "" {
		configPath = os.Getenv("NEBULA_CONFIG")
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Defaults()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, "cobotd", version)

	exec := cobot.NewLogExecutor(time.Duration(cfg.Cobot.StepDelay)*time.Millisecond, log.Component("executor"))
	runner := cobot.NewRunner(exec, time.Duration(cfg.Cobot.StopTimeout)*time.Second)
	runner.SetLogger(log.Component("runner"))

	server := cobot.NewServer(cfg.Cobot.Name, runner)
	server.SetLogger(log.Component("server"))

	addr := fmt.Sprintf("%s:%d", cfg.Cobot.Host, cfg.Cobot.Port)
	log.Info("starting cobotd", "version", version, "address", addr, "robot", cfg.Cobot.Name)

	if err := server.ListenAndServe(ctx, addr); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	log.Info("cobotd stopped", "gestures_played", runner.Played())
	return nil
}
