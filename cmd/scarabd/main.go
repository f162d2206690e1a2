package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scarab-sim/scarab/internal/injector"
	"github.com/scarab-sim/scarab/internal/kernel/simulation"
	"github.com/scarab-sim/scarab/internal/observability/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON simulation config file")
	flag.Parse()

	cfg := simulation.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			fmt.Println("error loading config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	sim, err := injector.ProvideSimulation(cfg)
	if err != nil {
		fmt.Println("error constructing simulation:", err)
		os.Exit(1)
	}

	logger := injector.ProvideLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, os.Kill, syscall.SIGTERM, syscall.SIGINT)

	runErr := make(chan error, 1)
	go func() {
		runErr <- sim.Run(ctx)
	}()

	select {
	case <-stopCh:
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			logger.Error("simulation run exited with error", log.Error(err))
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (simulation.Config, error) {
	if isJSON(path) {
		return simulation.LoadJSON(path)
	}
	return simulation.LoadYAML(path)
}

func isJSON(path string) bool {
	return len(path) > 5 && path[len(path)-5:] == ".json"
}
