//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/scarab-sim/scarab/internal/kernel/simulation"
	"github.com/scarab-sim/scarab/internal/observability/log"
)

func ProvideLogger() *log.Logger {
	wire.Build(log.Provide)
	return log.New(log.LevelDebug)
}

func ProvideSimulation(cfg simulation.Config) (*simulation.Simulation, error) {
	wire.Build(ProvideLogger, simulation.New)
	return simulation.New(cfg, nil)
}
