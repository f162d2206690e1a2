// Package simulation owns the clock, queue, registry, router, and control
// server, and runs the stepping loop: the pause/resume/shutdown state
// machine with wall-clock pacing.
package simulation

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/scarab-sim/scarab/internal/kernel/clock"
	"github.com/scarab-sim/scarab/internal/kernel/control"
	"github.com/scarab-sim/scarab/internal/kernel/entity"
	"github.com/scarab-sim/scarab/internal/kernel/event"
	"github.com/scarab-sim/scarab/internal/kernel/eventlog"
	"github.com/scarab-sim/scarab/internal/kernel/router"
	"github.com/scarab-sim/scarab/internal/observability/log"
)

// Simulation is the top-level container: it owns a clock, the event queue,
// the entity registry, the router, and (unless headless) the control
// server, and drives the stepping loop.
type Simulation struct {
	cfg Config
	log log.Log

	clk      *clock.Clock
	queue    *event.Queue
	registry *entity.Registry
	router   *router.Router
	server   *control.Server

	state         stateMachine
	localCommands chan control.Action
}

// New validates cfg and wires every kernel component together, mirroring
// the teacher's constructor-does-the-wiring pattern (NewWebSocketProtocol,
// NewServer). A ConfigurationError here is fatal — callers should not
// attempt to run a Simulation that failed to construct.
func New(cfg Config, logger log.Log) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := clock.New()
	queue := event.NewQueue()
	registry := entity.NewRegistry()
	rtr := router.New(registry, queue, clk, logger)

	sim := &Simulation{
		cfg:           cfg,
		log:           logger.With(log.String("component", "simulation")),
		clk:           clk,
		queue:         queue,
		registry:      registry,
		router:        rtr,
		localCommands: make(chan control.Action, 16),
	}

	if !cfg.Headless {
		srv := control.New(control.Config{Host: cfg.Host, Port: cfg.Port, WriteDeadline: 2 * time.Second}, logger)
		rtr.AddObserver(srv)
		sim.server = srv
	}

	if cfg.EventLogger != nil {
		dest, err := openEventLogDestination(cfg.EventLogger.Path)
		if err != nil {
			sim.log.Error("failed to open event log destination, continuing without it", log.Error(err))
		} else {
			rtr.AddObserver(eventlog.New(dest, cfg.EventLogger.Filter, logger))
		}
	}

	return sim, nil
}

func openEventLogDestination(path string) (io.Writer, error) {
	if path == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open event log file")
	}
	return f, nil
}

// Register registers e with the router, synthesizing a created event.
func (s *Simulation) Register(e entity.Entity) (event.EntityID, error) {
	return s.router.Register(e)
}

// Unregister removes e, synthesizing a destroyed event.
func (s *Simulation) Unregister(id event.EntityID) error {
	return s.router.Unregister(id)
}

// SendEvent is the entity-facing convenience described in the design
// notes' supplemented send_event feature: an externally submitted event
// with no explicit SimTime defaults to the next tick rather than "now",
// since from outside a handler there is no current tick in progress to
// cascade within. Handlers themselves receive the Router directly as an
// entity.EventSender, whose Send defaults to "now" for same-tick cascades.
func (s *Simulation) SendEvent(ev event.Event) error {
	if ev.SimTime == 0 {
		ev.SimTime = s.clk.Now() + 1
	}
	return s.router.Send(ev)
}

// Submit delivers a control action in-process, without going through the
// network control channel. Used by headless/test-harness configurations
// and by anything embedding a Simulation directly.
func (s *Simulation) Submit(a control.Action) error {
	select {
	case s.localCommands <- a:
		return nil
	default:
		return errors.New("command channel full")
	}
}

// State returns the Simulation's current lifecycle state.
func (s *Simulation) State() State {
	return s.state.get()
}

// Run drives the stepping loop until the configured step count is reached
// or a shutdown command arrives, coordinating the dispatch loop and (when
// not headless) the control server's accept/broadcast loop under one
// context via errgroup — a failure in either propagates cancellation to
// the other without the dispatch loop depending on the errgroup for its
// own pacing.
func (s *Simulation) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)

	if s.server != nil {
		g.Go(func() error {
			err := s.server.Run(gCtx)
			cancel()
			return err
		})
	}

	g.Go(func() error {
		defer cancel()
		return s.dispatchLoop(gCtx)
	})

	return g.Wait()
}

func (s *Simulation) commandChan() <-chan control.Action {
	return s.localCommands
}

func (s *Simulation) networkCommandChan() <-chan control.Action {
	if s.server == nil {
		return nil
	}
	return s.server.Commands()
}

func (s *Simulation) nextCommand(ctx context.Context) (control.Action, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case cmd := <-s.commandChan():
		return cmd, true
	case cmd, ok := <-s.networkCommandChan():
		if !ok {
			return "", false
		}
		return cmd, true
	}
}

func (s *Simulation) drainCommandsNonBlocking() {
	for {
		select {
		case cmd := <-s.commandChan():
			s.handleCommand(cmd)
		case cmd, ok := <-s.networkCommandChan():
			if ok {
				s.handleCommand(cmd)
				continue
			}
			return
		default:
			return
		}
	}
}

func (s *Simulation) handleCommand(a control.Action) {
	switch a {
	case control.ActionStart:
		s.state.transitionIf(StateRunning, StateReady)
	case control.ActionPause:
		s.state.transitionIf(StatePaused, StateRunning)
	case control.ActionResume:
		s.state.transitionIf(StateRunning, StatePaused)
	case control.ActionShutdown:
		s.state.transitionIf(StateShuttingDown, StateReady, StateRunning, StatePaused)
	default:
		s.log.Debug("ignoring unrecognized command", log.String("action", string(a)))
	}
}

// dispatchLoop runs the tick algorithm: check state, check the step limit,
// advance the clock, emit and drain time.updated, then pace to the
// configured step length. It is the single logical dispatch executor: it
// alone owns the clock, the queue, the subscriber index, and the broadcast
// call into the control server.
func (s *Simulation) dispatchLoop(ctx context.Context) error {
	if s.cfg.StartPaused {
		s.state.set(StatePaused)
	} else {
		s.state.set(StateRunning)
	}

	for {
		switch s.state.get() {
		case StatePaused:
			cmd, ok := s.nextCommand(ctx)
			if !ok {
				return ctx.Err()
			}
			s.handleCommand(cmd)
			continue
		case StateShuttingDown:
			s.terminate()
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// number_steps = 0 means no step ever runs: terminate immediately
		// with only the shutdown event and no time.updated.
		if uint64(s.clk.Now()) >= s.cfg.NumberSteps {
			s.terminate()
			return nil
		}

		stepStart := time.Now()
		t := s.clk.Advance()

		if err := s.router.Send(event.Event{
			Name:    event.NameTimeUpdated,
			SimTime: t,
			Payload: map[string]any{"previous_time": t - 1},
		}); err != nil {
			s.log.Error("fatal: failed to enqueue time.updated", log.Error(err))
			s.terminate()
			return err
		}

		s.router.DispatchDue(t)
		s.drainCommandsNonBlocking()

		if remaining := s.cfg.StepLength - time.Since(stepStart); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

func (s *Simulation) terminate() {
	now := s.clk.Now()
	_ = s.router.Send(event.Event{Name: event.NameSimulationShutdown, SimTime: now})
	s.router.DispatchDue(now)
	s.state.set(StateTerminated)
}
