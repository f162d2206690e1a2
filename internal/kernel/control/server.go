// Package control implements a single WebSocket control endpoint: it
// broadcasts every dispatched event to connected observers and forwards
// their start/pause/resume/shutdown commands back to the Simulation. It
// never parses simulation state — it is a pure transport, adapted from a
// websocket protocol implementation trimmed to one endpoint with no groups,
// middleware, or message pooling.
package control

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/scarab-sim/scarab/internal/kernel/event"
	"github.com/scarab-sim/scarab/internal/kernel/kerr"
	"github.com/scarab-sim/scarab/internal/observability/log"
	"github.com/scarab-sim/scarab/pkg/concurrent"
	"github.com/scarab-sim/scarab/pkg/sequence"
)

// Config configures the control server's listening address and broadcast
// behavior.
type Config struct {
	Host string
	Port int

	// WriteDeadline bounds a single broadcast write; a client that can't
	// accept a frame within this bound is disconnected.
	WriteDeadline time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:          "localhost",
		Port:          1234,
		WriteDeadline: 2 * time.Second,
	}
}

// Action is a client-submitted control command, forwarded verbatim to the
// Simulation's run loop.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionShutdown Action = "shutdown"
)

type commandFrame struct {
	Action string `json:"action"`
}

// Server is the control channel: one listening socket, one upgrade
// endpoint, broadcasting to every connected client and forwarding their
// commands onto a bounded channel the Simulation reads from.
type Server struct {
	cfg Config
	log log.Log

	upgrader   websocket.Upgrader
	httpServer *http.Server

	clientsMu sync.RWMutex
	clients   map[string]*connection

	commands chan Action

	running int32
}

func New(cfg Config, logger log.Log) *Server {
	return &Server{
		cfg: cfg,
		log: logger.With(log.String("component", "control")),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*connection),
		commands: make(chan Action, 16),
	}
}

// Commands returns the channel of actions received from clients. The
// Simulation's run loop selects on this alongside its pacing timers.
func (s *Server) Commands() <-chan Action {
	return s.commands
}

// Run starts the HTTP/WebSocket listener and blocks until ctx is canceled,
// then shuts the listener down and closes every open connection. It is
// meant to be launched under an errgroup alongside the dispatch loop, as
// the ambient stack section of this repo's design describes.
func (s *Server) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return errors.New("control server already running")
	}
	defer atomic.StoreInt32(&s.running, 0)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("control server listening", log.String("address", addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "control server listen failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(shutdownCtx)

	s.clientsMu.Lock()
	for _, c := range s.clients {
		_ = c.Close()
	}
	s.clients = make(map[string]*connection)
	s.clientsMu.Unlock()

	return <-serveErr
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", log.Error(err))
		return
	}

	c := newConnection(conn, s.cfg.WriteDeadline)
	s.clientsMu.Lock()
	s.clients[c.ID()] = c
	s.clientsMu.Unlock()
	s.log.Info("client connected", log.String("connection_id", c.ID()))

	go s.readLoop(c)
}

// readLoop consumes client frames until disconnect or error. There is no
// retry: on error the connection is removed and closed, exactly per §4.5.
func (s *Server) readLoop(c *connection) {
	defer s.dropClient(c)

	for {
		var frame commandFrame
		if err := c.readJSON(&frame); err != nil {
			return
		}
		s.handleFrame(c, frame)
	}
}

func (s *Server) handleFrame(c *connection, frame commandFrame) {
	switch Action(frame.Action) {
	case ActionStart, ActionPause, ActionResume, ActionShutdown:
		select {
		case s.commands <- Action(frame.Action):
		default:
			s.log.Warn("command channel full, dropping command",
				log.String("connection_id", c.ID()), log.String("action", frame.Action))
		}
	default:
		s.log.Debug("ignoring unrecognized action",
			log.String("connection_id", c.ID()), log.String("action", frame.Action))
	}
}

func (s *Server) dropClient(c *connection) {
	s.clientsMu.Lock()
	delete(s.clients, c.ID())
	s.clientsMu.Unlock()
	_ = c.Close()
	s.log.Info("client disconnected", log.String("connection_id", c.ID()))
}

// Observe implements router.Observer: every dispatched event is broadcast
// here, already serialized once by the Router. Each client gets its own
// bounded-deadline write via pkg/concurrent's fan-out helper; a client that
// can't keep up is disconnected. The caller (the dispatch goroutine) waits
// until every write has finished or hit its deadline, so a slow client
// holds it for at most WriteDeadline per event.
func (s *Server) Observe(_ event.Event, payload []byte) {
	s.clientsMu.RLock()
	clients := make([]*connection, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	if len(clients) == 0 {
		return
	}

	concurrent.ParallelMute(sequence.From(clients), func(c *connection) error {
		if err := c.send(payload); err != nil {
			s.log.Error("dropping slow or broken client", log.Error(&kerr.TransportFault{ConnectionID: c.ID(), Cause: err}))
			s.dropClient(c)
			return err
		}
		return nil
	})
}
