// Package eventlog implements an optional secondary observer: a filtered,
// one-JSON-line-per-event side channel wired into the Router alongside the
// Control Server.
package eventlog

import (
	"bytes"
	"io"
	"sync"

	"github.com/scarab-sim/scarab/internal/kernel/event"
	"github.com/scarab-sim/scarab/internal/observability/log"
	"github.com/scarab-sim/scarab/pkg/generic"
)

// Filter controls which event families this logger admits.
type Filter struct {
	IncludeEntityLifecycle bool
	IncludeTime            bool
	IncludeNamed           bool
}

// Logger writes one JSON line per admitted event to w. Open and write
// failures are logged but never propagate — the simulation is never
// stopped by logging errors.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	filter Filter
	log    log.Log

	bufPool *generic.Pool[*bytes.Buffer]
}

func New(w io.Writer, filter Filter, logger log.Log) *Logger {
	return &Logger{
		w:      w,
		filter: filter,
		log:    logger.With(log.String("component", "eventlog")),
		bufPool: generic.NewPool(func() *bytes.Buffer {
			return new(bytes.Buffer)
		}),
	}
}

// Observe implements router.Observer.
func (l *Logger) Observe(ev event.Event, payload []byte) {
	if !l.admits(ev) {
		return
	}

	buf := l.bufPool.Get()
	buf.Reset()
	buf.Write(payload)
	buf.WriteByte('\n')

	l.mu.Lock()
	_, err := l.w.Write(buf.Bytes())
	l.mu.Unlock()

	l.bufPool.Put(buf)

	if err != nil {
		l.log.Error("event logger write failed", log.Error(err))
	}
}

func (l *Logger) admits(ev event.Event) bool {
	switch ev.Name {
	case event.NameEntityCreated, event.NameEntityChanged, event.NameEntityDestroyed:
		return l.filter.IncludeEntityLifecycle
	case event.NameTimeUpdated:
		return l.filter.IncludeTime
	case event.NameSimulationShutdown:
		return true
	default:
		return l.filter.IncludeNamed
	}
}
