package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scarab-sim/scarab/internal/kernel/clock"
	"github.com/scarab-sim/scarab/internal/kernel/entity"
	"github.com/scarab-sim/scarab/internal/kernel/event"
	"github.com/scarab-sim/scarab/internal/observability/log"
)

type recordingObserver struct {
	names []string
}

func (o *recordingObserver) Observe(ev event.Event, _ []byte) {
	o.names = append(o.names, ev.Name)
}

type thermometer struct {
	Temp int
}

func (t *thermometer) ScarabName() string { return "thermometer" }
func (t *thermometer) Describe() []entity.HandlerBinding {
	return []entity.HandlerBinding{
		{
			Kind: entity.HandlerTimeUpdated,
			Invoke: func(ev event.Event, _ entity.EventSender) error {
				t.Temp++
				return nil
			},
		},
	}
}

func newTestRouter() (*Router, *clock.Clock) {
	logger := log.New(log.LevelDebug)
	clk := clock.New()
	r := New(entity.NewRegistry(), event.NewQueue(), clk, logger)
	return r, clk
}

func TestRegisterSynthesizesCreatedEvent(t *testing.T) {
	r, clk := newTestRouter()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	therm := &thermometer{Temp: 70}
	_, err := r.Register(therm)
	require.NoError(t, err)

	r.DispatchDue(clk.Now())
	require.Contains(t, obs.names, event.NameEntityCreated)
}

func TestTimeUpdatedHandlerCascadesChangedEvent(t *testing.T) {
	r, clk := newTestRouter()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	therm := &thermometer{Temp: 70}
	_, err := r.Register(therm)
	require.NoError(t, err)

	now := clk.Advance()
	require.NoError(t, r.Send(event.Event{Name: event.NameTimeUpdated, SimTime: now}))
	r.DispatchDue(now)

	require.Equal(t, 71, therm.Temp)
	require.Contains(t, obs.names, event.NameTimeUpdated)
	require.Contains(t, obs.names, event.NameEntityChanged)
}

func TestUnregisterSynthesizesDestroyedEvent(t *testing.T) {
	r, clk := newTestRouter()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	therm := &thermometer{Temp: 70}
	id, err := r.Register(therm)
	require.NoError(t, err)
	r.DispatchDue(clk.Now())

	require.NoError(t, r.Unregister(id))
	r.DispatchDue(clk.Now())

	require.Contains(t, obs.names, event.NameEntityDestroyed)
}

func TestHandlerPanicIsAbsorbed(t *testing.T) {
	r, clk := newTestRouter()

	panicker := &panicEntity{}
	_, err := r.Register(panicker)
	require.NoError(t, err)

	now := clk.Advance()
	require.NoError(t, r.Send(event.Event{Name: event.NameTimeUpdated, SimTime: now}))

	require.NotPanics(t, func() { r.DispatchDue(now) })
}

type panicEntity struct{}

func (p *panicEntity) ScarabName() string { return "panicker" }
func (p *panicEntity) Describe() []entity.HandlerBinding {
	return []entity.HandlerBinding{
		{
			Kind: entity.HandlerTimeUpdated,
			Invoke: func(ev event.Event, _ entity.EventSender) error {
				panic("boom")
			},
		},
	}
}

// poker records its own ScarabName into a shared, ordered log whenever it
// receives the "poke" named event.
type poker struct {
	name string
	log  *[]string
}

func (p *poker) ScarabName() string { return p.name }
func (p *poker) Describe() []entity.HandlerBinding {
	return []entity.HandlerBinding{
		{
			Kind:     entity.HandlerNamedEvent,
			Selector: "poke",
			Invoke: func(ev event.Event, _ entity.EventSender) error {
				*p.log = append(*p.log, p.name)
				return nil
			},
		},
	}
}

func newPoker(name string, log *[]string) *poker {
	return &poker{name: name, log: log}
}

func TestNamedEventHandlersRunInRegistrationOrder(t *testing.T) {
	r, clk := newTestRouter()

	var invoked []string
	a := newPoker("a", &invoked)
	b := newPoker("b", &invoked)

	_, err := r.Register(a)
	require.NoError(t, err)
	_, err = r.Register(b)
	require.NoError(t, err)

	now := clk.Advance()
	require.NoError(t, r.Send(event.Event{Name: "poke", SimTime: now}))
	r.DispatchDue(now)

	require.Equal(t, []string{"a", "b"}, invoked)
}

// raiser panics whenever it receives a "poke" event, instead of recording
// anything.
type raiser struct{}

func (r *raiser) ScarabName() string { return "raiser" }
func (r *raiser) Describe() []entity.HandlerBinding {
	return []entity.HandlerBinding{
		{
			Kind:     entity.HandlerNamedEvent,
			Selector: "poke",
			Invoke: func(ev event.Event, _ entity.EventSender) error {
				panic("boom")
			},
		},
	}
}

func TestPanicInMiddleSubscriberDoesNotStopSiblings(t *testing.T) {
	r, clk := newTestRouter()

	var invoked []string
	first := newPoker("first", &invoked)
	third := newPoker("third", &invoked)

	_, err := r.Register(first)
	require.NoError(t, err)
	_, err = r.Register(&raiser{})
	require.NoError(t, err)
	_, err = r.Register(third)
	require.NoError(t, err)

	now := clk.Advance()
	require.NoError(t, r.Send(event.Event{Name: "poke", SimTime: now}))
	require.NotPanics(t, func() { r.DispatchDue(now) })

	require.Equal(t, []string{"first", "third"}, invoked)
}

func TestTargetedEventOnlyInvokesTargetedSubscriber(t *testing.T) {
	r, clk := newTestRouter()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	var invoked []string
	a := newPoker("a", &invoked)
	b := newPoker("b", &invoked)

	idA, err := r.Register(a)
	require.NoError(t, err)
	_, err = r.Register(b)
	require.NoError(t, err)

	now := clk.Advance()
	require.NoError(t, r.Send(event.Event{Name: "poke", SimTime: now, TargetID: idA}))
	r.DispatchDue(now)

	require.Equal(t, []string{"a"}, invoked)

	count := 0
	for _, name := range obs.names {
		if name == "poke" {
			count++
		}
	}
	require.Equal(t, 1, count)
}
