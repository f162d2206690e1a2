package entity

import (
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/scarab-sim/scarab/internal/kernel/event"
	"github.com/scarab-sim/scarab/internal/kernel/kerr"
)

// Descriptor is what registration records about one entity: its assigned
// id, its domain-level name tag, its handler bindings, and the ordered set
// of property names tracked for change detection.
type Descriptor struct {
	ID           event.EntityID
	ScarabName   string
	ConformsTo   string
	Handlers     []HandlerBinding
	PropertySpec []string

	entity Entity
}

// Registry assigns ids, stores entity references, and records each
// entity's declared handler bindings and tracked property set. It does not
// dispatch events itself — that's the Router's job; the Registry only
// builds EntityDescriptor/EntityView material for it to use.
type Registry struct {
	mu         sync.RWMutex
	byID       map[event.EntityID]*Descriptor
	registered map[Entity]event.EntityID
}

func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[event.EntityID]*Descriptor),
		registered: make(map[Entity]event.EntityID),
	}
}

// Register inspects e once, assigns it a fresh id, and records its
// descriptor. Registering the same entity value twice is a
// RegistrationError.
func (r *Registry) Register(e Entity) (event.EntityID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.registered[e]; ok {
		return existing, &kerr.RegistrationError{Reason: "entity already registered", EntityID: string(existing)}
	}

	propertySpec, conformsTo, err := r.buildPropertySpec(e)
	if err != nil {
		return "", err
	}

	id := event.EntityID(uuid.New().String())
	desc := &Descriptor{
		ID:           id,
		ScarabName:   e.ScarabName(),
		ConformsTo:   conformsTo,
		Handlers:     e.Describe(),
		PropertySpec: propertySpec,
		entity:       e,
	}

	r.byID[id] = desc
	r.registered[e] = id
	return id, nil
}

// Unregister removes an entity's descriptor and returns it so the caller
// (the Router) can synthesize a destroyed event with the last-known view.
func (r *Registry) Unregister(id event.EntityID) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.byID[id]
	if !ok {
		return nil, &kerr.RegistrationError{Reason: "unknown entity id", EntityID: string(id)}
	}

	delete(r.byID, id)
	delete(r.registered, desc.entity)
	return desc, nil
}

// Get returns the descriptor for id, if registered.
func (r *Registry) Get(id event.EntityID) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.byID[id]
	return desc, ok
}

// All returns every currently registered descriptor. The order is
// unspecified; callers that need registration order should track it
// themselves (the Router's subscriber lists do).
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.byID))
	for _, desc := range r.byID {
		out = append(out, desc)
	}
	return out
}

// Snapshot shallow-copies an entity's tracked properties by reflection:
// primitives and collection headers are copied by value, pointers/maps/
// slices are copied by interface identity. Mutating through a copied slice
// header or pointer therefore does not change what was snapshotted at the
// top level: only a reassignment of the property itself is visible as a
// change.
func (r *Registry) Snapshot(id event.EntityID) (map[string]any, bool) {
	r.mu.RLock()
	desc, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return snapshotFields(desc.entity, desc.PropertySpec), true
}

// View builds the wire EntityView for a registered entity using its
// current field values.
func (r *Registry) View(id event.EntityID) (View, bool) {
	r.mu.RLock()
	desc, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return View{}, false
	}
	return r.viewFor(desc), true
}

func (r *Registry) viewFor(desc *Descriptor) View {
	var props map[string]any
	if vp, ok := desc.entity.(ViewProvider); ok {
		props = vp.PublicView()
	} else {
		props = snapshotFields(desc.entity, desc.PropertySpec)
	}
	return View{
		ScarabName: desc.ScarabName,
		ScarabID:   desc.ID,
		ConformsTo: desc.ConformsTo,
		Properties: props,
	}
}

// buildPropertySpec computes the ordered set of public, data-valued field
// names to track, and validates + names any declared conforms-to shape.
func (r *Registry) buildPropertySpec(e Entity) ([]string, string, error) {
	rv := reflect.Indirect(reflect.ValueOf(e))
	if rv.Kind() != reflect.Struct {
		return nil, "", &kerr.RegistrationError{Reason: "entity must be a struct or pointer to struct"}
	}
	rt := rv.Type()

	allFields := exportedFieldNames(rt)

	conformer, hasConformer := e.(Conformer)
	if !hasConformer {
		return allFields, "", nil
	}

	shape := conformer.ConformsTo()
	shapeType := reflect.TypeOf(shape)
	if shapeType != nil && shapeType.Kind() == reflect.Ptr {
		shapeType = shapeType.Elem()
	}
	if shapeType == nil || shapeType.Kind() != reflect.Struct {
		return nil, "", &kerr.RegistrationError{Reason: "conforms-to shape must be a struct"}
	}

	wanted := exportedFieldNames(shapeType)
	have := make(map[string]struct{}, len(allFields))
	for _, name := range allFields {
		have[name] = struct{}{}
	}
	for _, name := range wanted {
		if _, ok := have[name]; !ok {
			return nil, "", &kerr.RegistrationError{Reason: "entity does not conform to declared shape: missing field " + name}
		}
	}

	return wanted, shapeType.Name(), nil
}

// exportedFieldNames returns the names of rt's exported, data-valued
// fields in declaration order.
func exportedFieldNames(rt reflect.Type) []string {
	names := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.IsExported() {
			names = append(names, f.Name)
		}
	}
	return names
}

// snapshotFields reads the named fields off entity (a struct or pointer to
// struct) into a map, by reflection.
func snapshotFields(entity Entity, names []string) map[string]any {
	rv := reflect.Indirect(reflect.ValueOf(entity))
	out := make(map[string]any, len(names))
	for _, name := range names {
		field := rv.FieldByName(name)
		if field.IsValid() {
			out[name] = field.Interface()
		}
	}
	return out
}
