package task

import (
	"fmt"
	"strings"
)

// Descriptor binds a handler to the predicate that selects it.
type Descriptor struct {
	ID      string    // stable identifier, e.g. "count-weekday"
	Label   string    // task label reported in envelopes, e.g. "A3"
	Match   Predicate // evaluated over lowercased text
	Handler Handler
}

// Registry is an ordered list of descriptors. It is filled once at startup
// and only read afterwards; lookups from concurrent requests need no lock
// because nothing mutates it once the dispatcher is serving.
type Registry struct {
	descriptors []Descriptor
	ids         map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids: make(map[string]struct{}),
	}
}

// Register appends a handler. Its position in the list is its priority.
func (r *Registry) Register(id, label string, match Predicate, h Handler) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("handler id is empty")
	}
	if match == nil {
		return fmt.Errorf("handler %s: nil predicate", id)
	}
	if h == nil {
		return fmt.Errorf("handler %s: nil handler", id)
	}
	if _, dup := r.ids[id]; dup {
		return fmt.Errorf("handler %s already registered", id)
	}
	if label == "" {
		label = id
	}
	r.ids[id] = struct{}{}
	r.descriptors = append(r.descriptors, Descriptor{
		ID:      id,
		Label:   label,
		Match:   match,
		Handler: h,
	})
	return nil
}

// Lookup returns the first descriptor whose predicate matches text.
func (r *Registry) Lookup(text string) (Descriptor, bool) {
	lower := strings.ToLower(text)
	for _, d := range r.descriptors {
		if d.Match(lower) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Descriptors returns a copy of the registration list in match order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.descriptors)
}
