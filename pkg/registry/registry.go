// Package registry is the process-wide map of registered node types, and
// the live node instance registry built from a loaded configuration. Grounded on pkg/policy/registry.go's Register/Lookup/
// RegisteredTypes shape and its panic-on-duplicate-registration policy.
package registry

import (
	"fmt"
	"sync"

	"github.com/villas-project/villasnode-go/pkg/api"
	"github.com/villas-project/villasnode-go/pkg/node"
)

var (
	typesMu sync.RWMutex
	types   = map[string]node.Factory{}
)

// RegisterType adds a node-type factory to the global registry under
// name. Panics if name is already registered — the same duplicate-
// registration policy pkg/hook.Register and the teacher's
// pkg/policy/registry.go use for their own factory maps.
func RegisterType(name string, factory node.Factory) {
	typesMu.Lock()
	defer typesMu.Unlock()
	if _, exists := types[name]; exists {
		panic("registry: duplicate node type registration for " + name)
	}
	types[name] = factory
}

// LookupType returns the factory registered under name, if any.
func LookupType(name string) (node.Factory, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	f, ok := types[name]
	return f, ok
}

// RegisteredTypes returns the names of every registered node type.
func RegisteredTypes() []string {
	typesMu.RLock()
	defer typesMu.RUnlock()
	out := make([]string, 0, len(types))
	for name := range types {
		out = append(out, name)
	}
	return out
}

// Nodes is the live instance registry built from a loaded configuration's
// nodes map: name -> running node.Instance.
type Nodes struct {
	mu   sync.RWMutex
	byID map[string]*node.Instance
}

// NewNodes returns an empty instance registry.
func NewNodes() *Nodes {
	return &Nodes{byID: map[string]*node.Instance{}}
}

// Build instantiates one node.Instance called name, of type typeName,
// via the global type registry, returning api.ErrUnknownNodeType wrapped with the
// offending type name if a config references an unregistered type, or
// api.ErrDuplicateNode if name collides with one already built.
func (n *Nodes) Build(name, typeName string, settings map[string]any) (*node.Instance, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.byID[name]; exists {
		return nil, fmt.Errorf("%w: %q", api.ErrDuplicateNode, name)
	}
	factory, ok := LookupType(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", api.ErrUnknownNodeType, typeName)
	}
	impl, err := factory(name, settings)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", name, err)
	}
	inst := node.NewInstance(name, impl)
	n.byID[name] = inst
	return inst, nil
}

// Get looks up a previously built node instance by name.
func (n *Nodes) Get(name string) (*node.Instance, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	inst, ok := n.byID[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", api.ErrNodeNotFound, name)
	}
	return inst, nil
}

// All returns every registered node instance, in no particular order.
func (n *Nodes) All() []*node.Instance {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*node.Instance, 0, len(n.byID))
	for _, inst := range n.byID {
		out = append(out, inst)
	}
	return out
}
