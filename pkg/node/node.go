// Package node defines the polymorphic I/O endpoint contract every node
// type implements, and the per-instance wrapper that assigns sequence
// numbers and enforces the negative-return-is-fatal / partial-is-warning
// calling convention around a Type's Read and Write methods.
//
// The contract mirrors the teacher's vm.Backend/vm.Machine split: Factory
// is the type-level constructor (the "backend"), Type is the instance-level
// capability set (the "machine"). Concrete node types live in their own
// subpackage, following pkg/vm/linux vs pkg/vm/darwin's one-package-per-
// backend convention.
package node

import (
	"github.com/villas-project/villasnode-go/internal/errx"
	"github.com/villas-project/villasnode-go/pkg/api"
	"github.com/villas-project/villasnode-go/pkg/sample"
	"github.com/villas-project/villasnode-go/pkg/signal"
)

// Factory builds a Type instance from its config-file settings blob.
// Mirrors pkg/policy/registry.go's Factory and pkg/registry's node-type
// analogue of the same shape.
type Factory func(name string, settings map[string]any) (Type, error)

// Type is the vtable every node type implements: settings are parsed by
// the type's Factory, Check runs at load time, Start/Stop bracket the
// path's running state, Read/Write move samples, Destroy releases
// resources, Print formats an instance for logging, and PollFDs exposes
// the node's file descriptors. Type has no Init, Parse or Reverse
// methods; Reverse lives on the optional Reverser interface below.
type Type interface {
	// Signals returns this node's signal descriptor list, built once by
	// the Factory and shared pointer-equal across every Sample it produces.
	Signals() signal.List

	// Check validates configuration already applied by Parse. Returns a
	// config error, never a runtime one.
	Check() error

	// Start acquires runtime resources (sockets, broker connections). It
	// is called once, when the owning Path transitions into running.
	Start() error

	// Stop releases runtime resources acquired by Start. Must be safe to
	// call even if Start partially failed.
	Stop() error

	// Read fills out with available Samples and returns the number
	// filled. A negative return is a fatal node error (the Path's
	// receive loop returns with the error); 0 with a nil error means
	// "nothing available right now," not an error. A return less than
	// len(out) that is still > 0 is a partial read and only warned about,
	// never treated as fatal.
	Read(out []*sample.Sample) (int, error)

	// Write sends samples to the destination. Same partial/fatal
	// convention as Read: a negative return is fatal, 0 <= n < len(in) is
	// a partial-write warning.
	Write(in []*sample.Sample) (int, error)

	// Destroy releases resources held independent of the running state
	// (e.g. a parsed URL, a compiled regex) once the node is permanently
	// torn down and will never Start again.
	Destroy() error

	// Print returns a short, stable, human-readable description for log
	// lines (e.g. "socket: udp://239.0.0.1:12000").
	Print() string

	// PollFDs returns file descriptors this node's Read is served from;
	// nil if the node type has no such descriptors (e.g. a pure in-memory
	// node like loopback). pkg/path does not call it: its receive loop
	// calls Read again immediately after every return.
	PollFDs() []int
}

// Reverser is implemented by node types that support `reverse: true`
// path expansion: building the mirrored node that swaps the roles Read
// and Write play (spec.md §4.4 edge case, made concrete in §4.5).
type Reverser interface {
	Type
	Reverse() (Type, error)
}

// Instance wraps a Type with the bookkeeping the spec assigns to "the
// Node wrapper" rather than to the type implementation itself: the
// per-node monotonic sequence counter and the name it was registered
// under.
type Instance struct {
	name string
	typ  Type
	seq  uint64
}

// NewInstance wraps typ as node name.
func NewInstance(name string, typ Type) *Instance {
	return &Instance{name: name, typ: typ}
}

func (n *Instance) Name() string { return n.name }
func (n *Instance) Type() Type   { return n.typ }

// Read calls the underlying Type's Read and stamps every returned Sample
// with this node's next sequence numbers and itself as Source. A
// negative count is propagated unchanged to the caller (alongside a
// wrapped api.ErrIO) rather than clamped to zero, so the receive loop's
// "negative return is fatal" check (spec.md §4.4 step 2) can actually
// observe it instead of mistaking a fatal fault for an empty read.
func (n *Instance) Read(out []*sample.Sample) (int, error) {
	count, err := n.typ.Read(out)
	if count < 0 {
		return count, errx.Wrapf(api.ErrIO, "node %q Read: %w", n.name, err)
	}
	for i := 0; i < count; i++ {
		out[i].Seq = n.seq
		out[i].Source = n
		n.seq++
	}
	return count, err
}

// Write calls the underlying Type's Write. Same negative-count
// propagation as Read: the caller sees the fatal count, not a clamped
// zero.
func (n *Instance) Write(in []*sample.Sample) (int, error) {
	count, err := n.typ.Write(in)
	if count < 0 {
		return count, errx.Wrapf(api.ErrIO, "node %q Write: %w", n.name, err)
	}
	return count, err
}
