package handle

import (
	"errors"

	"github.com/muurk/devtree/internal/subsys"
)

// ErrClosed is returned by Close when the Object has already been
// closed. The underlying reference is only ever released once.
var ErrClosed = errors.New("handle already closed")

// Refs is the slice of the subsystem contract this package needs: the
// increment and decrement primitives. Both require a valid handle and
// cannot fail.
type Refs interface {
	Ref(raw subsys.Raw) subsys.Raw
	Unref(raw subsys.Raw)
}

// Object is one owning value for one reference to a subsystem object.
// Constructing (Adopt) consumes a reference the caller already holds;
// Clone takes a new reference; Close releases this value's reference.
// The number of live Objects for a raw handle therefore always equals
// the number of references this layer holds on it.
type Object struct {
	raw    subsys.Raw
	refs   Refs
	guard  *Guard
	closed bool
}

// Adopt wraps a raw handle whose reference the caller already owns,
// typically fresh from a subsystem constructor. A null handle means the
// constructor failed to allocate; Adopt rejects it with
// subsys.ErrAllocation so no Object ever holds null.
//
// guard attaches the Object to an existing session graph; pass nil to
// root a new graph owned by the calling goroutine.
func Adopt(refs Refs, raw subsys.Raw, guard *Guard) (*Object, error) {
	if raw.IsNull() {
		return nil, subsys.ErrAllocation
	}
	if guard == nil {
		guard = NewGuard()
	}
	return &Object{raw: raw, refs: refs, guard: guard}, nil
}

// Raw returns the raw handle for passing into subsystem calls. The
// handle must not outlive the Object.
func (o *Object) Raw() subsys.Raw {
	o.use()
	return o.raw
}

// Clone takes one more reference on the underlying object and returns a
// second independently-closeable owner sharing this Object's Guard.
func (o *Object) Clone() *Object {
	o.use()
	o.refs.Ref(o.raw)
	return &Object{raw: o.raw, refs: o.refs, guard: o.guard}
}

// Close releases this value's reference. Exactly one decrement is
// issued per Object over its lifetime: a second Close returns ErrClosed
// without touching the count.
func (o *Object) Close() error {
	o.guard.Check()
	if o.closed {
		return ErrClosed
	}
	// Flip before the decrement so a panic inside the subsystem cannot
	// lead to a second decrement on a retried Close.
	o.closed = true
	o.refs.Unref(o.raw)
	return nil
}

// Guard returns the confinement guard shared by this Object's session
// graph, for attaching derived resources.
func (o *Object) Guard() *Guard {
	return o.guard
}

// use asserts the operation preconditions common to every non-Close
// operation: right goroutine, not yet closed.
func (o *Object) use() {
	o.guard.Check()
	if o.closed {
		panic("devtree: use of closed handle")
	}
}
