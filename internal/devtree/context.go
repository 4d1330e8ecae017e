package devtree

import (
	"fmt"

	"github.com/muurk/devtree/internal/handle"
	"github.com/muurk/devtree/internal/subsys"
)

// Context owns one session with the device subsystem. It is the root
// of every other wrapper value's lifetime: devices, enumerators, and
// monitors all hold a clone of the Context they were created from.
type Context struct {
	obj *handle.Object
	sys subsys.Subsystem
}

// Open creates a new subsystem session. It fails with
// subsys.ErrAllocation when the subsystem cannot allocate one.
//
// The returned Context is owned by the calling goroutine; see the
// package documentation for the confinement rules.
func Open(sys subsys.Subsystem) (*Context, error) {
	obj, err := handle.Adopt(sys, sys.OpenSession(), nil)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &Context{obj: obj, sys: sys}, nil
}

// Clone returns a second independently-closeable owner of the same
// session. The underlying session is released only after every owner,
// in any order, has been closed.
func (c *Context) Clone() *Context {
	return &Context{obj: c.obj.Clone(), sys: c.sys}
}

// Close releases this owner's reference on the session. A second Close
// returns handle.ErrClosed without releasing again.
func (c *Context) Close() error {
	return c.obj.Close()
}

// RawHandle returns the raw session handle for passing into subsystem
// calls. The handle must not be retained past the Context's lifetime.
func (c *Context) RawHandle() subsys.Raw {
	return c.obj.Raw()
}

// Transfer rebinds the Context and every value derived from it to the
// calling goroutine. The previous owning goroutine must already have
// stopped using the graph.
func (c *Context) Transfer() {
	c.obj.Guard().Transfer()
}
