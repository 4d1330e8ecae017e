package handle

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
)

// Guard confines a session graph to a single owning goroutine. Every
// Object derived from one session shares the same Guard, so transferring
// the Guard moves the whole graph at once.
//
// Guard is intentionally not synchronized: the invariant it enforces is
// that no two goroutines touch the graph at the same time, so a correct
// program never races on it. Transfer must only be called once the
// previous owner has stopped using the graph.
type Guard struct {
	owner uint64
}

// NewGuard creates a Guard owned by the calling goroutine.
func NewGuard() *Guard {
	return &Guard{owner: goid()}
}

// Check panics if the calling goroutine is not the current owner.
func (g *Guard) Check() {
	if id := goid(); id != g.owner {
		panic(fmt.Sprintf("devtree: handle owned by goroutine %d used from goroutine %d "+
			"(transfer ownership before crossing goroutines)", g.owner, id))
	}
}

// Transfer rebinds the Guard, and with it the whole session graph, to
// the calling goroutine. The previous owner must have finished all use
// of the graph before the new owner calls Transfer.
func (g *Guard) Transfer() {
	g.owner = goid()
}

// goid returns the current goroutine's id as printed in the
// runtime.Stack header ("goroutine N [running]:"). There is no public
// API for this; parsing the header is the standard fallback for
// runtime-checked goroutine confinement.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header is "goroutine N [...".
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("devtree: cannot parse goroutine id from %q", buf[:n]))
	}
	return id
}
