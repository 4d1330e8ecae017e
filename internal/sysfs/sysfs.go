package sysfs

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/devtree/internal/logging"
	"github.com/muurk/devtree/internal/subsys"
	"github.com/muurk/devtree/internal/uevent"
)

// DefaultRoot is the kernel's sysfs mount point.
const DefaultRoot = "/sys"

type kind int

const (
	kindSession kind = iota
	kindDevice
	kindEnumerator
	kindMonitor
)

func (k kind) String() string {
	switch k {
	case kindSession:
		return "session"
	case kindDevice:
		return "device"
	case kindEnumerator:
		return "enumerator"
	case kindMonitor:
		return "monitor"
	}
	return "unknown"
}

type object struct {
	kind kind
	refs int

	// device payload
	rec *record

	// enumerator payload
	matches []subsys.Match

	// monitor payload
	filters []subsys.Match
	conn    *uevent.Conn
	started bool
}

// Subsystem implements subsys.Subsystem over a sysfs tree.
type Subsystem struct {
	root  string
	group uint32

	mu      sync.Mutex
	next    uint64
	objects map[subsys.Raw]*object
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithRoot points the subsystem at an alternate device tree root,
// normally a synthetic tree in tests.
func WithRoot(dir string) Option {
	return func(s *Subsystem) { s.root = dir }
}

// WithUdevGroup subscribes monitors to the udev daemon's multicast
// group instead of the raw kernel group.
func WithUdevGroup() Option {
	return func(s *Subsystem) { s.group = uevent.UdevGroup }
}

// New creates a subsystem over the given (or default) tree root.
func New(opts ...Option) *Subsystem {
	s := &Subsystem{
		root:    DefaultRoot,
		group:   uevent.KernelGroup,
		objects: make(map[subsys.Raw]*object),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the tree root this subsystem reads from.
func (s *Subsystem) Root() string { return s.root }

// alloc registers a new object with one reference. Callers hold s.mu.
func (s *Subsystem) alloc(o *object) subsys.Raw {
	s.next++
	raw := subsys.Raw(s.next)
	o.refs = 1
	s.objects[raw] = o
	return raw
}

// get returns a live object of the expected kind. A miss is a violated
// wrapper-layer precondition, not a runtime condition, so it panics.
func (s *Subsystem) get(raw subsys.Raw, k kind) *object {
	o, ok := s.objects[raw]
	if !ok {
		panic(fmt.Sprintf("sysfs: use of dead or unknown handle %d", raw))
	}
	if o.kind != k {
		panic(fmt.Sprintf("sysfs: handle %d is a %v, not a %v", raw, o.kind, k))
	}
	return o
}

// OpenSession implements subsys.Subsystem. It fails (returns the null
// handle) when the tree root does not exist.
func (s *Subsystem) OpenSession() subsys.Raw {
	if _, err := os.Stat(s.root); err != nil {
		logging.Error("cannot open device tree",
			zap.String("root", s.root),
			zap.Error(err),
		)
		return subsys.Null
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	raw := s.alloc(&object{kind: kindSession})
	logging.LogSession("opened", uint64(raw))
	return raw
}

// Ref implements subsys.Subsystem.
func (s *Subsystem) Ref(raw subsys.Raw) subsys.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[raw]
	if !ok {
		panic(fmt.Sprintf("sysfs: Ref of dead handle %d", raw))
	}
	o.refs++
	return raw
}

// Unref implements subsys.Subsystem.
func (s *Subsystem) Unref(raw subsys.Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[raw]
	if !ok {
		panic(fmt.Sprintf("sysfs: Unref of dead handle %d", raw))
	}
	o.refs--
	if o.refs > 0 {
		return
	}
	if o.kind == kindMonitor && o.conn != nil {
		_ = o.conn.Close()
	}
	delete(s.objects, raw)
	if o.kind == kindSession {
		logging.LogSession("released", uint64(raw))
	}
}
