// Package subsystest provides an instrumented in-memory device
// subsystem for tests.
//
// The fake counts every Ref/Unref call per handle, records when objects
// are released, and can be scripted to fail allocations or deliver
// hotplug events, which is exactly the surface needed to verify the
// refcount conservation properties of the wrapper layer.
package subsystest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/muurk/devtree/internal/subsys"
)

const eventBuffer = 64

// Record seeds the fake with one device.
type Record struct {
	Syspath    string
	Subsystem  string
	Sysname    string
	Devtype    string
	Devnode    string
	Properties map[string]string
	Sysattrs   map[string]string
	Parent     string // syspath of the parent record, if any
}

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
	record *Record
	action string

	// enumerator payload
	matches []subsys.Match

	// monitor payload
	filters []subsys.Match
	started bool
	events  chan event
}

type event struct {
	action  string
	syspath string
}

// Fake implements subsys.Subsystem entirely in memory.
//
// Unlike the production subsystem, the fake is safe for concurrent use;
// tests exercise confinement violations on purpose and the fake must
// stay coherent while doing so.
type Fake struct {
	mu       sync.Mutex
	next     uint64
	objects  map[subsys.Raw]*object
	records  map[string]*Record
	released []subsys.Raw

	refCalls   map[subsys.Raw]int
	unrefCalls map[subsys.Raw]int

	failOpens  int
	failAllocs int
}

// New creates an empty fake subsystem.
func New() *Fake {
	return &Fake{
		objects:    make(map[subsys.Raw]*object),
		records:    make(map[string]*Record),
		refCalls:   make(map[subsys.Raw]int),
		unrefCalls: make(map[subsys.Raw]int),
	}
}

// AddDevice seeds a device record. Later additions with the same
// syspath replace earlier ones.
func (f *Fake) AddDevice(rec Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.Sysname == "" {
		rec.Sysname = path.Base(rec.Syspath)
	}
	f.records[rec.Syspath] = &rec
}

// FailNextOpen makes the next n OpenSession calls return the null
// handle, simulating allocation failure.
func (f *Fake) FailNextOpen(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOpens = n
}

// FailNextAlloc makes the next n NewEnumerator/NewMonitor calls return
// the null handle.
func (f *Fake) FailNextAlloc(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAllocs = n
}

// PushEvent delivers a hotplug event for the named record to every
// started monitor whose filters pass.
func (f *Fake) PushEvent(action, syspath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[syspath]
	if !ok {
		panic(fmt.Sprintf("subsystest: PushEvent for unknown syspath %q", syspath))
	}
	for _, o := range f.objects {
		if o.kind != kindMonitor || !o.started {
			continue
		}
		if !monitorPasses(o.filters, rec) {
			continue
		}
		select {
		case o.events <- event{action: action, syspath: syspath}:
		default:
			// Full buffer drops the event, as the kernel socket would.
		}
	}
}

func monitorPasses(filters []subsys.Match, rec *Record) bool {
	if len(filters) == 0 {
		return true
	}
	for _, m := range filters {
		if m.Subsystem == rec.Subsystem && (m.Value == "" || m.Value == rec.Devtype) {
			return true
		}
	}
	return false
}

func (f *Fake) alloc(o *object) subsys.Raw {
	f.next++
	raw := subsys.Raw(f.next)
	o.refs = 1
	f.objects[raw] = o
	return raw
}

func (f *Fake) get(raw subsys.Raw, k kind) *object {
	o, ok := f.objects[raw]
	if !ok {
		panic(fmt.Sprintf("subsystest: use of dead or unknown handle %d", raw))
	}
	if o.kind != k {
		panic(fmt.Sprintf("subsystest: handle %d is a %v, not a %v", raw, o.kind, k))
	}
	return o
}

// OpenSession implements subsys.Subsystem.
func (f *Fake) OpenSession() subsys.Raw {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOpens > 0 {
		f.failOpens--
		return subsys.Null
	}
	return f.alloc(&object{kind: kindSession})
}

// Ref implements subsys.Subsystem.
func (f *Fake) Ref(raw subsys.Raw) subsys.Raw {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[raw]
	if !ok {
		panic(fmt.Sprintf("subsystest: Ref of dead handle %d", raw))
	}
	o.refs++
	f.refCalls[raw]++
	return raw
}

// Unref implements subsys.Subsystem.
func (f *Fake) Unref(raw subsys.Raw) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[raw]
	if !ok {
		panic(fmt.Sprintf("subsystest: Unref of dead handle %d", raw))
	}
	f.unrefCalls[raw]++
	o.refs--
	if o.refs > 0 {
		return
	}
	if o.kind == kindMonitor && o.events != nil {
		close(o.events)
	}
	delete(f.objects, raw)
	f.released = append(f.released, raw)
}

// DeviceFromSyspath implements subsys.Subsystem.
func (f *Fake) DeviceFromSyspath(session subsys.Raw, syspath string) (subsys.Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get(session, kindSession)
	rec, ok := f.records[syspath]
	if !ok {
		return subsys.Null, fmt.Errorf("%q: %w", syspath, subsys.ErrNotFound)
	}
	return f.alloc(&object{kind: kindDevice, record: rec}), nil
}

// DeviceInfo implements subsys.Subsystem.
func (f *Fake) DeviceInfo(dev subsys.Raw) subsys.DeviceInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(dev, kindDevice)
	return subsys.DeviceInfo{
		Syspath:   o.record.Syspath,
		Subsystem: o.record.Subsystem,
		Sysname:   o.record.Sysname,
		Devtype:   o.record.Devtype,
		Devnode:   o.record.Devnode,
		Action:    o.action,
	}
}

// DeviceProperty implements subsys.Subsystem.
func (f *Fake) DeviceProperty(dev subsys.Raw, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(dev, kindDevice)
	v, ok := o.record.Properties[key]
	return v, ok
}

// DeviceProperties implements subsys.Subsystem.
func (f *Fake) DeviceProperties(dev subsys.Raw) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(dev, kindDevice)
	props := make(map[string]string, len(o.record.Properties))
	for k, v := range o.record.Properties {
		props[k] = v
	}
	return props
}

// DeviceSysattr implements subsys.Subsystem.
func (f *Fake) DeviceSysattr(dev subsys.Raw, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(dev, kindDevice)
	v, ok := o.record.Sysattrs[name]
	if !ok {
		return "", fmt.Errorf("sysattr %q: %w", name, subsys.ErrNotFound)
	}
	return v, nil
}

// DeviceParent implements subsys.Subsystem.
func (f *Fake) DeviceParent(dev subsys.Raw) subsys.Raw {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(dev, kindDevice)
	if o.record.Parent == "" {
		return subsys.Null
	}
	rec, ok := f.records[o.record.Parent]
	if !ok {
		return subsys.Null
	}
	return f.alloc(&object{kind: kindDevice, record: rec})
}

// NewEnumerator implements subsys.Subsystem.
func (f *Fake) NewEnumerator(session subsys.Raw) subsys.Raw {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get(session, kindSession)
	if f.failAllocs > 0 {
		f.failAllocs--
		return subsys.Null
	}
	return f.alloc(&object{kind: kindEnumerator})
}

// EnumeratorAddMatch implements subsys.Subsystem.
func (f *Fake) EnumeratorAddMatch(enum subsys.Raw, m subsys.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(enum, kindEnumerator)
	o.matches = append(o.matches, m)
}

// EnumeratorScan implements subsys.Subsystem.
func (f *Fake) EnumeratorScan(enum subsys.Raw) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(enum, kindEnumerator)
	var paths []string
	for sp, rec := range f.records {
		if recordPasses(o.matches, rec) {
			paths = append(paths, sp)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func recordPasses(matches []subsys.Match, rec *Record) bool {
	for _, m := range matches {
		if m.Subsystem != "" && m.Subsystem != rec.Subsystem {
			return false
		}
		if m.Sysname != "" {
			if ok, _ := path.Match(m.Sysname, rec.Sysname); !ok {
				return false
			}
		}
		if m.Property != "" && rec.Properties[m.Property] != m.Value {
			return false
		}
	}
	return true
}

// NewMonitor implements subsys.Subsystem.
func (f *Fake) NewMonitor(session subsys.Raw) subsys.Raw {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get(session, kindSession)
	if f.failAllocs > 0 {
		f.failAllocs--
		return subsys.Null
	}
	return f.alloc(&object{kind: kindMonitor, events: make(chan event, eventBuffer)})
}

// MonitorFilter implements subsys.Subsystem.
func (f *Fake) MonitorFilter(mon subsys.Raw, subsystem, devtype string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(mon, kindMonitor)
	if o.started {
		return
	}
	o.filters = append(o.filters, subsys.Match{Subsystem: subsystem, Value: devtype})
}

// MonitorStart implements subsys.Subsystem.
func (f *Fake) MonitorStart(mon subsys.Raw) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.get(mon, kindMonitor)
	o.started = true
	return nil
}

// MonitorReceive implements subsys.Subsystem.
func (f *Fake) MonitorReceive(ctx context.Context, mon subsys.Raw) (subsys.Raw, error) {
	f.mu.Lock()
	o := f.get(mon, kindMonitor)
	ch := o.events
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return subsys.Null, ctx.Err()
	case ev, ok := <-ch:
		if !ok {
			return subsys.Null, context.Canceled
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		rec, ok := f.records[ev.syspath]
		if !ok {
			return subsys.Null, fmt.Errorf("%q: %w", ev.syspath, subsys.ErrNotFound)
		}
		return f.alloc(&object{kind: kindDevice, record: rec, action: ev.action}), nil
	}
}

// RefCount returns the current reference count of a live handle, or 0
// when it has been released.
func (f *Fake) RefCount(raw subsys.Raw) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[raw]
	if !ok {
		return 0
	}
	return o.refs
}

// RefCalls returns how many Ref calls were made against raw.
func (f *Fake) RefCalls(raw subsys.Raw) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refCalls[raw]
}

// UnrefCalls returns how many Unref calls were made against raw.
func (f *Fake) UnrefCalls(raw subsys.Raw) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unrefCalls[raw]
}

// Released reports whether raw has been released (refcount hit zero).
func (f *Fake) Released(raw subsys.Raw) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.released {
		if r == raw {
			return true
		}
	}
	return false
}

// LiveObjects returns the number of objects not yet released.
func (f *Fake) LiveObjects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}
