// Package subsys defines the contract between the devtree wrapper types
// and the device subsystem that owns the real device tree.
//
// The subsystem hands out opaque, reference-counted handles. A handle is
// never dereferenced by callers; it is only passed back into subsystem
// operations. The zero handle is the null value and signals allocation
// failure from the constructor operations (OpenSession, NewEnumerator,
// NewMonitor).
//
// Two implementations exist:
//
//   - internal/sysfs: the production subsystem, backed by the kernel's
//     virtual device tree and the hotplug uevent socket
//   - internal/subsys/subsystest: an instrumented fake for tests
//
// Reference counting is uniform across handle kinds: Ref and Unref apply
// to sessions, devices, enumerators, and monitors alike. The subsystem
// releases an object when its count reaches zero. Callers must serialize
// Ref/Unref on one underlying object; the wrapper layer guarantees this
// by confining each session graph to a single goroutine (see
// internal/handle).
package subsys
