// Package sysfs is the production device subsystem: it implements
// subsys.Subsystem against the kernel's virtual device tree and the
// hotplug uevent socket.
//
// # Handle table
//
// The package keeps a reference-counted table of every object it has
// handed out (sessions, devices, enumerators, monitors). Handles are
// opaque table keys; Ref and Unref adjust the counts and an object is
// dropped, and its resources (the monitor socket, in particular)
// released, when its count reaches zero. The table itself is guarded by
// a mutex so that independent sessions may live in different
// goroutines; serialization of access to one session graph remains the
// wrapper layer's job.
//
// # Device tree layout
//
// Devices are directories under <root>/devices containing a uevent
// file. Enumeration discovers them through the <root>/class and
// <root>/bus/*/devices symlink farms, the same entry points udevadm
// uses. The root defaults to /sys and can be pointed at a synthetic
// tree for tests:
//
//	sub := sysfs.New(sysfs.WithRoot(dir))
//
// # Monitoring
//
// Monitors subscribe to the kernel's kobject-uevent netlink group via
// internal/uevent. Remove events describe devices whose sysfs
// directory is already gone; their records are reconstructed from the
// event's environment instead of the tree.
package sysfs
