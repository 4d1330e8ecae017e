// Package devtree provides safe, reference-counted access to the
// device subsystem's object graph: sessions, devices, enumerators, and
// hotplug monitors.
//
// # Lifecycle
//
// Everything starts from a Context, one session with the subsystem:
//
//	ctx, err := devtree.Open(sysfs.New())
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
// Devices, enumerators, and monitors are created from a Context and
// each hold their own clone of it, so they remain valid even if the
// caller closes the original Context first. Every value must be closed
// exactly once; Close on an already-closed value returns
// handle.ErrClosed and never releases twice.
//
// # Enumeration
//
//	e, err := devtree.NewEnumerator(ctx)
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
//	e.MatchSubsystem("block")
//	devices, err := e.Devices()
//
// # Monitoring
//
//	m, err := devtree.NewMonitor(ctx)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//	m.FilterSubsystem("usb", "")
//	if err := m.Start(); err != nil {
//	    return err
//	}
//	dev, err := m.Receive(context.Background())
//
// # Thread confinement
//
// The subsystem does not tolerate concurrent access to one session. A
// Context and every value derived from it belong to the goroutine that
// opened the Context; using any of them from another goroutine panics.
// To move work, hand the whole graph over with Context.Transfer from
// the receiving goroutine, after the previous owner has stopped using
// it. Independent Contexts in different goroutines are fine.
package devtree
