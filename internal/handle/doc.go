// Package handle implements the ownership model shared by every
// devtree wrapper type.
//
// The device subsystem tracks object lifetimes with an external
// reference count the Go type system cannot see. This package pins that
// count to Go value lifetimes: an Object owns exactly one reference,
// Clone takes exactly one more, and Close gives exactly one back. As
// long as every Object is eventually closed exactly once, the
// subsystem's count can never drift.
//
// # Thread confinement
//
// The subsystem does not serialize access to one object graph; a
// session and everything derived from it must be driven from a single
// goroutine at a time. Each graph shares one Guard that records the
// owning goroutine and panics on use from any other. Ownership of the
// whole graph may be handed to another goroutine with Guard.Transfer;
// concurrent use of clones from two goroutines is never safe.
//
// Misuse of a closed Object, like misuse of a sync.WaitGroup, is a
// programming error and panics. Close is the one exception: closing
// twice returns ErrClosed and performs no second decrement.
package handle
