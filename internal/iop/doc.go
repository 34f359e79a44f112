// Package iop defines native resources and the context an I/O operation
// runs in.
//
// A Resource is owned by exactly one fiber. An operation that needs one
// receives it inside a Ctx, moves it out with TakeRsrc, and either returns it
// in its Outcome or moves it back with InitRsrc before reporting not-ready.
// The Driver settles asynchronous outcomes off the worker goroutine and
// enforces timeouts.
package iop
