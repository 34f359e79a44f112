// Package engine implements the weft fiber runtime: frames, fibers, the
// per-thread Worker scheduler and the Application that owns them.
//
// ARCHITECTURE:
//
// Single-Writer Workers:
// Each Worker owns its fibers, its local code cache and its ready queue, and
// mutates them only from its own Run goroutine. Workers share nothing; they
// talk to the Application exclusively through mailboxes.
//
// Message Flow:
//  1. Application sends Spawn to a Worker for each entry call
//  2. Worker creates a Fiber and, on a code cache miss, sends RequestCode
//  3. Application resolves the function once and replies with FoundCode
//  4. Worker runs the Fiber one quantum at a time until its root frame
//     completes, then sends MainResult
//
// Suspension:
// A Fiber leaves the ready queue while it waits for code or for an I/O
// operation. Asynchronous operations are settled by an iop.Driver on their
// own goroutine and re-enter the Worker as inbox messages, so Worker state
// is never touched off its goroutine.
//
// Defects (malformed bytecode, lost resources, uneventful steps) abort the
// offending Fiber and are reported with FiberAborted. Protocol violations
// (a message for a Fiber that is not waiting for it) stop the Worker.
package engine
