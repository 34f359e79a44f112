// Package natives is the host function library: synchronous natives
// (prefab arithmetic, comparison, strings, console) and I/O operations over
// files, TCP and UDP.
//
// Natives return language-level problems (wrong argument kinds, I/O
// errors) as ir.Failure values. A Go error from a native is an interpreter
// defect.
//
// I/O operations that take a resource declare it as parameter 0. The
// worker moves the resource into the iop.Ctx before the operation runs;
// the operation hands it back in its outcome, or leaves it in the context,
// or consumes it.
package natives
