// Package ir provides the value, register and instruction types shared by
// every part of the weft runtime.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Values form a closed set (Void, Int, Str, Bool, Tuple, Struct, Failure, RsrcRef)
//   - No float types; numbers are int64
//   - Composite values are owned by exactly one register; crossing a frame
//     boundary requires Clone
//   - Logical sequence numbers only, never wall-clock timestamps
package ir
