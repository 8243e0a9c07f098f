// Package engine binds the embedded SQLite engine (modernc.org/sqlite/lib)
// through its C ABI: a Database owns a native connection handle, a registry
// of open Statements and a registry of user functions; Statements stage
// their text and blob parameters in a per-statement native arena and read
// rows back as value.Value using the engine-reported type of each cell.
//
// A Database and everything derived from it must be used from one goroutine
// at a time. The worker package provides the serialized, message-driven
// front end for callers that need to share one Database.
package engine
