// Package value defines the tagged column/parameter value shared by statement
// binding, row extraction, user functions and the worker wire format.
//
// A Value holds exactly one of Null, Integer (int64), Float (float64),
// Text (UTF-8 string) or Blob (bytes). When read from a row the tag is the
// one the engine reports for that cell, never one inferred from Go types.
package value
