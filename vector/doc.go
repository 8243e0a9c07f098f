// Package vector encodes float32 embeddings as SQL BLOB values and computes
// the distances behind the vec_cosine and vec_l2 SQL functions.
//
// The BLOB layout is a little-endian sequence of IEEE 754 float32 values
// with no length prefix; the dimension is derived from the BLOB size.
package vector
