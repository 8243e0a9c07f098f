package vector

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viant/sqlite-worker/value"
)

// Encode packs vec into its BLOB form. An empty vector encodes to nil.
func Encode(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// Decode unpacks a BLOB produced by Encode.
func Decode(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// Value wraps the encoded vec as a Blob value ready to bind.
func Value(vec []float32) value.Value {
	return value.Blob(Encode(vec))
}

// FromValue decodes an embedding carried by a Blob value.
func FromValue(v value.Value) ([]float32, error) {
	if v.Kind() != value.KindBlob {
		return nil, fmt.Errorf("vector: unsupported argument type %v for embedding; want blob", v.Kind())
	}
	return Decode(v.Blob())
}
