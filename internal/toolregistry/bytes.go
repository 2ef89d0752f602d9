package toolregistry

import "bytes"

// bytesReader is a tiny indirection so schema.go reads as intent rather than
// a raw bytes.NewReader call buried in compileSchema.
func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
