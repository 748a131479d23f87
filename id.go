package xcast

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/google/uuid"
)

// IDGenerator returns a new envelope identifier.
type IDGenerator func() string

// weakReader feeds uuid from math/rand/v2. It is not a cryptographic source:
// envelope ids correlate messages, they are not secrets, and a collision is
// improbable but possible.
type weakReader struct{}

func (weakReader) Read(p []byte) (int, error) {
	var buf [8]byte
	n := 0
	for n < len(p) {
		binary.LittleEndian.PutUint64(buf[:], rand.Uint64())
		n += copy(p[n:], buf[:])
	}
	return n, nil
}

// WeakUUID generates RFC 4122 version 4 ids from a non-cryptographic source.
// It is the default IDGenerator.
func WeakUUID() string {
	// weakReader never fails, so neither does NewRandomFromReader.
	return uuid.Must(uuid.NewRandomFromReader(weakReader{})).String()
}
