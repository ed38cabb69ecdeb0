// Package rand generates short non-cryptographic identifiers for requests and
// history entries.
package rand

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const (
	// IDLength is the length of ids returned by NewID.
	IDLength = 16

	charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var charsetLen = len(charset)

var source = newSource()

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
	buf [8]byte
}

func newSource() *lockedSource {
	seed := make([]byte, 16)
	if _, err := cryptorand.Read(seed); err != nil {
		panic("unreachable")
	}

	return &lockedSource{
		//nolint:gosec // ids only need to be unlikely to collide
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		)),
	}
}

func (s *lockedSource) read(out []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(out) >= 8 {
		binary.LittleEndian.PutUint64(out, s.rng.Uint64())
		out = out[8:]
	}
	if len(out) > 0 {
		binary.LittleEndian.PutUint64(s.buf[:], s.rng.Uint64())
		copy(out, s.buf[:len(out)])
	}
}

// NewID returns a random alphanumeric string of the given length. The
// distribution is slightly biased, which is fine for correlation ids.
func NewID(length int) string {
	buf := make([]byte, length)
	source.read(buf)

	for i, b := range buf {
		buf[i] = charset[int(b)%charsetLen]
	}

	return string(buf)
}

// NewRequestID returns an id for the X-Request-ID header.
func NewRequestID() string {
	return NewID(IDLength)
}
