package linux

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// CryptoRandom reads from the operating system's CSPRNG.
type CryptoRandom struct{}

func (CryptoRandom) Generate(p []byte) error {
	_, err := io.ReadFull(rand.Reader, p)
	return errors.Wrap(err, "crypto/rand")
}

// SeededRandom is a deterministic stream derived from a seed with the BLAKE3 XOF.
// Two sources with the same seed produce the same bytes.
type SeededRandom struct {
	mu sync.Mutex
	d  *blake3.Digest
}

func NewSeededRandom(seed string) *SeededRandom {
	h := blake3.New()
	h.Write([]byte(seed))
	return &SeededRandom{d: h.Digest()}
}

func (s *SeededRandom) Generate(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.ReadFull(s.d, p)
	return errors.Wrap(err, "blake3 xof")
}
