package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand"
	"sync"
)

// Source yields uniform integers in [0, n).
type Source interface {
	Intn(n int) (int, error)
}

type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return cryptoSource{}
}

func (cryptoSource) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}

type seededSource struct {
	mu  sync.Mutex
	rnd *mrand.Rand
}

// NewSeededSource returns a reproducible Source. Safe for concurrent use.
func NewSeededSource(seed int64) Source {
	return &seededSource{rnd: mrand.New(mrand.NewSource(seed))}
}

func (s *seededSource) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid bound %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n), nil
}
