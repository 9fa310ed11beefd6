package matrix

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
)

// stripedLock serializes loads of the same block while letting loads of
// unrelated blocks proceed in parallel. A single stripe serializes all loads.
type stripedLock struct {
	stripes []sync.Mutex
}

func newStripedLock(n int) *stripedLock {
	if n < 1 {
		n = 1
	}
	return &stripedLock{stripes: make([]sync.Mutex, n)}
}

// forCoord returns the stripe guarding c. The same coordinate always maps to
// the same stripe.
func (s *stripedLock) forCoord(c blockfile.Coord) *sync.Mutex {
	if len(s.stripes) == 1 {
		return &s.stripes[0]
	}

	var key [16]byte
	binary.LittleEndian.PutUint64(key[:8], uint64(c.Row))
	binary.LittleEndian.PutUint64(key[8:], uint64(c.Col))
	return &s.stripes[xxhash.Sum64(key[:])%uint64(len(s.stripes))]
}

// lockAll acquires every stripe in order, waiting out loads in flight
func (s *stripedLock) lockAll() {
	for i := range s.stripes {
		s.stripes[i].Lock()
	}
}

func (s *stripedLock) unlockAll() {
	for i := len(s.stripes) - 1; i >= 0; i-- {
		s.stripes[i].Unlock()
	}
}
