package cache

import (
	"encoding/binary"
	"hash/maphash"

	"github.com/google/uuid"

	"github.com/hupe1980/pointstore/internal/resource"
	"github.com/hupe1980/pointstore/model"
)

const numShards = 16

// Sharded distributes keys over independently locked LRUs.
type Sharded struct {
	shards [numShards]*LRU
	seed   maphash.Seed
}

// NewSharded splits capacity evenly across the shards.
func NewSharded(capacity int64, rc *resource.Controller) *Sharded {
	per := max(capacity/numShards, 1)
	s := &Sharded{seed: maphash.MakeSeed()}
	for i := range s.shards {
		s.shards[i] = NewLRU(per, rc)
	}
	return s
}

func (s *Sharded) shard(key Key) *LRU {
	var buf [21]byte
	copy(buf[:16], key.Dataset[:])
	binary.LittleEndian.PutUint32(buf[16:], key.NodeID)
	if key.CoordsOnly {
		buf[20] = 1
	}
	return s.shards[maphash.Bytes(s.seed, buf[:])%numShards]
}

func (s *Sharded) Get(key Key) ([]model.Point, bool) { return s.shard(key).Get(key) }

func (s *Sharded) Set(key Key, points []model.Point) { s.shard(key).Set(key, points) }

func (s *Sharded) Invalidate(dataset uuid.UUID) {
	for _, sh := range s.shards {
		sh.Invalidate(dataset)
	}
}

func (s *Sharded) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

func (s *Sharded) Size() int64 {
	var total int64
	for _, sh := range s.shards {
		total += sh.Size()
	}
	return total
}
