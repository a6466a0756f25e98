package simulation

import (
	"golang.org/x/exp/rand"
)

// Stream produces the normal draws of a simulation. Every draw is addressed by
// (seed, path, step): the generator is reseeded from a mix of the three before each
// step, so a path can be regenerated in isolation and two runs with the same seed see
// identical numbers regardless of how paths are spread over workers.
//
// A Stream is not safe for concurrent use; each worker owns one.
type Stream struct {
	seed uint64
	src  *rand.PCGSource
	rng  *rand.Rand
}

func NewStream(seed uint64) *Stream {
	src := &rand.PCGSource{}
	return &Stream{seed: seed, src: src, rng: rand.New(src)}
}

func (s *Stream) Seed() uint64 { return s.seed }

// Normals fills z with the standard normal draws of (path, step).
func (s *Stream) Normals(path, step int, z []float64) {
	s.src.Seed(key(s.seed, uint64(path), uint64(step)))
	for i := range z {
		z[i] = s.rng.NormFloat64()
	}
}

// key hashes the counter triple with splitmix64 finalisers.
func key(seed, path, step uint64) uint64 {
	h := mix(seed ^ 0x9e3779b97f4a7c15)
	h = mix(h ^ path*0xbf58476d1ce4e5b9)
	return mix(h ^ step*0x94d049bb133111eb)
}

func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// DeriveSeed returns an independent seed for an auxiliary run, such as the pilot pass
// that fits an exercise boundary.
func DeriveSeed(seed uint64, salt uint64) uint64 {
	return mix(seed ^ mix(salt))
}
