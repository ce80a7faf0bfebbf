package model

// SeedSize is the number of uint32 values in a session seed.
const SeedSize = 5

// Seed is the per-session random seed. Arrays are values, so a Seed cannot
// be mutated through a copy handed to another component.
type Seed [SeedSize]uint32

// Flags is the startup configuration passed to the application: the first
// seed value as a scalar and the remaining four as a sequence.
type Flags struct {
	First uint32               `json:"first"`
	Rest  [SeedSize - 1]uint32 `json:"rest"`
}

// Flags splits the seed into index 0 and indices 1..4.
func (s Seed) Flags() Flags {
	var f Flags
	f.First = s[0]
	copy(f.Rest[:], s[1:])
	return f
}
