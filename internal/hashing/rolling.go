package hashing

// Rolling hash constants. These are part of the wire-level chunking contract:
// two chunkers on different machines must cut identically, which requires
// identical boundary-hash arithmetic.
const (
	rollingPrime = 31
	rollingMod   = 1_000_000_009
)

// RollingHash is a Rabin–Karp polynomial hash over a sliding byte window.
// Append extends the hashed prefix; Update advances the window by one
// position in O(1) using the precomputed power term.
//
// The value is not cryptographic. It only needs to be smoothly distributed
// under bit masks.
type RollingHash struct {
	windowSize int
	hash       uint64
	power      uint64
}

// NewRollingHash creates a rolling hash for the given window size.
func NewRollingHash(windowSize int) *RollingHash {
	power := uint64(1)
	for i := 0; i < windowSize-1; i++ {
		power = (power * rollingPrime) % rollingMod
	}
	return &RollingHash{windowSize: windowSize, hash: 0, power: power}
}

// Reset clears the accumulated state.
func (r *RollingHash) Reset() {
	r.hash = 0
}

// Sum64 returns the current hash value.
func (r *RollingHash) Sum64() uint64 {
	return r.hash
}

// Append extends the hashed prefix by one byte.
func (r *RollingHash) Append(b byte) {
	r.hash = (r.hash*rollingPrime + uint64(b)) % rollingMod
}

// Update advances the window: byteOut is the byte leaving the window,
// byteIn the byte entering it.
func (r *RollingHash) Update(byteIn, byteOut byte) {
	r.hash = (r.hash + rollingMod - (uint64(byteOut)*r.power)%rollingMod) % rollingMod
	r.hash = (r.hash*rollingPrime + uint64(byteIn)) % rollingMod
}

// WindowSize reports the configured window length.
func (r *RollingHash) WindowSize() int {
	return r.windowSize
}
