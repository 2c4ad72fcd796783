package cotask

// These constants guide padding on hot, frequently-CAS'd fields so that a
// busy-waiting scheduler spinning on one task's state doesn't also bounce
// an unrelated cache line belonging to a neighbour in the arena slice.
const (
	// sizeOfCacheLine is the size of a CPU cache line: 64 bytes on x86-64,
	// 128 on Apple Silicon and other ARM64. 128 is used to satisfy the
	// largest common alignment requirement.
	sizeOfCacheLine = 128

	// sizeOfAtomicUint32 is the size of an atomic.Uint32 variable.
	sizeOfAtomicUint32 = 4
)
