package ebstack

// Layout constants for paddedExchanger, checked by sizeof_test.go.
const (
	// sizeOfCacheLine is the stride between adjacent exchangers. 128 covers
	// both 64 byte lines and the 128 byte lines of some arm64 parts, as well
	// as adjacent-line prefetching on amd64.
	sizeOfCacheLine = 128

	// sizeOfAtomicPointer is the size of Exchanger, a single atomic.Pointer.
	sizeOfAtomicPointer = 8
)
