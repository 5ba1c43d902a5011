// Package mm models the single user address space shared by every task.
//
// All address arithmetic on user pointers happens in this package: syscall
// handlers compute a result value, encode it, and hand the bytes to CopyOut.
package mm

import (
	"errors"
	"fmt"
	"sync"
)

// VirtAddr is a user-space address.
type VirtAddr uint64

// DefaultBase is where the user arena starts.
const DefaultBase VirtAddr = 0x1000_0000

// regionAlign is the alignment of every mapped region.
const regionAlign = 8

var (
	// ErrFault is returned for user ranges that are unmapped, misaligned or overflow.
	ErrFault = errors.New("bad user address")

	ErrNoSpace = errors.New("address space exhausted")
)

// Region is a mapped range [Start, End) of the address space.
type Region struct {
	Name  string
	Start VirtAddr
	End   VirtAddr
}

// Size returns the region length in bytes.
func (r Region) Size() uint64 { return uint64(r.End - r.Start) }

// Contains reports whether [addr, addr+n) lies inside r.
func (r Region) Contains(addr VirtAddr, n uint64) bool {
	if addr < r.Start || addr > r.End {
		return false
	}
	return n <= uint64(r.End-addr)
}

// AddressSpace is a flat byte arena carved into named regions.
type AddressSpace struct {
	mu      sync.Mutex
	base    VirtAddr
	mem     []byte
	next    VirtAddr
	regions []Region
}

// NewAddressSpace returns an arena of size bytes starting at base.
func NewAddressSpace(base VirtAddr, size int) *AddressSpace {
	return &AddressSpace{
		base: base,
		mem:  make([]byte, size),
		next: base,
	}
}

// Size returns the arena length in bytes.
func (as *AddressSpace) Size() int { return len(as.mem) }

// Map reserves size bytes for name and returns the region.
func (as *AddressSpace) Map(name string, size int) (Region, error) {
	if size <= 0 {
		return Region{}, fmt.Errorf("map %q: invalid size %d", name, size)
	}
	as.mu.Lock()
	defer as.mu.Unlock()

	n := (uint64(size) + regionAlign - 1) &^ (regionAlign - 1)
	used := uint64(as.next - as.base)
	if n > uint64(len(as.mem))-used {
		return Region{}, fmt.Errorf("map %q (%d bytes): %w", name, size, ErrNoSpace)
	}
	r := Region{Name: name, Start: as.next, End: as.next + VirtAddr(n)}
	as.next = r.End
	as.regions = append(as.regions, r)
	return r, nil
}

// Regions returns the mapped regions in mapping order.
func (as *AddressSpace) Regions() []Region {
	as.mu.Lock()
	defer as.mu.Unlock()
	return append([]Region(nil), as.regions...)
}

// CopyOut writes src to user memory at dst. dst must be a multiple of align
// and the whole range must lie inside one mapped region.
func (as *AddressSpace) CopyOut(dst VirtAddr, src []byte, align uint64) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	off, err := as.translate(dst, uint64(len(src)), align)
	if err != nil {
		return err
	}
	copy(as.mem[off:], src)
	return nil
}

// CopyIn reads len(dst) bytes of user memory at src.
func (as *AddressSpace) CopyIn(dst []byte, src VirtAddr) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	off, err := as.translate(src, uint64(len(dst)), 1)
	if err != nil {
		return err
	}
	copy(dst, as.mem[off:])
	return nil
}

// Check reports ErrFault unless [addr, addr+n) lies inside one mapped region.
func (as *AddressSpace) Check(addr VirtAddr, n uint64) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	_, err := as.translate(addr, n, 1)
	return err
}

// translate checks a user range and returns its offset into mem. Callers hold mu.
func (as *AddressSpace) translate(addr VirtAddr, n uint64, align uint64) (uint64, error) {
	if align > 1 && uint64(addr)%align != 0 {
		return 0, fmt.Errorf("%#x misaligned for %d: %w", uint64(addr), align, ErrFault)
	}
	for _, r := range as.regions {
		if r.Contains(addr, n) {
			return uint64(addr - as.base), nil
		}
	}
	return 0, fmt.Errorf("%#x+%d unmapped: %w", uint64(addr), n, ErrFault)
}
