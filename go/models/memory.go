package models

import (
	"io"
	"strings"
)

// Prot is a target memory protection mask.
type Prot int

const (
	ProtNone  Prot = 0
	ProtRead  Prot = 1
	ProtWrite Prot = 2
	ProtExec  Prot = 4
	// guard pages are reserved but never accessible
	ProtGuard Prot = 0x80
)

func (p Prot) String() string {
	if p&ProtGuard != 0 {
		return "guard"
	}
	prots := []Prot{ProtRead, ProtWrite, ProtExec}
	chars := []string{"r", "w", "x"}
	var s strings.Builder
	for i := range prots {
		if p&prots[i] != 0 {
			s.WriteString(chars[i])
		} else {
			s.WriteString("-")
		}
	}
	return s.String()
}

type Placement int

const (
	// lowest free address at or above the architecture's base
	PlaceDefault Placement = iota
	// highest free address below the architecture's ceiling
	PlaceTopDown
	// exactly the requested address
	PlaceFixed
)

func (p Placement) String() string {
	switch p {
	case PlaceTopDown:
		return "top-down"
	case PlaceFixed:
		return "fixed"
	default:
		return "default"
	}
}

// Mapping is a writable local view of a range of target memory.
// Addr is the target address of Data[0].
type Mapping struct {
	Addr uint64
	Data []byte
}

// Contains reports whether [addr, addr+size) lies inside the view.
func (m *Mapping) Contains(addr, size uint64) bool {
	return addr >= m.Addr && size <= uint64(len(m.Data)) && addr-m.Addr <= uint64(len(m.Data))-size
}

// Slice returns the local bytes backing the target range [addr, addr+size).
func (m *Mapping) Slice(addr, size uint64) []byte {
	off := addr - m.Addr
	return m.Data[off : off+size]
}

// TargetMemory is the address space of the process being set up.
// Addresses and sizes are page aligned by the caller.
type TargetMemory interface {
	// Reserve claims size bytes of address space without making them accessible.
	// addr is only consulted for PlaceFixed.
	Reserve(addr, size uint64, place Placement) (uint64, error)
	// Allocate commits reserved pages with the given protection.
	Allocate(addr, size uint64, prot Prot) error
	// Map returns a local view of target memory. Writes become visible in the target after Unmap.
	Map(addr, size uint64) (*Mapping, error)
	Unmap(m *Mapping) error
	Protect(addr, size uint64, prot Prot) error
	// Release returns a reservation to the free pool.
	Release(addr, size uint64) error
}

// File is a random-access handle to an image on disk.
type File = io.ReaderAt

// PathResolver opens interpreter paths named by PT_INTERP or a #! line.
type PathResolver interface {
	Resolve(path string) (File, error)
}

type PathResolverFunc func(path string) (File, error)

func (f PathResolverFunc) Resolve(path string) (File, error) {
	return f(path)
}

// RandomSource fills buffers with random bytes for AT_RANDOM.
type RandomSource interface {
	Generate(p []byte) error
}
