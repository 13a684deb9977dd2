package models

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

type Architecture int

const (
	X86 Architecture = iota + 1
	X86_64
)

func (a Architecture) String() string {
	switch a {
	case X86:
		return "x86"
	case X86_64:
		return "x86_64"
	default:
		return fmt.Sprintf("Architecture(%d)", int(a))
	}
}

// Arch holds the per-architecture ELF format traits used by the loader and stack builder.
type Arch struct {
	Name string
	Tag  Architecture
	Bits int

	Class   elf.Class
	Machine elf.Machine
	// AT_PLATFORM string
	Platform string

	// expected structure sizes for the ELF header, program header and section header
	HeaderSize int
	ProgSize   int
	SectSize   int

	PageSize uint64
	// lowest address tried when placing a relocatable main image
	DynBase uint64
	// ceiling for top-down placement (interpreter, stack)
	TopDown uint64
	// default AT_HWCAP when the host can't be queried
	Hwcap uint64
}

func (a *Arch) String() string {
	return a.Name
}

// Word returns the size of a target pointer in bytes.
func (a *Arch) Word() int {
	return a.Bits / 8
}

// ByteOrder is always little-endian for the supported machines.
func (a *Arch) ByteOrder() binary.ByteOrder {
	return binary.LittleEndian
}

// Mask returns the largest valid address for the architecture.
func (a *Arch) Mask() uint64 {
	return ^uint64(0) >> uint(64-a.Bits)
}

func (a *Arch) PageUp(addr uint64) uint64 {
	return Align(addr, a.PageSize)
}

func (a *Arch) PageDown(addr uint64) uint64 {
	return AlignDown(addr, a.PageSize)
}
