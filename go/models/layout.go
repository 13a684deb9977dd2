package models

import (
	"fmt"
)

// ImageLayout describes where one ELF image ended up in the target.
type ImageLayout struct {
	Base  uint64
	Break uint64
	// zero when the header has no entry point
	Entry uint64
	// target address of the program header table, zero if not mapped
	Phdr  uint64
	Phnum uint64

	Delta    uint64
	Min, Max uint64
	Size     uint64
}

func (l *ImageLayout) String() string {
	return fmt.Sprintf("base=%#x brk=%#x entry=%#x phdr=%#x/%d", l.Base, l.Break, l.Entry, l.Phdr, l.Phnum)
}

// StackLayout describes the usable stack region, excluding its guard pages.
type StackLayout struct {
	Base    uint64
	Size    uint64
	Pointer uint64
}

func (s *StackLayout) String() string {
	return fmt.Sprintf("stack=%#x-%#x sp=%#x", s.Base, s.Base+s.Size, s.Pointer)
}

type Auxv struct {
	Type, Val uint64
}

// Layout is everything the caller needs to start the loaded program.
type Layout struct {
	Arch         *Arch
	Break        uint64
	Entry        uint64
	StackPointer uint64

	Image  *ImageLayout
	Interp *ImageLayout
	Stack  *StackLayout
	Auxv   []Auxv
}
