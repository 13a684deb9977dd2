package cpu

import (
	"fmt"
	"sort"

	"github.com/lunixbochs/elfhost/go/models"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// MemSim is a sorted list of non-overlapping pages.
// With NoData set, pages only track address ranges and protections.
type MemSim struct {
	Mem    Pages
	NoData bool
}

// Checks whether the address range exists in the currently-mapped memory.
// If prot > 0, ensures that each region has the entire protection mask provided.
func (m *MemSim) RangeValid(addr, size uint64, prot models.Prot) (mapGood bool, protGood bool) {
	first := m.Mem.bsearch(addr)
	if first == -1 {
		return false, false
	}
	protGood = true
	end := addr + size
	for _, mm := range m.Mem[first:] {
		if mm.Contains(addr) {
			if prot > 0 && (mm.Prot == 0 || mm.Prot&prot != prot) {
				protGood = false
			}
			addr = mm.Addr + mm.Size
			if addr >= end {
				break
			}
		} else {
			break
		}
	}
	return addr >= end, protGood
}

// Free reports whether no page overlaps [addr, addr+size).
func (m *MemSim) Free(addr, size uint64) bool {
	return len(m.Mem.FindRange(addr, size)) == 0
}

// FindFree returns a gap of size bytes inside [lo, hi) aligned to align.
// topDown picks the highest such gap instead of the lowest.
func (m *MemSim) FindFree(lo, hi, size, align uint64, topDown bool) (uint64, bool) {
	if size == 0 || hi < lo || hi-lo < size {
		return 0, false
	}
	lo = models.Align(lo, align)
	hi = models.AlignDown(hi, align)
	if hi < lo || hi-lo < size {
		return 0, false
	}
	if topDown {
		addr := models.AlignDown(hi-size, align)
		for i := len(m.Mem) - 1; i >= -1; i-- {
			if addr < lo || addr > hi-size {
				return 0, false
			}
			if i == -1 {
				return addr, true
			}
			pg := m.Mem[i]
			if pg.Addr >= addr+size {
				continue
			}
			if pg.Addr+pg.Size <= addr {
				return addr, true
			}
			if pg.Addr < size {
				return 0, false
			}
			addr = models.AlignDown(pg.Addr-size, align)
		}
		return 0, false
	}
	addr := lo
	for _, pg := range m.Mem {
		if pg.Addr+pg.Size <= addr {
			continue
		}
		if pg.Addr >= addr+size {
			break
		}
		addr = models.Align(pg.Addr+pg.Size, align)
	}
	if addr < lo || addr+size > hi || addr+size < addr {
		return 0, false
	}
	return addr, true
}

// Maps <addr> - <addr>+<size> and protects with prot.
// If zero is false, it first copies any existing data in this range to the new mapping.
// Any overlapping regions will be unmapped, then the mapping list will be sorted by address
// to allow binary search and simpler reads / bound checks.
func (m *MemSim) Map(addr, size uint64, prot models.Prot, zero bool) *Page {
	var data []byte
	if !m.NoData {
		data = make([]byte, size)
		if !zero {
			m.readMapped(addr, data)
		}
	}
	m.Unmap(addr, size)
	page := &Page{Addr: addr, Size: size, Prot: prot, Data: data}
	m.Mem = append(m.Mem, page)
	sort.Sort(m.Mem)
	return page
}

// this is *exactly* unmap, but the "middle" pages of each split are re-protected
func (m *MemSim) Prot(addr, size uint64, prot models.Prot) {
	tmp := make(Pages, 0, len(m.Mem))
	for _, mm := range m.Mem {
		if oaddr, osize, ok := mm.Intersect(addr, size); ok {
			left, right := mm.Split(oaddr, osize)
			if left != nil {
				tmp = append(tmp, left)
			}
			tmp = append(tmp, mm)
			mm.Prot = prot
			if right != nil {
				tmp = append(tmp, right)
			}
		} else {
			tmp = append(tmp, mm)
		}
	}
	m.Mem = tmp
}

// Describe labels every page overlapping the range.
func (m *MemSim) Describe(addr, size uint64, desc string) {
	for _, mm := range m.Mem.FindRange(addr, size) {
		mm.Desc = desc
	}
}

func (m *MemSim) Unmap(addr, size uint64) {
	tmp := make(Pages, 0, len(m.Mem))
	for _, mm := range m.Mem {
		if oaddr, osize, ok := mm.Intersect(addr, size); ok {
			left, right := mm.Split(oaddr, osize)
			if left != nil {
				tmp = append(tmp, left)
			}
			if right != nil {
				tmp = append(tmp, right)
			}
		} else {
			tmp = append(tmp, mm)
		}
	}
	m.Mem = tmp
}

// copies whatever part of [addr, addr+len(p)) is mapped, ignoring holes
func (m *MemSim) readMapped(addr uint64, p []byte) {
	for _, mm := range m.Mem.FindRange(addr, uint64(len(p))) {
		if mm.Data == nil {
			continue
		}
		start, size, _ := mm.Intersect(addr, uint64(len(p)))
		copy(p[start-addr:start-addr+size], mm.Data[start-mm.Addr:])
	}
}

func (m *MemSim) Read(addr uint64, p []byte, prot models.Prot) error {
	if gmap, gprot := m.RangeValid(addr, uint64(len(p)), prot); !gmap {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_UNMAPPED}
	} else if !gprot {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_PROT}
	}
	m.readMapped(addr, p)
	return nil
}

func (m *MemSim) Write(addr uint64, p []byte, prot models.Prot) error {
	if gmap, gprot := m.RangeValid(addr, uint64(len(p)), prot); !gmap {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_UNMAPPED}
	} else if !gprot {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_WRITE_PROT}
	}
	i := m.Mem.bsearch(addr)
	for _, mm := range m.Mem[i:] {
		if len(p) == 0 || !mm.Contains(addr) {
			break
		}
		o := addr - mm.Addr
		n := copy(mm.Data[o:], p)
		addr, p = addr+uint64(n), p[n:]
	}
	return nil
}
