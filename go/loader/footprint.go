package loader

import (
	"debug/elf"
)

// Footprint returns the lowest vaddr and highest vaddr+memsz over all non-empty PT_LOAD headers.
// ok is false if there are none.
func Footprint(progs []Prog) (min, max uint64, ok bool) {
	for _, p := range progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}
		end := p.Vaddr + p.Memsz
		if !ok || p.Vaddr < min {
			min = p.Vaddr
		}
		if !ok || end > max {
			max = end
		}
		ok = true
	}
	return min, max, ok
}
