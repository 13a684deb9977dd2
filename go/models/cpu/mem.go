package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/models"
)

// Mem is an in-process address space backed by MemSim.
type Mem struct {
	bits uint
	// methods return an error for addresses that do not fit inside mask
	// calculated by NewMem using ^uint64(0) >> (64 - bits)
	mask uint64
	sim  *MemSim

	order binary.ByteOrder
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	return &Mem{
		bits:  bits,
		mask:  ^uint64(0) >> (64 - bits),
		sim:   &MemSim{},
		order: order,
	}
}

func (m *Mem) inRange(addr, size uint64) bool {
	end := addr + size
	return end >= addr && (size == 0 || (end-1)&m.mask == end-1)
}

func (m *Mem) MemMap(addr, size uint64, prot models.Prot) error {
	if !m.inRange(addr, size) {
		return errors.Errorf("region %#x-%#x outside memory range", addr, addr+size)
	}
	m.sim.Map(addr, size, prot, true)
	return nil
}

func (m *Mem) MemProt(addr, size uint64, prot models.Prot) error {
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.Errorf("range %#x-%#x not mapped", addr, addr+size)
	}
	m.sim.Prot(addr, size, prot)
	return nil
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.Errorf("range %#x-%#x not mapped", addr, addr+size)
	}
	m.sim.Unmap(addr, size)
	return nil
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.sim.Read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.sim.Write(addr, p, 0)
}

// Mappings returns the pages currently mapped, sorted by address.
func (m *Mem) Mappings() Pages {
	return m.sim.Mem
}

// Read while checking protections.
func (m *Mem) ReadProt(addr, size uint64, prot models.Prot) ([]byte, error) {
	p := make([]byte, size)
	if err := m.sim.Read(addr, p, prot); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) ReadUint(addr uint64, size int, prot models.Prot) (uint64, error) {
	if size > 8 {
		return 0, errors.Errorf("ReadUint size too large: %d > 8", size)
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, err
	}
	return UnpackUint(m.order, size, p)
}

func (m *Mem) WriteUint(addr uint64, size int, prot models.Prot, val uint64) error {
	var buf [8]byte
	if size > 8 {
		return errors.Errorf("WriteUint size too large: %d > 8", size)
	}
	if _, err := PackUint(m.order, size, buf[:], val); err != nil {
		return err
	}
	return m.sim.Write(addr, buf[:size], prot)
}
