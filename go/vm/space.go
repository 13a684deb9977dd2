package vm

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/elfhost/go/models"
	"github.com/lunixbochs/elfhost/go/models/cpu"
)

// Backend is the memory interface of an address space implementation.
// Both cpu.Mem and the unicorn backend satisfy it.
type Backend interface {
	MemMap(addr, size uint64, prot models.Prot) error
	MemProt(addr, size uint64, prot models.Prot) error
	MemUnmap(addr, size uint64) error
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

// Space implements models.TargetMemory on top of a Backend.
// It keeps its own page list to place reservations and to describe the layout.
type Space struct {
	Arch    *models.Arch
	Backend Backend

	regions *cpu.MemSim
	views   map[*models.Mapping]struct{}
}

func NewSpace(arch *models.Arch, backend Backend) *Space {
	return &Space{
		Arch:    arch,
		Backend: backend,
		regions: &cpu.MemSim{NoData: true},
		views:   make(map[*models.Mapping]struct{}),
	}
}

// NewSimSpace returns a Space backed by simulated memory.
func NewSimSpace(arch *models.Arch) *Space {
	return NewSpace(arch, cpu.NewMem(uint(arch.Bits), arch.ByteOrder()))
}

func (s *Space) aligned(addr, size uint64) error {
	if size == 0 || addr%s.Arch.PageSize != 0 || size%s.Arch.PageSize != 0 {
		return errors.Errorf("unaligned range %#x+%#x", addr, size)
	}
	if addr+size < addr || addr+size-1 > s.Arch.Mask() {
		return errors.Errorf("range %#x+%#x outside address space", addr, size)
	}
	return nil
}

// backend protections never include the guard bit
func backendProt(prot models.Prot) models.Prot {
	if prot&models.ProtGuard != 0 {
		return models.ProtNone
	}
	return prot
}

func (s *Space) Reserve(addr, size uint64, place models.Placement) (uint64, error) {
	size = s.Arch.PageUp(size)
	switch place {
	case models.PlaceFixed:
		if err := s.aligned(addr, size); err != nil {
			return 0, errors.Wrap(models.ErrOutOfMemory, err.Error())
		}
		if !s.regions.Free(addr, size) {
			return 0, errors.Wrapf(models.ErrOutOfMemory, "fixed reservation %#x+%#x overlaps an existing mapping", addr, size)
		}
	case models.PlaceTopDown, models.PlaceDefault:
		var ok bool
		lo, hi := s.Arch.PageSize, s.Arch.TopDown
		if place == models.PlaceDefault {
			lo = s.Arch.DynBase
		}
		addr, ok = s.regions.FindFree(lo, hi, size, s.Arch.PageSize, place == models.PlaceTopDown)
		if !ok && place == models.PlaceDefault {
			addr, ok = s.regions.FindFree(s.Arch.PageSize, hi, size, s.Arch.PageSize, false)
		}
		if !ok {
			return 0, errors.Wrapf(models.ErrOutOfMemory, "no room for %#x bytes (%s)", size, place)
		}
	default:
		return 0, errors.Wrapf(models.ErrInvalidArgument, "unknown placement %d", place)
	}
	if err := s.Backend.MemMap(addr, size, models.ProtNone); err != nil {
		return 0, errors.Wrap(models.ErrOutOfMemory, err.Error())
	}
	s.regions.Map(addr, size, models.ProtNone, true)
	logrus.WithFields(logrus.Fields{"addr": addr, "size": size, "place": place}).Debug("reserved target memory")
	return addr, nil
}

func (s *Space) reserved(addr, size uint64) error {
	if err := s.aligned(addr, size); err != nil {
		return err
	}
	if mapped, _ := s.regions.RangeValid(addr, size, 0); !mapped {
		return errors.Errorf("range %#x+%#x is not reserved", addr, size)
	}
	return nil
}

func (s *Space) Allocate(addr, size uint64, prot models.Prot) error {
	return errors.Wrap(s.protect(addr, size, prot), "allocate")
}

func (s *Space) Protect(addr, size uint64, prot models.Prot) error {
	return errors.Wrap(s.protect(addr, size, prot), "protect")
}

func (s *Space) protect(addr, size uint64, prot models.Prot) error {
	if err := s.reserved(addr, size); err != nil {
		return errors.Wrap(models.ErrOutOfMemory, err.Error())
	}
	if err := s.Backend.MemProt(addr, size, backendProt(prot)); err != nil {
		return errors.Wrap(models.ErrOutOfMemory, err.Error())
	}
	s.regions.Prot(addr, size, prot)
	return nil
}

func (s *Space) Release(addr, size uint64) error {
	size = s.Arch.PageUp(size)
	if err := s.reserved(addr, size); err != nil {
		return err
	}
	if err := s.Backend.MemUnmap(addr, size); err != nil {
		return errors.Wrap(err, "release")
	}
	s.regions.Unmap(addr, size)
	return nil
}

// Map copies target memory into a local buffer. Unmap writes it back.
func (s *Space) Map(addr, size uint64) (*models.Mapping, error) {
	if err := s.reserved(addr, size); err != nil {
		return nil, errors.Wrap(models.ErrOutOfMemory, err.Error())
	}
	m := &models.Mapping{Addr: addr, Data: make([]byte, size)}
	if err := s.Backend.MemReadInto(m.Data, addr); err != nil {
		return nil, errors.Wrap(err, "map")
	}
	s.views[m] = struct{}{}
	return m, nil
}

func (s *Space) Unmap(m *models.Mapping) error {
	if _, ok := s.views[m]; !ok {
		return errors.Errorf("mapping %#x+%#x is not open", m.Addr, len(m.Data))
	}
	delete(s.views, m)
	return errors.Wrap(s.Backend.MemWrite(m.Addr, m.Data), "unmap")
}

// Label names the pages in a range for Mappings.
func (s *Space) Label(addr, size uint64, desc string) {
	s.regions.Describe(addr, size, desc)
}

// Mappings returns the reserved regions, sorted by address.
func (s *Space) Mappings() cpu.Pages {
	return s.regions.Mem
}

// Views reports how many local mappings are still open.
func (s *Space) Views() int {
	return len(s.views)
}

func (s *Space) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := s.Backend.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Space) MemWrite(addr uint64, p []byte) error {
	return s.Backend.MemWrite(addr, p)
}
