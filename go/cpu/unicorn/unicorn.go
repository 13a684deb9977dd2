package unicorn

import (
	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/elfhost/go/models"
)

type Builder struct {
	Arch, Mode int
}

// BuilderFor picks the unicorn mode for a loadable architecture.
func BuilderFor(arch *models.Arch) (*Builder, error) {
	switch arch.Tag {
	case models.X86:
		return &Builder{Arch: uc.ARCH_X86, Mode: uc.MODE_32}, nil
	case models.X86_64:
		return &Builder{Arch: uc.ARCH_X86, Mode: uc.MODE_64}, nil
	}
	return nil, errors.Wrapf(models.ErrUnsupportedArch, "no unicorn mode for %s", arch)
}

func (b *Builder) New() (*UnicornCpu, error) {
	u, err := uc.NewUnicorn(b.Arch, b.Mode)
	if err != nil {
		return nil, errors.Wrap(err, "NewUnicorn() failed")
	}
	return &UnicornCpu{u}, nil
}

// UnicornCpu exposes a unicorn instance's address space as a vm.Backend.
type UnicornCpu struct {
	uc.Unicorn
}

func ucProt(prot models.Prot) int {
	var ret int
	if prot&models.ProtGuard != 0 {
		return uc.PROT_NONE
	}
	if prot&models.ProtRead != 0 {
		ret |= uc.PROT_READ
	}
	if prot&models.ProtWrite != 0 {
		ret |= uc.PROT_WRITE
	}
	if prot&models.ProtExec != 0 {
		ret |= uc.PROT_EXEC
	}
	return ret
}

func (u *UnicornCpu) MemMap(addr, size uint64, prot models.Prot) error {
	return errors.Wrap(u.Unicorn.MemMapProt(addr, size, ucProt(prot)), "MemMapProt() failed")
}

func (u *UnicornCpu) MemProt(addr, size uint64, prot models.Prot) error {
	return errors.Wrap(u.Unicorn.MemProtect(addr, size, ucProt(prot)), "MemProtect() failed")
}

// Regions lists unicorn's own view of the mapped memory.
func (u *UnicornCpu) Regions() ([]*uc.MemRegion, error) {
	return u.Unicorn.MemRegions()
}
